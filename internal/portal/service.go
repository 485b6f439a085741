// Package portal composes credential resolution, the SharePoint query and
// record projection into the list view's data source.
package portal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nickoftime/keyvault-spo/internal/models"
	"github.com/nickoftime/keyvault-spo/internal/posts"
	"github.com/nickoftime/keyvault-spo/internal/sharepoint"
	"github.com/nickoftime/keyvault-spo/internal/vault"
)

// CertificateResolver resolves a named secret into a certificate.
type CertificateResolver interface {
	Resolve(ctx context.Context, name string) (*vault.Certificate, error)
}

// Session is a request-scoped, authenticated list client.
type Session interface {
	Items(ctx context.Context, q sharepoint.Query) ([]sharepoint.ListItem, error)
	Close() error
}

// Connector opens sessions with a certificate.
type Connector interface {
	Open(ctx context.Context, cert *vault.Certificate) (Session, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, cert *vault.Certificate) (Session, error)

// Open calls f.
func (f ConnectorFunc) Open(ctx context.Context, cert *vault.Certificate) (Session, error) {
	return f(ctx, cert)
}

// SharePointConnector adapts *sharepoint.Connector to Connector.
func SharePointConnector(c *sharepoint.Connector) Connector {
	return ConnectorFunc(func(ctx context.Context, cert *vault.Certificate) (Session, error) {
		sess, err := c.Open(ctx, cert)
		if err != nil {
			return nil, err
		}
		return sess, nil
	})
}

// Config names the secret and the list the service reads.
type Config struct {
	SecretName string
	ListName   string
}

// Service produces the posts shown on the home page.
type Service struct {
	resolver  CertificateResolver
	connector Connector
	config    Config
	logger    *slog.Logger
}

// NewService creates a service from its collaborators.
func NewService(resolver CertificateResolver, connector Connector, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:  resolver,
		connector: connector,
		config:    cfg,
		logger:    logger,
	}
}

// ListPosts returns every post of the configured list, newest first.
// Any failure aborts the whole call; no partial results are returned.
func (s *Service) ListPosts(ctx context.Context) (result []models.Post, err error) {
	start := time.Now()

	cert, err := s.resolver.Resolve(ctx, s.config.SecretName)
	if err != nil {
		return nil, fmt.Errorf("resolving certificate: %w", err)
	}

	session, err := s.connector.Open(ctx, cert)
	if err != nil {
		return nil, fmt.Errorf("opening sharepoint session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing sharepoint session: %w", closeErr)
			result = nil
		}
	}()

	items, err := session.Items(ctx, sharepoint.Query{
		List:       s.config.ListName,
		Select:     posts.SelectFields(),
		Expand:     posts.ExpandFields(),
		OrderBy:    posts.FieldCreated,
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying list: %w", err)
	}

	result, err = posts.FromListItems(items)
	if err != nil {
		return nil, fmt.Errorf("projecting list %q: %w", s.config.ListName, err)
	}

	s.logger.InfoContext(ctx, "listed posts",
		"list", s.config.ListName,
		"count", len(result),
		"duration", time.Since(start).String(),
	)

	return result, nil
}
