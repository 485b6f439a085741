// Package sharepoint provides an app-only client for SharePoint Online list data.
package sharepoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/nickoftime/keyvault-spo/internal/vault"
	"github.com/tidwall/gjson"
)

const (
	moduleName    = "sharepoint"
	moduleVersion = "v1.0.0"

	acceptNoMetadata = "application/json;odata=nometadata"
	defaultPageSize  = 500
)

var (
	// ErrListNotFound is returned when the site has no list with the requested title.
	ErrListNotFound = errors.New("list not found")
	// ErrUnauthorized is returned when the app-only identity is rejected.
	ErrUnauthorized = errors.New("sharepoint rejected app-only credentials")
	// ErrSessionClosed is returned by calls on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// Config identifies the site and the Entra ID application.
type Config struct {
	SiteURL  string
	ClientID string
	Tenant   string
}

// Options tunes a Connector.
type Options struct {
	// ClientOptions configures the azcore pipeline used for REST calls.
	ClientOptions policy.ClientOptions
	// NewCredential overrides how the app-only credential is built.
	NewCredential CredentialFactory
	// PageSize is the $top value per request. Defaults to 500.
	PageSize int
}

// Connector opens app-only sessions against one site. It holds no
// per-request state and is safe for concurrent use.
type Connector struct {
	site          *url.URL
	clientID      string
	tenant        string
	newCredential CredentialFactory
	clientOptions policy.ClientOptions
	pageSize      int
	logger        *slog.Logger
}

// NewConnector validates cfg and returns a connector for the site.
func NewConnector(cfg Config, opts *Options, logger *slog.Logger) (*Connector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	site, err := url.Parse(strings.TrimSuffix(cfg.SiteURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing site url: %w", err)
	}
	if site.Scheme != "https" || site.Host == "" {
		return nil, fmt.Errorf("site url must be an absolute https URL, got %q", cfg.SiteURL)
	}

	c := &Connector{
		site:          site,
		clientID:      cfg.ClientID,
		tenant:        cfg.Tenant,
		newCredential: NewAppOnlyCredential,
		pageSize:      defaultPageSize,
		logger:        logger,
	}

	if opts != nil {
		c.clientOptions = opts.ClientOptions
		if opts.NewCredential != nil {
			c.newCredential = opts.NewCredential
		}
		if opts.PageSize > 0 {
			c.pageSize = opts.PageSize
		}
	}

	return c, nil
}

// Scope returns the token scope for the site's tenant host.
func (c *Connector) Scope() string {
	return c.site.Scheme + "://" + c.site.Host + "/.default"
}

// Open authenticates app-only with cert and returns a session. The caller
// must Close the session.
func (c *Connector) Open(ctx context.Context, cert *vault.Certificate) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cred, err := c.newCredential(c.tenant, c.clientID, cert, c.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	opts := c.clientOptions
	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{runtime.NewBearerTokenPolicy(cred, []string{c.Scope()}, nil)},
	}, &opts)

	c.logger.DebugContext(ctx, "opened sharepoint session", "site", c.site.String(), "client_id", c.clientID)

	return &Session{
		pipeline: pl,
		site:     c.site,
		pageSize: c.pageSize,
		logger:   c.logger,
	}, nil
}

// Session is an authenticated, request-scoped connection to a site.
type Session struct {
	pipeline runtime.Pipeline
	site     *url.URL
	pageSize int
	logger   *slog.Logger
	closed   atomic.Bool
}

// Close releases the session. Further calls fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

// Query selects items of one list.
type Query struct {
	List       string
	Select     []string
	Expand     []string
	OrderBy    string
	Descending bool
}

// Items returns every item of the list matching q, following server paging.
func (s *Session) Items(ctx context.Context, q Query) ([]ListItem, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if q.List == "" {
		return nil, errors.New("query has no list title")
	}

	next := s.itemsURL(q)
	var items []ListItem

	for page := 1; next != ""; page++ {
		if s.closed.Load() {
			return nil, ErrSessionClosed
		}

		body, err := s.get(ctx, next)
		if err != nil {
			return nil, s.classify(q.List, err)
		}

		parsed := gjson.ParseBytes(body)
		parsed.Get("value").ForEach(func(_, row gjson.Result) bool {
			items = append(items, ListItem{raw: row})
			return true
		})

		next = parsed.Get(`odata\.nextLink`).String()
		s.logger.DebugContext(ctx, "fetched list page", "list", q.List, "page", page, "items", len(items), "more", next != "")
	}

	if items == nil {
		items = []ListItem{}
	}
	return items, nil
}

func (s *Session) itemsURL(q Query) string {
	title := strings.ReplaceAll(q.List, "'", "''")
	base := fmt.Sprintf("%s/_api/web/lists/getbytitle('%s')/items", s.site.String(), url.PathEscape(title))

	params := map[string]string{
		"$top": fmt.Sprintf("%d", s.pageSize),
	}
	if len(q.Select) > 0 {
		params["$select"] = strings.Join(q.Select, ",")
	}
	if len(q.Expand) > 0 {
		params["$expand"] = strings.Join(q.Expand, ",")
	}
	if q.OrderBy != "" {
		order := q.OrderBy + " asc"
		if q.Descending {
			order = q.OrderBy + " desc"
		}
		params["$orderby"] = order
	}

	return base + "?" + encodeODataQuery(params)
}

// encodeODataQuery keeps the $ option names literal and encodes spaces as %20.
func encodeODataQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := strings.ReplaceAll(url.QueryEscape(params[k]), "+", "%20")
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "&")
}

func (s *Session) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := runtime.NewRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Raw().Header.Set("Accept", acceptNoMetadata)

	resp, err := s.pipeline.Do(req)
	if err != nil {
		return nil, err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, runtime.NewResponseError(resp)
	}

	body, err := runtime.Payload(resp)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

func (s *Session) classify(list string, err error) error {
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("list %q on %s: %w", list, s.site.String(), ErrListNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: list %q (%d)", ErrUnauthorized, list, respErr.StatusCode)
		}
	}

	return fmt.Errorf("querying list %q: %w", list, err)
}
