// Package vault resolves the app-only certificate from Azure Key Vault.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// Scope is the token scope requested for Key Vault data-plane calls.
const Scope = "https://vault.azure.net/.default"

var (
	// ErrAuthentication is returned when the ambient identity cannot obtain
	// a token or the vault rejects it.
	ErrAuthentication = errors.New("key vault authentication failed")
	// ErrSecretNotFound is returned when the named secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrInvalidSecret is returned when the secret value is not a usable certificate.
	ErrInvalidSecret = errors.New("secret is not a valid certificate")
)

// SecretGetter is the subset of *azsecrets.Client used by the resolver.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// Resolver fetches a named secret and decodes it into a Certificate.
// It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	client     SecretGetter
	credential azcore.TokenCredential
	logger     *slog.Logger
}

// NewResolver creates a resolver over an existing secrets client.
func NewResolver(client SecretGetter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client: client,
		logger: logger,
	}
}

// NewManagedIdentityResolver authenticates to the vault at endpoint with the
// process's managed identity. identityClientID selects a user-assigned
// identity; empty means system-assigned.
func NewManagedIdentityResolver(endpoint, identityClientID string, logger *slog.Logger) (*Resolver, error) {
	opts := &azidentity.ManagedIdentityCredentialOptions{}
	if identityClientID != "" {
		opts.ID = azidentity.ClientID(identityClientID)
	}

	cred, err := azidentity.NewManagedIdentityCredential(opts)
	if err != nil {
		return nil, fmt.Errorf("creating managed identity credential: %w", err)
	}

	return NewCredentialResolver(endpoint, cred, nil, logger)
}

// NewCredentialResolver creates a resolver for the vault at endpoint using cred.
func NewCredentialResolver(endpoint string, cred azcore.TokenCredential, opts *azsecrets.ClientOptions, logger *slog.Logger) (*Resolver, error) {
	wrapped := identityCredential{cred: cred}

	client, err := azsecrets.NewClient(endpoint, wrapped, opts)
	if err != nil {
		return nil, fmt.Errorf("creating key vault client for %s: %w", endpoint, err)
	}

	r := NewResolver(client, logger)
	r.credential = wrapped
	return r, nil
}

// Resolve fetches the latest version of the named secret and decodes it.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Certificate, error) {
	resp, err := r.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return nil, classifyError(name, err)
	}

	if resp.Value == nil {
		return nil, fmt.Errorf("secret %q has no value: %w", name, ErrInvalidSecret)
	}

	var contentType string
	if resp.ContentType != nil {
		contentType = *resp.ContentType
	}

	cert, err := DecodeCertificate(*resp.Value, contentType)
	if err != nil {
		return nil, fmt.Errorf("secret %q: %w", name, err)
	}

	r.logger.DebugContext(ctx, "resolved certificate from key vault",
		"secret", name,
		"subject", cert.Leaf.Subject.String(),
		"thumbprint", cert.Thumbprint(),
		"not_after", cert.Leaf.NotAfter,
	)

	return cert, nil
}

// CheckIdentity requests a Key Vault token without reading any secret.
// It returns nil when the resolver was not built from a credential.
func (r *Resolver) CheckIdentity(ctx context.Context) error {
	if r.credential == nil {
		return nil
	}
	if _, err := r.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{Scope}}); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return nil
}

func classifyError(name string, err error) error {
	var tokenErr *tokenError
	if errors.As(err, &tokenErr) {
		return fmt.Errorf("%w: acquiring token for secret %q: %w", ErrAuthentication, name, tokenErr.err)
	}

	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("secret %q: %w", name, ErrSecretNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: vault rejected request for secret %q (%d %s)", ErrAuthentication, name, respErr.StatusCode, respErr.ErrorCode)
		}
	}

	return fmt.Errorf("fetching secret %q: %w", name, err)
}

// identityCredential marks token acquisition failures so they can be told
// apart from vault responses after the azcore pipeline has wrapped them.
type identityCredential struct {
	cred azcore.TokenCredential
}

func (c identityCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	tok, err := c.cred.GetToken(ctx, opts)
	if err != nil {
		return tok, &tokenError{err: err}
	}
	return tok, nil
}

type tokenError struct {
	err error
}

func (e *tokenError) Error() string { return e.err.Error() }

func (e *tokenError) Unwrap() error { return e.err }
