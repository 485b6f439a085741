// Package vaulttest generates self-signed certificates and fake Key Vault
// clients for tests.
package vaulttest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Bundle is a generated certificate with its key and encodings.
type Bundle struct {
	Key         *rsa.PrivateKey
	Certificate *x509.Certificate
	// PFXBase64 is the base64 PKCS#12 form Key Vault returns for certificate secrets.
	PFXBase64 string
	// PEM holds the certificate followed by the PKCS#8 key.
	PEM string
}

// NewBundle generates a self-signed RSA certificate for commonName.
func NewBundle(t testing.TB, commonName string) *Bundle {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing certificate: %v", err)
	}

	pfx, err := gopkcs12.Modern.Encode(key, cert, nil, "")
	if err != nil {
		t.Fatalf("encoding pkcs12: %v", err)
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	pemData = append(pemData, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})...)

	return &Bundle{
		Key:         key,
		Certificate: cert,
		PFXBase64:   base64.StdEncoding.EncodeToString(pfx),
		PEM:         string(pemData),
	}
}

// SecretClient is an in-memory stand-in for *azsecrets.Client.
type SecretClient struct {
	mu       sync.Mutex
	secrets  map[string]azsecrets.Secret
	err      error
	requests []string
}

// NewSecretClient creates an empty fake client.
func NewSecretClient() *SecretClient {
	return &SecretClient{secrets: make(map[string]azsecrets.Secret)}
}

// Set stores value under name with the given content type.
func (c *SecretClient) Set(name, value, contentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := azsecrets.Secret{Value: &value}
	if contentType != "" {
		s.ContentType = &contentType
	}
	c.secrets[name] = s
}

// FailWith makes every GetSecret call return err.
func (c *SecretClient) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Requests returns the secret names requested so far.
func (c *SecretClient) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.requests...)
}

// GetSecret implements vault.SecretGetter. Unknown names yield a 404 response error.
func (c *SecretClient) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, name)

	if c.err != nil {
		return azsecrets.GetSecretResponse{}, c.err
	}
	s, ok := c.secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, NotFoundError()
	}
	return azsecrets.GetSecretResponse{Secret: s}, nil
}

// NotFoundError returns the error the vault produces for a missing secret.
func NotFoundError() error {
	return ResponseError(http.StatusNotFound, "SecretNotFound")
}

// ResponseError builds an *azcore.ResponseError the way the SDK does from a
// vault error response.
func ResponseError(status int, code string) error {
	req, _ := http.NewRequest(http.MethodGet, "https://fake.vault.azure.net/secrets/test", nil)
	body := fmt.Sprintf(`{"error":{"code":%q,"message":"fake vault error"}}`, code)
	resp := &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
	return runtime.NewResponseError(resp)
}
