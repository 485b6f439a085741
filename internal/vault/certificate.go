package vault

import (
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Content types Key Vault assigns to certificate-backed secrets.
const (
	ContentTypePKCS12 = "application/x-pkcs12"
	ContentTypePEM    = "application/x-pem-file"
)

// Certificate is an X.509 certificate with its private key, usable for
// app-only authentication.
type Certificate struct {
	Leaf       *x509.Certificate
	Chain      []*x509.Certificate
	PrivateKey crypto.PrivateKey
}

// Thumbprint returns the upper-case hex SHA-1 thumbprint of the leaf certificate.
func (c *Certificate) Thumbprint() string {
	sum := sha1.Sum(c.Leaf.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Certificates returns the leaf followed by the rest of the chain.
func (c *Certificate) Certificates() []*x509.Certificate {
	out := make([]*x509.Certificate, 0, 1+len(c.Chain))
	out = append(out, c.Leaf)
	return append(out, c.Chain...)
}

// DecodeSecretValue decodes the base64 form Key Vault uses for binary secrets.
func DecodeSecretValue(value string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("%w: value is not base64: %w", ErrInvalidSecret, err)
	}
	return raw, nil
}

// DecodeCertificate turns a secret value into a Certificate. PKCS#12 values
// arrive base64 encoded with an empty password; PEM values arrive as text.
func DecodeCertificate(value, contentType string) (*Certificate, error) {
	if contentType == ContentTypePEM || strings.HasPrefix(strings.TrimSpace(value), "-----BEGIN") {
		return decodePEM([]byte(value))
	}

	raw, err := DecodeSecretValue(value)
	if err != nil {
		return nil, err
	}

	key, leaf, chain, err := gopkcs12.DecodeChain(raw, "")
	if err != nil {
		return nil, fmt.Errorf("%w: decoding pkcs12: %w", ErrInvalidSecret, err)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: pkcs12 bundle has no private key", ErrInvalidSecret)
	}

	return &Certificate{
		Leaf:       leaf,
		Chain:      chain,
		PrivateKey: key,
	}, nil
}

func decodePEM(data []byte) (*Certificate, error) {
	certs, key, err := azidentity.ParseCertificates(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding pem: %w", ErrInvalidSecret, err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: pem has no certificate", ErrInvalidSecret)
	}
	return &Certificate{
		Leaf:       certs[0],
		Chain:      certs[1:],
		PrivateKey: key,
	}, nil
}
