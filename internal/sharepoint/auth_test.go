package sharepoint

import (
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/nickoftime/keyvault-spo/internal/vault"
	"github.com/nickoftime/keyvault-spo/internal/vault/vaulttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCertificate(t *testing.T) *vault.Certificate {
	t.Helper()
	bundle := vaulttest.NewBundle(t, "nickoftime")
	cert, err := vault.DecodeCertificate(bundle.PFXBase64, vault.ContentTypePKCS12)
	require.NoError(t, err)
	return cert
}

func TestNewAppOnlyCredential(t *testing.T) {
	cert := testCertificate(t)

	cred, err := NewAppOnlyCredential("contoso.onmicrosoft.com", "00000000-0000-0000-0000-000000000001", cert, policy.ClientOptions{})
	require.NoError(t, err)
	assert.IsType(t, &azidentity.ClientCertificateCredential{}, cred)
}

func TestNewAppOnlyCredentialRequiresKey(t *testing.T) {
	tests := []struct {
		name string
		cert *vault.Certificate
	}{
		{"nil certificate", nil},
		{"no leaf", &vault.Certificate{}},
		{"no key", &vault.Certificate{Leaf: testCertificate(t).Leaf}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAppOnlyCredential("contoso.onmicrosoft.com", "app-id", tt.cert, policy.ClientOptions{})
			assert.Error(t, err)
		})
	}
}
