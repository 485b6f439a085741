package sharepoint

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/nickoftime/keyvault-spo/internal/vault"
)

// CredentialFactory builds the token credential for a session.
type CredentialFactory func(tenant, clientID string, cert *vault.Certificate, opts policy.ClientOptions) (azcore.TokenCredential, error)

// NewAppOnlyCredential returns a credential that authenticates the Entra ID
// application clientID in tenant with cert. The chain is sent with each token
// request so subject-name/issuer registrations keep working across renewals.
func NewAppOnlyCredential(tenant, clientID string, cert *vault.Certificate, opts policy.ClientOptions) (azcore.TokenCredential, error) {
	if cert == nil || cert.Leaf == nil || cert.PrivateKey == nil {
		return nil, errors.New("app-only authentication requires a certificate with a private key")
	}

	cred, err := azidentity.NewClientCertificateCredential(tenant, clientID, cert.Certificates(), cert.PrivateKey,
		&azidentity.ClientCertificateCredentialOptions{
			ClientOptions:        opts,
			SendCertificateChain: true,
		})
	if err != nil {
		return nil, fmt.Errorf("creating client certificate credential: %w", err)
	}
	return cred, nil
}
