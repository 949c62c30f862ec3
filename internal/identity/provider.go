// Package identity abstracts the external identity provider that owns
// credentials and token issuance. The orchestration layer only ever sees the
// Provider interface; the concrete client is wired at bootstrap.
package identity

import (
	"context"
	"fmt"
)

// Account is the provider's view of a freshly created or signed-in account.
type Account struct {
	ExternalID   string
	AccessToken  string
	RefreshToken string
}

// Identity is a normalized, verified external identity extracted from a
// provider-minted ID token. Facts only, no decisions.
type Identity struct {
	ExternalID    string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type Provider interface {
	// CreateAccount registers email/password with the provider. Fails with a
	// ProviderError on duplicate email or rejected credentials.
	CreateAccount(ctx context.Context, email, password string) (*Account, error)
	SetDisplayName(ctx context.Context, externalID, name string) error
	// MintLoginToken issues a signed assertion bound to externalID, usable by
	// this system's own sign-in flow.
	MintLoginToken(ctx context.Context, externalID string) (string, error)
	SignIn(ctx context.Context, email, password string) (*Account, error)
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// ProviderError is any rejection coming back from the identity provider.
type ProviderError struct {
	Op     string
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("identity provider: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("identity provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
