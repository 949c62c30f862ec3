package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tqt-dev/auth-api/internal/security"
)

// MemoryProvider is an in-process Provider for dev mode and tests. Passwords
// are bcrypt-hashed, external ids are uuids, all three tokens are signed with
// the local key manager.
type MemoryProvider struct {
	mu       sync.Mutex
	byEmail  map[string]*memAccount
	byID     map[string]*memAccount
	byAccess map[string]*memAccount
	keys     *security.KeyManager
}

type memAccount struct {
	externalID   string
	email        string
	passwordHash string
	displayName  string
	accessToken  string
	refreshToken string
}

func NewMemoryProvider(keys *security.KeyManager) *MemoryProvider {
	return &MemoryProvider{
		byEmail:  map[string]*memAccount{},
		byID:     map[string]*memAccount{},
		byAccess: map[string]*memAccount{},
		keys:     keys,
	}
}

func (p *MemoryProvider) CreateAccount(_ context.Context, email, password string) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byEmail[email]; ok {
		return nil, &ProviderError{Op: "create account", Err: errors.New("EMAIL_EXISTS")}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &ProviderError{Op: "create account", Err: err}
	}
	acc := &memAccount{
		externalID:   uuid.NewString(),
		email:        email,
		passwordHash: string(hash),
	}
	if err := p.issueTokens(acc); err != nil {
		return nil, err
	}
	p.byEmail[email] = acc
	p.byID[acc.externalID] = acc
	p.byAccess[acc.accessToken] = acc
	return &Account{ExternalID: acc.externalID, AccessToken: acc.accessToken, RefreshToken: acc.refreshToken}, nil
}

func (p *MemoryProvider) SignIn(_ context.Context, email, password string) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.byEmail[email]
	if !ok || bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(password)) != nil {
		return nil, &ProviderError{Op: "sign in", Err: errors.New("INVALID_LOGIN_CREDENTIALS")}
	}
	if err := p.issueTokens(acc); err != nil {
		return nil, err
	}
	p.byAccess[acc.accessToken] = acc
	return &Account{ExternalID: acc.externalID, AccessToken: acc.accessToken, RefreshToken: acc.refreshToken}, nil
}

func (p *MemoryProvider) SetDisplayName(_ context.Context, externalID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.byID[externalID]
	if !ok {
		return &ProviderError{Op: "set display name", Err: errors.New("unknown account")}
	}
	acc.displayName = name
	return nil
}

func (p *MemoryProvider) MintLoginToken(_ context.Context, externalID string) (string, error) {
	p.mu.Lock()
	acc, ok := p.byID[externalID]
	p.mu.Unlock()
	if !ok {
		return "", &ProviderError{Op: "mint login token", Err: errors.New("unknown account")}
	}
	tok, err := security.MintLoginToken(p.keys, acc.externalID, acc.email, time.Hour)
	if err != nil {
		return "", &ProviderError{Op: "mint login token", Err: err}
	}
	return tok, nil
}

func (p *MemoryProvider) VerifyToken(_ context.Context, token string) (*Identity, error) {
	p.mu.Lock()
	acc, ok := p.byAccess[token]
	p.mu.Unlock()
	if !ok {
		// Also accept a locally minted login token.
		c, err := security.ParseLoginToken(p.keys, token)
		if err != nil {
			return nil, &ProviderError{Op: "verify token", Err: errors.New("invalid token")}
		}
		p.mu.Lock()
		acc, ok = p.byID[c.UID]
		p.mu.Unlock()
		if !ok {
			return nil, &ProviderError{Op: "verify token", Err: errors.New("unknown account")}
		}
	}
	return &Identity{
		ExternalID:    acc.externalID,
		Email:         acc.email,
		EmailVerified: true,
		Name:          acc.displayName,
	}, nil
}

func (p *MemoryProvider) issueTokens(acc *memAccount) error {
	access, err := security.MintLoginToken(p.keys, acc.externalID, acc.email, time.Hour)
	if err != nil {
		return &ProviderError{Op: "issue tokens", Err: err}
	}
	refresh, err := security.MintLoginToken(p.keys, acc.externalID, acc.email, 14*24*time.Hour)
	if err != nil {
		return &ProviderError{Op: "issue tokens", Err: err}
	}
	acc.accessToken = access
	acc.refreshToken = refresh
	return nil
}
