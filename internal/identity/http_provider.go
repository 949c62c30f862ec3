package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tqt-dev/auth-api/internal/security"
)

const loginTokenTTL = time.Hour

// HTTPProvider talks to an identity-toolkit style REST API (accounts:signUp,
// accounts:signInWithPassword, accounts:update, accounts:lookup) with the API
// key passed as a query parameter. Login tokens are not fetched remotely:
// they are minted locally by signing with the service key, which is the
// custom-token contract such providers verify against our JWKS.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	keys    *security.KeyManager
}

func NewHTTPProvider(baseURL, apiKey string, keys *security.KeyManager) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 10 * time.Second},
		keys:    keys,
	}
}

type accountResp struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	Verified     bool   `json:"emailVerified"`
}

func (p *HTTPProvider) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	var out accountResp
	err := p.post(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, wrap("create account", err)
	}
	return &Account{ExternalID: out.LocalID, AccessToken: out.IDToken, RefreshToken: out.RefreshToken}, nil
}

func (p *HTTPProvider) SignIn(ctx context.Context, email, password string) (*Account, error) {
	var out accountResp
	err := p.post(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, wrap("sign in", err)
	}
	return &Account{ExternalID: out.LocalID, AccessToken: out.IDToken, RefreshToken: out.RefreshToken}, nil
}

func (p *HTTPProvider) SetDisplayName(ctx context.Context, externalID, name string) error {
	err := p.post(ctx, "accounts:update", map[string]any{
		"localId":     externalID,
		"displayName": name,
	}, &accountResp{})
	if err != nil {
		return wrap("set display name", err)
	}
	return nil
}

func (p *HTTPProvider) MintLoginToken(_ context.Context, externalID string) (string, error) {
	if externalID == "" {
		return "", &ProviderError{Op: "mint login token", Err: errors.New("empty external id")}
	}
	tok, err := security.MintLoginToken(p.keys, externalID, "", loginTokenTTL)
	if err != nil {
		return "", wrap("mint login token", err)
	}
	return tok, nil
}

func (p *HTTPProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	var out struct {
		Users []accountResp `json:"users"`
	}
	if err := p.post(ctx, "accounts:lookup", map[string]any{"idToken": token}, &out); err != nil {
		return nil, wrap("verify token", err)
	}
	if len(out.Users) == 0 {
		return nil, &ProviderError{Op: "verify token", Err: errors.New("no account for token")}
	}
	u := out.Users[0]
	return &Identity{
		ExternalID:    u.LocalID,
		Email:         u.Email,
		EmailVerified: u.Verified,
		Name:          u.DisplayName,
		Picture:       u.PhotoURL,
	}, nil
}

func (p *HTTPProvider) post(ctx context.Context, op string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s?key=%s", p.baseURL, op, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &ProviderError{Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func wrap(op string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return &ProviderError{Op: op, Status: pe.Status, Err: pe.Err}
	}
	return &ProviderError{Op: op, Err: err}
}
