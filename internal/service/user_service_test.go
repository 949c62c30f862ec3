package service_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tqt-dev/auth-api/internal/domain"
	"github.com/tqt-dev/auth-api/internal/identity"
	"github.com/tqt-dev/auth-api/internal/queue"
	"github.com/tqt-dev/auth-api/internal/repo"
	"github.com/tqt-dev/auth-api/internal/service"
	"github.com/tqt-dev/auth-api/internal/validate"
)

// fakeRepo implements UserReader and UserWriter over maps and records call
// order so gating can be asserted.
type fakeRepo struct {
	byEmail    map[string]*domain.User
	byUsername map[string]*domain.User
	calls      []string
	createErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byEmail: map[string]*domain.User{}, byUsername: map[string]*domain.User{}}
}

func (r *fakeRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.calls = append(r.calls, "existsByEmail")
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *fakeRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.calls = append(r.calls, "existsByUsername")
	_, ok := r.byUsername[username]
	return ok, nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) List(_ context.Context, q domain.OffsetQuery) (*domain.OffsetResult[*domain.User], error) {
	items := []*domain.User{}
	for _, u := range r.byEmail {
		items = append(items, u)
	}
	return &domain.OffsetResult[*domain.User]{Items: items, Total: int64(len(items))}, nil
}

func (r *fakeRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.calls = append(r.calls, "create")
	if r.createErr != nil {
		return nil, r.createErr
	}
	created := *u
	created.ID = "user-" + strconv.Itoa(len(r.byEmail)+1)
	r.byEmail[created.Email] = &created
	r.byUsername[created.Username] = &created
	return &created, nil
}

// fakeProvider records calls; failures are injected per operation.
type fakeProvider struct {
	calls     []string
	createErr error
	mintErr   error
	signInErr error
	verifyErr error
	identity  *identity.Identity
	seq       int
}

func (p *fakeProvider) CreateAccount(_ context.Context, email, password string) (*identity.Account, error) {
	p.calls = append(p.calls, "createAccount")
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.seq++
	return &identity.Account{
		ExternalID:   fmt.Sprintf("ext-%d", p.seq),
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
	}, nil
}

func (p *fakeProvider) SetDisplayName(_ context.Context, externalID, name string) error {
	p.calls = append(p.calls, "setDisplayName")
	return nil
}

func (p *fakeProvider) MintLoginToken(_ context.Context, externalID string) (string, error) {
	p.calls = append(p.calls, "mintLoginToken")
	if p.mintErr != nil {
		return "", p.mintErr
	}
	return "login-token", nil
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (*identity.Account, error) {
	p.calls = append(p.calls, "signIn")
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	return &identity.Account{ExternalID: "ext-1", AccessToken: "access-token", RefreshToken: "refresh-token"}, nil
}

func (p *fakeProvider) VerifyToken(_ context.Context, token string) (*identity.Identity, error) {
	p.calls = append(p.calls, "verifyToken")
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	if p.identity != nil {
		return p.identity, nil
	}
	return &identity.Identity{ExternalID: "ext-9", Email: "tok@example.com", EmailVerified: true}, nil
}

func validCommand() domain.RegisterCommand {
	return domain.RegisterCommand{
		Email:     "jane@example.com",
		Username:  "jane1990",
		Password:  "Str0ng!pw",
		FirstName: "Jane",
		LastName:  "Doe",
	}
}

func newService(r *fakeRepo, p *fakeProvider) *service.UserService {
	return service.NewUserService(r, r, p, queue.NewNoop())
}

func TestRegister_Succeeds(t *testing.T) {
	r := newFakeRepo()
	p := &fakeProvider{}
	svc := newService(r, p)

	tokens, err := svc.Register(context.Background(), validCommand())
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.LoginToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.NotEmpty(t, tokens.AccessToken)

	exists, err := svc.EmailExists(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	u := r.byEmail["jane@example.com"]
	require.NotNil(t, u)
	assert.Equal(t, domain.SignInEmail, u.SignInType)
	assert.Equal(t, "jane@example.com", u.SignInID)
	assert.Equal(t, domain.StatusActive, u.Status)
	assert.Equal(t, "Jane Doe", u.DisplayName)
	assert.Equal(t, "ext-1", u.ExternalID)
}

func TestRegister_ValidationPrecedesSideEffects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.RegisterCommand)
		field  string
	}{
		{"bad email", func(c *domain.RegisterCommand) { c.Email = "not-an-email" }, "email"},
		{"short username", func(c *domain.RegisterCommand) { c.Username = "ab" }, "username"},
		{"weak password", func(c *domain.RegisterCommand) { c.Password = "alllowercase1" }, "password"},
		{"missing first name", func(c *domain.RegisterCommand) { c.FirstName = "" }, "firstName"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newFakeRepo()
			p := &fakeProvider{}
			svc := newService(r, p)

			cmd := validCommand()
			tc.mutate(&cmd)

			_, err := svc.Register(context.Background(), cmd)
			var verr *validate.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)

			assert.Empty(t, p.calls, "provider must not be invoked")
			assert.Empty(t, r.calls, "repository must not be invoked")
		})
	}
}

func TestRegister_UsernameRuleMessage(t *testing.T) {
	r := newFakeRepo()
	svc := newService(r, &fakeProvider{})

	cmd := validCommand()
	cmd.Username = "ab"
	_, err := svc.Register(context.Background(), cmd)

	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["username"], "minimum 5 and maximum 20 characters")
}

func TestRegister_PasswordRuleMessage(t *testing.T) {
	r := newFakeRepo()
	svc := newService(r, &fakeProvider{})

	cmd := validCommand()
	cmd.Password = "alllowercase1"
	_, err := svc.Register(context.Background(), cmd)

	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["password"], "one uppercase letter")
}

func TestRegister_DuplicateEmailGatesBeforeUsername(t *testing.T) {
	r := newFakeRepo()
	r.byEmail["a@b.com"] = &domain.User{Email: "a@b.com"}
	p := &fakeProvider{}
	svc := newService(r, p)

	cmd := validCommand()
	cmd.Email = "a@b.com"
	_, err := svc.Register(context.Background(), cmd)

	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "An account with this email already exists", verr.Fields["email"])

	assert.Equal(t, []string{"existsByEmail"}, r.calls, "username check must not run after email hit")
	assert.Empty(t, p.calls)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	r := newFakeRepo()
	r.byUsername["jane1990"] = &domain.User{Username: "jane1990"}
	p := &fakeProvider{}
	svc := newService(r, p)

	_, err := svc.Register(context.Background(), validCommand())

	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "An account with this username already exists", verr.Fields["username"])
	assert.Empty(t, p.calls)
}

func TestRegister_ProviderFailureCollapsesToUniformMessage(t *testing.T) {
	r := newFakeRepo()
	p := &fakeProvider{createErr: &identity.ProviderError{Op: "create account", Err: errors.New("connection reset")}}
	svc := newService(r, p)

	_, err := svc.Register(context.Background(), validCommand())

	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "An account with this email already exists", verr.Fields["email"])
	assert.NotContains(t, r.calls, "create", "no persistence without provider success")
}

func TestRegister_MintFailureAlsoCollapsed(t *testing.T) {
	r := newFakeRepo()
	p := &fakeProvider{mintErr: errors.New("kid mismatch")}
	svc := newService(r, p)

	_, err := svc.Register(context.Background(), validCommand())

	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "An account with this email already exists", verr.Fields["email"])
	assert.NotContains(t, r.calls, "create")
}

func TestRegister_PersistenceFailureSurfacesAndDiscardsTokens(t *testing.T) {
	r := newFakeRepo()
	r.createErr = &repo.PersistenceError{Op: "create user", Err: errors.New("connection lost")}
	p := &fakeProvider{}
	svc := newService(r, p)

	tokens, err := svc.Register(context.Background(), validCommand())

	var perr *repo.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Nil(t, tokens, "tokens from the provider step must be discarded")
	assert.Contains(t, p.calls, "createAccount", "failure happened after provider success")
}

func TestDisplayName_Deterministic(t *testing.T) {
	a := domain.DisplayName("Jane", "Doe")
	b := domain.DisplayName("Jane", "Doe")
	assert.Equal(t, a, b)
	assert.Equal(t, "Jane Doe", a)
}

func TestPredicates_AreReadOnly(t *testing.T) {
	r := newFakeRepo()
	r.byEmail["x@y.com"] = &domain.User{Email: "x@y.com"}
	svc := newService(r, &fakeProvider{})

	for i := 0; i < 3; i++ {
		ok, err := svc.EmailExists(context.Background(), "x@y.com")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.UsernameExists(context.Background(), "nobody99")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.NotContains(t, r.calls, "create")
}

func TestRegisterWithToken_Succeeds(t *testing.T) {
	r := newFakeRepo()
	p := &fakeProvider{identity: &identity.Identity{
		ExternalID:    "ext-42",
		Email:         "fed@example.com",
		EmailVerified: true,
		Picture:       "https://cdn.example.com/p.png",
	}}
	svc := newService(r, p)

	err := svc.RegisterWithToken(context.Background(), domain.RegisterWithTokenCommand{
		Token:     "provider-token",
		Username:  "feduser",
		FirstName: "Fed",
		LastName:  "User",
	})
	require.NoError(t, err)

	u := r.byEmail["fed@example.com"]
	require.NotNil(t, u)
	assert.Equal(t, domain.SignInGoogle, u.SignInType)
	assert.Equal(t, "ext-42", u.ExternalID)
	assert.Equal(t, "https://cdn.example.com/p.png", u.AvatarURL)
}

func TestRegisterWithToken_InvalidTokenPropagatesProviderError(t *testing.T) {
	r := newFakeRepo()
	p := &fakeProvider{verifyErr: &identity.ProviderError{Op: "verify token", Err: errors.New("invalid token")}}
	svc := newService(r, p)

	err := svc.RegisterWithToken(context.Background(), domain.RegisterWithTokenCommand{
		Token: "bad", Username: "feduser", FirstName: "Fed", LastName: "User",
	})

	var perr *identity.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, r.calls)
}

func TestGenerateToken_Succeeds(t *testing.T) {
	r := newFakeRepo()
	svc := newService(r, &fakeProvider{})

	tokens, err := svc.GenerateToken(context.Background(), domain.GenerateTokenCommand{
		Email: "jane@example.com", Password: "Str0ng!pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "login-token", tokens.LoginToken)
	assert.Equal(t, "access-token", tokens.AccessToken)
	assert.Equal(t, "refresh-token", tokens.RefreshToken)
}

func TestGenerateToken_ProviderRejectionPropagates(t *testing.T) {
	r := newFakeRepo()
	p := &fakeProvider{signInErr: &identity.ProviderError{Op: "sign in", Err: errors.New("INVALID_LOGIN_CREDENTIALS")}}
	svc := newService(r, p)

	_, err := svc.GenerateToken(context.Background(), domain.GenerateTokenCommand{
		Email: "jane@example.com", Password: "wrong",
	})

	var perr *identity.ProviderError
	require.ErrorAs(t, err, &perr)
}

func TestGetAndList(t *testing.T) {
	r := newFakeRepo()
	svc := newService(r, &fakeProvider{})

	_, err := svc.Register(context.Background(), validCommand())
	require.NoError(t, err)

	created := r.byEmail["jane@example.com"]
	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.Email, got.Email)

	page, err := svc.List(context.Background(), domain.OffsetQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Len(t, page.Items, 1)
}
