package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tqt-dev/auth-api/internal/domain"
	"github.com/tqt-dev/auth-api/internal/identity"
	"github.com/tqt-dev/auth-api/internal/log"
	"github.com/tqt-dev/auth-api/internal/queue"
	"github.com/tqt-dev/auth-api/internal/validate"
)

const (
	msgDuplicateEmail    = "An account with this email already exists"
	msgDuplicateUsername = "An account with this username already exists"
	msgUnverifiedEmail   = "The email for this token is not verified"
)

// UserService orchestrates registration and token issuance. It holds no
// state of its own: users live in the repository, credentials live at the
// identity provider.
type UserService struct {
	reader   UserReader
	writer   UserWriter
	provider identity.Provider
	events   queue.Publisher
}

var _ Service[string, *domain.User, *domain.OffsetResult[*domain.User]] = (*UserService)(nil)

func NewUserService(reader UserReader, writer UserWriter, provider identity.Provider, events queue.Publisher) *UserService {
	if events == nil {
		events = queue.NewNoop()
	}
	return &UserService{reader: reader, writer: writer, provider: provider, events: events}
}

// Register runs the registration sequence: validate, gate on duplicate
// email then username, create the provider account, persist the local
// record, return the issued tokens. Every step gates the next; the first
// failure is returned and nothing after it runs.
//
// A persistence failure after the provider account was created is returned
// as-is and NOT compensated: the provider-side account stays behind. The
// collapsed provider log line carries the external id so the pair can be
// reconciled offline.
func (s *UserService) Register(ctx context.Context, cmd domain.RegisterCommand) (*domain.TokenSet, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, err
	}

	emailTaken, err := s.reader.ExistsByEmail(ctx, cmd.Email)
	if err != nil {
		return nil, err
	}
	if emailTaken {
		return nil, validate.NewValidationError("email", msgDuplicateEmail)
	}

	usernameTaken, err := s.reader.ExistsByUsername(ctx, cmd.Username)
	if err != nil {
		return nil, err
	}
	if usernameTaken {
		return nil, validate.NewValidationError("username", msgDuplicateUsername)
	}

	displayName := domain.DisplayName(cmd.FirstName, cmd.LastName)
	tokens, externalID, err := s.createProviderAccount(ctx, cmd.Email, cmd.Password, displayName)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		SignInType:  domain.SignInEmail,
		SignInID:    cmd.Email,
		ExternalID:  externalID,
		Username:    cmd.Username,
		FirstName:   cmd.FirstName,
		LastName:    cmd.LastName,
		DisplayName: displayName,
		Email:       cmd.Email,
		Status:      domain.StatusActive,
	}
	created, err := s.writer.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, queue.KeyUserRegistered, queue.UserRegistered{
		UserID:   created.ID,
		Email:    created.Email,
		Username: created.Username,
	})
	return tokens, nil
}

// createProviderAccount creates the external account, sets its display name
// and mints the login token. Any failure in the chain is collapsed to the
// uniform duplicate-email message; the underlying error is logged, not
// surfaced (the provider's own duplicate enforcement is the usual cause).
func (s *UserService) createProviderAccount(ctx context.Context, email, password, displayName string) (*domain.TokenSet, string, error) {
	acc, err := s.provider.CreateAccount(ctx, email, password)
	if err != nil {
		log.WithDD(ctx, log.L()).Error("provider account creation failed", zap.Error(err))
		return nil, "", validate.NewValidationError("email", msgDuplicateEmail)
	}

	if err := s.provider.SetDisplayName(ctx, acc.ExternalID, displayName); err != nil {
		log.WithDD(ctx, log.L()).Error("provider display name update failed",
			zap.String("external_id", acc.ExternalID), zap.Error(err))
		return nil, "", validate.NewValidationError("email", msgDuplicateEmail)
	}

	loginToken, err := s.provider.MintLoginToken(ctx, acc.ExternalID)
	if err != nil {
		log.WithDD(ctx, log.L()).Error("provider login token mint failed",
			zap.String("external_id", acc.ExternalID), zap.Error(err))
		return nil, "", validate.NewValidationError("email", msgDuplicateEmail)
	}

	return &domain.TokenSet{
		LoginToken:   loginToken,
		RefreshToken: acc.RefreshToken,
		AccessToken:  acc.AccessToken,
	}, acc.ExternalID, nil
}

// RegisterWithToken registers a user whose identity is already established
// at the provider. The token is verified first; the rest of the pipeline is
// the register sequence without account creation, and no tokens are
// returned.
func (s *UserService) RegisterWithToken(ctx context.Context, cmd domain.RegisterWithTokenCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return err
	}

	ident, err := s.provider.VerifyToken(ctx, cmd.Token)
	if err != nil {
		return err
	}
	if !ident.EmailVerified {
		return validate.NewValidationError("token", msgUnverifiedEmail)
	}

	emailTaken, err := s.reader.ExistsByEmail(ctx, ident.Email)
	if err != nil {
		return err
	}
	if emailTaken {
		return validate.NewValidationError("email", msgDuplicateEmail)
	}

	usernameTaken, err := s.reader.ExistsByUsername(ctx, cmd.Username)
	if err != nil {
		return err
	}
	if usernameTaken {
		return validate.NewValidationError("username", msgDuplicateUsername)
	}

	user := &domain.User{
		SignInType:  domain.SignInGoogle,
		SignInID:    ident.Email,
		ExternalID:  ident.ExternalID,
		Username:    cmd.Username,
		FirstName:   cmd.FirstName,
		LastName:    cmd.LastName,
		DisplayName: domain.DisplayName(cmd.FirstName, cmd.LastName),
		Email:       ident.Email,
		AvatarURL:   ident.Picture,
		Status:      domain.StatusActive,
	}
	created, err := s.writer.Create(ctx, user)
	if err != nil {
		return err
	}

	s.publish(ctx, queue.KeyUserRegistered, queue.UserRegistered{
		UserID:   created.ID,
		Email:    created.Email,
		Username: created.Username,
	})
	return nil
}

// GenerateToken signs in against the provider and mints a fresh login
// token. Provider rejections propagate as-is; there is nothing to collapse
// on the sign-in path.
func (s *UserService) GenerateToken(ctx context.Context, cmd domain.GenerateTokenCommand) (*domain.TokenSet, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, err
	}

	acc, err := s.provider.SignIn(ctx, cmd.Email, cmd.Password)
	if err != nil {
		return nil, err
	}
	loginToken, err := s.provider.MintLoginToken(ctx, acc.ExternalID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, queue.KeyTokenIssued, queue.TokenIssued{
		ExternalID: acc.ExternalID,
		Email:      cmd.Email,
	})
	return &domain.TokenSet{
		LoginToken:   loginToken,
		RefreshToken: acc.RefreshToken,
		AccessToken:  acc.AccessToken,
	}, nil
}

// EmailExists is a pure read predicate, safe for anonymous callers.
func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.reader.ExistsByEmail(ctx, email)
}

// UsernameExists is a pure read predicate, safe for anonymous callers.
func (s *UserService) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.reader.ExistsByUsername(ctx, username)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.reader.FindByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, q domain.OffsetQuery) (*domain.OffsetResult[*domain.User], error) {
	return s.reader.List(ctx, q)
}

// publish is best effort: event delivery never fails the request.
func (s *UserService) publish(ctx context.Context, key string, event any) {
	reqID := queue.RequestIDFromContext(ctx)
	if err := s.events.Publish(ctx, queue.Exchange, key, event, reqID); err != nil {
		log.WithDD(ctx, log.L()).Warn("event publish failed",
			zap.String("key", key), zap.Error(err))
	}
}
