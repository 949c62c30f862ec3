package domain

import (
	"strings"
	"time"
)

// SignInType identifies the credential kind a user registered with.
type SignInType string

const (
	SignInEmail  SignInType = "EMAIL"
	SignInGoogle SignInType = "GOOGLE"
)

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusDisabled UserStatus = "DISABLED"
)

type User struct {
	ID          string     `json:"id" db:"id"`
	SignInType  SignInType `json:"sign_in_type" db:"sign_in_type"`
	SignInID    string     `json:"sign_in_id" db:"sign_in_id"`
	ExternalID  string     `json:"external_id" db:"external_id"` // provider-assigned uid
	Username    string     `json:"username" db:"username"`
	FirstName   string     `json:"first_name" db:"first_name"`
	LastName    string     `json:"last_name" db:"last_name"`
	DisplayName string     `json:"display_name" db:"display_name"`
	Email       string     `json:"email" db:"email"`
	AvatarURL   string     `json:"avatar_url,omitempty" db:"avatar_url"`
	Status      UserStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// RegisterCommand is the register input. Never persisted.
type RegisterCommand struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,username"`
	Password  string `json:"password" validate:"required,userpassword"`
	FirstName string `json:"first_name" validate:"required,max=99"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

// RegisterWithTokenCommand registers a user whose identity was already
// established at the provider; Token is a provider-minted ID token.
type RegisterWithTokenCommand struct {
	Token     string `json:"token" validate:"required"`
	Username  string `json:"username" validate:"required,username"`
	FirstName string `json:"first_name" validate:"required,max=99"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

type GenerateTokenCommand struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenSet is returned to the caller after register/generate-token and is
// never stored.
type TokenSet struct {
	LoginToken   string `json:"login_token"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

// DisplayName derives the human-readable name from the name fields. The
// result depends only on its inputs; it is recomputed, never stored apart
// from the name fields that produced it.
func DisplayName(firstName, lastName string) string {
	return strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
}
