package queue

import (
	"context"
)

// Exchange and routing keys for account lifecycle events.
const (
	Exchange          = "auth.events"
	KeyUserRegistered = "user.registered"
	KeyTokenIssued    = "user.token_issued"
)

type Publisher interface {
	Publish(ctx context.Context, exchange, key string, event any, reqID string) error
	Close() error
}

type NoopPub struct{}

func NewNoop() Publisher { return NoopPub{} }

func (NoopPub) Publish(ctx context.Context, exchange, key string, event any, reqID string) error {
	return nil
}
func (NoopPub) Close() error { return nil }

type UserRegistered struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type TokenIssued struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
}
