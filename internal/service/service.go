// Package service holds the account orchestration logic: registration,
// token issuance and the read-side predicates, sequenced over the identity
// provider and the user repository.
package service

import (
	"context"

	"github.com/tqt-dev/auth-api/internal/domain"
)

// Service is the generic read capability every entity service exposes:
// fetch-by-id plus an offset-paginated listing.
type Service[K comparable, E any, R any] interface {
	Get(ctx context.Context, id K) (E, error)
	List(ctx context.Context, q domain.OffsetQuery) (R, error)
}

// UserReader is the read side of the user repository. Implemented by
// repo.Store against the replica pool.
type UserReader interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, q domain.OffsetQuery) (*domain.OffsetResult[*domain.User], error)
}

// UserWriter is the write side of the user repository.
type UserWriter interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
}
