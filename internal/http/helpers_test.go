package http_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tqt-dev/auth-api/internal/domain"
	api "github.com/tqt-dev/auth-api/internal/http"
	"github.com/tqt-dev/auth-api/internal/identity"
	"github.com/tqt-dev/auth-api/internal/queue"
	"github.com/tqt-dev/auth-api/internal/security"
	"github.com/tqt-dev/auth-api/internal/service"
)

// memUsers is an in-memory stand-in for the Postgres store, enough to drive
// the handlers end to end without a database.
type memUsers struct {
	mu    sync.Mutex
	users []*domain.User
}

func (m *memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) List(_ context.Context, q domain.OffsetQuery) (*domain.OffsetResult[*domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := append([]*domain.User{}, m.users...)
	return &domain.OffsetResult[*domain.User]{Items: items, Total: int64(len(items))}, nil
}

func (m *memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *u
	created.ID = "user-" + strconv.Itoa(len(m.users)+1)
	m.users = append(m.users, &created)
	return &created, nil
}

type testEnv struct {
	Users    *memUsers
	Provider *identity.MemoryProvider
	Router   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	km := security.NewKeyManagerFromKey("kidT", key)

	users := &memUsers{}
	provider := identity.NewMemoryProvider(km)
	svc := service.NewUserService(users, users, provider, queue.NewNoop())
	h := api.NewHandler(svc, nil, nil, 0, km)

	gin.SetMode(gin.TestMode)
	return &testEnv{Users: users, Provider: provider, Router: api.NewRouter(h, "auth-api-test")}
}
