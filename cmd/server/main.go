package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	_ "github.com/tqt-dev/auth-api/docs"
	"github.com/tqt-dev/auth-api/internal/config"
	api "github.com/tqt-dev/auth-api/internal/http"
	"github.com/tqt-dev/auth-api/internal/identity"
	"github.com/tqt-dev/auth-api/internal/log"
	"github.com/tqt-dev/auth-api/internal/metrics"
	"github.com/tqt-dev/auth-api/internal/queue"
	"github.com/tqt-dev/auth-api/internal/repo"
	"github.com/tqt-dev/auth-api/internal/security"
	"github.com/tqt-dev/auth-api/internal/service"
)

// @title auth-api
// @description User registration and authentication service.
// @BasePath /
func main() {
	cfg := config.Load()

	logger, err := log.Init(cfg.Prod)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := repo.RunMigrations(cfg.PostgresURL); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		logger.Info("migrations applied")
		return
	}

	serve(cfg, logger)
}

func serve(cfg config.Config, logger *zap.Logger) {
	if cfg.DDEnabled {
		tracer.Start(tracer.WithService(cfg.AppName))
		defer tracer.Stop()
	}
	metrics.MustRegister()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := repo.NewStore(ctx, cfg.PostgresURL, cfg.ReplicaPostgresURL)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer store.Close()

	rds := repo.NewRedis(cfg.RedisAddr)
	defer rds.Close()
	if err := rds.Ping(ctx); err != nil {
		logger.Warn("redis unreachable, rate limiting disabled", zap.Error(err))
		rds = nil
	}

	events := queue.NewNoop()
	if cfg.RabbitURL != "" {
		pub, err := queue.NewRabbit(cfg.RabbitURL, queue.Exchange)
		if err != nil {
			logger.Fatal("rabbit connect", zap.Error(err))
		}
		events = pub
	}
	defer events.Close()

	keys, err := loadKeys(cfg, logger)
	if err != nil {
		logger.Fatal("signing keys", zap.Error(err))
	}

	var provider identity.Provider
	if cfg.ProviderAPIKey != "" {
		provider = identity.NewHTTPProvider(cfg.ProviderBaseURL, cfg.ProviderAPIKey, keys)
	} else {
		logger.Warn("no provider API key, using in-process identity provider")
		provider = identity.NewMemoryProvider(keys)
	}

	users := service.NewUserService(store, store, provider, events)
	h := api.NewHandler(users, store, rds, cfg.RateLimitPerMin, keys)
	r := api.NewRouter(h, cfg.AppName)

	srvErr := make(chan error, 1)
	go func() { srvErr <- r.Run(":" + cfg.Port) }()

	logger.Info("listening", zap.String("port", cfg.Port))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("shutting down", zap.String("signal", s.String()))
	case err := <-srvErr:
		logger.Error("server error", zap.Error(err))
	}
}

// loadKeys reads the configured PEM keys; without a configured path an
// ephemeral key is generated, which only suits dev mode (tokens do not
// survive a restart).
func loadKeys(cfg config.Config, logger *zap.Logger) (*security.KeyManager, error) {
	if cfg.TokenKeyPath != "" {
		return security.NewKeyManager(cfg.TokenKid, cfg.TokenKeyPath, cfg.TokenNextKid, cfg.TokenNextKeyPath)
	}
	logger.Warn("no signing key configured, generating an ephemeral key")
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return security.NewKeyManagerFromKey(cfg.TokenKid, key), nil
}
