package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tqt-dev/auth-api/internal/domain"
	"github.com/tqt-dev/auth-api/internal/identity"
	"github.com/tqt-dev/auth-api/internal/metrics"
	"github.com/tqt-dev/auth-api/internal/repo"
	"github.com/tqt-dev/auth-api/internal/security"
	"github.com/tqt-dev/auth-api/internal/service"
	"github.com/tqt-dev/auth-api/internal/validate"
)

type Handler struct {
	Users           *service.UserService
	Store           *repo.Store
	Redis           *repo.Redis
	RateLimitPerMin int
	Keys            *security.KeyManager
}

func NewHandler(users *service.UserService, store *repo.Store, rds *repo.Redis, rlPerMin int, keys *security.KeyManager) *Handler {
	return &Handler{
		Users:           users,
		Store:           store,
		Redis:           rds,
		RateLimitPerMin: rlPerMin,
		Keys:            keys,
	}
}

// writeError maps the service error taxonomy onto HTTP statuses. Validation
// failures carry the field messages; provider and persistence failures are
// deliberately opaque to the caller.
func writeError(c *gin.Context, err error) {
	var verr *validate.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
		return
	}
	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity provider rejected the request"})
		return
	}
	var serr *repo.PersistenceError
	if errors.As(err, &serr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func registerOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, new(*validate.ValidationError)):
		return "validation"
	case errors.As(err, new(*identity.ProviderError)):
		return "provider"
	case errors.As(err, new(*repo.PersistenceError)):
		return "persistence"
	default:
		return "error"
	}
}

// Register godoc
// @Summary Register a user with email and password
// @Tags users
// @Accept json
// @Produce json
// @Param payload body domain.RegisterCommand true "register"
// @Success 201 {object} domain.TokenSet
// @Failure 400 {object} map[string]any
// @Failure 502 {object} map[string]string
// @Router /api/users/register [post]
func (h *Handler) Register(c *gin.Context) {
	var cmd domain.RegisterCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	tokens, err := h.Users.Register(c.Request.Context(), cmd)
	metrics.RegistrationsTotal.WithLabelValues(registerOutcome(err)).Inc()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tokens)
}

// RegisterWithToken godoc
// @Summary Register a user from a provider-minted ID token
// @Tags users
// @Accept json
// @Produce json
// @Param payload body domain.RegisterWithTokenCommand true "register with token"
// @Success 201
// @Failure 400 {object} map[string]any
// @Failure 502 {object} map[string]string
// @Router /api/users/register-with-token [post]
func (h *Handler) RegisterWithToken(c *gin.Context) {
	var cmd domain.RegisterWithTokenCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	err := h.Users.RegisterWithToken(c.Request.Context(), cmd)
	metrics.RegistrationsTotal.WithLabelValues(registerOutcome(err)).Inc()
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// GenerateToken godoc
// @Summary Sign in and mint a fresh token set
// @Tags users
// @Accept json
// @Produce json
// @Param payload body domain.GenerateTokenCommand true "credentials"
// @Success 200 {object} domain.TokenSet
// @Failure 400 {object} map[string]any
// @Failure 502 {object} map[string]string
// @Router /api/users/generate-token [post]
func (h *Handler) GenerateToken(c *gin.Context) {
	var cmd domain.GenerateTokenCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	tokens, err := h.Users.GenerateToken(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// EmailExists godoc
// @Summary Check whether an email is taken
// @Tags users
// @Produce json
// @Param email query string true "email"
// @Success 200 {object} map[string]bool
// @Router /api/users/email-exists [get]
func (h *Handler) EmailExists(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	exists, err := h.Users.EmailExists(c.Request.Context(), email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// UsernameExists godoc
// @Summary Check whether a username is taken
// @Tags users
// @Produce json
// @Param username query string true "username"
// @Success 200 {object} map[string]bool
// @Router /api/users/username-exists [get]
func (h *Handler) UsernameExists(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	exists, err := h.Users.UsernameExists(c.Request.Context(), username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// GetUser godoc
// @Summary Fetch a user by id
// @Tags users
// @Produce json
// @Param id path string true "user id"
// @Success 200 {object} domain.User
// @Failure 404 {object} map[string]string
// @Router /api/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// ListUsers godoc
// @Summary List users, offset paginated
// @Tags users
// @Produce json
// @Param offset query int false "offset"
// @Param limit query int false "limit"
// @Success 200 {object} domain.OffsetResult[domain.User]
// @Router /api/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	var q domain.OffsetQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page, err := h.Users.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// JWKS exposes the public keys that verify locally minted login tokens.
func (h *Handler) JWKS(c *gin.Context) {
	c.JSON(http.StatusOK, h.Keys.JWKS())
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.Store != nil {
		if err := h.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
