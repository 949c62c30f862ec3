package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(h *Handler, serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Tracing(serviceName))
	r.Use(RequestID())
	r.Use(Metrics())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/.well-known/jwks.json", h.JWKS)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	users := r.Group("/api/users")
	{
		limited := users.Group("")
		limited.Use(RateLimit(h.Redis, h.RateLimitPerMin))
		limited.POST("/register", h.Register)
		limited.POST("/register-with-token", h.RegisterWithToken)
		limited.POST("/generate-token", h.GenerateToken)

		// duplicate checks run before any authentication exists
		users.GET("/email-exists", h.EmailExists)
		users.GET("/username-exists", h.UsernameExists)

		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
	}

	return r
}
