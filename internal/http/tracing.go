package http

import (
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

// Tracing wires the Datadog gin middleware so every request carries a span
// that the repository and provider spans attach to.
func Tracing(service string) gin.HandlerFunc {
	return gintrace.Middleware(service)
}
