package server

import (
	"auction-ledger/internal/auth"
	"auction-ledger/services/auction/helpers"
	"auction-ledger/utils"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"route":   c.FullPath(),
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if principal := c.GetString(auth.ContextKey); principal != "" {
		fields["principal"] = principal
	}
	utils.Info("HTTP Request", fields)
}

// AuthMiddleware resolves the caller through authenticator and stores it for the handlers.
// Requests that fail authentication never reach the handler.
func AuthMiddleware(authenticator auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authenticator.Authenticate(c.Request)
		if err != nil {
			helpers.RespondError(c, "AuthMiddleware", err, map[string]any{"path": c.Request.URL.Path})
			return
		}
		c.Set(auth.ContextKey, principal)
		c.Next()
	}
}
