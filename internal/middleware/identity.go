package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wastewatch-api/internal/models"
	"github.com/noah-isme/wastewatch-api/internal/service"
)

// ContextCallerKey is the gin context key storing the resolved caller.
const ContextCallerKey = "currentCaller"

type tokenValidator interface {
	ValidateToken(token string) (*models.Caller, error)
}

// Identity attaches the caller identified by a bearer token to the request. It never
// blocks: missing or invalid tokens leave the request anonymous.
func Identity(validator tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		caller, err := validator.ValidateToken(token)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextCallerKey, caller)
		c.Request = c.Request.WithContext(service.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
