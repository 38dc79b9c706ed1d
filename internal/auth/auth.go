// Package auth guards the HTTP API with a static bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// StaticToken validates tokens against one shared secret in constant time.
// An empty secret rejects everything; callers that want an open API skip
// the middleware instead.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Middleware enforces a bearer token on a route group. An empty configured
// token disables the check.
func Middleware(token string) gin.HandlerFunc {
	validator := StaticToken{Token: token}
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		presented := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if err := validator.Validate(presented); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
