// Package middleware holds gin middleware: bearer-token auth and CORS,
// adapted from the teacher's internal/http/middleware package.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/domainscout/core/internal/platform/logger"
)

// Claims carries client_id as the JWT subject; there is no per-user
// session store in this system, only a shared signing secret (spec.md §6).
type Claims struct {
	jwt.RegisteredClaims
}

type Auth struct {
	log       *logger.Logger
	secretKey string
}

func NewAuth(log *logger.Logger, secretKey string) *Auth {
	return &Auth{log: log.With("middleware", "auth"), secretKey: secretKey}
}

const ClientIDKey = "client_id"

func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing bearer token", "code": "unauthorized"},
			})
			return
		}
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(a.secretKey), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			a.log.Debug("rejected token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "invalid or expired token", "code": "unauthorized"},
			})
			return
		}
		c.Set(ClientIDKey, claims.Subject)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if q := c.Query("token"); q != "" {
		return q
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
