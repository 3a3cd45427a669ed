package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"carpool/internal/service"
)

// UserIDKey is the gin context key holding the authenticated user ID.
const UserIDKey = "user_id"

var errMissingSubject = errors.New("token has no subject")

// Authenticate validates an HS256 bearer token and stores its subject as the caller's user ID.
func Authenticate(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			abortWithError(c, http.StatusUnauthorized, service.ErrUnauthenticated)
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err == nil && claims.Subject == "" {
			err = errMissingSubject
		}
		if err != nil {
			_ = c.Error(err)
			abortWithError(c, http.StatusUnauthorized, service.ErrUnauthenticated)
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Next()
	}
}

// UserID returns the authenticated caller, or "" outside Authenticate.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func abortWithError(c *gin.Context, status int, err *service.Error) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":       err.Kind,
			"message":    err.Message,
			"message_ar": err.MessageAr,
		},
	})
}
