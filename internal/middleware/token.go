package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// RequireToken rejects requests whose bearer token does not match the bcrypt
// hash. An empty hash lets every request through; the hosting platform then
// owns authentication.
func RequireToken(hash string) gin.HandlerFunc {
	if hash == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			c.Header("WWW-Authenticate", `Bearer realm="sqlexport"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
