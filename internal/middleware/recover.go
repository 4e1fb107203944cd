package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arencloud/sqlexport/internal/logging"
)

// Recoverer turns a panic in a handler into a logged 500 instead of a dead process.
func Recoverer(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", "error", rec, "path", c.Request.URL.Path)
				c.AbortWithStatus(http.StatusInternalServerError)
				c.Writer.Write([]byte("internal error"))
			}
		}()
		c.Next()
	}
}
