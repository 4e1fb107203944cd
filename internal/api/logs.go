package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arencloud/sqlexport/internal/logging"
)

var logLevels = map[string]bool{"debug": true, "info": true, "error": true, "fatal": true}

// logsGetLevel returns the current log level.
func logsGetLevel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"level": logging.GetLevel()})
}

// logsSetLevel updates the global log level.
func logsSetLevel(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Level string `json:"level"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !logLevels[in.Level] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "level must be one of debug, info, error, fatal"})
			return
		}
		logging.SetLevel(in.Level)
		logger.Info("log level changed", "level", logging.GetLevel())
		c.JSON(http.StatusOK, gin.H{"ok": true, "level": logging.GetLevel()})
	}
}
