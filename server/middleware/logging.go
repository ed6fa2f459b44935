package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/observability"
)

// quietPaths are probed often and logged only on failure.
var quietPaths = map[string]bool{
	"/health":  true,
	"/version": true,
}

// RequestLogger logs every request at a level chosen by status and records
// the request metric. metrics may be nil.
func RequestLogger(log *logger.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if metrics != nil {
			metrics.RecordRequest(c.Request.Context(), c.Request.Method, route, status, elapsed)
		}
		if quietPaths[route] && status < 500 {
			return
		}

		fields := map[string]interface{}{
			"method":             c.Request.Method,
			"path":               c.Request.URL.Path,
			logger.FieldStatus:   status,
			logger.FieldDuration: elapsed.Milliseconds(),
			"client":             c.ClientIP(),
		}
		l := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			l.Error("request completed", fields)
		case status >= 400:
			l.Warn("request completed", fields)
		default:
			l.Debug("request completed", fields)
		}
	}
}
