package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIdHeader = "X-Request-Id"
	requestIdCtxKey = "requestId"
)

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestId := c.GetHeader(requestIdHeader)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		c.Set(requestIdCtxKey, requestId)
		c.Header(requestIdHeader, requestId)

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			event = log.Debug()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("requestId", requestId).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

func RequestId(c *gin.Context) string {
	return c.GetString(requestIdCtxKey)
}
