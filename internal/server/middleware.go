package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fintrack-dev/fintrack/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"

	ctxUserID = "userID"
)

// requestLogger attaches a request-scoped logger to the request context and
// logs every request when it completes.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		reqLog := log.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))

		c.Next()

		reqLog.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", c.ClientIP()).
			Msg("HTTP request")
	}
}

// recovery turns panics into a 500 envelope.
func recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("Panic recovered")
				fail(c, http.StatusInternalServerError, CodeServerErr, "internal server error")
			}
		}()
		c.Next()
	}
}

// identify resolves the acting user from X-User-ID, falling back to
// defaultUser. Requests without either are rejected.
func identify(defaultUser string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(headerUserID))
		if user == "" {
			user = defaultUser
		}
		if user == "" {
			fail(c, http.StatusUnauthorized, CodeInvalidParam, "missing "+headerUserID+" header")
			return
		}
		c.Set(ctxUserID, user)
		c.Next()
	}
}
