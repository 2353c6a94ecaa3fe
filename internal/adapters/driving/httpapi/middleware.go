package httpapi

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/custodia-labs/threatdocs/internal/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID assigns every request an ID, reusing the caller's X-Request-ID
// when present, and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Set(requestIDKey, requestID)
		c.Next()
	}
}

// GetRequestID returns the ID set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Recovery turns a handler panic into a 500 response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := GetRequestID(c)
				logger.Error("panic recovered: %v (request_id=%s method=%s path=%s)\n%s",
					rec, requestID, c.Request.Method, c.Request.URL.Path, debug.Stack())

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
					Error:     "internal server error",
					RequestID: requestID,
				})
			}
		}()

		c.Next()
	}
}

// RequestLogger logs each completed request. Server errors are always
// logged; everything else only in verbose mode.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path += "?" + c.Request.URL.RawQuery
		}

		c.Next()

		status := c.Writer.Status()
		format := "%s %s -> %d in %s (request_id=%s client=%s)"
		args := []any{c.Request.Method, path, status, time.Since(start).Round(time.Microsecond),
			GetRequestID(c), c.ClientIP()}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error(format, args...)
		case status >= http.StatusBadRequest:
			logger.Warn(format, args...)
		default:
			logger.Info(format, args...)
		}
	}
}
