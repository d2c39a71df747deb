package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader 请求ID响应头
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// LoggerMiddleware 请求日志中间件，每个请求一条记录，5xx 记 Error，4xx 记 Warn
func LoggerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"request_id": requestID,
			"status":     status,
			"method":     c.Request.Method,
			"path":       path,
			"route":      c.FullPath(),
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"length":     c.Writer.Size(),
		}
		if query != "" {
			fields["query"] = query
		}
		if sessionID, ok := GetSessionID(c); ok {
			fields["session_id"] = sessionID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("corpus_gen http")
		case status >= 400:
			entry.Warn("corpus_gen http")
		default:
			entry.Info("corpus_gen http")
		}
	}
}

// GetRequestID 从上下文获取请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
