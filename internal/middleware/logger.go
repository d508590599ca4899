package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/metrics"
)

// RequestIDKey 请求 ID 的 header
const RequestIDKey = "X-Request-ID"

// quietPaths are polled often and not logged
var quietPaths = map[string]bool{
	"/health/live": true,
	"/ping":        true,
	"/metrics":     true,
}

// Logger 日志中间件. Every request is counted on collector (nil is allowed);
// get-messages is logged at debug since the CLI polls it continuously.
func Logger(logger *slog.Logger, collector *metrics.Collector) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		path := string(c.Path())

		requestID := string(c.Request.Header.Peek(RequestIDKey))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Response.Header.Set(RequestIDKey, requestID)

		c.Next(ctx)

		latency := time.Since(start)
		statusCode := c.Response.StatusCode()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.ObserveRequest(string(c.Method()), route, statusCode, latency)

		if quietPaths[path] {
			return
		}

		reqLogger := logger.With(
			"request_id", requestID,
			"method", string(c.Method()),
			"path", path,
			"status", statusCode,
			"latency_ms", latency.Milliseconds(),
		)
		switch {
		case statusCode >= 500:
			reqLogger.Error("request completed with server error")
		case statusCode >= 400:
			reqLogger.Warn("request completed with client error")
		case route == "/webhook/get-messages":
			reqLogger.Debug("request completed")
		default:
			reqLogger.Info("request completed")
		}
	}
}

// GetRequestID 从响应头中获取请求 ID
func GetRequestID(c *app.RequestContext) string {
	return string(c.Response.Header.Peek(RequestIDKey))
}
