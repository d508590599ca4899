package router

import (
	"log/slog"

	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/handler"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/metrics"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/middleware"
)

// Setup sets up all routes
func Setup(
	h *server.Hertz,
	webhookHandler *handler.WebhookHandler,
	healthHandler *handler.HealthHandler,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	// Global middleware
	h.Use(middleware.Recovery(logger))
	h.Use(middleware.Logger(logger, collector))
	h.Use(middleware.CORS())

	// Health check routes
	h.GET("/ping", healthHandler.Ping)
	h.GET("/health/live", healthHandler.Liveness)

	if collector != nil {
		h.GET("/metrics", collector.HertzHandler())
	}

	// Webhooks, same paths as the n8n workflows
	webhook := h.Group("/webhook")
	{
		webhook.POST("/chat", webhookHandler.Chat)
		webhook.GET("/get-messages", webhookHandler.GetMessages)

		access := webhook.Group("/api/v1")
		{
			access.POST("/bloqueio", webhookHandler.Block)
			access.POST("/desbloqueio", webhookHandler.Unblock)
		}
	}
}
