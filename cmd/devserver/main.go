package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/network/netpoll"
	"github.com/spf13/cobra"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/config"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/handler"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/infrastructure/memory"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/metrics"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/router"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/usecase"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Local stand-in for the Aiko n8n webhooks",
	Long: `devserver serves the chat, get-messages, bloqueio and desbloqueio webhooks
from memory so that aikoctl can be developed and tested without an n8n instance.
Replies are canned and stored after devserver.reply_delay.`,
	Version: version,
	Run:     runServer,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := logger.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	slog.Info("devserver starting...",
		"version", version,
		"config", cfgFile,
	)

	// Setup Hertz to use slog
	hlog.SetLogger(logger.NewHertzSlogAdapter(appLogger))
	if cfg.DevServer.Mode == "debug" {
		hlog.SetLevel(hlog.LevelDebug)
	} else {
		hlog.SetLevel(hlog.LevelInfo)
	}

	repo := memory.NewMessageRepository()
	responder := usecase.NewResponderUsecase(repo, cfg.DevServer.ReplyDelay, appLogger)
	webhookHandler := handler.NewWebhookHandler(responder, appLogger)
	healthHandler := handler.NewHealthHandler(version)
	collector := metrics.New()

	h := server.Default(
		server.WithHostPorts(cfg.GetDevServerAddr()),
		server.WithTransport(netpoll.NewTransporter),
		server.WithDisablePrintRoute(cfg.DevServer.Mode != "debug"),
	)

	router.Setup(h, webhookHandler, healthHandler, collector, appLogger)

	slog.Info("server started successfully",
		"address", cfg.GetDevServerAddr(),
		"mode", cfg.DevServer.Mode,
		"reply_delay", cfg.DevServer.ReplyDelay.String(),
	)

	go func() {
		if err := h.Run(); err != nil {
			slog.Error("server run failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := h.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	responder.Close()

	slog.Info("server stopped gracefully")
}
