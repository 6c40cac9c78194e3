package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sector-mail-desk/internal/api/http"
	"github.com/spec-kit/sector-mail-desk/internal/api/http/handlers"
	"github.com/spec-kit/sector-mail-desk/internal/app"
	"github.com/spec-kit/sector-mail-desk/internal/auth"
	"github.com/spec-kit/sector-mail-desk/internal/config"
	"github.com/spec-kit/sector-mail-desk/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build dependencies", zap.Error(err))
	}
	defer container.Close()

	if err := container.ConnectMail(ctx); err != nil {
		logger.Fatal("failed to connect mail provider", zap.Error(err))
	}

	deps := map[string]handlers.Pinger{
		"postgres": container.Postgres,
		"redis":    container.Redis,
	}
	if p, ok := container.Mail.(handlers.Pinger); ok {
		deps["gmail"] = p
	}

	server := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, logger, container.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Ingestion:      handlers.NewIngestionHandler(container.Ingestion),
		Tickets:        handlers.NewTicketsHandler(container.TicketService),
		AuthMiddleware: auth.NewAuthMiddleware(container.Tokens, cfg.Auth.SchedulerKeyHash),
		Metrics:        container.Metrics,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		listenErr <- server.Listen(cfg.App.Addr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-listenErr:
		if err != nil {
			logger.Error("fiber listen", zap.Error(err))
		}
	}

	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
