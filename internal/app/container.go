// Package app wires the store, the mail provider and the services shared by
// the HTTP server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/auth"
	"github.com/spec-kit/sector-mail-desk/internal/cache"
	"github.com/spec-kit/sector-mail-desk/internal/config"
	"github.com/spec-kit/sector-mail-desk/internal/events"
	"github.com/spec-kit/sector-mail-desk/internal/extract"
	"github.com/spec-kit/sector-mail-desk/internal/ingest"
	"github.com/spec-kit/sector-mail-desk/internal/labels"
	"github.com/spec-kit/sector-mail-desk/internal/mail"
	"github.com/spec-kit/sector-mail-desk/internal/observability"
	"github.com/spec-kit/sector-mail-desk/internal/persistence"
	"github.com/spec-kit/sector-mail-desk/internal/reply"
	"github.com/spec-kit/sector-mail-desk/internal/repository"
	"github.com/spec-kit/sector-mail-desk/internal/service"
	"github.com/spec-kit/sector-mail-desk/internal/worker"
	"github.com/spec-kit/sector-mail-desk/migrations"
)

// Container holds long-lived dependencies.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Dispatcher events.Dispatcher
	Notifier   *worker.NotificationWorker
	Tokens     *auth.TokenManager

	Tickets  repository.TicketRepository
	History  repository.TicketHistoryRepository
	Settings repository.SettingsRepository

	LabelCache cache.LabelCache
	Locker     cache.Locker

	// Set by ConnectMail.
	Mail          mail.Client
	Ingestion     *service.IngestionService
	TicketService *service.TicketService
}

// New connects the store and Redis and registers notification handlers.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrationSource(cfg.Postgres), logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	rds := persistence.NewRedis(ctx, cfg.Redis, logger)

	pool := pg.PoolHandle()
	dispatcher := events.NewInMemoryDispatcher(logger)
	notifier := worker.NewNotificationWorker(
		service.NewNotificationService(dispatcher, logger, cfg.Notification),
		cfg.Notification.QueueSize, logger)
	notifier.Subscribe(dispatcher)
	notifier.Start(context.WithoutCancel(ctx))

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		Postgres:   pg,
		Redis:      rds,
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Tokens:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTLMinutes),
		Tickets:    repository.NewTicketRepository(pool),
		History:    repository.NewTicketHistoryRepository(pool),
		Settings:   repository.NewSettingsRepository(pool),
		LabelCache: cache.NewRedisLabelCache(rds.ClientHandle(), cfg.Ingestion.LabelCacheTTL),
		Locker:     cache.NewRedisLocker(rds.ClientHandle()),
	}, nil
}

// ConnectMail authenticates against the provider and builds the services
// that talk to it.
func (c *Container) ConnectMail(ctx context.Context) error {
	svc, err := mail.NewService(ctx, c.Config.Gmail)
	if err != nil {
		return fmt.Errorf("connect gmail: %w", err)
	}
	retry := mail.NewRetryPolicy(c.Config.Retry, c.Logger)
	c.UseMailClient(mail.NewGmailClient(svc, c.Config.Gmail, retry, c.Config.Breaker, c.Logger))
	return nil
}

// UseMailClient builds the provider-dependent services on top of client.
func (c *Container) UseMailClient(client mail.Client) {
	applier := labels.NewApplier(client, c.LabelCache, c.Metrics, c.Logger)
	pipeline := ingest.NewPipeline(ingest.Dependencies{
		Client:     client,
		Body:       extract.NewBodyExtractor(c.Logger),
		Guard:      ingest.NewGuard(c.Tickets),
		Writer:     ingest.NewWriter(c.Tickets, applier, c.Metrics, c.Logger),
		Sweeper:    ingest.NewSweeper(c.Tickets, c.Metrics, c.Logger),
		Locker:     c.Locker,
		LockTTL:    c.Config.Ingestion.RunLockTTL,
		Dispatcher: c.Dispatcher,
		Metrics:    c.Metrics,
		Logger:     c.Logger,
	})

	c.Mail = client
	c.Ingestion = service.NewIngestionService(c.Settings, pipeline, c.Config.Ingestion, c.Logger)
	c.TicketService = service.NewTicketService(service.TicketDependencies{
		TicketRepo:  c.Tickets,
		HistoryRepo: c.History,
		MailClient:  client,
		Composer:    reply.NewComposer(c.Config.Gmail.Sender),
		Labels:      applier,
		LabelNames:  c.Config.Reply,
		Dispatcher:  c.Dispatcher,
		Metrics:     c.Metrics,
		Logger:      c.Logger,
	})
}

// Close drains pending notifications and releases connections.
func (c *Container) Close() {
	c.Notifier.Stop()
	c.Redis.Close()
	c.Postgres.Close()
}

// migrationSource prefers an on-disk directory when one is configured.
func migrationSource(cfg config.PostgresConfig) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}
