package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/sector-mail-desk/internal/api/http/handlers"
	"github.com/spec-kit/sector-mail-desk/internal/auth"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Ingestion      *handlers.IngestionHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if registry := cfg.Metrics.Registry(); registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	ingestion := app.Group("/ingestion", cfg.AuthMiddleware.Handle)
	ingestion.Post("/runs", auth.RequireScheduler(), cfg.Ingestion.Run)
	ingestion.Post("/sectors/:sector/sweep",
		auth.RequireStaffRole(domain.StaffRoleSupervisor, domain.StaffRoleAdmin),
		auth.RequireSectorAccess(),
		cfg.Ingestion.Sweep)

	staff := func(handler fiber.Handler) []fiber.Handler {
		return []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireStaffRole(), auth.RequireSectorAccess(), handler}
	}
	sectors := app.Group("/sectors")
	sectors.Get("/:sector/tickets", staff(cfg.Tickets.List)...)
	sectors.Patch("/:sector/tickets/:id/status", staff(cfg.Tickets.UpdateStatus)...)
	sectors.Post("/:sector/tickets/:id/replies", staff(cfg.Tickets.Reply)...)
	sectors.Get("/:sector/tickets/:id/history", staff(cfg.Tickets.History)...)
}
