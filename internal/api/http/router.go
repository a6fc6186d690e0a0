package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	SLA            *handlers.SLAHandler
	Config         *handlers.ConfigHandler
	Cache          *handlers.CacheHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. Reads require authentication;
// mutations of limits, resets and cache require the admin role.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authed := app.Group("", cfg.AuthMiddleware.Handle)

	slaGroup := authed.Group("/sla")
	slaGroup.Get("/tickets/:id", cfg.SLA.GetTicketStatus)
	slaGroup.Get("/recalibration", cfg.SLA.RecalibrateBatch)
	slaGroup.Get("/recalibration/incremental", cfg.SLA.RecalibrateIncremental)
	slaGroup.Get("/configs", cfg.Config.ListConfigs)
	slaGroup.Get("/calendar/business-hours", cfg.Config.ListBusinessHours)
	slaGroup.Get("/calendar/holidays", cfg.Config.ListHolidays)

	admin := slaGroup.Group("", auth.RequireAdmin())
	admin.Post("/sync", cfg.SLA.Sync)
	admin.Post("/dashboard/recalculate", cfg.SLA.RecalculateDashboard)
	admin.Post("/reset", cfg.SLA.Reset)
	admin.Post("/recalibration/apply", cfg.SLA.ApplyRecommendations)
	admin.Post("/maintenance/backfill-first-response", cfg.SLA.BackfillFirstResponse)
	admin.Post("/configs", cfg.Config.CreateConfig)
	admin.Put("/configs/:id", cfg.Config.UpdateConfig)
	admin.Delete("/configs/:id", cfg.Config.DeleteConfig)
	admin.Post("/calendar/business-hours", cfg.Config.CreateBusinessHours)
	admin.Put("/calendar/business-hours/:id", cfg.Config.UpdateBusinessHours)
	admin.Delete("/calendar/business-hours/:id", cfg.Config.DeleteBusinessHours)
	admin.Post("/calendar/holidays", cfg.Config.CreateHoliday)
	admin.Delete("/calendar/holidays/:id", cfg.Config.DeleteHoliday)

	metricsGroup := authed.Group("/metrics")
	metricsGroup.Get("/overview", cfg.Metrics.Overview)

	cacheGroup := authed.Group("/cache", auth.RequireAdmin())
	cacheGroup.Get("/stats", cfg.Cache.Stats)
	cacheGroup.Post("/invalidate", cfg.Cache.InvalidateAll)
	cacheGroup.Post("/invalidate/tickets/:id", cfg.Cache.InvalidateTicket)
	cacheGroup.Post("/cleanup", cfg.Cache.Cleanup)
	cacheGroup.Post("/warmup", cfg.Cache.Warmup)
}
