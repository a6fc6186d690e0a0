package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/cache"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/service"
)

// CacheHandler exposes the cache maintenance surface.
type CacheHandler struct {
	cache   *cache.Manager
	sla     *service.SLAService
	metrics *observability.Metrics
}

// NewCacheHandler constructs handler.
func NewCacheHandler(cacheManager *cache.Manager, slaService *service.SLAService, metrics *observability.Metrics) *CacheHandler {
	return &CacheHandler{cache: cacheManager, sla: slaService, metrics: metrics}
}

// InvalidateAll POST /cache/invalidate.
func (h *CacheHandler) InvalidateAll(c *fiber.Ctx) error {
	h.cache.InvalidateAll(c.UserContext())
	return c.JSON(fiber.Map{"data": fiber.Map{"invalidated": "all"}})
}

// InvalidateTicket POST /cache/invalidate/tickets/:id.
func (h *CacheHandler) InvalidateTicket(c *fiber.Ctx) error {
	ticketID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	h.sla.InvalidateTicket(c.UserContext(), ticketID)
	return c.JSON(fiber.Map{"data": fiber.Map{"invalidated_ticket": ticketID}})
}

// Cleanup POST /cache/cleanup.
func (h *CacheHandler) Cleanup(c *fiber.Ctx) error {
	removed, err := h.cache.ClearExpired(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"removed_expired": removed}})
}

// Warmup POST /cache/warmup.
func (h *CacheHandler) Warmup(c *fiber.Ctx) error {
	warmed, err := h.sla.WarmupCache(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"warmed": warmed}})
}

// Stats GET /cache/stats.
func (h *CacheHandler) Stats(c *fiber.Ctx) error {
	stats := h.cache.Stats(c.UserContext())
	hits, misses := h.metrics.CacheCounts()
	return c.JSON(fiber.Map{"data": dto.CacheStatsResponse{
		MemoryEntries:    stats.MemoryEntries,
		PersistedEntries: stats.PersistedEntries,
		ExpiredInStore:   stats.ExpiredInStore,
		Hits:             hits,
		Misses:           misses,
	}})
}
