package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/service"
	"github.com/spec-kit/sla-service/internal/sla"
	"github.com/spec-kit/sla-service/pkg/util"
)

// SLAHandler exposes SLA evaluation, synchronization, reset and
// recalibration endpoints.
type SLAHandler struct {
	service *service.SLAService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(slaService *service.SLAService) *SLAHandler {
	return &SLAHandler{service: slaService}
}

// GetTicketStatus GET /sla/tickets/:id.
func (h *SLAHandler) GetTicketStatus(c *fiber.Ctx) error {
	ticketID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	status, err := h.service.GetSLAStatus(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": status})
}

// Sync POST /sla/sync.
func (h *SLAHandler) Sync(c *fiber.Ctx) error {
	report, err := h.service.SyncHistoricalRecords(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// RecalculateDashboard POST /sla/dashboard/recalculate.
func (h *SLAHandler) RecalculateDashboard(c *fiber.Ctx) error {
	report, err := h.service.RecalculateDashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// Reset POST /sla/reset.
func (h *SLAHandler) Reset(c *fiber.Ctx) error {
	report, err := h.service.ResetSLA(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// RecalibrateBatch GET /sla/recalibration.
func (h *SLAHandler) RecalibrateBatch(c *fiber.Ctx) error {
	recs, err := h.service.RecalibrateBatch(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": recs})
}

// RecalibrateIncremental GET /sla/recalibration/incremental.
func (h *SLAHandler) RecalibrateIncremental(c *fiber.Ctx) error {
	recs, err := h.service.RecalibrateIncremental(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": recs})
}

// ApplyRecommendations POST /sla/recalibration/apply.
func (h *SLAHandler) ApplyRecommendations(c *fiber.Ctx) error {
	var req dto.ApplyRecommendationsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return util.NewValidationError("invalid payload", nil)
		}
	}

	recs, err := h.service.RecalibrateBatch(c.UserContext())
	if err != nil {
		return err
	}
	if len(req.Priorities) > 0 {
		filtered := make(map[domain.TicketPriority]sla.Recommendation, len(req.Priorities))
		for _, p := range req.Priorities {
			rec, ok := recs[p]
			if !ok {
				return util.NewValidationError("no recommendation available for priority",
					map[string]any{"priority": p})
			}
			filtered[p] = rec
		}
		recs = filtered
	}

	if err := h.service.ApplyRecommendations(c.UserContext(), recs); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": recs})
}

// BackfillFirstResponse POST /sla/maintenance/backfill-first-response.
func (h *SLAHandler) BackfillFirstResponse(c *fiber.Ctx) error {
	report, err := h.service.BackfillFirstResponse(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

func parseID(c *fiber.Ctx, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, util.NewValidationError("invalid id", map[string]any{"param": param})
	}
	return id, nil
}
