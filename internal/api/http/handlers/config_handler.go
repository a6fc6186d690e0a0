package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/service"
	"github.com/spec-kit/sla-service/pkg/util"
)

// ConfigHandler manages SLA limits and the working calendar.
type ConfigHandler struct {
	service *service.ConfigService
}

// NewConfigHandler constructs handler.
func NewConfigHandler(configService *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{service: configService}
}

// ListConfigs GET /sla/configs.
func (h *ConfigHandler) ListConfigs(c *fiber.Ctx) error {
	configs, err := h.service.ListConfigs(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.ConfigResponse, 0, len(configs))
	for i := range configs {
		items = append(items, dto.NewConfigResponse(&configs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateConfig POST /sla/configs.
func (h *ConfigHandler) CreateConfig(c *fiber.Ctx) error {
	var req dto.ConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	cfg, err := h.service.CreateConfig(c.UserContext(), service.ConfigInput{
		Priority:        req.Priority,
		ResponseHours:   req.ResponseHours,
		ResolutionHours: req.ResolutionHours,
		Description:     req.Description,
		Active:          req.Active,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewConfigResponse(cfg)})
}

// UpdateConfig PUT /sla/configs/:id.
func (h *ConfigHandler) UpdateConfig(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	cfg, err := h.service.UpdateConfig(c.UserContext(), id, service.ConfigInput{
		Priority:        req.Priority,
		ResponseHours:   req.ResponseHours,
		ResolutionHours: req.ResolutionHours,
		Description:     req.Description,
		Active:          req.Active,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewConfigResponse(cfg)})
}

// DeleteConfig DELETE /sla/configs/:id.
func (h *ConfigHandler) DeleteConfig(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteConfig(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListBusinessHours GET /sla/calendar/business-hours.
func (h *ConfigHandler) ListBusinessHours(c *fiber.Ctx) error {
	hours, err := h.service.ListBusinessHours(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.BusinessHoursResponse, 0, len(hours))
	for i := range hours {
		items = append(items, dto.NewBusinessHoursResponse(&hours[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateBusinessHours POST /sla/calendar/business-hours.
func (h *ConfigHandler) CreateBusinessHours(c *fiber.Ctx) error {
	var req dto.BusinessHoursRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	bh := &domain.BusinessHours{
		Weekday:     req.Weekday,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		Active:      req.Active,
	}
	if err := h.service.UpsertBusinessHours(c.UserContext(), bh); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewBusinessHoursResponse(bh)})
}

// UpdateBusinessHours PUT /sla/calendar/business-hours/:id.
func (h *ConfigHandler) UpdateBusinessHours(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.BusinessHoursRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	bh := &domain.BusinessHours{
		ID:          id,
		Weekday:     req.Weekday,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		Active:      req.Active,
	}
	if err := h.service.UpsertBusinessHours(c.UserContext(), bh); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBusinessHoursResponse(bh)})
}

// DeleteBusinessHours DELETE /sla/calendar/business-hours/:id.
func (h *ConfigHandler) DeleteBusinessHours(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteBusinessHours(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListHolidays GET /sla/calendar/holidays.
func (h *ConfigHandler) ListHolidays(c *fiber.Ctx) error {
	holidays, err := h.service.ListHolidays(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.HolidayResponse, 0, len(holidays))
	for i := range holidays {
		items = append(items, dto.NewHolidayResponse(&holidays[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateHoliday POST /sla/calendar/holidays.
func (h *ConfigHandler) CreateHoliday(c *fiber.Ctx) error {
	var req dto.HolidayRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return util.NewValidationError("date must be YYYY-MM-DD", map[string]any{"date": req.Date})
	}
	holiday, err := h.service.CreateHoliday(c.UserContext(), date, req.Name, req.Active)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewHolidayResponse(holiday)})
}

// DeleteHoliday DELETE /sla/calendar/holidays/:id.
func (h *ConfigHandler) DeleteHoliday(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteHoliday(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
