package dto

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// ConfigRequest is the write payload for an SLA configuration.
type ConfigRequest struct {
	Priority        domain.TicketPriority `json:"priority"`
	ResponseHours   float64               `json:"response_hours"`
	ResolutionHours float64               `json:"resolution_hours"`
	Description     *string               `json:"description"`
	Active          bool                  `json:"active"`
}

// ConfigResponse mirrors one configuration row.
type ConfigResponse struct {
	ID              int64                 `json:"id"`
	Priority        domain.TicketPriority `json:"priority"`
	ResponseHours   float64               `json:"response_hours"`
	ResolutionHours float64               `json:"resolution_hours"`
	Description     *string               `json:"description"`
	Active          bool                  `json:"active"`
	LastResetAt     *time.Time            `json:"last_reset_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// NewConfigResponse maps a configuration row.
func NewConfigResponse(cfg *domain.SLAConfiguration) ConfigResponse {
	return ConfigResponse{
		ID:              cfg.ID,
		Priority:        cfg.Priority,
		ResponseHours:   cfg.ResponseHours,
		ResolutionHours: cfg.ResolutionHours,
		Description:     cfg.Description,
		Active:          cfg.Active,
		LastResetAt:     cfg.LastResetAt,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
}

// BusinessHoursRequest is the write payload for a weekday window.
type BusinessHoursRequest struct {
	Weekday     int  `json:"weekday"`
	StartMinute int  `json:"start_minute"`
	EndMinute   int  `json:"end_minute"`
	Active      bool `json:"active"`
}

// BusinessHoursResponse mirrors one weekday window.
type BusinessHoursResponse struct {
	ID          int64 `json:"id"`
	Weekday     int   `json:"weekday"`
	StartMinute int   `json:"start_minute"`
	EndMinute   int   `json:"end_minute"`
	Active      bool  `json:"active"`
}

// NewBusinessHoursResponse maps a weekday window.
func NewBusinessHoursResponse(bh *domain.BusinessHours) BusinessHoursResponse {
	return BusinessHoursResponse{
		ID:          bh.ID,
		Weekday:     bh.Weekday,
		StartMinute: bh.StartMinute,
		EndMinute:   bh.EndMinute,
		Active:      bh.Active,
	}
}

// HolidayRequest is the write payload for a holiday.
type HolidayRequest struct {
	Date   string `json:"date"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// HolidayResponse mirrors one holiday row.
type HolidayResponse struct {
	ID     int64  `json:"id"`
	Date   string `json:"date"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// NewHolidayResponse maps a holiday row.
func NewHolidayResponse(h *domain.Holiday) HolidayResponse {
	return HolidayResponse{
		ID:     h.ID,
		Date:   h.Date.Format("2006-01-02"),
		Name:   h.Name,
		Active: h.Active,
	}
}

// ApplyRecommendationsRequest optionally narrows which priorities to
// apply. Empty means all computed recommendations.
type ApplyRecommendationsRequest struct {
	Priorities []domain.TicketPriority `json:"priorities"`
}

// CacheStatsResponse joins the two-tier counts with process counters.
type CacheStatsResponse struct {
	MemoryEntries    int   `json:"memory_entries"`
	PersistedEntries int64 `json:"database_entries"`
	ExpiredInStore   int64 `json:"expired_in_db"`
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`
}
