package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sla-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventMetricsUpdated     EventType = "metrics_updated"
	EventSLAReset           EventType = "sla_reset"
	EventLimitsRecalibrated EventType = "limits_recalibrated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent builds an event with a fresh identifier.
func NewEvent(eventType EventType, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// MetricsUpdatedPayload payload. Buckets carries the per-status counts
// of the recalculation that emitted the event.
type MetricsUpdatedPayload struct {
	TicketsProcessed int                         `json:"tickets_processed"`
	Inserted         int64                       `json:"inserted"`
	Updated          int64                       `json:"updated"`
	Buckets          map[domain.MetricStatus]int `json:"buckets,omitempty"`
	ComputedAt       time.Time                   `json:"computed_at"`
}

// SLAResetPayload payload.
type SLAResetPayload struct {
	ResetAt        time.Time `json:"reset_at"`
	ConfigsStamped int64     `json:"configs_stamped"`
}

// LimitsRecalibratedPayload payload.
type LimitsRecalibratedPayload struct {
	Priority      domain.TicketPriority `json:"priority"`
	PreviousHours float64               `json:"previous_hours"`
	NewHours      float64               `json:"new_hours"`
}
