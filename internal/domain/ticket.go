package domain

import "time"

// TicketPriority enumerates SLA urgency. The label set mirrors the
// ticketing system's vocabulary and is extensible through configuration.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityNormal   TicketPriority = "normal"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Ticket is the read-only view of a support ticket owned by the external
// ticketing system. The SLA core never mutates it except for the
// first-response backfill maintenance flow.
type Ticket struct {
	ID              int64
	Priority        TicketPriority
	Status          string
	OpenedAt        time.Time
	FirstResponseAt *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	DeletedAt       *time.Time
}

// TerminalAt returns the instant the ticket left the active lifecycle,
// or nil while it is still open. CompletedAt and CancelledAt are
// mutually exclusive by invariant.
func (t *Ticket) TerminalAt() *time.Time {
	if t.CompletedAt != nil {
		return t.CompletedAt
	}
	return t.CancelledAt
}

// IsOpen reports whether the ticket is still in an active state.
func (t *Ticket) IsOpen() bool {
	return t.TerminalAt() == nil
}
