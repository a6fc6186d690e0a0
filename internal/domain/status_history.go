package domain

import "time"

// StatusTransition is one row of the ticketing system's status log: the
// ticket entered Status at StartedAt and left it at EndedAt (nil while
// the transition is still current).
type StatusTransition struct {
	ID        int64
	TicketID  int64
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time
}
