package domain

import "time"

// MetricStatus classifies one SLA metric (response or resolution).
// The values are the wire vocabulary consumed by dashboards.
type MetricStatus string

const (
	MetricStatusMet           MetricStatus = "cumprido"
	MetricStatusBreached      MetricStatus = "violado"
	MetricStatusOverdueActive MetricStatus = "vencido_ativo"
	MetricStatusNearDue       MetricStatus = "proximo_vencer"
	MetricStatusOnTrack       MetricStatus = "dentro_prazo"
	MetricStatusPaused        MetricStatus = "pausado"
	MetricStatusNone          MetricStatus = "sem_sla"
)

// MetricResult carries elapsed/limit hours plus classification for a
// single metric. LimitHours is zero when Status is sem_sla.
type MetricResult struct {
	ElapsedHours float64      `json:"tempo_decorrido_horas"`
	LimitHours   float64      `json:"tempo_limite_horas"`
	Status       MetricStatus `json:"status"`
}

// SLAStatus is the full evaluation of a ticket against its limits.
type SLAStatus struct {
	TicketID   int64        `json:"chamado_id"`
	Response   MetricResult `json:"resposta_metric"`
	Resolution MetricResult `json:"resolucao_metric"`
	Overall    MetricStatus `json:"status_geral"`
	ComputedAt time.Time    `json:"calculado_em"`
}

// SLAConfiguration holds the active limits for one priority.
// At most one active row exists per priority.
type SLAConfiguration struct {
	ID              int64
	Priority        TicketPriority
	ResponseHours   float64
	ResolutionHours float64
	Description     *string
	Active          bool
	LastResetAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BusinessHours defines the working window for one weekday (0=Sunday).
// Minutes are counted from midnight. A weekday without an active row is
// fully non-working.
type BusinessHours struct {
	ID          int64
	Weekday     int
	StartMinute int
	EndMinute   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Holiday excludes a whole date from working time regardless of the
// weekday's business window.
type Holiday struct {
	ID        int64
	Date      time.Time
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SLAHistoryRecord snapshots the SLA metrics of a ticket at a point in
// time. Sync and recalculation passes update the most recent row per
// ticket instead of appending duplicates.
type SLAHistoryRecord struct {
	ID                   int64
	TicketID             int64
	Action               string
	PriorStatus          *string
	NewStatus            *string
	ResponseHours        *float64
	ResponseLimitHours   *float64
	ResolutionHours      *float64
	ResolutionLimitHours *float64
	OverallStatus        MetricStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// MetricCacheEntry is one row of the persisted cache tier. Value holds
// the serialized metric result; the persisted copy is the source of
// truth across processes.
type MetricCacheEntry struct {
	Key        string
	Value      []byte
	ComputedAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the entry is past its expiry at the given
// instant.
func (e MetricCacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
