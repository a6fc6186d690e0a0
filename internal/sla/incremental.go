package sla

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
)

// sample is one completion retained by the incremental recalibrator.
// OpenedAt drives window pruning; CompletedAt drives the watermark.
type sample struct {
	TicketID    int64
	OpenedAt    time.Time
	CompletedAt time.Time
	Hours       float64
}

// IncrementalRecalibrator maintains the P90 statistic by folding newly
// completed tickets into a running sorted sample set instead of scanning
// the whole window on every run. At any checkpoint its output matches a
// from-scratch batch run over the same data.
type IncrementalRecalibrator struct {
	mu        sync.Mutex
	store     RecalibrationStore
	calc      *Calculator
	params    Params
	logger    *zap.Logger
	now       func() time.Time
	samples   map[domain.TicketPriority][]sample
	errMarks  map[domain.TicketPriority][]time.Time
	watermark map[domain.TicketPriority]time.Time
	lastReset map[domain.TicketPriority]time.Time
}

// NewIncrementalRecalibrator builds an incremental recalibrator with
// empty state; the first run behaves like a batch run.
func NewIncrementalRecalibrator(store RecalibrationStore, calc *Calculator, params Params, logger *zap.Logger) *IncrementalRecalibrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncrementalRecalibrator{
		store:     store,
		calc:      calc,
		params:    params.withDefaults(),
		logger:    logger,
		now:       time.Now,
		samples:   make(map[domain.TicketPriority][]sample),
		errMarks:  make(map[domain.TicketPriority][]time.Time),
		watermark: make(map[domain.TicketPriority]time.Time),
		lastReset: make(map[domain.TicketPriority]time.Time),
	}
}

// Run folds completions since the last run into the sample set and
// reports the recommendation per active priority.
func (r *IncrementalRecalibrator) Run(ctx context.Context) (map[domain.TicketPriority]Recommendation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	configs, err := r.store.ActiveConfigurations(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	out := make(map[domain.TicketPriority]Recommendation)
	for _, cfg := range configs {
		if err := r.fold(ctx, cfg, now); err != nil {
			return nil, err
		}

		retained := r.samples[cfg.Priority]
		hours := make([]float64, len(retained))
		for i, s := range retained {
			hours[i] = s.Hours
		}
		rec, ok := recommend(cfg, hours, r.params)
		if !ok {
			continue
		}
		rec.Errors = len(r.errMarks[cfg.Priority])
		out[cfg.Priority] = rec
	}
	return out, nil
}

// fold prunes samples that left the window and ingests tickets completed
// after the watermark.
func (r *IncrementalRecalibrator) fold(ctx context.Context, cfg domain.SLAConfiguration, now time.Time) error {
	since := windowStart(now, cfg, r.params)

	// A reset invalidates everything accumulated before it.
	if cfg.LastResetAt != nil && cfg.LastResetAt.After(r.lastReset[cfg.Priority]) {
		r.samples[cfg.Priority] = nil
		r.errMarks[cfg.Priority] = nil
		r.watermark[cfg.Priority] = time.Time{}
		r.lastReset[cfg.Priority] = *cfg.LastResetAt
	}

	kept := r.samples[cfg.Priority][:0]
	for _, s := range r.samples[cfg.Priority] {
		if !s.OpenedAt.Before(since) {
			kept = append(kept, s)
		}
	}
	r.samples[cfg.Priority] = kept

	marks := r.errMarks[cfg.Priority][:0]
	for _, opened := range r.errMarks[cfg.Priority] {
		if !opened.Before(since) {
			marks = append(marks, opened)
		}
	}
	r.errMarks[cfg.Priority] = marks

	var completedAfter *time.Time
	if wm := r.watermark[cfg.Priority]; !wm.IsZero() {
		wmCopy := wm
		completedAfter = &wmCopy
	}
	tickets, err := r.store.CompletedTickets(ctx, cfg.Priority, since, completedAfter)
	if err != nil {
		return err
	}

	for _, t := range tickets {
		terminal := t.TerminalAt()
		if terminal == nil {
			continue
		}
		if terminal.After(r.watermark[cfg.Priority]) {
			r.watermark[cfg.Priority] = *terminal
		}
		transitions, err := r.store.TransitionsFor(ctx, t.ID)
		if err != nil {
			r.errMarks[cfg.Priority] = append(r.errMarks[cfg.Priority], t.OpenedAt)
			r.logger.Warn("skipping ticket in incremental recalibration",
				zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		h, err := r.calc.ElapsedExcludingPauses(t.OpenedAt, *terminal, transitions)
		if err != nil {
			r.errMarks[cfg.Priority] = append(r.errMarks[cfg.Priority], t.OpenedAt)
			r.logger.Warn("skipping ticket in incremental recalibration",
				zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		if h <= 0 || h >= r.params.OutlierHours {
			continue
		}
		r.insert(cfg.Priority, sample{TicketID: t.ID, OpenedAt: t.OpenedAt, CompletedAt: *terminal, Hours: h})
	}
	return nil
}

// insert keeps the per-priority sample slice sorted by hours.
func (r *IncrementalRecalibrator) insert(p domain.TicketPriority, s sample) {
	list := r.samples[p]
	i := sort.Search(len(list), func(i int) bool { return list[i].Hours >= s.Hours })
	list = append(list, sample{})
	copy(list[i+1:], list[i:])
	list[i] = s
	r.samples[p] = list
}
