package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meditrack/meditrack/internal/domain/history"
	"github.com/meditrack/meditrack/internal/domain/medicine"
)

// DoseStore is the slice of the medicine repository the scheduler needs.
type DoseStore interface {
	ListPending(ctx context.Context) ([]*medicine.Dose, error)
	ListExpired(ctx context.Context, before time.Time) ([]*medicine.Dose, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// HistoryLog receives expiry records written by the sweeper.
type HistoryLog interface {
	Append(ctx context.Context, e *history.Entry) error
}

// Scheduler reconciles the active reminder set against the schedule store on
// a fast ticker and sweeps ended treatments on a slow one. Both run in the
// single goroutine started by Start, so ticks never overlap.
type Scheduler struct {
	store         DoseStore
	hist          HistoryLog
	set           *ActiveSet
	logger        zerolog.Logger
	pollInterval  time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	stopChan      chan struct{}
	stopOnce      sync.Once
}

func New(store DoseStore, hist HistoryLog, set *ActiveSet, logger zerolog.Logger, pollInterval, sweepInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:         store,
		hist:          hist,
		set:           set,
		logger:        logger,
		pollInterval:  pollInterval,
		sweepInterval: sweepInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

// Set returns the scheduler's active reminder set.
func (s *Scheduler) Set() *ActiveSet {
	return s.set
}

// Evict satisfies medicine.ReminderEvictor.
func (s *Scheduler) Evict(doseID uuid.UUID) {
	s.set.Evict(doseID)
}

// SetClock overrides the wall clock, for tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs the poll and sweep loop until the context is cancelled or Stop
// is called. It runs one sweep immediately so restarts do not wait a full
// interval to clear ended treatments.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("poll_interval", s.pollInterval).
		Dur("sweep_interval", s.sweepInterval).
		Msg("reminder scheduler started")

	s.Sweep(ctx)

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case <-pollTicker.C:
			s.Tick(ctx)
		case <-sweepTicker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop terminates the Start loop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Tick reconciles the active set with the schedule store: doses that are due
// this minute enter the set, everything else leaves it. A dose already in
// the set is refreshed, not re-announced.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	pending, err := s.store.ListPending(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("poll tick: failed to load pending doses")
		return
	}

	due := make(map[uuid.UUID]bool, len(pending))
	for _, d := range pending {
		if !IsDue(d, now) {
			continue
		}
		due[d.ID] = true

		if s.set.Add(d) {
			evt := s.logger.Info().
				Str("user_id", d.UserID.String()).
				Str("medicine", d.Name).
				Str("scheduled_time", d.Scheduled.String())
			if d.RefillThreshold > 0 && d.Stock <= d.RefillThreshold {
				evt = evt.Int("stock", d.Stock).Bool("low_stock", true)
			}
			evt.Msg("dose due")
		}
	}

	for _, id := range s.set.IDs() {
		if !due[id] {
			s.set.Evict(id)
		}
	}
}

// Sweep moves doses whose treatment window has ended into the history log
// and deletes them. Per-dose failures are logged and skipped; the rest of
// the sweep continues.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	expired, err := s.store.ListExpired(ctx, midnight)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry sweep: failed to load ended doses")
		return
	}

	for _, d := range expired {
		entry := &history.Entry{
			UserID:        d.UserID,
			MedicineID:    &d.ID,
			MedicineName:  d.Name,
			Dosage:        d.Dosage,
			ScheduledTime: d.Scheduled.String(),
			ActualTime:    &now,
			Status:        history.StatusExpired,
			Notes:         "treatment duration ended",
		}
		if err := s.hist.Append(ctx, entry); err != nil {
			s.logger.Error().Err(err).Str("dose_id", d.ID.String()).Msg("expiry sweep: failed to record dose")
			continue
		}
		if err := s.store.Delete(ctx, d.ID); err != nil {
			s.logger.Error().Err(err).Str("dose_id", d.ID.String()).Msg("expiry sweep: failed to delete dose")
			continue
		}
		s.set.Evict(d.ID)
	}

	if len(expired) > 0 {
		s.logger.Info().Int("count", len(expired)).Msg("expiry sweep completed")
	}
}
