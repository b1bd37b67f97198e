package medicine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meditrack/meditrack/internal/domain/history"
)

var (
	// ErrNotFound covers both missing doses and doses owned by another
	// user, so a caller cannot probe for other users' medicines.
	ErrNotFound = errors.New("medicine not found")

	ErrValidation = errors.New("validation failed")
)

var validFrequencies = map[string]bool{
	FrequencyOnce: true, FrequencyTwice: true, FrequencyThrice: true,
}

// Duration policies for the treatment window.
const (
	DurationLifetime = "lifetime"
	DurationWeek     = "week"
	DurationCustom   = "custom"
)

// HistoryLog receives append-only dose outcome records.
type HistoryLog interface {
	Append(ctx context.Context, e *history.Entry) error
}

// ReminderEvictor removes a dose from the active reminder set. Eviction is
// best-effort; the next poll tick converges regardless.
type ReminderEvictor interface {
	Evict(doseID uuid.UUID)
}

// TxRunner executes fn inside a database transaction. When unset, operations
// run without one (mock repositories in tests).
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo        Repository
	hist        HistoryLog
	logger      zerolog.Logger
	evictor     ReminderEvictor
	runTx       TxRunner
	now         func() time.Time
	missedAfter time.Duration
}

func NewService(repo Repository, hist HistoryLog, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		hist:        hist,
		logger:      logger,
		now:         time.Now,
		missedAfter: 12 * time.Hour,
	}
}

// SetReminderEvictor attaches an optional reminder set evictor.
func (s *Service) SetReminderEvictor(e ReminderEvictor) {
	s.evictor = e
}

// SetTxRunner attaches an optional transaction runner wrapping multi-write
// operations.
func (s *Service) SetTxRunner(run TxRunner) {
	s.runTx = run
}

// SetMissedAfter overrides how long a pending dose may sit past its
// scheduled time before it counts as missed.
func (s *Service) SetMissedAfter(d time.Duration) {
	if d > 0 {
		s.missedAfter = d
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) evict(id uuid.UUID) {
	if s.evictor != nil {
		s.evictor.Evict(id)
	}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.runTx != nil {
		return s.runTx(ctx, fn)
	}
	return fn(ctx)
}

// CreateInput describes a new medicine with up to three daily time-slots.
type CreateInput struct {
	Name            string   `json:"name"`
	Dosage          string   `json:"dosage"`
	Frequency       string   `json:"frequency"`
	Times           []string `json:"times"`
	Stock           int      `json:"stock"`
	RefillThreshold int      `json:"refill_threshold"`
	Duration        string   `json:"duration"`
	DurationDays    int      `json:"duration_days"`
	VoiceAlertRef   *string  `json:"voice_alert_ref,omitempty"`
	PhotoRef        *string  `json:"photo_ref,omitempty"`
}

func (in *CreateInput) validate(now time.Time) ([]MinuteOfDay, *time.Time, time.Time, error) {
	if in.Name == "" {
		return nil, nil, time.Time{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Dosage == "" {
		return nil, nil, time.Time{}, fmt.Errorf("%w: dosage is required", ErrValidation)
	}
	if !validFrequencies[in.Frequency] {
		return nil, nil, time.Time{}, fmt.Errorf("%w: invalid frequency %q", ErrValidation, in.Frequency)
	}
	if in.Stock < 0 {
		return nil, nil, time.Time{}, fmt.Errorf("%w: stock must not be negative", ErrValidation)
	}
	if in.RefillThreshold < 0 {
		return nil, nil, time.Time{}, fmt.Errorf("%w: refill_threshold must not be negative", ErrValidation)
	}

	slots := SlotCount(in.Frequency)
	if len(in.Times) != slots {
		return nil, nil, time.Time{}, fmt.Errorf("%w: frequency %q requires %d times, got %d",
			ErrValidation, in.Frequency, slots, len(in.Times))
	}

	minutes := make([]MinuteOfDay, 0, slots)
	for _, t := range in.Times {
		m, err := ParseMinute(t)
		if err != nil {
			return nil, nil, time.Time{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		minutes = append(minutes, m)
	}

	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var end *time.Time
	switch in.Duration {
	case "", DurationLifetime:
	case DurationWeek:
		e := start.AddDate(0, 0, 7)
		end = &e
	case DurationCustom:
		if in.DurationDays <= 0 {
			return nil, nil, time.Time{}, fmt.Errorf("%w: custom duration requires positive duration_days", ErrValidation)
		}
		e := start.AddDate(0, 0, in.DurationDays)
		end = &e
	default:
		return nil, nil, time.Time{}, fmt.Errorf("%w: invalid duration %q", ErrValidation, in.Duration)
	}

	return minutes, end, start, nil
}

// Create inserts one dose row per time-slot. All rows share a fresh group id
// and the same stock pool; slots beyond the first get a " (Time N)" name
// suffix. Returns the created dose ids in slot order.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput) ([]uuid.UUID, error) {
	minutes, end, start, err := in.validate(s.now())
	if err != nil {
		return nil, err
	}

	groupID := uuid.New()
	ids := make([]uuid.UUID, 0, len(minutes))

	err = s.inTx(ctx, func(ctx context.Context) error {
		for i, m := range minutes {
			d := &Dose{
				UserID:          ownerID,
				GroupID:         groupID,
				Name:            SlotName(in.Name, i+1),
				Dosage:          in.Dosage,
				Scheduled:       m,
				Frequency:       in.Frequency,
				Stock:           in.Stock,
				RefillThreshold: in.RefillThreshold,
				Status:          StatusPending,
				StartDate:       start,
				EndDate:         end,
				VoiceAlertRef:   in.VoiceAlertRef,
				PhotoRef:        in.PhotoRef,
			}
			if err := s.repo.Create(ctx, d); err != nil {
				return fmt.Errorf("create dose slot %d: %w", i+1, err)
			}
			ids = append(ids, d.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Get returns a single owner-scoped dose.
func (s *Service) Get(ctx context.Context, ownerID, doseID uuid.UUID) (*Dose, error) {
	return s.repo.GetByOwner(ctx, ownerID, doseID)
}

// List returns all of the owner's doses.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*Dose, error) {
	return s.repo.ListByUser(ctx, ownerID)
}

// MarkTaken records that the dose was taken: the whole group's stock drops
// by the dosage's unit count (floored at zero) and a history row is written.
// Already-taken doses are a no-op returning the current stock with
// alreadyTaken set, so repeated confirmations never double-decrement.
func (s *Service) MarkTaken(ctx context.Context, ownerID, doseID uuid.UUID, notes string) (stock int, alreadyTaken bool, err error) {
	d, err := s.repo.GetByOwner(ctx, ownerID, doseID)
	if err != nil {
		return 0, false, err
	}

	if d.Status == StatusTaken {
		return d.Stock, true, nil
	}

	units := parseUnits(d.Dosage)
	newStock := d.Stock - units
	if newStock < 0 {
		newStock = 0
	}
	now := s.now()

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStock(ctx, d.GroupID, newStock); err != nil {
			return fmt.Errorf("update group stock: %w", err)
		}
		if err := s.repo.UpdateStatus(ctx, d.ID, StatusTaken, &now); err != nil {
			return fmt.Errorf("mark dose taken: %w", err)
		}
		return s.hist.Append(ctx, &history.Entry{
			UserID:        d.UserID,
			MedicineID:    &d.ID,
			MedicineName:  d.Name,
			Dosage:        d.Dosage,
			ScheduledTime: d.Scheduled.String(),
			ActualTime:    &now,
			Status:        history.StatusTaken,
			Notes:         notes,
		})
	})
	if err != nil {
		return 0, false, err
	}

	if d.RefillThreshold > 0 && newStock <= d.RefillThreshold {
		s.logger.Warn().
			Str("medicine", BaseName(d.Name)).
			Int("stock", newStock).
			Int("threshold", d.RefillThreshold).
			Msg("medicine stock at or below refill threshold")
	}

	s.evict(d.ID)
	return newStock, false, nil
}

// Reschedule pushes the dose's daily time forward by the given number of
// minutes from now and resets it to pending.
func (s *Service) Reschedule(ctx context.Context, ownerID, doseID uuid.UUID, minutes int) (MinuteOfDay, error) {
	if minutes <= 0 {
		return 0, fmt.Errorf("%w: reschedule offset must be positive", ErrValidation)
	}

	d, err := s.repo.GetByOwner(ctx, ownerID, doseID)
	if err != nil {
		return 0, err
	}

	oldTime := d.Scheduled
	newTime := MinuteOf(s.now().Add(time.Duration(minutes) * time.Minute))

	d.Scheduled = newTime
	d.Status = StatusPending
	d.TakenAt = nil

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, d); err != nil {
			return fmt.Errorf("reschedule dose: %w", err)
		}
		return s.hist.Append(ctx, &history.Entry{
			UserID:        d.UserID,
			MedicineID:    &d.ID,
			MedicineName:  d.Name,
			Dosage:        d.Dosage,
			ScheduledTime: oldTime.String(),
			Status:        history.StatusRescheduled,
			Notes:         fmt.Sprintf("rescheduled by %d minutes to %s", minutes, newTime),
		})
	})
	if err != nil {
		return 0, err
	}

	s.evict(d.ID)
	return newTime, nil
}

// UpdateInput carries a partial dose update; nil fields are left unchanged.
type UpdateInput struct {
	Name            *string `json:"name,omitempty"`
	Dosage          *string `json:"dosage,omitempty"`
	Frequency       *string `json:"frequency,omitempty"`
	Time            *string `json:"time,omitempty"`
	Stock           *int    `json:"stock,omitempty"`
	RefillThreshold *int    `json:"refill_threshold,omitempty"`
	VoiceAlertRef   *string `json:"voice_alert_ref,omitempty"`
	PhotoRef        *string `json:"photo_ref,omitempty"`
}

// Update applies a partial edit to one dose. Editing a taken dose so that
// its time changes, or so its time now lies in the future, resets it to
// pending and restores the consumed units to the whole group's stock.
func (s *Service) Update(ctx context.Context, ownerID, doseID uuid.UUID, in UpdateInput) (*Dose, error) {
	d, err := s.repo.GetByOwner(ctx, ownerID, doseID)
	if err != nil {
		return nil, err
	}

	wasTaken := d.Status == StatusTaken
	oldUnits := parseUnits(d.Dosage)
	timeChanged := false

	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		d.Name = *in.Name
	}
	if in.Dosage != nil {
		if *in.Dosage == "" {
			return nil, fmt.Errorf("%w: dosage must not be empty", ErrValidation)
		}
		d.Dosage = *in.Dosage
	}
	if in.Frequency != nil {
		// Changing frequency relabels this row only; existing sibling
		// slots are kept as they are.
		if !validFrequencies[*in.Frequency] {
			return nil, fmt.Errorf("%w: invalid frequency %q", ErrValidation, *in.Frequency)
		}
		d.Frequency = *in.Frequency
	}
	if in.Time != nil {
		m, err := ParseMinute(*in.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		timeChanged = m != d.Scheduled
		d.Scheduled = m
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, fmt.Errorf("%w: stock must not be negative", ErrValidation)
		}
		d.Stock = *in.Stock
	}
	if in.RefillThreshold != nil {
		if *in.RefillThreshold < 0 {
			return nil, fmt.Errorf("%w: refill_threshold must not be negative", ErrValidation)
		}
		d.RefillThreshold = *in.RefillThreshold
	}
	if in.VoiceAlertRef != nil {
		d.VoiceAlertRef = in.VoiceAlertRef
	}
	if in.PhotoRef != nil {
		d.PhotoRef = in.PhotoRef
	}

	now := s.now()
	movedToFuture := d.Scheduled > MinuteOf(now)
	restore := wasTaken && (timeChanged || movedToFuture)
	if restore {
		d.Status = StatusPending
		d.TakenAt = nil
		d.Stock += oldUnits
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if restore {
			if err := s.repo.UpdateStock(ctx, d.GroupID, d.Stock); err != nil {
				return fmt.Errorf("restore group stock: %w", err)
			}
		} else if in.Stock != nil {
			if err := s.repo.UpdateStock(ctx, d.GroupID, d.Stock); err != nil {
				return fmt.Errorf("update group stock: %w", err)
			}
		}
		if err := s.repo.Update(ctx, d); err != nil {
			return fmt.Errorf("update dose: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.evict(d.ID)
	return d, nil
}

// Delete scopes.
const (
	DeleteScopeGroup = "group"
	DeleteScopeDose  = "dose"
)

// Delete removes a dose. Scope "group" (the default) removes every time-slot
// of the medicine; scope "dose" removes only the one row.
func (s *Service) Delete(ctx context.Context, ownerID, doseID uuid.UUID, scope string) error {
	if scope == "" {
		scope = DeleteScopeGroup
	}
	if scope != DeleteScopeGroup && scope != DeleteScopeDose {
		return fmt.Errorf("%w: invalid delete scope %q", ErrValidation, scope)
	}

	d, err := s.repo.GetByOwner(ctx, ownerID, doseID)
	if err != nil {
		return err
	}

	if scope == DeleteScopeDose {
		if err := s.repo.Delete(ctx, d.ID); err != nil {
			return fmt.Errorf("delete dose: %w", err)
		}
		s.evict(d.ID)
		return nil
	}

	group, err := s.repo.ListByGroup(ctx, ownerID, d.GroupID)
	if err != nil {
		return fmt.Errorf("list group: %w", err)
	}
	if err := s.repo.DeleteGroup(ctx, d.GroupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	for _, g := range group {
		s.evict(g.ID)
	}
	return nil
}

// ListLowStock returns doses that still have stock but are at or below
// their refill threshold. A zero threshold disables the warning.
func (s *Service) ListLowStock(ctx context.Context, ownerID uuid.UUID) ([]*Dose, error) {
	doses, err := s.repo.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var low []*Dose
	for _, d := range doses {
		if d.Stock > 0 && d.RefillThreshold > 0 && d.Stock <= d.RefillThreshold {
			low = append(low, d)
		}
	}
	return low, nil
}

// ListMissed flips pending doses that sat unanswered past the missed window
// to missed, records them in the history log, and returns them.
func (s *Service) ListMissed(ctx context.Context, ownerID uuid.UUID) ([]*Dose, error) {
	doses, err := s.repo.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var missed []*Dose
	for _, d := range doses {
		switch d.Status {
		case StatusMissed:
			missed = append(missed, d)
			continue
		case StatusPending:
		default:
			continue
		}

		// Measure from the most recent occurrence of the scheduled time,
		// which is yesterday's when today's is still ahead of the clock.
		lastDue := d.Scheduled.At(now)
		if lastDue.After(now) {
			lastDue = lastDue.AddDate(0, 0, -1)
		}
		if now.Sub(lastDue) < s.missedAfter {
			continue
		}

		if err := s.repo.UpdateStatus(ctx, d.ID, StatusMissed, nil); err != nil {
			s.logger.Error().Err(err).Str("dose_id", d.ID.String()).Msg("failed to mark dose missed")
			continue
		}
		if err := s.hist.Append(ctx, &history.Entry{
			UserID:        d.UserID,
			MedicineID:    &d.ID,
			MedicineName:  d.Name,
			Dosage:        d.Dosage,
			ScheduledTime: d.Scheduled.String(),
			Status:        history.StatusMissed,
			Notes:         "no confirmation within the missed window",
		}); err != nil {
			s.logger.Error().Err(err).Str("dose_id", d.ID.String()).Msg("failed to record missed dose")
		}

		d.Status = StatusMissed
		missed = append(missed, d)
		s.evict(d.ID)
	}
	return missed, nil
}
