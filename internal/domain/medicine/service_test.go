package medicine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meditrack/meditrack/internal/domain/history"
)

type mockRepo struct {
	doses map[uuid.UUID]*Dose
	order []uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{doses: make(map[uuid.UUID]*Dose)}
}

func (m *mockRepo) Create(_ context.Context, d *Dose) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	stored := *d
	m.doses[d.ID] = &stored
	m.order = append(m.order, d.ID)
	return nil
}

func (m *mockRepo) GetByOwner(_ context.Context, ownerID, id uuid.UUID) (*Dose, error) {
	d, ok := m.doses[id]
	if !ok || d.UserID != ownerID {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) ListByUser(_ context.Context, ownerID uuid.UUID) ([]*Dose, error) {
	var out []*Dose
	for _, id := range m.order {
		d, ok := m.doses[id]
		if !ok || d.UserID != ownerID {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) ListByGroup(_ context.Context, ownerID, groupID uuid.UUID) ([]*Dose, error) {
	var out []*Dose
	for _, id := range m.order {
		d, ok := m.doses[id]
		if !ok || d.UserID != ownerID || d.GroupID != groupID {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) ListPending(_ context.Context) ([]*Dose, error) {
	var out []*Dose
	for _, id := range m.order {
		d, ok := m.doses[id]
		if !ok || d.Status != StatusPending {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) ListExpired(_ context.Context, before time.Time) ([]*Dose, error) {
	var out []*Dose
	for _, id := range m.order {
		d, ok := m.doses[id]
		if !ok || d.EndDate == nil || !d.EndDate.Before(before) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) UpdateStock(_ context.Context, groupID uuid.UUID, stock int) error {
	for _, d := range m.doses {
		if d.GroupID == groupID {
			d.Stock = stock
		}
	}
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string, takenAt *time.Time) error {
	d, ok := m.doses[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	d.TakenAt = takenAt
	return nil
}

func (m *mockRepo) Update(_ context.Context, d *Dose) error {
	if _, ok := m.doses[d.ID]; !ok {
		return ErrNotFound
	}
	cp := *d
	m.doses[d.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.doses, id)
	return nil
}

func (m *mockRepo) DeleteGroup(_ context.Context, groupID uuid.UUID) error {
	for id, d := range m.doses {
		if d.GroupID == groupID {
			delete(m.doses, id)
		}
	}
	return nil
}

type mockHistory struct {
	entries []*history.Entry
}

func (m *mockHistory) Append(_ context.Context, e *history.Entry) error {
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockHistory) byStatus(status string) []*history.Entry {
	var out []*history.Entry
	for _, e := range m.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

type mockEvictor struct {
	evicted []uuid.UUID
}

func (m *mockEvictor) Evict(id uuid.UUID) {
	m.evicted = append(m.evicted, id)
}

func newTestService() (*Service, *mockRepo, *mockHistory) {
	repo := newMockRepo()
	hist := &mockHistory{}
	svc := NewService(repo, hist, zerolog.Nop())
	return svc, repo, hist
}

func thriceInput(stock int) CreateInput {
	return CreateInput{
		Name:            "Aspirin",
		Dosage:          "1 tablet",
		Frequency:       FrequencyThrice,
		Times:           []string{"08:00", "14:00", "20:00"},
		Stock:           stock,
		RefillThreshold: 5,
	}
}

func TestCreate_OneRowPerSlot(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()

	ids, err := svc.Create(context.Background(), owner, thriceInput(30))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 dose ids, got %d", len(ids))
	}

	doses, _ := repo.ListByUser(context.Background(), owner)
	if len(doses) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(doses))
	}

	group := doses[0].GroupID
	names := map[string]bool{}
	for _, d := range doses {
		if d.GroupID != group {
			t.Error("all slots must share one group id")
		}
		if d.Stock != 30 {
			t.Errorf("expected shared stock 30, got %d", d.Stock)
		}
		if d.Status != StatusPending {
			t.Errorf("new doses must be pending, got %s", d.Status)
		}
		names[d.Name] = true
	}
	for _, want := range []string{"Aspirin", "Aspirin (Time 2)", "Aspirin (Time 3)"} {
		if !names[want] {
			t.Errorf("missing slot name %q", want)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing name", CreateInput{Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"08:00"}}},
		{"missing dosage", CreateInput{Name: "Aspirin", Frequency: FrequencyOnce, Times: []string{"08:00"}}},
		{"bad frequency", CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: "hourly", Times: []string{"08:00"}}},
		{"slot count mismatch", CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: FrequencyTwice, Times: []string{"08:00"}}},
		{"bad time", CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"25:00"}}},
		{"negative stock", CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"08:00"}, Stock: -1}},
		{"custom without days", CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"08:00"}, Duration: DurationCustom}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), owner, tc.in)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreate_DurationDates(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		in      CreateInput
		wantEnd *time.Time
	}{
		{
			"lifetime has no end",
			CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"08:00"}, Duration: DurationLifetime},
			nil,
		},
		{
			"week ends seven days out",
			CreateInput{Name: "Amoxicillin", Dosage: "1 capsule", Frequency: FrequencyOnce, Times: []string{"08:00"}, Duration: DurationWeek},
			timePtr(start.AddDate(0, 0, 7)),
		},
		{
			"custom ends duration_days out",
			CreateInput{Name: "Prednisone", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"08:00"}, Duration: DurationCustom, DurationDays: 10},
			timePtr(start.AddDate(0, 0, 10)),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids, err := svc.Create(context.Background(), owner, tc.in)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}

			d, _ := repo.GetByOwner(context.Background(), owner, ids[0])
			if !d.StartDate.Equal(start) {
				t.Errorf("expected start %v, got %v", start, d.StartDate)
			}
			switch {
			case tc.wantEnd == nil:
				if d.EndDate != nil {
					t.Errorf("expected no end date, got %v", d.EndDate)
				}
			case d.EndDate == nil:
				t.Errorf("expected end %v, got none", tc.wantEnd)
			case !d.EndDate.Equal(*tc.wantEnd):
				t.Errorf("expected end %v, got %v", tc.wantEnd, d.EndDate)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestMarkTaken_DecrementsWholeGroup(t *testing.T) {
	svc, repo, hist := newTestService()
	owner := uuid.New()

	ids, err := svc.Create(context.Background(), owner, thriceInput(30))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stock, already, err := svc.MarkTaken(context.Background(), owner, ids[0], "")
	if err != nil {
		t.Fatalf("MarkTaken: %v", err)
	}
	if already {
		t.Error("fresh confirmation should not report already taken")
	}
	if stock != 29 {
		t.Errorf("expected stock 29, got %d", stock)
	}

	doses, _ := repo.ListByUser(context.Background(), owner)
	for _, d := range doses {
		if d.Stock != 29 {
			t.Errorf("dose %s: expected propagated stock 29, got %d", d.Name, d.Stock)
		}
	}

	// Only the confirmed slot flips to taken.
	target, _ := repo.GetByOwner(context.Background(), owner, ids[0])
	if target.Status != StatusTaken || target.TakenAt == nil {
		t.Error("confirmed dose should be taken with taken_at set")
	}
	other, _ := repo.GetByOwner(context.Background(), owner, ids[1])
	if other.Status != StatusPending {
		t.Error("sibling slots must stay pending")
	}

	if got := len(hist.byStatus(history.StatusTaken)); got != 1 {
		t.Errorf("expected 1 taken history entry, got %d", got)
	}
}

func TestMarkTaken_Idempotent(t *testing.T) {
	svc, _, hist := newTestService()
	owner := uuid.New()

	ids, _ := svc.Create(context.Background(), owner, thriceInput(30))

	if _, _, err := svc.MarkTaken(context.Background(), owner, ids[0], ""); err != nil {
		t.Fatalf("first MarkTaken: %v", err)
	}
	stock, already, err := svc.MarkTaken(context.Background(), owner, ids[0], "")
	if err != nil {
		t.Fatalf("second MarkTaken: %v", err)
	}
	if !already {
		t.Error("repeat confirmation should report already taken")
	}
	if stock != 29 {
		t.Errorf("repeat confirmation must not decrement again, got %d", stock)
	}
	if got := len(hist.byStatus(history.StatusTaken)); got != 1 {
		t.Errorf("repeat confirmation must not add history rows, got %d", got)
	}
}

func TestMarkTaken_StockFloorsAtZero(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	in := thriceInput(1)
	in.Dosage = "2 tablets"
	ids, _ := svc.Create(context.Background(), owner, in)

	stock, _, err := svc.MarkTaken(context.Background(), owner, ids[0], "")
	if err != nil {
		t.Fatalf("MarkTaken: %v", err)
	}
	if stock != 0 {
		t.Errorf("expected stock floored at 0, got %d", stock)
	}
}

func TestMarkTaken_OwnershipIsolation(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()
	stranger := uuid.New()

	ids, _ := svc.Create(context.Background(), owner, thriceInput(30))

	if _, _, err := svc.MarkTaken(context.Background(), stranger, ids[0], ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user's dose, got %v", err)
	}
}

func TestReschedule_RoundTrip(t *testing.T) {
	svc, repo, hist := newTestService()
	owner := uuid.New()

	now := time.Date(2026, 3, 1, 9, 15, 30, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	in := CreateInput{
		Name: "Aspirin", Dosage: "1 tablet",
		Frequency: FrequencyOnce, Times: []string{"09:00"},
		Stock: 10,
	}
	ids, _ := svc.Create(context.Background(), owner, in)

	newTime, err := svc.Reschedule(context.Background(), owner, ids[0], 30)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if newTime.String() != "09:45" {
		t.Errorf("expected 09:45, got %s", newTime)
	}

	d, _ := repo.GetByOwner(context.Background(), owner, ids[0])
	if d.Scheduled != newTime || d.Status != StatusPending {
		t.Error("rescheduled dose must be pending at the new time")
	}

	entries := hist.byStatus(history.StatusRescheduled)
	if len(entries) != 1 {
		t.Fatalf("expected 1 rescheduled history entry, got %d", len(entries))
	}
	if entries[0].ScheduledTime != "09:00" {
		t.Errorf("history should keep the original time, got %s", entries[0].ScheduledTime)
	}
	if entries[0].ActualTime != nil {
		t.Error("rescheduled entries have no actual_time")
	}
}

func TestReschedule_RejectsNonPositiveOffset(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()
	ids, _ := svc.Create(context.Background(), owner, thriceInput(30))

	for _, minutes := range []int{0, -10} {
		if _, err := svc.Reschedule(context.Background(), owner, ids[0], minutes); !errors.Is(err, ErrValidation) {
			t.Errorf("offset %d: expected ErrValidation, got %v", minutes, err)
		}
	}
}

func TestUpdate_TakenDoseTimeChangeRestoresStock(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	ids, _ := svc.Create(context.Background(), owner, thriceInput(30))
	if _, _, err := svc.MarkTaken(context.Background(), owner, ids[0], ""); err != nil {
		t.Fatalf("MarkTaken: %v", err)
	}

	newTime := "11:30"
	d, err := svc.Update(context.Background(), owner, ids[0], UpdateInput{Time: &newTime})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if d.Status != StatusPending || d.TakenAt != nil {
		t.Error("edited taken dose should reset to pending")
	}
	if d.Stock != 30 {
		t.Errorf("expected stock restored to 30, got %d", d.Stock)
	}

	// Restore propagates to the whole group.
	sibling, _ := repo.GetByOwner(context.Background(), owner, ids[1])
	if sibling.Stock != 30 {
		t.Errorf("expected sibling stock 30, got %d", sibling.Stock)
	}
}

func TestUpdate_PendingDoseKeepsStatus(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()
	ids, _ := svc.Create(context.Background(), owner, thriceInput(30))

	dosage := "2 tablets"
	d, err := svc.Update(context.Background(), owner, ids[0], UpdateInput{Dosage: &dosage})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if d.Dosage != "2 tablets" || d.Status != StatusPending || d.Stock != 30 {
		t.Error("plain edit of a pending dose must not touch status or stock")
	}
}

func TestUpdate_ChangesFrequency(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()

	in := CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"08:00"}, Stock: 10}
	ids, _ := svc.Create(context.Background(), owner, in)

	freq := FrequencyTwice
	d, err := svc.Update(context.Background(), owner, ids[0], UpdateInput{Frequency: &freq})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if d.Frequency != FrequencyTwice {
		t.Errorf("expected frequency %q, got %q", FrequencyTwice, d.Frequency)
	}

	stored, _ := repo.GetByOwner(context.Background(), owner, ids[0])
	if stored.Frequency != FrequencyTwice {
		t.Errorf("expected persisted frequency %q, got %q", FrequencyTwice, stored.Frequency)
	}

	bad := "hourly"
	if _, err := svc.Update(context.Background(), owner, ids[0], UpdateInput{Frequency: &bad}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for frequency %q, got %v", bad, err)
	}
}

func TestDelete_GroupScopeRemovesAllSlots(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()
	ids, _ := svc.Create(context.Background(), owner, thriceInput(30))

	if err := svc.Delete(context.Background(), owner, ids[1], ""); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	doses, _ := repo.ListByUser(context.Background(), owner)
	if len(doses) != 0 {
		t.Errorf("expected all slots removed, %d remain", len(doses))
	}
}

func TestDelete_DoseScopeRemovesOneSlot(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()
	ids, _ := svc.Create(context.Background(), owner, thriceInput(30))

	if err := svc.Delete(context.Background(), owner, ids[1], DeleteScopeDose); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	doses, _ := repo.ListByUser(context.Background(), owner)
	if len(doses) != 2 {
		t.Errorf("expected 2 slots remaining, got %d", len(doses))
	}
	for _, d := range doses {
		if d.ID == ids[1] {
			t.Error("target slot should be gone")
		}
	}
}

func TestDelete_InvalidScope(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()
	ids, _ := svc.Create(context.Background(), owner, thriceInput(30))

	if err := svc.Delete(context.Background(), owner, ids[0], "all"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestListLowStock(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	low := CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"08:00"}, Stock: 3, RefillThreshold: 5}
	fine := CreateInput{Name: "Vitamin D", Dosage: "1 capsule", Frequency: FrequencyOnce, Times: []string{"09:00"}, Stock: 50, RefillThreshold: 5}
	empty := CreateInput{Name: "Ibuprofen", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"10:00"}, Stock: 0, RefillThreshold: 5}
	disabled := CreateInput{Name: "Zinc", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"11:00"}, Stock: 1, RefillThreshold: 0}

	for _, in := range []CreateInput{low, fine, empty, disabled} {
		if _, err := svc.Create(context.Background(), owner, in); err != nil {
			t.Fatalf("Create %s: %v", in.Name, err)
		}
	}

	doses, err := svc.ListLowStock(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListLowStock: %v", err)
	}
	if len(doses) != 1 || doses[0].Name != "Aspirin" {
		t.Errorf("expected only Aspirin low on stock, got %d doses", len(doses))
	}
}

func TestListMissed_FlipsStalePendingDoses(t *testing.T) {
	svc, repo, hist := newTestService()
	owner := uuid.New()

	now := time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	// Scheduled 08:00, now 21:00: 13 hours stale.
	stale := CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"08:00"}, Stock: 10}
	// Scheduled 20:00, only an hour past.
	fresh := CreateInput{Name: "Vitamin D", Dosage: "1 capsule", Frequency: FrequencyOnce, Times: []string{"20:00"}, Stock: 10}

	staleIDs, _ := svc.Create(context.Background(), owner, stale)
	svc.Create(context.Background(), owner, fresh)

	missed, err := svc.ListMissed(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListMissed: %v", err)
	}
	if len(missed) != 1 || missed[0].Name != "Aspirin" {
		t.Fatalf("expected only Aspirin missed, got %d doses", len(missed))
	}

	d, _ := repo.GetByOwner(context.Background(), owner, staleIDs[0])
	if d.Status != StatusMissed {
		t.Error("stale dose should be persisted as missed")
	}
	if got := len(hist.byStatus(history.StatusMissed)); got != 1 {
		t.Errorf("expected 1 missed history entry, got %d", got)
	}

	// Second call must not duplicate history rows.
	if _, err := svc.ListMissed(context.Background(), owner); err != nil {
		t.Fatalf("second ListMissed: %v", err)
	}
	if got := len(hist.byStatus(history.StatusMissed)); got != 1 {
		t.Errorf("repeat listing must not re-log, got %d entries", got)
	}
}

func TestListMissed_CrossesMidnight(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return created })

	// Scheduled 13:00; by 02:00 the next day it is 13 hours past.
	in := CreateInput{Name: "Aspirin", Dosage: "1 tablet", Frequency: FrequencyOnce, Times: []string{"13:00"}, Stock: 10}
	ids, _ := svc.Create(context.Background(), owner, in)

	now := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	missed, err := svc.ListMissed(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListMissed: %v", err)
	}
	if len(missed) != 1 {
		t.Fatalf("expected dose missed across midnight, got %d doses", len(missed))
	}

	d, _ := repo.GetByOwner(context.Background(), owner, ids[0])
	if d.Status != StatusMissed {
		t.Errorf("expected persisted status missed, got %s", d.Status)
	}
}

func TestEvictorNotified(t *testing.T) {
	svc, _, _ := newTestService()
	ev := &mockEvictor{}
	svc.SetReminderEvictor(ev)
	owner := uuid.New()

	ids, _ := svc.Create(context.Background(), owner, thriceInput(30))

	if _, _, err := svc.MarkTaken(context.Background(), owner, ids[0], ""); err != nil {
		t.Fatalf("MarkTaken: %v", err)
	}
	if len(ev.evicted) != 1 || ev.evicted[0] != ids[0] {
		t.Error("MarkTaken should evict the confirmed dose")
	}

	ev.evicted = nil
	if err := svc.Delete(context.Background(), owner, ids[0], ""); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(ev.evicted) != 3 {
		t.Errorf("group delete should evict all slots, got %d", len(ev.evicted))
	}
}
