package scheduler

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/meditrack/meditrack/internal/domain/medicine"
)

// ActiveSet is the in-memory set of doses currently due. It is rebuilt every
// poll tick from the database and is deliberately volatile: a restart loses
// it and the next tick repopulates it.
type ActiveSet struct {
	mu    sync.RWMutex
	doses map[uuid.UUID]*medicine.Dose
}

func NewActiveSet() *ActiveSet {
	return &ActiveSet{doses: make(map[uuid.UUID]*medicine.Dose)}
}

// Add inserts or refreshes a dose snapshot. Returns true if the dose was not
// already present.
func (s *ActiveSet) Add(d *medicine.Dose) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.doses[d.ID]
	cp := *d
	s.doses[d.ID] = &cp
	return !existed
}

// Evict removes a dose. Removing an absent dose is a no-op.
func (s *ActiveSet) Evict(id uuid.UUID) {
	s.mu.Lock()
	delete(s.doses, id)
	s.mu.Unlock()
}

// Contains reports whether the dose is currently in the set.
func (s *ActiveSet) Contains(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.doses[id]
	return ok
}

// Due returns snapshots of the owner's currently due doses, ordered by
// scheduled time.
func (s *ActiveSet) Due(ownerID uuid.UUID) []*medicine.Dose {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*medicine.Dose
	for _, d := range s.doses {
		if d.UserID != ownerID {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Scheduled < out[j].Scheduled
	})
	return out
}

// IDs returns all dose ids currently in the set.
func (s *ActiveSet) IDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(s.doses))
	for id := range s.doses {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of doses in the set.
func (s *ActiveSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.doses)
}
