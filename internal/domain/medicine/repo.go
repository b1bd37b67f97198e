package medicine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists doses. Methods taking an ownerID return only rows
// belonging to that user; lookups that miss (including rows owned by someone
// else) return ErrNotFound.
type Repository interface {
	Create(ctx context.Context, d *Dose) error
	GetByOwner(ctx context.Context, ownerID, id uuid.UUID) (*Dose, error)
	ListByUser(ctx context.Context, ownerID uuid.UUID) ([]*Dose, error)
	ListByGroup(ctx context.Context, ownerID, groupID uuid.UUID) ([]*Dose, error)

	// ListPending returns pending doses across all users, for the poller.
	ListPending(ctx context.Context) ([]*Dose, error)
	// ListExpired returns doses across all users whose end_date is before
	// the given day, for the expiry sweeper.
	ListExpired(ctx context.Context, before time.Time) ([]*Dose, error)

	// UpdateStock sets the shared stock on every dose in a group.
	UpdateStock(ctx context.Context, groupID uuid.UUID, stock int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, takenAt *time.Time) error
	Update(ctx context.Context, d *Dose) error

	Delete(ctx context.Context, id uuid.UUID) error
	DeleteGroup(ctx context.Context, groupID uuid.UUID) error
}
