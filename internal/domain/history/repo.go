package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists history entries. The log is append-only: there are no
// update or delete operations.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByUser(ctx context.Context, userID uuid.UUID, since time.Time, limit, offset int) ([]*Entry, int, error)
}
