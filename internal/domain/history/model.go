package history

import (
	"time"

	"github.com/google/uuid"
)

// Entry statuses.
const (
	StatusTaken       = "taken"
	StatusMissed      = "missed"
	StatusRescheduled = "rescheduled"
	StatusExpired     = "expired"
)

// Entry is one append-only row in the dose history log. Medicine name and
// dosage are denormalized so entries remain readable after the medicine is
// deleted.
type Entry struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	MedicineID    *uuid.UUID `db:"medicine_id" json:"medicine_id,omitempty"`
	MedicineName  string     `db:"medicine_name" json:"medicine_name"`
	Dosage        string     `db:"dosage" json:"dosage"`
	ScheduledTime string     `db:"scheduled_time" json:"scheduled_time"`
	ActualTime    *time.Time `db:"actual_time" json:"actual_time,omitempty"`
	Status        string     `db:"status" json:"status"`
	Notes         string     `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
