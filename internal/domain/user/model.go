package user

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the users table. Guardian fields hold an optional emergency
// contact for the person taking the medication.
type User struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	Age             *int      `db:"age" json:"age,omitempty"`
	MedicalHistory  *string   `db:"medical_history" json:"medical_history,omitempty"`
	GuardianName    *string   `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianContact *string   `db:"guardian_contact" json:"guardian_contact,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
