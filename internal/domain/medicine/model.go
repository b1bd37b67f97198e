package medicine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Dose statuses.
const (
	StatusPending = "pending"
	StatusTaken   = "taken"
	StatusMissed  = "missed"
)

// Frequencies. The frequency determines how many daily time-slots a
// medicine has: one, two, or three.
const (
	FrequencyOnce   = "once"
	FrequencyTwice  = "twice"
	FrequencyThrice = "thrice"
)

// SlotCount returns the number of daily doses for a frequency, or 0 for an
// unknown value.
func SlotCount(frequency string) int {
	switch frequency {
	case FrequencyOnce:
		return 1
	case FrequencyTwice:
		return 2
	case FrequencyThrice:
		return 3
	}
	return 0
}

// MinuteOfDay is a recurring daily time-of-day stored as minutes since
// midnight (0..1439). It marshals to and from "HH:MM".
type MinuteOfDay int

var timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ParseMinute parses a 24h "HH:MM" string.
func ParseMinute(s string) (MinuteOfDay, error) {
	m := timeOfDayRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	var h, min int
	fmt.Sscanf(s, "%d:%d", &h, &min)
	return MinuteOfDay(h*60 + min), nil
}

// MinuteOf truncates a wall-clock instant to its minute of the day.
func MinuteOf(t time.Time) MinuteOfDay {
	return MinuteOfDay(t.Hour()*60 + t.Minute())
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// At anchors the time-of-day onto the given date in that date's location.
func (m MinuteOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(m)/60, int(m)%60, 0, 0, date.Location())
}

func (m MinuteOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MinuteOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMinute(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Dose maps to the medicines table: one row per daily time-slot. Rows of the
// same logical medicine share a GroupID and a single stock pool.
type Dose struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	UserID          uuid.UUID   `db:"user_id" json:"user_id"`
	GroupID         uuid.UUID   `db:"group_id" json:"group_id"`
	Name            string      `db:"name" json:"name"`
	Dosage          string      `db:"dosage" json:"dosage"`
	Scheduled       MinuteOfDay `db:"scheduled_minute" json:"scheduled_time"`
	Frequency       string      `db:"frequency" json:"frequency"`
	Stock           int         `db:"stock" json:"stock"`
	RefillThreshold int         `db:"refill_threshold" json:"refill_threshold"`
	Status          string      `db:"status" json:"status"`
	TakenAt         *time.Time  `db:"taken_at" json:"taken_at,omitempty"`
	StartDate       time.Time   `db:"start_date" json:"start_date"`
	EndDate         *time.Time  `db:"end_date" json:"end_date,omitempty"`
	VoiceAlertRef   *string     `db:"voice_alert_ref" json:"voice_alert_ref,omitempty"`
	PhotoRef        *string     `db:"photo_ref" json:"photo_ref,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

var slotSuffixRe = regexp.MustCompile(`\s\(Time [0-9]+\)$`)

// SlotName returns the display name for slot n (1-based). Slot 1 keeps the
// bare name; later slots get a " (Time N)" suffix.
func SlotName(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s (Time %d)", base, n)
}

// BaseName strips the " (Time N)" slot suffix, if present.
func BaseName(name string) string {
	return slotSuffixRe.ReplaceAllString(name, "")
}

// Expired reports whether the dose's treatment window ended before the given
// day.
func (d *Dose) Expired(today time.Time) bool {
	if d.EndDate == nil {
		return false
	}
	y, m, day := today.Date()
	midnight := time.Date(y, m, day, 0, 0, 0, 0, today.Location())
	return d.EndDate.Before(midnight)
}
