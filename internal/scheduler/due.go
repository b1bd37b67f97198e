package scheduler

import (
	"time"

	"github.com/meditrack/meditrack/internal/domain/medicine"
)

// IsDue reports whether the dose should ring right now: it is pending and
// its daily time matches the current wall-clock minute exactly. Seconds are
// ignored, so the dose stays due for the whole minute and not a second
// longer.
func IsDue(d *medicine.Dose, now time.Time) bool {
	return d.Status == medicine.StatusPending && d.Scheduled == medicine.MinuteOf(now)
}
