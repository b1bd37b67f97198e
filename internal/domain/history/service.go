package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// exportPageSize is the page size used when streaming the full log for CSV
// export.
const exportPageSize = 1000

var validStatuses = map[string]bool{
	StatusTaken: true, StatusMissed: true, StatusRescheduled: true, StatusExpired: true,
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Append records a dose outcome. Entries are never updated or removed.
func (s *Service) Append(ctx context.Context, e *Entry) error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	if e.MedicineName == "" {
		return fmt.Errorf("medicine_name is required")
	}
	if !validStatuses[e.Status] {
		return fmt.Errorf("invalid status: %s", e.Status)
	}
	return s.repo.Append(ctx, e)
}

// ListByUser returns entries for the owner created in the last `days` days,
// newest first. days <= 0 means the last 30 days.
func (s *Service) ListByUser(ctx context.Context, ownerID uuid.UUID, days, limit, offset int) ([]*Entry, int, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)
	return s.repo.ListByUser(ctx, ownerID, since, limit, offset)
}

// ExportCSV renders the owner's complete history as CSV.
func (s *Service) ExportCSV(ctx context.Context, ownerID uuid.UUID) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"medicine_name", "dosage", "scheduled_time", "actual_time", "status", "notes", "created_at"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	since := time.Time{}
	for offset := 0; ; offset += exportPageSize {
		entries, total, err := s.repo.ListByUser(ctx, ownerID, since, exportPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}

		for _, e := range entries {
			actual := ""
			if e.ActualTime != nil {
				actual = e.ActualTime.Format(time.RFC3339)
			}
			record := []string{
				e.MedicineName,
				e.Dosage,
				e.ScheduledTime,
				actual,
				e.Status,
				e.Notes,
				e.CreatedAt.Format(time.RFC3339),
			}
			if err := w.Write(record); err != nil {
				return nil, fmt.Errorf("write csv record: %w", err)
			}
		}

		if offset+len(entries) >= total || len(entries) == 0 {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
