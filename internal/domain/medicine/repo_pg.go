package medicine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meditrack/meditrack/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const doseCols = `id, user_id, group_id, name, dosage, scheduled_minute,
	frequency, stock, refill_threshold, status, taken_at,
	start_date, end_date, voice_alert_ref, photo_ref, created_at, updated_at`

func (r *repoPG) scanDose(row pgx.Row) (*Dose, error) {
	var d Dose
	err := row.Scan(&d.ID, &d.UserID, &d.GroupID, &d.Name, &d.Dosage, &d.Scheduled,
		&d.Frequency, &d.Stock, &d.RefillThreshold, &d.Status, &d.TakenAt,
		&d.StartDate, &d.EndDate, &d.VoiceAlertRef, &d.PhotoRef, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *repoPG) scanDoses(rows pgx.Rows) ([]*Dose, error) {
	defer rows.Close()
	var doses []*Dose
	for rows.Next() {
		d, err := r.scanDose(rows)
		if err != nil {
			return nil, err
		}
		doses = append(doses, d)
	}
	return doses, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, d *Dose) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medicines (id, user_id, group_id, name, dosage, scheduled_minute,
			frequency, stock, refill_threshold, status, taken_at,
			start_date, end_date, voice_alert_ref, photo_ref)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		d.ID, d.UserID, d.GroupID, d.Name, d.Dosage, d.Scheduled,
		d.Frequency, d.Stock, d.RefillThreshold, d.Status, d.TakenAt,
		d.StartDate, d.EndDate, d.VoiceAlertRef, d.PhotoRef)
	return err
}

func (r *repoPG) GetByOwner(ctx context.Context, ownerID, id uuid.UUID) (*Dose, error) {
	return r.scanDose(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doseCols+` FROM medicines WHERE id = $1 AND user_id = $2`, id, ownerID))
}

func (r *repoPG) ListByUser(ctx context.Context, ownerID uuid.UUID) ([]*Dose, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doseCols+` FROM medicines WHERE user_id = $1 ORDER BY name, scheduled_minute`, ownerID)
	if err != nil {
		return nil, err
	}
	return r.scanDoses(rows)
}

func (r *repoPG) ListByGroup(ctx context.Context, ownerID, groupID uuid.UUID) ([]*Dose, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doseCols+` FROM medicines WHERE user_id = $1 AND group_id = $2 ORDER BY scheduled_minute`,
		ownerID, groupID)
	if err != nil {
		return nil, err
	}
	return r.scanDoses(rows)
}

func (r *repoPG) ListPending(ctx context.Context) ([]*Dose, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doseCols+` FROM medicines WHERE status = $1`, StatusPending)
	if err != nil {
		return nil, err
	}
	return r.scanDoses(rows)
}

func (r *repoPG) ListExpired(ctx context.Context, before time.Time) ([]*Dose, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doseCols+` FROM medicines WHERE end_date IS NOT NULL AND end_date < $1`, before)
	if err != nil {
		return nil, err
	}
	return r.scanDoses(rows)
}

func (r *repoPG) UpdateStock(ctx context.Context, groupID uuid.UUID, stock int) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE medicines SET stock = $2, updated_at = NOW() WHERE group_id = $1`, groupID, stock)
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, takenAt *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medicines SET status = $2, taken_at = $3, updated_at = NOW() WHERE id = $1`,
		id, status, takenAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, d *Dose) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicines SET name=$2, dosage=$3, scheduled_minute=$4, frequency=$5,
			stock=$6, refill_threshold=$7, status=$8, taken_at=$9,
			start_date=$10, end_date=$11, voice_alert_ref=$12, photo_ref=$13,
			updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Dosage, d.Scheduled, d.Frequency,
		d.Stock, d.RefillThreshold, d.Status, d.TakenAt,
		d.StartDate, d.EndDate, d.VoiceAlertRef, d.PhotoRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	return err
}

func (r *repoPG) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medicines WHERE group_id = $1`, groupID)
	return err
}
