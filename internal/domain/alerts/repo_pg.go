package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpm/rpm/internal/domain/rules"
	"github.com/rpm/rpm/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const alertCols = `id, patient_id, metric, severity, trigger_rule, timestamp, acknowledged, clinician_notes, acknowledged_at`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.PatientID, &a.Metric, &a.Severity, &a.Trigger, &a.Timestamp,
		&a.Acknowledged, &a.ClinicianNote, &a.AcknowledgedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Insert(ctx context.Context, a *Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO alerts (id, patient_id, metric, severity, trigger_rule, timestamp, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.PatientID, a.Metric, a.Severity, a.Trigger, a.Timestamp, a.Acknowledged)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := scanAlert(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM alerts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *repoPG) Query(ctx context.Context, f Filter) ([]Alert, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if f.Metric != "" {
		add("metric = $%d", f.Metric)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.Acknowledged != nil {
		add("acknowledged = $%d", *f.Acknowledged)
	}
	if f.Start != nil {
		add("timestamp >= $%d", *f.Start)
	}
	if f.End != nil {
		add("timestamp < $%d", *f.End)
	}

	sql := `SELECT ` + alertCols + ` FROM alerts`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY timestamp DESC, id`
	if f.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *repoPG) CountAlerts(ctx context.Context, patientID, metric string, severity rules.Severity, start, end time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM alerts
		WHERE patient_id = $1 AND metric = $2 AND severity = $3
		  AND timestamp >= $4 AND timestamp < $5`,
		patientID, metric, severity, start, end).Scan(&n)
	return n, err
}

func (r *repoPG) Acknowledge(ctx context.Context, id uuid.UUID, note *string, at time.Time) (*Alert, error) {
	a, err := scanAlert(r.conn(ctx).QueryRow(ctx, `
		UPDATE alerts SET acknowledged = TRUE, clinician_notes = $2, acknowledged_at = $3
		WHERE id = $1
		RETURNING `+alertCols,
		id, note, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}
