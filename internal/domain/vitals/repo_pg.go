package vitals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpm/rpm/internal/domain/alerts"
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

const vitalCols = `id, patient_id, timestamp, metric, value, unit, normal_low, normal_high, status, source`

func scanMeasurement(row pgx.Row) (Measurement, error) {
	var m Measurement
	err := row.Scan(&m.ID, &m.PatientID, &m.Timestamp, &m.Metric, &m.Value, &m.Unit,
		&m.NormalLow, &m.NormalHigh, &m.Status, &m.Source)
	return m, err
}

func (r *repoPG) Insert(ctx context.Context, m *Measurement) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vital_signs (patient_id, timestamp, metric, value, unit, normal_low, normal_high, status, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		m.PatientID, m.Timestamp, m.Metric, m.Value, m.Unit, m.NormalLow, m.NormalHigh, m.Status, m.Source,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

func (r *repoPG) where(q Query) (string, []interface{}) {
	conds := []string{"patient_id = $1"}
	args := []interface{}{q.PatientID}
	if q.Metric != "" {
		args = append(args, q.Metric)
		conds = append(conds, fmt.Sprintf("metric = $%d", len(args)))
	}
	if q.Start != nil {
		args = append(args, *q.Start)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if q.End != nil {
		args = append(args, *q.End)
		conds = append(conds, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (r *repoPG) list(ctx context.Context, sql string, args []interface{}) ([]Measurement, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repoPG) Query(ctx context.Context, q Query) ([]Measurement, error) {
	where, args := r.where(q)
	sql := `SELECT ` + vitalCols + ` FROM vital_signs WHERE ` + where + ` ORDER BY timestamp DESC, id DESC`
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return r.list(ctx, sql, args)
}

func (r *repoPG) ReadingsBetween(ctx context.Context, patientID string, start, end time.Time) ([]alerts.Reading, error) {
	where, args := r.where(windowQuery(patientID, start, end))
	ms, err := r.list(ctx, `SELECT `+vitalCols+` FROM vital_signs WHERE `+where+` ORDER BY timestamp ASC, id ASC`, args)
	if err != nil {
		return nil, err
	}
	return ReadingsOf(ms), nil
}
