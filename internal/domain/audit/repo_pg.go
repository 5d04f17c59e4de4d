package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

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

func (r *repoPG) Insert(ctx context.Context, e *Entry) error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_log (actor, role, action, patient_id, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.Actor, e.Role, e.Action, e.PatientID, e.Details, e.Timestamp,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.PatientID != "" {
		args = append(args, f.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.Actor != "" {
		args = append(args, f.Actor)
		conds = append(conds, fmt.Sprintf("actor = $%d", len(args)))
	}
	sql := `SELECT id, actor, role, action, patient_id, details, timestamp FROM audit_log`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += fmt.Sprintf(` ORDER BY timestamp DESC, id DESC LIMIT %d`, f.Limit)

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Role, &e.Action, &e.PatientID, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
