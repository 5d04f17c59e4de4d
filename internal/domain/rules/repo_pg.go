package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const ruleCols = `id, name, metric, operator, threshold, severity, enabled, created_at`

func scanRule(row pgx.Row) (Rule, error) {
	var rule Rule
	err := row.Scan(&rule.ID, &rule.Name, &rule.Metric, &rule.Operator, &rule.Threshold,
		&rule.Severity, &rule.Enabled, &rule.CreatedAt)
	return rule, err
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]Rule, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *repoPG) ListEnabled(ctx context.Context) ([]Rule, error) {
	return r.query(ctx, `SELECT `+ruleCols+` FROM rule_definition WHERE enabled ORDER BY id`)
}

func (r *repoPG) List(ctx context.Context) ([]Rule, error) {
	return r.query(ctx, `SELECT `+ruleCols+` FROM rule_definition ORDER BY id`)
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM rule_definition`).Scan(&n)
	return n, err
}

func (r *repoPG) GetByID(ctx context.Context, id int) (*Rule, error) {
	rule, err := scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM rule_definition WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repoPG) Insert(ctx context.Context, rule *Rule) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO rule_definition (name, metric, operator, threshold, severity, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		rule.Name, rule.Metric, rule.Operator, rule.Threshold, rule.Severity, rule.Enabled,
	).Scan(&rule.ID, &rule.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateName
	}
	return err
}

func (r *repoPG) InsertIfAbsent(ctx context.Context, rules []Rule) (int, error) {
	inserted := 0
	for _, rule := range rules {
		tag, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO rule_definition (name, metric, operator, threshold, severity, enabled)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (name) DO NOTHING`,
			rule.Name, rule.Metric, rule.Operator, rule.Threshold, rule.Severity, rule.Enabled)
		if err != nil {
			return inserted, fmt.Errorf("insert rule %q: %w", rule.Name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *repoPG) Update(ctx context.Context, rule *Rule) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE rule_definition SET threshold = $2, severity = $3, enabled = $4
		WHERE id = $1`,
		rule.ID, rule.Threshold, rule.Severity, rule.Enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
