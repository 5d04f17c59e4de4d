package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const patientCols = `id, name, age, sex, height_cm, weight_kg, diagnoses, risk_profile,
	assigned_clinician, monitoring_status, baseline_profile, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Sex, &p.HeightCM, &p.WeightKG, &p.Diagnoses,
		&p.RiskProfile, &p.AssignedClinician, &p.MonitoringStatus, &p.BaselineProfile, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, name, age, sex, height_cm, weight_kg, diagnoses, risk_profile,
			assigned_clinician, monitoring_status, baseline_profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		p.ID, p.Name, p.Age, p.Sex, p.HeightCM, p.WeightKG, p.Diagnoses, p.RiskProfile,
		p.AssignedClinician, p.MonitoringStatus, p.BaselineProfile,
	).Scan(&p.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Patient, error) {
	var (
		conds []string
		args  []interface{}
	)
	for _, c := range []struct{ col, val string }{
		{"monitoring_status", f.MonitoringStatus},
		{"risk_profile", f.RiskProfile},
		{"assigned_clinician", f.AssignedClinician},
	} {
		if c.val == "" {
			continue
		}
		args = append(args, c.val)
		conds = append(conds, fmt.Sprintf("%s = $%d", c.col, len(args)))
	}

	sql := `SELECT ` + patientCols + ` FROM patients`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += ` ORDER BY id`

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET monitoring_status = $2, assigned_clinician = $3,
			risk_profile = $4, baseline_profile = $5
		WHERE id = $1`,
		p.ID, p.MonitoringStatus, p.AssignedClinician, p.RiskProfile, p.BaselineProfile)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}
