package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// RotationTemplateRepository implements repository.RotationTemplateRepository
// for PostgreSQL.
type RotationTemplateRepository struct {
	db sqlExecutor
}

func NewRotationTemplateRepository(db sqlExecutor) *RotationTemplateRepository {
	return &RotationTemplateRepository{db: db}
}

func (r *RotationTemplateRepository) Create(ctx context.Context, rt *entity.RotationTemplate) error {
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	roles := make([]string, len(rt.Eligibility.Roles))
	for i, role := range rt.Eligibility.Roles {
		roles[i] = string(role)
	}

	query := `
		INSERT INTO rotation_templates (
			id, name, activity_type, granularity, eligible_roles, min_pgy, max_pgy,
			required_credentials, coverage_min, coverage_target, coverage_max,
			duty_hours_am, duty_hours_pm, at_home_call, hours_attribution
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	_, err := r.db.ExecContext(ctx, query,
		rt.ID, rt.Name, string(rt.ActivityType), string(rt.Granularity),
		pq.Array(roles), rt.Eligibility.MinPGY, rt.Eligibility.MaxPGY,
		pq.Array(rt.Eligibility.RequiredCredentials),
		rt.Coverage.Min, rt.Coverage.Target, rt.Coverage.Max,
		rt.DutyHoursAM, rt.DutyHoursPM, rt.AtHomeCall, string(rt.HoursAttribution),
	)
	if err != nil {
		return fmt.Errorf("failed to create rotation template: %w", err)
	}
	return nil
}

func (r *RotationTemplateRepository) scan(row interface{ Scan(...any) error }) (*entity.RotationTemplate, error) {
	rt := &entity.RotationTemplate{}
	var roles, requiredCreds []string
	err := row.Scan(
		&rt.ID, &rt.Name, (*string)(&rt.ActivityType), (*string)(&rt.Granularity),
		pq.Array(&roles), &rt.Eligibility.MinPGY, &rt.Eligibility.MaxPGY,
		pq.Array(&requiredCreds),
		&rt.Coverage.Min, &rt.Coverage.Target, &rt.Coverage.Max,
		&rt.DutyHoursAM, &rt.DutyHoursPM, &rt.AtHomeCall, (*string)(&rt.HoursAttribution),
	)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		rt.Eligibility.Roles = append(rt.Eligibility.Roles, entity.Role(role))
	}
	rt.Eligibility.RequiredCredentials = requiredCreds
	return rt, nil
}

func (r *RotationTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.RotationTemplate, error) {
	query := `
		SELECT id, name, activity_type, granularity, eligible_roles, min_pgy, max_pgy,
		       required_credentials, coverage_min, coverage_target, coverage_max,
		       duty_hours_am, duty_hours_pm, at_home_call, hours_attribution
		FROM rotation_templates WHERE id = $1
	`
	rt, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{Entity: "RotationTemplate"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation template: %w", err)
	}
	return rt, nil
}

func (r *RotationTemplateRepository) ListAll(ctx context.Context) ([]*entity.RotationTemplate, error) {
	query := `
		SELECT id, name, activity_type, granularity, eligible_roles, min_pgy, max_pgy,
		       required_credentials, coverage_min, coverage_target, coverage_max,
		       duty_hours_am, duty_hours_pm, at_home_call, hours_attribution
		FROM rotation_templates
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rotation templates: %w", err)
	}
	defer rows.Close()

	var out []*entity.RotationTemplate
	for rows.Next() {
		rt, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rotation template: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}
