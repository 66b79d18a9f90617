package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/digital-library/internal/model"
)

// PlanRepo reads subscription plans. Plans are immutable reference data
// managed by the admin console; the entitlement core never writes them.
type PlanRepo struct{ DB *sql.DB }

func NewPlanRepo(db *sql.DB) *PlanRepo { return &PlanRepo{DB: db} }

const planColumns = "id,name,target_kind,price,duration_days,features,created_at"

// GetByID fetches a plan by id.
func (r *PlanRepo) GetByID(ctx context.Context, id uint64) (model.SubscriptionPlan, error) {
	return scanPlan(r.DB.QueryRowContext(ctx,
		"SELECT "+planColumns+" FROM subscription_plans WHERE id=? LIMIT 1", id))
}

// List returns all plans ordered by id, for admin dropdowns.
func (r *PlanRepo) List(ctx context.Context) ([]model.SubscriptionPlan, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+planColumns+" FROM subscription_plans ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlanRows(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(row *sql.Row) (model.SubscriptionPlan, error) {
	var p model.SubscriptionPlan
	var features sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.TargetKind, &p.Price, &p.DurationDays, &features, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return model.SubscriptionPlan{}, ErrNotFound
	}
	if err != nil {
		return model.SubscriptionPlan{}, err
	}
	decodeFeatures(&p, features)
	return p, nil
}

func scanPlanRows(rows *sql.Rows) (model.SubscriptionPlan, error) {
	var p model.SubscriptionPlan
	var features sql.NullString
	err := rows.Scan(&p.ID, &p.Name, &p.TargetKind, &p.Price, &p.DurationDays, &features, &p.CreatedAt)
	if err != nil {
		return model.SubscriptionPlan{}, err
	}
	decodeFeatures(&p, features)
	return p, nil
}

// decodeFeatures unpacks the JSON feature list; malformed or empty JSON
// just leaves the list nil rather than failing the whole read.
func decodeFeatures(p *model.SubscriptionPlan, features sql.NullString) {
	if features.Valid && features.String != "" {
		_ = json.Unmarshal([]byte(features.String), &p.Features)
	}
}
