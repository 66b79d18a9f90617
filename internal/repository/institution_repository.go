package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/digital-library/internal/model"
)

type InstitutionRepo struct{ DB *sql.DB }

func NewInstitutionRepo(db *sql.DB) *InstitutionRepo { return &InstitutionRepo{DB: db} }

const institutionColumns = "id,email,password_hash,name,subscription_status,is_active,created_at,updated_at"

// GetByEmail fetches an institution by normalized email.
func (r *InstitutionRepo) GetByEmail(ctx context.Context, email string) (model.Institution, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+institutionColumns+" FROM institutions WHERE email=? LIMIT 1", email))
}

// GetByID fetches an institution by id.
func (r *InstitutionRepo) GetByID(ctx context.Context, id uint64) (model.Institution, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+institutionColumns+" FROM institutions WHERE id=? LIMIT 1", id))
}

func (r *InstitutionRepo) scanOne(row *sql.Row) (model.Institution, error) {
	var i model.Institution
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.Name,
		&i.SubscriptionStatus, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Institution{}, ErrNotFound
	}
	if err != nil {
		return model.Institution{}, err
	}
	return i, nil
}

// SetSubscriptionStatusTx updates the cached subscription status of one
// institution inside an existing transaction.
func (r *InstitutionRepo) SetSubscriptionStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE institutions SET subscription_status=? WHERE id=?", status, id)
	return err
}
