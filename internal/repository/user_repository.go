package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/digital-library/internal/model"
	"github.com/iliyamo/digital-library/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,role,institution_id,subscription_status,is_active,created_at,updated_at"

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, institutionID *uint64, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, institution_id, subscription_status) VALUES (?,?,?,?,?)",
		email, hash, role, institutionID, model.StatusNone)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	var instID sql.NullInt64
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &instID,
		&u.SubscriptionStatus, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	if instID.Valid {
		v := uint64(instID.Int64)
		u.InstitutionID = &v
	}
	return u, nil
}

// SetSubscriptionStatusTx updates the cached subscription status of one
// user inside an existing transaction.
func (r *UserRepo) SetSubscriptionStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET subscription_status=? WHERE id=?", status, id)
	return err
}

// SetStatusByInstitutionTx updates the cached subscription status of every
// user belonging to an institution inside an existing transaction. This is
// the member cascade triggered by institution assignment transitions.
func (r *UserRepo) SetStatusByInstitutionTx(ctx context.Context, tx *sql.Tx, institutionID uint64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET subscription_status=? WHERE institution_id=?", status, institutionID)
	return err
}
