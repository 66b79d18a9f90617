package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/digital-library/internal/model"
)

// TokenRepo is the refresh-token ledger. Rows hold only the SHA-256 hash
// of the token value plus exactly one principal foreign key. Tokens are
// single-use: rotation consumes the old row and inserts the new one in the
// same transaction, so a replayed token can never mint a second session.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// refArgs maps a principal reference onto the three nullable foreign key
// columns (user_id, admin_id, institution_id).
func refArgs(ref model.PrincipalRef) (userID, adminID, institutionID *uint64) {
	switch ref.Kind {
	case model.KindUser:
		userID = &ref.ID
	case model.KindAdmin:
		adminID = &ref.ID
	case model.KindInstitution:
		institutionID = &ref.ID
	}
	return
}

// Save inserts a refresh token hash row bound to one principal.
func (r *TokenRepo) Save(ctx context.Context, tokenHash string, ref model.PrincipalRef, expiresAt time.Time) error {
	userID, adminID, institutionID := refArgs(ref)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (token_hash, user_id, admin_id, institution_id, expires_at) VALUES (?,?,?,?,?)",
		tokenHash, userID, adminID, institutionID, expiresAt)
	return err
}

// FindValid returns the principal bound to a non-expired token hash.
// Expired and unknown tokens both come back as ErrInvalidSession.
func (r *TokenRepo) FindValid(ctx context.Context, tokenHash string) (model.PrincipalRef, error) {
	var t model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, token_hash, user_id, admin_id, institution_id, expires_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.TokenHash, &t.UserID, &t.AdminID, &t.InstitutionID, &t.ExpiresAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return model.PrincipalRef{}, ErrInvalidSession
	}
	if err != nil {
		return model.PrincipalRef{}, err
	}
	if time.Now().UTC().After(t.ExpiresAt) {
		return model.PrincipalRef{}, ErrInvalidSession
	}
	ref, ok := t.Ref()
	if !ok {
		return model.PrincipalRef{}, ErrInvalidSession
	}
	return ref, nil
}

// Rotate atomically consumes oldHash and records newHash for the same
// principal. The DELETE must remove exactly one live row; when it removes
// none the token was already rotated, revoked or expired and the whole
// exchange fails with ErrInvalidSession, leaving no new session behind.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash, newHash string, ref model.PrincipalRef, expiresAt time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash=? AND expires_at > ?",
		oldHash, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrInvalidSession
	}

	userID, adminID, institutionID := refArgs(ref)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (token_hash, user_id, admin_id, institution_id, expires_at) VALUES (?,?,?,?,?)",
		newHash, userID, adminID, institutionID, expiresAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Invalidate deletes a token row by hash. Deleting a missing row is not an
// error; logout must succeed whether or not the ledger entry existed.
func (r *TokenRepo) Invalidate(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash=?", tokenHash)
	return err
}

// InvalidateAll deletes every outstanding token for one principal.
func (r *TokenRepo) InvalidateAll(ctx context.Context, ref model.PrincipalRef) error {
	var col string
	switch ref.Kind {
	case model.KindUser:
		col = "user_id"
	case model.KindAdmin:
		col = "admin_id"
	case model.KindInstitution:
		col = "institution_id"
	default:
		return nil
	}
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE "+col+"=?", ref.ID)
	return err
}

// DeleteExpired removes every token past its expiry and reports how many
// rows went away. Called periodically as a backstop; expired tokens are
// already unusable through FindValid and Rotate.
func (r *TokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
