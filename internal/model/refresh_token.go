package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Each token
// belongs to exactly one principal: of the three foreign keys only the one
// matching the principal's kind is set.  The plain token value is never
// stored; only its SHA-256 hash.  Rows are deleted on rotation, logout or
// expiry sweep, so presence of a non-expired row is what makes a token
// valid.
//
// Fields:
//  ID            – primary key identifier.
//  TokenHash     – SHA-256 hex digest of the token value.
//  UserID        – owning user (nullable).
//  AdminID       – owning admin (nullable).
//  InstitutionID – owning institution (nullable).
//  ExpiresAt     – expiration timestamp of the token.
//  CreatedAt     – timestamp of creation.
type RefreshToken struct {
	ID            uint64    // refresh_tokens.id
	TokenHash     string    // refresh_tokens.token_hash
	UserID        *uint64   // refresh_tokens.user_id (nullable)
	AdminID       *uint64   // refresh_tokens.admin_id (nullable)
	InstitutionID *uint64   // refresh_tokens.institution_id (nullable)
	ExpiresAt     time.Time // refresh_tokens.expires_at
	CreatedAt     time.Time // refresh_tokens.created_at
}

// Ref returns the owning principal reference, reporting ok=false when the
// row does not reference exactly one principal.
func (t RefreshToken) Ref() (PrincipalRef, bool) {
	refs := 0
	var out PrincipalRef
	if t.UserID != nil {
		refs++
		out = PrincipalRef{Kind: KindUser, ID: *t.UserID}
	}
	if t.AdminID != nil {
		refs++
		out = PrincipalRef{Kind: KindAdmin, ID: *t.AdminID}
	}
	if t.InstitutionID != nil {
		refs++
		out = PrincipalRef{Kind: KindInstitution, ID: *t.InstitutionID}
	}
	if refs != 1 {
		return PrincipalRef{}, false
	}
	return out, true
}
