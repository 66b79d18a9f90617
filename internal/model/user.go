package model

import "time"

// User represents a library user record as stored in the `users` table.
// Each field corresponds to a column in the database.  The json tags are
// omitted because these structs are used internally by the repository
// layer; handlers define separate response types with appropriate tags.
//
// Fields:
//  ID                 – primary key identifier of the user.
//  Email              – unique email address.
//  PasswordHash       – bcrypt hashed password.
//  Role               – "user" for direct consumers, "student" for
//                       institutional members.
//  InstitutionID      – owning institution (nullable; students only).
//  SubscriptionStatus – cached subscription status (none/active/expired).
//  IsActive           – whether the account is active.
//  CreatedAt          – timestamp of creation.
//  UpdatedAt          – timestamp of last update.
type User struct {
	ID                 uint64     // users.id
	Email              string     // users.email
	PasswordHash       string     // users.password_hash
	Role               string     // users.role
	InstitutionID      *uint64    // users.institution_id (nullable)
	SubscriptionStatus string     // users.subscription_status
	IsActive           bool       // users.is_active
	CreatedAt          time.Time  // users.created_at
	UpdatedAt          time.Time  // users.updated_at
}
