package model

import "time"

// Institution represents a member institution (a university, school or
// library consortium) as stored in the `institutions` table.  Institutions
// authenticate like any other principal and purchase institution-kind
// plans that cover their student members.
//
// Fields:
//  ID                 – primary key identifier.
//  Email              – unique login email.
//  PasswordHash       – bcrypt hashed password.
//  Name               – display name of the institution.
//  SubscriptionStatus – cached subscription status (none/active/expired).
//  IsActive           – whether the account is active.
//  CreatedAt          – timestamp of creation.
//  UpdatedAt          – timestamp of last update.
type Institution struct {
	ID                 uint64    // institutions.id
	Email              string    // institutions.email
	PasswordHash       string    // institutions.password_hash
	Name               string    // institutions.name
	SubscriptionStatus string    // institutions.subscription_status
	IsActive           bool      // institutions.is_active
	CreatedAt          time.Time // institutions.created_at
	UpdatedAt          time.Time // institutions.updated_at
}
