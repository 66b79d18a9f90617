package model

import "time"

// Assignment status values.  An assignment is created pending (awaiting
// payment confirmation) or directly active, and eventually expires.  An
// expired assignment is never reactivated; renewing requires a new record.
const (
	AssignmentPending = "pending"
	AssignmentActive  = "active"
	AssignmentExpired = "expired"
)

// Payment methods recorded on an assignment.
const (
	PaymentManual = "manual"
	PaymentAPI    = "api"
)

// SubscriptionAssignment models a row in the `subscription_assignments`
// table: one plan purchase or grant tied to exactly one principal.  Either
// UserID or InstitutionID is set, never both.  ExpiryDate is always
// StartDate plus the plan duration in days.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – owning user (nullable).
//  InstitutionID – owning institution (nullable).
//  PlanID        – purchased plan.
//  PriceCharged  – price actually charged (may differ from list price).
//  StartDate     – first day of the subscription window.
//  ExpiryDate    – computed end of the window.
//  PaymentMethod – "manual" or "api".
//  Status        – pending/active/expired.
//  ConfirmedBy   – admin who confirmed the payment (nullable).
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type SubscriptionAssignment struct {
	ID            uint64    // subscription_assignments.id
	UserID        *uint64   // subscription_assignments.user_id (nullable)
	InstitutionID *uint64   // subscription_assignments.institution_id (nullable)
	PlanID        uint64    // subscription_assignments.plan_id
	PriceCharged  float64   // subscription_assignments.price_charged
	StartDate     time.Time // subscription_assignments.start_date
	ExpiryDate    time.Time // subscription_assignments.expiry_date
	PaymentMethod string    // subscription_assignments.payment_method
	Status        string    // subscription_assignments.status
	ConfirmedBy   *uint64   // subscription_assignments.confirmed_by (nullable)
	CreatedAt     time.Time // subscription_assignments.created_at
	UpdatedAt     time.Time // subscription_assignments.updated_at
}

// PrincipalRef returns the (kind, id) reference of the owning principal.
// The zero PrincipalRef is returned when neither foreign key is set.
func (a SubscriptionAssignment) PrincipalRef() PrincipalRef {
	if a.UserID != nil {
		return PrincipalRef{Kind: KindUser, ID: *a.UserID}
	}
	if a.InstitutionID != nil {
		return PrincipalRef{Kind: KindInstitution, ID: *a.InstitutionID}
	}
	return PrincipalRef{}
}

// ActiveSubscription is the display summary returned alongside an ALLOW
// entitlement decision and by the admin active-subscription lookups.
type ActiveSubscription struct {
	AssignmentID uint64    `json:"assignment_id"`
	PlanID       uint64    `json:"plan_id"`
	PlanName     string    `json:"plan_name"`
	ExpiryDate   time.Time `json:"expiry_date"`
}
