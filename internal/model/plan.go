package model

import "time"

// SubscriptionPlan models a row in the `subscription_plans` table.  Plans
// are immutable reference data managed by the admin console; the
// entitlement core only ever reads them.  TargetKind restricts who may
// purchase the plan: "user" plans are for direct consumers, "institution"
// plans cover an institution and all of its student members.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name (e.g. "Annual Individual").
//  TargetKind   – kind of principal the plan targets (user/institution).
//  Price        – list price of the plan.
//  DurationDays – length of the subscription window in days.
//  Features     – marketing feature list, stored as a JSON array.
//  CreatedAt    – timestamp of creation.
type SubscriptionPlan struct {
	ID           uint64    // subscription_plans.id
	Name         string    // subscription_plans.name
	TargetKind   Kind      // subscription_plans.target_kind
	Price        float64   // subscription_plans.price
	DurationDays int       // subscription_plans.duration_days
	Features     []string  // subscription_plans.features (JSON)
	CreatedAt    time.Time // subscription_plans.created_at
}
