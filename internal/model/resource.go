package model

import "time"

// Access tiers for catalog resources.  Free resources download without a
// session; premium resources require an active subscription.
const (
	TierFree    = "free"
	TierPremium = "premium"
)

// Resource models the subset of the `resources` table the entitlement
// core needs: the access tier and the stored download link.  The rest of
// the catalog metadata is managed elsewhere.
type Resource struct {
	ID          uint64    // resources.id
	Title       string    // resources.title
	Tier        string    // resources.tier (free/premium)
	DownloadURL string    // resources.download_url
	CreatedAt   time.Time // resources.created_at
}
