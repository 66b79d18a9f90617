// Package entitlement decides whether a principal may download a given
// resource. The decision is three-valued: allow, deny pending
// authentication, or deny pending a subscription. The subscription ledger
// is the authority for premium gating; cached status fields on principals
// are never consulted here.
package entitlement

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/digital-library/internal/model"
	"github.com/iliyamo/digital-library/internal/queue"
	"github.com/iliyamo/digital-library/internal/repository"
)

// DenyReason explains a negative decision.
type DenyReason string

const (
	// DenyAuthRequired: premium resource, no authenticated principal.
	DenyAuthRequired DenyReason = "auth_required"
	// DenySubscriptionRequired: authenticated, but no active assignment
	// covers the principal (directly or through its institution).
	DenySubscriptionRequired DenyReason = "subscription_required"
	// DenyUnsupported: the principal kind has no download flow at all
	// (institutions and admins do not consume content themselves).
	DenyUnsupported DenyReason = "unsupported"
)

// Decision is the outcome of a resolve call. Role is filled on denials so
// callers can word the message for the requester ("you" vs "your
// institution"); Subscription is filled on allows for display.
type Decision struct {
	Allow        bool
	Reason       DenyReason
	Role         string
	Subscription *model.ActiveSubscription
}

// SubscriptionSource answers the authoritative active-assignment lookups.
// Implemented by repository.SubscriptionRepo.
type SubscriptionSource interface {
	ActiveForUser(ctx context.Context, userID uint64) (*model.ActiveSubscription, error)
	ActiveForInstitution(ctx context.Context, institutionID uint64) (*model.ActiveSubscription, error)
}

// UsagePublisher emits a usage event for every allowed download.
type UsagePublisher interface {
	PublishResourceDownloaded(ctx context.Context, ev queue.ResourceDownloadedEvent) error
}

// Resolver gates resource downloads on subscription state.
type Resolver struct {
	subs  SubscriptionSource
	usage UsagePublisher // may be nil when no broker is configured
}

func NewResolver(subs SubscriptionSource, usage UsagePublisher) *Resolver {
	return &Resolver{subs: subs, usage: usage}
}

// Resolve decides access for a resource and an optional principal. Free
// resources are always allowed. Premium resources require a principal with
// an active assignment: direct consumers on their own user row, students
// on their institution's row. Usage logging never blocks or reverses an
// allow.
func (r *Resolver) Resolve(ctx context.Context, res model.Resource, p *model.Principal) (Decision, error) {
	if res.Tier != model.TierPremium {
		d := Decision{Allow: true}
		if p != nil {
			d.Role = p.Role()
			r.logUsage(ctx, res, *p, nil)
		}
		return d, nil
	}

	if p == nil {
		return Decision{Reason: DenyAuthRequired}, nil
	}
	role := p.Role()

	var (
		sub *model.ActiveSubscription
		err error
	)
	switch {
	case p.Kind == model.KindUser && role == model.RoleUser:
		sub, err = r.subs.ActiveForUser(ctx, p.ID())
	case p.Kind == model.KindUser && role == model.RoleStudent:
		if p.User == nil || p.User.InstitutionID == nil {
			return Decision{Reason: DenySubscriptionRequired, Role: role}, nil
		}
		sub, err = r.subs.ActiveForInstitution(ctx, *p.User.InstitutionID)
	default:
		return Decision{Reason: DenyUnsupported, Role: role}, nil
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Decision{Reason: DenySubscriptionRequired, Role: role}, nil
		}
		return Decision{}, err
	}

	d := Decision{Allow: true, Role: role, Subscription: sub}
	r.logUsage(ctx, res, *p, sub)
	return d, nil
}

// logUsage publishes a download event. Failures are logged and swallowed;
// usage accounting must never cost a legitimate download.
func (r *Resolver) logUsage(ctx context.Context, res model.Resource, p model.Principal, sub *model.ActiveSubscription) {
	if r.usage == nil {
		return
	}
	ev := queue.ResourceDownloadedEvent{
		ResourceID:    res.ID,
		ResourceTitle: res.Title,
		Tier:          res.Tier,
		PrincipalKind: string(p.Kind),
		PrincipalID:   p.ID(),
		Role:          p.Role(),
		DownloadedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if sub != nil {
		ev.PlanName = sub.PlanName
	}
	if err := r.usage.PublishResourceDownloaded(ctx, ev); err != nil {
		log.Printf("entitlement: publish usage event failed: %v", err)
	}
}
