package repository

import (
	"time"

	"github.com/iliyamo/digital-library/internal/model"
)

// assignmentExpiry computes the end of a subscription window at day
// granularity: start date plus the plan duration in days.
func assignmentExpiry(start time.Time, durationDays int) time.Time {
	return start.AddDate(0, 0, durationDays)
}

// checkPlanTarget enforces that a plan can be bought by the referenced
// principal: user plans only for users with the consumer role, institution
// plans only for institutions. Students are covered by their institution's
// plan and may not purchase user plans themselves.
func checkPlanTarget(plan model.SubscriptionPlan, ref model.PrincipalRef, userRole string) error {
	switch plan.TargetKind {
	case model.KindUser:
		if ref.Kind != model.KindUser || userRole != model.RoleUser {
			return ErrPlanMismatch
		}
	case model.KindInstitution:
		if ref.Kind != model.KindInstitution {
			return ErrPlanMismatch
		}
	default:
		return ErrPlanMismatch
	}
	return nil
}

// checkStatusChange guards the assignment state machine. The only
// forbidden edge is reactivating an expired assignment; renewal always
// goes through a new record.
func checkStatusChange(from, to string) error {
	if from == model.AssignmentExpired && to == model.AssignmentActive {
		return ErrExpiredAssignment
	}
	return nil
}

// cachedStatusFor maps an assignment status onto the cached status written
// to the owning principal (and, for institutions, its members): active
// stays active, expired stays expired, and pending means the principal has
// no usable subscription at all.
func cachedStatusFor(assignmentStatus string) string {
	switch assignmentStatus {
	case model.AssignmentActive:
		return model.StatusActive
	case model.AssignmentExpired:
		return model.StatusExpired
	default:
		return model.StatusNone
	}
}

// cascade describes the cached-status write a ledger mutation requires:
// whether to write at all, which status, and whether an institution's
// member users are included.
type cascade struct {
	run            bool
	status         string
	includeMembers bool
}

// cascadeOnStatusChange decides the cascade after an assignment moves from
// prev to next. Entering active always cascades, members included. Leaving
// active cascades the mapped status only when no other active assignment
// remains for the principal (otherActive); a confirmed renewal keeps the
// cached value untouched. Transitions between pending and expired never
// touch cached state.
func cascadeOnStatusChange(prev, next string, otherActive bool) cascade {
	switch {
	case next == model.AssignmentActive:
		return cascade{run: true, status: model.StatusActive, includeMembers: true}
	case prev == model.AssignmentActive:
		if otherActive {
			return cascade{}
		}
		return cascade{run: true, status: cachedStatusFor(next), includeMembers: true}
	default:
		return cascade{}
	}
}

// cascadeOnDelete decides the cascade after an assignment row is removed.
// With no remaining active assignment the principal's own cached status is
// reset to none; member users are included only when membersOnDelete is on
// and the deleted assignment was the active one.
func cascadeOnDelete(deletedStatus string, otherActive, membersOnDelete bool) cascade {
	if otherActive {
		return cascade{}
	}
	return cascade{
		run:            true,
		status:         model.StatusNone,
		includeMembers: membersOnDelete && deletedStatus == model.AssignmentActive,
	}
}
