package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/digital-library/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAssignmentExpiry(t *testing.T) {
	tests := []struct {
		name  string
		start string
		days  int
		want  string
	}{
		{"thirty days", "2024-01-01", 30, "2024-01-31"},
		{"year", "2024-03-15", 365, "2025-03-15"},
		{"month boundary", "2024-01-31", 1, "2024-02-01"},
		{"leap february", "2024-02-28", 2, "2024-03-01"},
		{"zero days", "2024-06-10", 0, "2024-06-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, date(tt.want), assignmentExpiry(date(tt.start), tt.days))
		})
	}
}

func TestCheckPlanTarget(t *testing.T) {
	userPlan := model.SubscriptionPlan{TargetKind: model.KindUser}
	instPlan := model.SubscriptionPlan{TargetKind: model.KindInstitution}
	badPlan := model.SubscriptionPlan{TargetKind: model.KindAdmin}

	userRef := model.PrincipalRef{Kind: model.KindUser, ID: 1}
	instRef := model.PrincipalRef{Kind: model.KindInstitution, ID: 2}

	tests := []struct {
		name    string
		plan    model.SubscriptionPlan
		ref     model.PrincipalRef
		role    string
		wantErr error
	}{
		{"user plan for consumer", userPlan, userRef, model.RoleUser, nil},
		{"user plan for student", userPlan, userRef, model.RoleStudent, ErrPlanMismatch},
		{"user plan for institution", userPlan, instRef, "", ErrPlanMismatch},
		{"institution plan for institution", instPlan, instRef, "", nil},
		{"institution plan for user", instPlan, userRef, model.RoleUser, ErrPlanMismatch},
		{"plan with unknown target", badPlan, userRef, model.RoleUser, ErrPlanMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPlanTarget(tt.plan, tt.ref, tt.role)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckStatusChange(t *testing.T) {
	assert.ErrorIs(t, checkStatusChange(model.AssignmentExpired, model.AssignmentActive), ErrExpiredAssignment)

	allowed := [][2]string{
		{model.AssignmentPending, model.AssignmentActive},
		{model.AssignmentPending, model.AssignmentExpired},
		{model.AssignmentActive, model.AssignmentExpired},
		{model.AssignmentActive, model.AssignmentPending},
		{model.AssignmentExpired, model.AssignmentPending},
		{model.AssignmentActive, model.AssignmentActive},
	}
	for _, edge := range allowed {
		assert.NoError(t, checkStatusChange(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestCascadeOnStatusChange(t *testing.T) {
	tests := []struct {
		name        string
		prev, next  string
		otherActive bool
		want        cascade
	}{
		{"pending to active", model.AssignmentPending, model.AssignmentActive, false,
			cascade{run: true, status: model.StatusActive, includeMembers: true}},
		{"active to expired, last active", model.AssignmentActive, model.AssignmentExpired, false,
			cascade{run: true, status: model.StatusExpired, includeMembers: true}},
		{"active to pending, last active", model.AssignmentActive, model.AssignmentPending, false,
			cascade{run: true, status: model.StatusNone, includeMembers: true}},
		{"active to expired, renewal already active", model.AssignmentActive, model.AssignmentExpired, true,
			cascade{}},
		{"pending to expired", model.AssignmentPending, model.AssignmentExpired, false, cascade{}},
		{"expired to pending", model.AssignmentExpired, model.AssignmentPending, false, cascade{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cascadeOnStatusChange(tt.prev, tt.next, tt.otherActive))
		})
	}
}

func TestCascadeOnDelete(t *testing.T) {
	tests := []struct {
		name            string
		deletedStatus   string
		otherActive     bool
		membersOnDelete bool
		want            cascade
	}{
		{"active deleted, flag off", model.AssignmentActive, false, false,
			cascade{run: true, status: model.StatusNone}},
		{"active deleted, flag on", model.AssignmentActive, false, true,
			cascade{run: true, status: model.StatusNone, includeMembers: true}},
		{"pending deleted, flag on", model.AssignmentPending, false, true,
			cascade{run: true, status: model.StatusNone}},
		{"another active remains", model.AssignmentActive, true, true, cascade{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cascadeOnDelete(tt.deletedStatus, tt.otherActive, tt.membersOnDelete))
		})
	}
}

func TestCachedStatusFor(t *testing.T) {
	assert.Equal(t, model.StatusActive, cachedStatusFor(model.AssignmentActive))
	assert.Equal(t, model.StatusExpired, cachedStatusFor(model.AssignmentExpired))
	assert.Equal(t, model.StatusNone, cachedStatusFor(model.AssignmentPending))
	assert.Equal(t, model.StatusNone, cachedStatusFor(""))
}
