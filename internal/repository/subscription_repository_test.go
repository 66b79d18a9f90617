package repository

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/digital-library/internal/model"
)

func newMockRepo(t *testing.T) (*SubscriptionRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSubscriptionRepo(db, NewUserRepo(db), NewInstitutionRepo(db), NewPlanRepo(db)), mock
}

func planRow(id uint64, target model.Kind, price float64, days int) *sqlmock.Rows {
	return sqlmock.NewRows(strings.Split(planColumns, ",")).
		AddRow(id, "campus", string(target), price, days, nil, time.Now())
}

func userRow(id uint64, role string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(strings.Split(userColumns, ",")).
		AddRow(id, "u@example.com", "hash", role, nil, model.StatusNone, true, now, now)
}

func institutionRow(id uint64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(strings.Split(institutionColumns, ",")).
		AddRow(id, "lib@example.com", "hash", "City Library", model.StatusNone, true, now, now)
}

func assignmentRow(id uint64, userID, instID *uint64, status string) *sqlmock.Rows {
	now := time.Now()
	var u, i interface{}
	if userID != nil {
		u = *userID
	}
	if instID != nil {
		i = *instID
	}
	return sqlmock.NewRows(strings.Split(assignmentColumns, ",")).
		AddRow(id, u, i, 3, 9.99, date("2024-01-01"), date("2024-01-31"), model.PaymentManual, status, nil, now, now)
}

func TestCreateDuplicateActiveRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	uid := uint64(5)

	mock.ExpectQuery(`FROM subscription_plans WHERE id=\?`).WithArgs(2).
		WillReturnRows(planRow(2, model.KindUser, 9.99, 30))
	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs(5).
		WillReturnRows(userRow(5, model.RoleUser))
	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE user_id=\? AND status=\? AND id<>\? LIMIT 1 FOR UPDATE`).
		WithArgs(5, model.AssignmentActive, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectRollback()

	a := model.SubscriptionAssignment{UserID: &uid, PlanID: 2, PriceCharged: 9.99}
	err := repo.Create(context.Background(), &a)
	assert.ErrorIs(t, err, ErrDuplicateActiveSubscription)
	// No INSERT and no cascade ran; the existing assignment is untouched.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateActiveInstitutionCascadesToMembers(t *testing.T) {
	repo, mock := newMockRepo(t)
	iid := uint64(50)
	admin := uint64(77)

	mock.ExpectQuery(`FROM subscription_plans WHERE id=\?`).WithArgs(3).
		WillReturnRows(planRow(3, model.KindInstitution, 500, 30))
	mock.ExpectQuery(`FROM institutions WHERE id=\?`).WithArgs(50).
		WillReturnRows(institutionRow(50))
	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE institution_id=\? AND status=\? AND id<>\? LIMIT 1 FOR UPDATE`).
		WithArgs(50, model.AssignmentActive, 0).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO subscription_assignments`).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`UPDATE institutions SET subscription_status=\? WHERE id=\?`).
		WithArgs(model.StatusActive, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET subscription_status=\? WHERE institution_id=\?`).
		WithArgs(model.StatusActive, 50).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectCommit()

	a := model.SubscriptionAssignment{
		InstitutionID: &iid,
		PlanID:        3,
		PriceCharged:  500,
		StartDate:     date("2024-01-01"),
		Status:        model.AssignmentActive,
		ConfirmedBy:   &admin,
	}
	err := repo.Create(context.Background(), &a)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), a.ID)
	assert.Equal(t, date("2024-01-31"), a.ExpiryDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateActivateRechecksInvariantExcludingSelf(t *testing.T) {
	repo, mock := newMockRepo(t)
	uid := uint64(5)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM subscription_assignments WHERE id=\? LIMIT 1 FOR UPDATE`).
		WithArgs(4).
		WillReturnRows(assignmentRow(4, &uid, nil, model.AssignmentPending))
	mock.ExpectQuery(`WHERE user_id=\? AND status=\? AND id<>\? LIMIT 1 FOR UPDATE`).
		WithArgs(5, model.AssignmentActive, 4).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`UPDATE subscription_assignments SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET subscription_status=\? WHERE id=\?`).
		WithArgs(model.StatusActive, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	st := model.AssignmentActive
	admin := uint64(77)
	got, err := repo.Update(context.Background(), 4, AssignmentPatch{Status: &st, ConfirmedBy: &admin})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentActive, got.Status)
	require.NotNil(t, got.ConfirmedBy)
	assert.Equal(t, uint64(77), *got.ConfirmedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateActivateDuplicateRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	uid := uint64(5)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM subscription_assignments WHERE id=\? LIMIT 1 FOR UPDATE`).
		WithArgs(4).
		WillReturnRows(assignmentRow(4, &uid, nil, model.AssignmentPending))
	mock.ExpectQuery(`WHERE user_id=\? AND status=\? AND id<>\? LIMIT 1 FOR UPDATE`).
		WithArgs(5, model.AssignmentActive, 4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectRollback()

	st := model.AssignmentActive
	_, err := repo.Update(context.Background(), 4, AssignmentPatch{Status: &st})
	assert.ErrorIs(t, err, ErrDuplicateActiveSubscription)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDeactivateSkipsCascadeWhenRenewalRemains(t *testing.T) {
	repo, mock := newMockRepo(t)
	iid := uint64(50)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM subscription_assignments WHERE id=\? LIMIT 1 FOR UPDATE`).
		WithArgs(4).
		WillReturnRows(assignmentRow(4, nil, &iid, model.AssignmentActive))
	mock.ExpectExec(`UPDATE subscription_assignments SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`WHERE institution_id=\? AND status=\? AND id<>\? LIMIT 1 FOR UPDATE`).
		WithArgs(50, model.AssignmentActive, 4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectCommit()

	st := model.AssignmentExpired
	got, err := repo.Update(context.Background(), 4, AssignmentPatch{Status: &st})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentExpired, got.Status)
	// The confirmed renewal keeps the cached status untouched: no
	// institution or member UPDATE was expected, and none ran.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDeactivateLastActiveCascadesToMembers(t *testing.T) {
	repo, mock := newMockRepo(t)
	iid := uint64(50)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM subscription_assignments WHERE id=\? LIMIT 1 FOR UPDATE`).
		WithArgs(4).
		WillReturnRows(assignmentRow(4, nil, &iid, model.AssignmentActive))
	mock.ExpectExec(`UPDATE subscription_assignments SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`WHERE institution_id=\? AND status=\? AND id<>\? LIMIT 1 FOR UPDATE`).
		WithArgs(50, model.AssignmentActive, 4).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`UPDATE institutions SET subscription_status=\? WHERE id=\?`).
		WithArgs(model.StatusExpired, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET subscription_status=\? WHERE institution_id=\?`).
		WithArgs(model.StatusExpired, 50).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectCommit()

	st := model.AssignmentExpired
	_, err := repo.Update(context.Background(), 4, AssignmentPatch{Status: &st})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMemberCascadeFlag(t *testing.T) {
	iid := uint64(50)

	expectDelete := func(mock sqlmock.Sqlmock) {
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM subscription_assignments WHERE id=\? LIMIT 1 FOR UPDATE`).
			WithArgs(4).
			WillReturnRows(assignmentRow(4, nil, &iid, model.AssignmentActive))
		mock.ExpectExec(`DELETE FROM subscription_assignments WHERE id=\?`).
			WithArgs(4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`WHERE institution_id=\? AND status=\? AND id<>\? LIMIT 1 FOR UPDATE`).
			WithArgs(50, model.AssignmentActive, 0).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`UPDATE institutions SET subscription_status=\? WHERE id=\?`).
			WithArgs(model.StatusNone, 50).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	t.Run("default resets only the institution", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		expectDelete(mock)
		mock.ExpectCommit()

		require.NoError(t, repo.Delete(context.Background(), 4))
		// No member UPDATE expected: students keep their cached value.
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("flag extends the reset to members", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		repo.CascadeMembersOnDelete = true
		expectDelete(mock)
		mock.ExpectExec(`UPDATE users SET subscription_status=\? WHERE institution_id=\?`).
			WithArgs(model.StatusNone, 50).
			WillReturnResult(sqlmock.NewResult(0, 12))
		mock.ExpectCommit()

		require.NoError(t, repo.Delete(context.Background(), 4))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestActiveForUserIgnoresLapsedWindow(t *testing.T) {
	repo, mock := newMockRepo(t)

	// The authoritative lookup requires an unexpired window, so a row
	// whose expiry date has passed no longer matches.
	mock.ExpectQuery(`a\.expiry_date > \?`).
		WithArgs(5, model.AssignmentActive, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ActiveForUser(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveForInstitutionHit(t *testing.T) {
	repo, mock := newMockRepo(t)
	exp := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	mock.ExpectQuery(`a\.expiry_date > \?`).
		WithArgs(50, model.AssignmentActive, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan_id", "name", "expiry_date"}).
			AddRow(9, 3, "campus", exp))

	sub, err := repo.ActiveForInstitution(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), sub.AssignmentID)
	assert.Equal(t, "campus", sub.PlanName)
	assert.Equal(t, exp, sub.ExpiryDate)
}
