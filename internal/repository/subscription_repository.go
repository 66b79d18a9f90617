package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/digital-library/internal/model"
)

// SubscriptionRepo owns the subscription_assignments table and the
// single-active-subscription invariant: for a given principal at most one
// assignment is in status active at any time. Every write runs the
// invariant check, the record write and the cached-status cascade inside
// one transaction, so concurrent writers and partial failures cannot leave
// two actives or a half-applied cascade behind.
type SubscriptionRepo struct {
	DB           *sql.DB
	Users        *UserRepo
	Institutions *InstitutionRepo
	Plans        *PlanRepo

	// CascadeMembersOnDelete controls whether deleting an institution's
	// active assignment also resets its member users' cached status.
	// Explicit status updates always cascade to members; deletes
	// historically reset only the institution's own cached field, and the
	// admin console depends on that, so the default stays false.
	CascadeMembersOnDelete bool
}

func NewSubscriptionRepo(db *sql.DB, users *UserRepo, institutions *InstitutionRepo, plans *PlanRepo) *SubscriptionRepo {
	return &SubscriptionRepo{DB: db, Users: users, Institutions: institutions, Plans: plans}
}

// AssignmentPatch carries the fields an admin update may change. Nil
// fields are left untouched. Status changes drive the cascade logic.
type AssignmentPatch struct {
	Status       *string
	StartDate    *time.Time
	PriceCharged *float64
	ConfirmedBy  *uint64
}

var errAssignmentRef = errors.New("assignment must reference exactly one principal")

// Create validates the plan against the purchasing principal, checks the
// single-active invariant and inserts the assignment, cascading cached
// status when it lands directly in active. Start date defaults to now and
// the expiry is always start plus the plan duration in days. The created
// ID, expiry and defaulted fields are written back onto a.
func (r *SubscriptionRepo) Create(ctx context.Context, a *model.SubscriptionAssignment) error {
	if (a.UserID == nil) == (a.InstitutionID == nil) {
		return errAssignmentRef
	}
	ref := a.PrincipalRef()

	plan, err := r.Plans.GetByID(ctx, a.PlanID)
	if err != nil {
		return err
	}

	// Resolve the principal up front: existence check plus the role needed
	// for user-plan validation.
	var userRole string
	switch ref.Kind {
	case model.KindUser:
		u, err := r.Users.GetByID(ctx, ref.ID)
		if err != nil {
			return err
		}
		userRole = u.Role
	case model.KindInstitution:
		if _, err := r.Institutions.GetByID(ctx, ref.ID); err != nil {
			return err
		}
	}
	if err := checkPlanTarget(plan, ref, userRole); err != nil {
		return err
	}

	if a.Status == "" {
		a.Status = model.AssignmentPending
	}
	if a.PaymentMethod == "" {
		a.PaymentMethod = model.PaymentManual
	}
	if a.StartDate.IsZero() {
		a.StartDate = time.Now().UTC()
	}
	a.ExpiryDate = assignmentExpiry(a.StartDate, plan.DurationDays)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Re-check inside the transaction so two concurrent creates cannot
	// both pass the invariant.
	active, err := r.hasActiveTx(ctx, tx, ref, 0)
	if err != nil {
		return err
	}
	if active {
		return ErrDuplicateActiveSubscription
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO subscription_assignments
		 (user_id, institution_id, plan_id, price_charged, start_date, expiry_date, payment_method, status, confirmed_by)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		a.UserID, a.InstitutionID, a.PlanID, a.PriceCharged,
		a.StartDate, a.ExpiryDate, a.PaymentMethod, a.Status, a.ConfirmedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)

	if a.Status == model.AssignmentActive {
		if err := r.cascadeTx(ctx, tx, ref, model.StatusActive, true); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Update applies a patch to an assignment. A change into active re-checks
// the invariant excluding the row itself; a change out of active cascades
// to the principal (and, for an institution, its members) only when no
// other active assignment remains.
func (r *SubscriptionRepo) Update(ctx context.Context, id uint64, patch AssignmentPatch) (model.SubscriptionAssignment, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.SubscriptionAssignment{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cur, err := r.getTx(ctx, tx, id, true)
	if err != nil {
		return model.SubscriptionAssignment{}, err
	}
	ref := cur.PrincipalRef()

	next := cur
	if patch.PriceCharged != nil {
		next.PriceCharged = *patch.PriceCharged
	}
	if patch.ConfirmedBy != nil {
		next.ConfirmedBy = patch.ConfirmedBy
	}
	if patch.StartDate != nil {
		plan, err := r.Plans.GetByID(ctx, cur.PlanID)
		if err != nil {
			return model.SubscriptionAssignment{}, err
		}
		next.StartDate = *patch.StartDate
		next.ExpiryDate = assignmentExpiry(next.StartDate, plan.DurationDays)
	}

	statusChanged := false
	if patch.Status != nil && *patch.Status != cur.Status {
		if err := checkStatusChange(cur.Status, *patch.Status); err != nil {
			return model.SubscriptionAssignment{}, err
		}
		if *patch.Status == model.AssignmentActive {
			active, err := r.hasActiveTx(ctx, tx, ref, id)
			if err != nil {
				return model.SubscriptionAssignment{}, err
			}
			if active {
				return model.SubscriptionAssignment{}, ErrDuplicateActiveSubscription
			}
		}
		next.Status = *patch.Status
		statusChanged = true
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE subscription_assignments
		 SET status=?, start_date=?, expiry_date=?, price_charged=?, confirmed_by=?
		 WHERE id=?`,
		next.Status, next.StartDate, next.ExpiryDate, next.PriceCharged, next.ConfirmedBy, id); err != nil {
		return model.SubscriptionAssignment{}, err
	}

	if statusChanged {
		otherActive := false
		if cur.Status == model.AssignmentActive && next.Status != model.AssignmentActive {
			otherActive, err = r.hasActiveTx(ctx, tx, ref, id)
			if err != nil {
				return model.SubscriptionAssignment{}, err
			}
		}
		if cs := cascadeOnStatusChange(cur.Status, next.Status, otherActive); cs.run {
			if err := r.cascadeTx(ctx, tx, ref, cs.status, cs.includeMembers); err != nil {
				return model.SubscriptionAssignment{}, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.SubscriptionAssignment{}, err
	}
	committed = true
	return next, nil
}

// Delete removes an assignment. When the principal keeps no other active
// assignment its own cached status is reset to none; member users of an
// institution keep their cached value unless CascadeMembersOnDelete is on.
func (r *SubscriptionRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cur, err := r.getTx(ctx, tx, id, true)
	if err != nil {
		return err
	}
	ref := cur.PrincipalRef()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM subscription_assignments WHERE id=?", id); err != nil {
		return err
	}

	otherActive, err := r.hasActiveTx(ctx, tx, ref, 0)
	if err != nil {
		return err
	}
	if cs := cascadeOnDelete(cur.Status, otherActive, r.CascadeMembersOnDelete); cs.run {
		if err := r.cascadeTx(ctx, tx, ref, cs.status, cs.includeMembers); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID fetches an assignment by id.
func (r *SubscriptionRepo) GetByID(ctx context.Context, id uint64) (model.SubscriptionAssignment, error) {
	return scanAssignment(r.DB.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM subscription_assignments WHERE id=? LIMIT 1", id))
}

// List returns assignments ordered newest first, for the admin console.
func (r *SubscriptionRepo) List(ctx context.Context, limit, offset int) ([]model.SubscriptionAssignment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+assignmentColumns+" FROM subscription_assignments ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubscriptionAssignment
	for rows.Next() {
		a, err := scanAssignmentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ActiveForUser returns the user's active assignment joined with its plan,
// or ErrNotFound. This is the authoritative entitlement check for direct
// consumers; the cached status on the user row is never consulted.
func (r *SubscriptionRepo) ActiveForUser(ctx context.Context, userID uint64) (*model.ActiveSubscription, error) {
	return r.activeFor(ctx, "user_id", userID)
}

// ActiveForInstitution returns the institution's active assignment joined
// with its plan, or ErrNotFound. Student entitlement is gated on this, not
// on the student's own rows.
func (r *SubscriptionRepo) ActiveForInstitution(ctx context.Context, institutionID uint64) (*model.ActiveSubscription, error) {
	return r.activeFor(ctx, "institution_id", institutionID)
}

// activeFor requires both the active status and an unexpired window, so an
// assignment past its expiry date stops granting access even before an
// admin flips its status.
func (r *SubscriptionRepo) activeFor(ctx context.Context, col string, id uint64) (*model.ActiveSubscription, error) {
	var s model.ActiveSubscription
	err := r.DB.QueryRowContext(ctx,
		`SELECT a.id, a.plan_id, p.name, a.expiry_date
		 FROM subscription_assignments a
		 JOIN subscription_plans p ON p.id = a.plan_id
		 WHERE a.`+col+`=? AND a.status=? AND a.expiry_date > ? LIMIT 1`,
		id, model.AssignmentActive, time.Now().UTC()).Scan(&s.AssignmentID, &s.PlanID, &s.PlanName, &s.ExpiryDate)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ----- internals -----

const assignmentColumns = "id,user_id,institution_id,plan_id,price_charged,start_date,expiry_date,payment_method,status,confirmed_by,created_at,updated_at"

// hasActiveTx reports whether the principal has an active assignment other
// than excludeID, locking any matching row for the rest of the
// transaction. Pass excludeID 0 to consider every row.
func (r *SubscriptionRepo) hasActiveTx(ctx context.Context, tx *sql.Tx, ref model.PrincipalRef, excludeID uint64) (bool, error) {
	var col string
	switch ref.Kind {
	case model.KindUser:
		col = "user_id"
	case model.KindInstitution:
		col = "institution_id"
	default:
		return false, errAssignmentRef
	}
	var id uint64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM subscription_assignments WHERE "+col+"=? AND status=? AND id<>? LIMIT 1 FOR UPDATE",
		ref.ID, model.AssignmentActive, excludeID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// cascadeTx writes the cached status onto the owning principal and, when
// includeMembers is set for an institution, onto every member user.
func (r *SubscriptionRepo) cascadeTx(ctx context.Context, tx *sql.Tx, ref model.PrincipalRef, cached string, includeMembers bool) error {
	switch ref.Kind {
	case model.KindUser:
		return r.Users.SetSubscriptionStatusTx(ctx, tx, ref.ID, cached)
	case model.KindInstitution:
		if err := r.Institutions.SetSubscriptionStatusTx(ctx, tx, ref.ID, cached); err != nil {
			return err
		}
		if includeMembers {
			return r.Users.SetStatusByInstitutionTx(ctx, tx, ref.ID, cached)
		}
		return nil
	default:
		return errAssignmentRef
	}
}

func (r *SubscriptionRepo) getTx(ctx context.Context, tx *sql.Tx, id uint64, forUpdate bool) (model.SubscriptionAssignment, error) {
	q := "SELECT " + assignmentColumns + " FROM subscription_assignments WHERE id=? LIMIT 1"
	if forUpdate {
		q += " FOR UPDATE"
	}
	return scanAssignment(tx.QueryRowContext(ctx, q, id))
}

func scanAssignment(row *sql.Row) (model.SubscriptionAssignment, error) {
	var a model.SubscriptionAssignment
	var userID, instID, confirmedBy sql.NullInt64
	err := row.Scan(&a.ID, &userID, &instID, &a.PlanID, &a.PriceCharged,
		&a.StartDate, &a.ExpiryDate, &a.PaymentMethod, &a.Status,
		&confirmedBy, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.SubscriptionAssignment{}, ErrNotFound
	}
	if err != nil {
		return model.SubscriptionAssignment{}, err
	}
	applyNullableRefs(&a, userID, instID, confirmedBy)
	return a, nil
}

func scanAssignmentRows(rows *sql.Rows) (model.SubscriptionAssignment, error) {
	var a model.SubscriptionAssignment
	var userID, instID, confirmedBy sql.NullInt64
	err := rows.Scan(&a.ID, &userID, &instID, &a.PlanID, &a.PriceCharged,
		&a.StartDate, &a.ExpiryDate, &a.PaymentMethod, &a.Status,
		&confirmedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.SubscriptionAssignment{}, err
	}
	applyNullableRefs(&a, userID, instID, confirmedBy)
	return a, nil
}

func applyNullableRefs(a *model.SubscriptionAssignment, userID, instID, confirmedBy sql.NullInt64) {
	if userID.Valid {
		v := uint64(userID.Int64)
		a.UserID = &v
	}
	if instID.Valid {
		v := uint64(instID.Int64)
		a.InstitutionID = &v
	}
	if confirmedBy.Valid {
		v := uint64(confirmedBy.Int64)
		a.ConfirmedBy = &v
	}
}
