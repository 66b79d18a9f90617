package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/digital-library/internal/middleware"
	"github.com/iliyamo/digital-library/internal/model"
	"github.com/iliyamo/digital-library/internal/repository"
)

const dateLayout = "2006-01-02"

// SubscriptionStore is the slice of the subscription repository the admin
// endpoints need.
type SubscriptionStore interface {
	Create(ctx context.Context, a *model.SubscriptionAssignment) error
	Update(ctx context.Context, id uint64, patch repository.AssignmentPatch) (model.SubscriptionAssignment, error)
	Delete(ctx context.Context, id uint64) error
	GetByID(ctx context.Context, id uint64) (model.SubscriptionAssignment, error)
	List(ctx context.Context, limit, offset int) ([]model.SubscriptionAssignment, error)
	ActiveForUser(ctx context.Context, userID uint64) (*model.ActiveSubscription, error)
	ActiveForInstitution(ctx context.Context, institutionID uint64) (*model.ActiveSubscription, error)
}

// PlanSource lists and loads subscription plans.
type PlanSource interface {
	GetByID(ctx context.Context, id uint64) (model.SubscriptionPlan, error)
	List(ctx context.Context) ([]model.SubscriptionPlan, error)
}

// AdminSubscriptionHandler exposes the subscription ledger to the admin
// console. All routes run behind Authenticate + RequireKind(admin).
type AdminSubscriptionHandler struct {
	Subs     SubscriptionStore
	Plans    PlanSource
	validate *validator.Validate
}

func NewAdminSubscriptionHandler(subs SubscriptionStore, plans PlanSource) *AdminSubscriptionHandler {
	return &AdminSubscriptionHandler{Subs: subs, Plans: plans, validate: validator.New()}
}

// ----- DTOs -----

type createAssignmentReq struct {
	UserID        *uint64  `json:"user_id"`
	InstitutionID *uint64  `json:"institution_id"`
	PlanID        uint64   `json:"plan_id" validate:"required"`
	PriceCharged  *float64 `json:"price_charged" validate:"omitempty,gte=0"`
	StartDate     string   `json:"start_date"`
	PaymentMethod string   `json:"payment_method" validate:"omitempty,oneof=manual api"`
	Status        string   `json:"status" validate:"omitempty,oneof=pending active"`
}

type updateAssignmentReq struct {
	Status       *string  `json:"status" validate:"omitempty,oneof=pending active expired"`
	StartDate    *string  `json:"start_date"`
	PriceCharged *float64 `json:"price_charged" validate:"omitempty,gte=0"`
}

type assignmentResp struct {
	ID            uint64  `json:"id"`
	UserID        *uint64 `json:"user_id,omitempty"`
	InstitutionID *uint64 `json:"institution_id,omitempty"`
	PlanID        uint64  `json:"plan_id"`
	PriceCharged  float64 `json:"price_charged"`
	StartDate     string  `json:"start_date"`
	ExpiryDate    string  `json:"expiry_date"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
	ConfirmedBy   *uint64 `json:"confirmed_by,omitempty"`
}

func toAssignmentResp(a model.SubscriptionAssignment) assignmentResp {
	return assignmentResp{
		ID:            a.ID,
		UserID:        a.UserID,
		InstitutionID: a.InstitutionID,
		PlanID:        a.PlanID,
		PriceCharged:  a.PriceCharged,
		StartDate:     a.StartDate.Format(dateLayout),
		ExpiryDate:    a.ExpiryDate.Format(dateLayout),
		PaymentMethod: a.PaymentMethod,
		Status:        a.Status,
		ConfirmedBy:   a.ConfirmedBy,
	}
}

type planResp struct {
	ID           uint64   `json:"id"`
	Name         string   `json:"name"`
	TargetKind   string   `json:"target_kind"`
	Price        float64  `json:"price"`
	DurationDays int      `json:"duration_days"`
	Features     []string `json:"features"`
}

// ----- endpoints -----

// Create records a new subscription assignment. Price defaults to the
// plan price, start date to today, payment method to manual and status to
// pending. Creating directly as active stamps the calling admin as
// confirmer.
func (h *AdminSubscriptionHandler) Create(c echo.Context) error {
	var req createAssignmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "details": err.Error()})
	}
	if (req.UserID == nil) == (req.InstitutionID == nil) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "exactly one of user_id and institution_id is required"})
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if req.StartDate != "" {
		var err error
		start, err = time.Parse(dateLayout, req.StartDate)
		if err != nil {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid start_date, want YYYY-MM-DD"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	price := 0.0
	if req.PriceCharged != nil {
		price = *req.PriceCharged
	} else {
		plan, err := h.Plans.GetByID(ctx, req.PlanID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "plan not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		price = plan.Price
	}

	a := model.SubscriptionAssignment{
		UserID:        req.UserID,
		InstitutionID: req.InstitutionID,
		PlanID:        req.PlanID,
		PriceCharged:  price,
		StartDate:     start,
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
	}
	if req.Status == model.AssignmentActive {
		if claims, ok := middleware.ClaimsFrom(c); ok {
			id := claims.Ref.ID
			a.ConfirmedBy = &id
		}
	}

	if err := h.Subs.Create(ctx, &a); err != nil {
		return h.mapLedgerError(c, err)
	}
	return c.JSON(http.StatusCreated, toAssignmentResp(a))
}

// Update applies a partial change to an assignment. Confirming an
// assignment (status -> active) stamps the calling admin.
func (h *AdminSubscriptionHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}
	var req updateAssignmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	patch := repository.AssignmentPatch{
		Status:       req.Status,
		PriceCharged: req.PriceCharged,
	}
	if req.StartDate != nil {
		start, err := time.Parse(dateLayout, *req.StartDate)
		if err != nil {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid start_date, want YYYY-MM-DD"})
		}
		patch.StartDate = &start
	}
	if req.Status != nil && *req.Status == model.AssignmentActive {
		if claims, ok := middleware.ClaimsFrom(c); ok {
			adminID := claims.Ref.ID
			patch.ConfirmedBy = &adminID
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Subs.Update(ctx, id, patch)
	if err != nil {
		return h.mapLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, toAssignmentResp(a))
}

// Delete removes an assignment from the ledger.
func (h *AdminSubscriptionHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Subs.Delete(ctx, id); err != nil {
		return h.mapLedgerError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetByID returns one assignment.
func (h *AdminSubscriptionHandler) GetByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Subs.GetByID(ctx, id)
	if err != nil {
		return h.mapLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, toAssignmentResp(a))
}

// List returns assignments newest first, paginated with limit/offset.
func (h *AdminSubscriptionHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Subs.List(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]assignmentResp, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAssignmentResp(a))
	}
	return c.JSON(http.StatusOK, echo.Map{"assignments": out})
}

// ListPlans returns the plan catalog. The route sits behind the Redis
// response cache since plans change rarely.
func (h *AdminSubscriptionHandler) ListPlans(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	plans, err := h.Plans.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]planResp, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResp{
			ID:           p.ID,
			Name:         p.Name,
			TargetKind:   string(p.TargetKind),
			Price:        p.Price,
			DurationDays: p.DurationDays,
			Features:     p.Features,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"plans": out})
}

// ActiveForUser reports whether a user currently has an active
// subscription, consulting the ledger rather than the cached status.
func (h *AdminSubscriptionHandler) ActiveForUser(c echo.Context) error {
	return h.activeFor(c, h.Subs.ActiveForUser)
}

// ActiveForInstitution is the institution counterpart of ActiveForUser.
func (h *AdminSubscriptionHandler) ActiveForInstitution(c echo.Context) error {
	return h.activeFor(c, h.Subs.ActiveForInstitution)
}

func (h *AdminSubscriptionHandler) activeFor(c echo.Context, fn func(context.Context, uint64) (*model.ActiveSubscription, error)) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sub, err := fn(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"active": false})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"active": true, "subscription": sub})
}

func (h *AdminSubscriptionHandler) mapLedgerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrDuplicateActiveSubscription):
		return c.JSON(http.StatusConflict, echo.Map{"error": "an active subscription already exists for this principal"})
	case errors.Is(err, repository.ErrExpiredAssignment):
		return c.JSON(http.StatusConflict, echo.Map{"error": "expired assignments cannot be reactivated"})
	case errors.Is(err, repository.ErrPlanMismatch):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "plan does not match the target principal"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}
