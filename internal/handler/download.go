package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/digital-library/internal/entitlement"
	"github.com/iliyamo/digital-library/internal/middleware"
	"github.com/iliyamo/digital-library/internal/model"
	"github.com/iliyamo/digital-library/internal/repository"
)

// ResourceSource loads resources for download checks.
type ResourceSource interface {
	GetByID(ctx context.Context, id uint64) (model.Resource, error)
}

// EntitlementResolver decides whether a principal may download a resource.
type EntitlementResolver interface {
	Resolve(ctx context.Context, res model.Resource, p *model.Principal) (entitlement.Decision, error)
}

// DownloadHandler serves the resource download endpoint. The route runs
// behind AuthenticateOptional: anonymous requests reach it and are only
// turned away when the resource tier demands a subscription.
type DownloadHandler struct {
	Resources  ResourceSource
	Principals PrincipalDirectory
	Resolver   EntitlementResolver
}

func NewDownloadHandler(resources ResourceSource, principals PrincipalDirectory, resolver EntitlementResolver) *DownloadHandler {
	return &DownloadHandler{Resources: resources, Principals: principals, Resolver: resolver}
}

// Download resolves entitlement for the requested resource and, when
// allowed, returns its download URL together with the active subscription
// the access was granted under.
func (h *DownloadHandler) Download(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Resources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	// Reload the principal so entitlement sees current roles and links
	// rather than whatever the token was minted with. A principal that no
	// longer exists is treated as anonymous.
	var principal *model.Principal
	if claims, ok := middleware.ClaimsFrom(c); ok {
		p, err := h.Principals.Find(ctx, claims.Ref)
		switch {
		case err == nil:
			principal = &p
		case errors.Is(err, repository.ErrNotFound):
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}

	d, err := h.Resolver.Resolve(ctx, res, principal)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "entitlement check failed"})
	}

	if d.Allow {
		body := echo.Map{"download_url": res.DownloadURL}
		if d.Subscription != nil {
			body["subscription"] = d.Subscription
		}
		return c.JSON(http.StatusOK, body)
	}

	switch d.Reason {
	case entitlement.DenyAuthRequired:
		return c.JSON(http.StatusUnauthorized, echo.Map{"requiresAuth": true})
	case entitlement.DenySubscriptionRequired:
		return c.JSON(http.StatusForbidden, echo.Map{"requiresSubscription": true, "userRole": d.Role})
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "downloads are not supported for this account"})
	}
}
