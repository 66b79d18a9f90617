package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/digital-library/internal/auth"
	"github.com/iliyamo/digital-library/internal/config"
	"github.com/iliyamo/digital-library/internal/middleware"
	"github.com/iliyamo/digital-library/internal/model"
	"github.com/iliyamo/digital-library/internal/repository"
	"github.com/iliyamo/digital-library/internal/utils"
)

// RefreshCookieName is the cookie carrying the refresh token. It rides
// next to the access cookie but with its own, longer expiry.
const RefreshCookieName = "refreshToken"

// TokenService is the slice of the auth service the handlers need.
type TokenService interface {
	Issue(ctx context.Context, p model.Principal) (auth.TokenPair, error)
	Rotate(ctx context.Context, rawRefresh string, kind model.Kind) (model.Principal, auth.TokenPair, error)
	Logout(ctx context.Context, rawRefresh string) error
}

// PrincipalDirectory resolves principals for login and session refresh.
type PrincipalDirectory interface {
	Find(ctx context.Context, ref model.PrincipalRef) (model.Principal, error)
	FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Principal, error)
}

// UserStore is the slice of the user repository registration needs.
type UserStore interface {
	Create(ctx context.Context, email, password, role string, institutionID *uint64, cost int) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// AuthHandler bundles dependencies for the auth endpoint triplets. The
// same handler serves all three principal kinds; the kind comes from the
// route it is registered under.
type AuthHandler struct {
	Cfg        config.Config
	Tokens     TokenService
	Principals PrincipalDirectory
	Users      UserStore
}

func NewAuthHandler(cfg config.Config, tokens TokenService, principals PrincipalDirectory, users UserStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Tokens: tokens, Principals: principals, Users: users}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type registerReq struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	Role          string  `json:"role"` // user | student
	InstitutionID *uint64 `json:"institution_id"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type principalResp struct {
	ID                 uint64  `json:"id"`
	Kind               string  `json:"kind"`
	Email              string  `json:"email"`
	Role               string  `json:"role,omitempty"`
	Name               string  `json:"name,omitempty"`
	InstitutionID      *uint64 `json:"institution_id,omitempty"`
	SubscriptionStatus string  `json:"subscription_status,omitempty"`
}

func principalSummary(p model.Principal) principalResp {
	out := principalResp{ID: p.ID(), Kind: string(p.Kind), Email: p.Email(), Role: p.Role()}
	switch p.Kind {
	case model.KindUser:
		if p.User != nil {
			out.InstitutionID = p.User.InstitutionID
			out.SubscriptionStatus = p.User.SubscriptionStatus
		}
	case model.KindInstitution:
		if p.Institution != nil {
			out.Name = p.Institution.Name
			out.SubscriptionStatus = p.Institution.SubscriptionStatus
		}
	}
	return out
}

// ----- cookie transport -----

// setAuthCookies writes both credentials as httpOnly, SameSite=Strict
// cookies with independent expiries. Secure is tied to the environment so
// local development over plain HTTP keeps working.
func setAuthCookies(c echo.Context, pair auth.TokenPair, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookieName,
		Value:    pair.Access.Token,
		Expires:  pair.Access.Exp,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.Refresh.Raw,
		Expires:  pair.Refresh.Exp,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearAuthCookies expires both credentials. Called on logout and on any
// invalid session so the client never keeps presenting dead tokens.
func clearAuthCookies(c echo.Context, secure bool) {
	for _, name := range []string{middleware.AccessCookieName, RefreshCookieName} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// refreshTokenFromRequest reads the refresh token from the cookie first,
// then from the JSON body for non-browser clients.
func refreshTokenFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(RefreshCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req refreshReq
	if err := c.Bind(&req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

// ----- endpoints -----

// Login returns the login handler for one principal kind: verify the
// password, issue a pair and set both cookies. Unknown email and wrong
// password produce the same response so the endpoint does not reveal
// which accounts exist.
func (h *AuthHandler) Login(kind model.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Email == "" || req.Password == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		p, err := h.Principals.FindByEmail(ctx, kind, req.Email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if !utils.VerifyPassword(p.PasswordHash(), req.Password) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}

		pair, err := h.Tokens.Issue(ctx, p)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
		}
		setAuthCookies(c, pair, h.Cfg.CookieSecure())

		return c.JSON(http.StatusOK, echo.Map{
			"principal":       principalSummary(p),
			"access_expires":  pair.Access.Exp,
			"refresh_expires": pair.Refresh.Exp,
		})
	}
}

// Refresh returns the rotation handler for one principal kind. The old
// refresh token is consumed atomically; any failure clears both cookies
// so the client falls back to a clean login instead of silently browsing
// anonymously. A token presented on the wrong kind's endpoint is refused
// before rotation, so the session it belongs to stays alive.
func (h *AuthHandler) Refresh(kind model.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := refreshTokenFromRequest(c)
		if raw == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh token required"})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		p, pair, err := h.Tokens.Rotate(ctx, raw, kind)
		if err != nil {
			if errors.Is(err, repository.ErrInvalidSession) {
				clearAuthCookies(c, h.Cfg.CookieSecure())
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
		}
		setAuthCookies(c, pair, h.Cfg.CookieSecure())

		return c.JSON(http.StatusOK, echo.Map{
			"principal":       principalSummary(p),
			"access_expires":  pair.Access.Exp,
			"refresh_expires": pair.Refresh.Exp,
		})
	}
}

// Logout invalidates the presented refresh token and clears both cookies.
// The cookies are cleared whether or not the ledger entry existed.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw := refreshTokenFromRequest(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	clearAuthCookies(c, h.Cfg.CookieSecure())
	if err := h.Tokens.Logout(ctx, raw); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the current principal, reloaded from storage so role and
// status changes since token issuance are visible. Requires the
// Authenticate middleware.
func (h *AuthHandler) Me(kind model.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := middleware.ClaimsFrom(c)
		if !ok || claims.Ref.Kind != kind {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		p, err := h.Principals.Find(ctx, claims.Ref)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				clearAuthCookies(c, h.Cfg.CookieSecure())
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, principalSummary(p))
	}
}

// Register creates a user account and returns tokens immediately. Only
// users self-register; institutions and admins are provisioned through
// the console.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = model.RoleUser
	case model.RoleUser:
	case model.RoleStudent:
		if req.InstitutionID == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "student accounts require institution_id"})
		}
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}
	if role == model.RoleUser {
		req.InstitutionID = nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, role, req.InstitutionID, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	p := model.UserPrincipal(u)

	pair, err := h.Tokens.Issue(ctx, p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	setAuthCookies(c, pair, h.Cfg.CookieSecure())

	return c.JSON(http.StatusCreated, echo.Map{
		"principal":       principalSummary(p),
		"access_expires":  pair.Access.Exp,
		"refresh_expires": pair.Refresh.Exp,
	})
}
