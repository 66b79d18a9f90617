package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/digital-library/internal/handler"
	"github.com/iliyamo/digital-library/internal/middleware"
	"github.com/iliyamo/digital-library/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check used by
// load balancers and monitoring systems.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication triplets. Every principal kind
// gets its own login/refresh/logout/me group so browser apps for readers,
// institutions and the admin console stay on separate URLs while sharing
// one handler. The loginLimiter middleware guards the credential-carrying
// routes against brute force; refresh and logout are self-limiting since
// they consume the token they present.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, loginLimiter echo.MiddlewareFunc) {
	kinds := map[string]model.Kind{
		"users":        model.KindUser,
		"institutions": model.KindInstitution,
		"admins":       model.KindAdmin,
	}
	for prefix, kind := range kinds {
		g := e.Group("/v1/auth/" + prefix)
		g.POST("/login", a.Login(kind), loginLimiter)
		g.POST("/refresh", a.Refresh(kind))
		g.POST("/logout", a.Logout)
		// /me requires a live access token and reloads the principal from
		// storage so stale claims never leak through.
		g.GET("/me", a.Me(kind), middleware.Authenticate(jwtSecret))
	}
	// Self-registration exists for readers only.
	e.POST("/v1/auth/users/register", a.Register, loginLimiter)
}

// RegisterResources registers the download endpoint. Authentication is
// optional: guests can fetch free resources, and the entitlement resolver
// decides what premium tiers require.
func RegisterResources(e *echo.Echo, d *handler.DownloadHandler, jwtSecret string) {
	e.GET("/v1/resources/:id/download", d.Download, middleware.AuthenticateOptional(jwtSecret))
}

// RegisterAdmin registers the subscription ledger console under /v1/admin.
// Every route requires an authenticated admin principal. The plan catalog
// sits behind the Redis response cache because it changes rarely and is hit
// on every console page load.
func RegisterAdmin(e *echo.Echo, h *handler.AdminSubscriptionHandler, jwtSecret string, planCache echo.MiddlewareFunc) {
	g := e.Group("/v1/admin")
	g.Use(middleware.Authenticate(jwtSecret))
	g.Use(middleware.RequireKind(model.KindAdmin))

	g.POST("/subscriptions", h.Create)
	g.GET("/subscriptions", h.List)
	g.GET("/subscriptions/:id", h.GetByID)
	g.PATCH("/subscriptions/:id", h.Update)
	g.DELETE("/subscriptions/:id", h.Delete)

	g.GET("/plans", h.ListPlans, planCache)

	g.GET("/users/:id/subscription", h.ActiveForUser)
	g.GET("/institutions/:id/subscription", h.ActiveForInstitution)
}
