package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/digital-library/internal/utils"
)

// claimsContextKey is where verified access-token claims live on the echo
// context.
const claimsContextKey = "auth_claims"

// AccessCookieName is the cookie carrying the access token for browser
// clients. API clients may send the same token as a Bearer header instead.
const AccessCookieName = "accessToken"

// tokenFromRequest extracts the raw access token, preferring the cookie
// transport over the Authorization header.
func tokenFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(AccessCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// Authenticate returns middleware that requires a valid access token and
// stores its decoded claims on the context. The provided secret must match
// the one used when issuing tokens. Handlers behind this middleware read
// the principal via ClaimsFrom.
func Authenticate(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// AuthenticateOptional is like Authenticate but never rejects the request:
// a missing or invalid token simply leaves the context anonymous. Used on
// endpoints that serve both guests and authenticated principals, such as
// resource downloads.
func AuthenticateOptional(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := tokenFromRequest(c); raw != "" {
				if claims, err := utils.ParseAccessToken(secret, raw); err == nil {
					c.Set(claimsContextKey, claims)
				}
			}
			return next(c)
		}
	}
}

// ClaimsFrom returns the verified claims stored by Authenticate or
// AuthenticateOptional, reporting ok=false on anonymous requests.
func ClaimsFrom(c echo.Context) (utils.AccessClaims, bool) {
	claims, ok := c.Get(claimsContextKey).(utils.AccessClaims)
	return claims, ok
}
