package middleware

// identity.go provides the principal key used by the rate limiter to
// bucket requests. Authenticated principals are keyed by kind and id;
// everyone else shares the "anon" bucket (per-IP strategies still tell
// them apart).

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// principalKey returns a stable identifier for the requesting principal,
// or "anon" when the request carries no valid access token.
func principalKey(c echo.Context) string {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return "anon"
	}
	return string(claims.Ref.Kind) + ":" + strconv.FormatUint(claims.Ref.ID, 10)
}
