package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userID returns the authenticated user id as a string for rate limit
// keys, or "anon" when the request carries no session.
func userID(c echo.Context) string {
	if a, ok := ActorFrom(c); ok && a.UserID != 0 {
		return strconv.FormatUint(a.UserID, 10)
	}
	return "anon"
}
