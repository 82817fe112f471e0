package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// CookieName is the cookie carrying the session token for browser clients.
const CookieName = "session_token"

const (
	actorKey   = "actor"
	sessionKey = "session_id"
)

// Authenticator resolves a raw session token to its caller.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (service.Actor, string, error)
}

// SessionAuth requires a valid session.  The token is read from the
// Authorization bearer header first, then from the session cookie.  The
// resolved actor and session id are stored in the echo context.
func SessionAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFrom(c)
			if raw == "" {
				return apperror.Unauthorized("authentication required")
			}
			actor, sid, err := auth.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			c.Set(actorKey, actor)
			c.Set(sessionKey, sid)
			return next(c)
		}
	}
}

func tokenFrom(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if ck, err := c.Cookie(CookieName); err == nil {
		return ck.Value
	}
	return ""
}

// ActorFrom returns the caller stored by SessionAuth.
func ActorFrom(c echo.Context) (service.Actor, bool) {
	a, ok := c.Get(actorKey).(service.Actor)
	return a, ok
}

// SessionID returns the raw session id stored by SessionAuth.
func SessionID(c echo.Context) string {
	s, _ := c.Get(sessionKey).(string)
	return s
}
