package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// RequireRole lets the request through only when the actor stored by
// SessionAuth has one of roles.  It must run after SessionAuth.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return apperror.Unauthorized("authentication required")
			}
			if !allowed[actor.Role] {
				return apperror.Forbidden("insufficient permissions")
			}
			return next(c)
		}
	}
}

// StaffOnly admits staff and admins.
func StaffOnly() echo.MiddlewareFunc { return RequireRole(model.RoleStaff, model.RoleAdmin) }

// AdminOnly admits admins.
func AdminOnly() echo.MiddlewareFunc { return RequireRole(model.RoleAdmin) }
