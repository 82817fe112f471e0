package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/middleware"
)

// registerGuest mounts routes open to any session.  Client users are
// scoped to their own reservations and vouchers by the services.
func registerGuest(api *echo.Group, h Handlers, m Middleware) {
	s := m.Session

	api.GET("/reservations", h.Reservations.List, s)
	api.POST("/reservations", h.Reservations.Create, s)
	api.GET("/reservations/:id", h.Reservations.Get, s)
	api.PUT("/reservations/:id", h.Reservations.Update, s)
	api.DELETE("/reservations/:id", h.Reservations.Delete, s)

	api.POST("/comprobantes", h.Vouchers.Submit, m.StrictLimit, s)
	api.GET("/comprobantes", h.Vouchers.List, s)
	api.GET("/comprobantes/:id", h.Vouchers.Get, s)
	api.PUT("/comprobantes/:id", h.Vouchers.Review, s, middleware.StaffOnly())
}
