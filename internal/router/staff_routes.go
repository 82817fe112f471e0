package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/middleware"
)

// registerStaff mounts the back-office routes.  Route middleware runs
// left to right: session first, then the role check.
func registerStaff(api *echo.Group, h Handlers, m Middleware) {
	s := m.Session
	staff := middleware.StaffOnly()
	admin := middleware.AdminOnly()

	// ---- Clients ----
	api.GET("/clientes", h.Clients.List, s, staff)
	api.POST("/clientes/walk-in", h.Clients.CreateWalkIn, s, staff)
	api.GET("/clientes/:id", h.Clients.Get, s, staff)
	api.PUT("/clientes/:id", h.Clients.Update, s, staff)
	api.DELETE("/clientes/:id", h.Clients.Delete, s, staff)

	// ---- Users ----
	api.GET("/usuarios", h.Users.List, s, admin)
	api.POST("/usuarios", h.Users.Create, s, admin)
	api.GET("/usuarios/:id", h.Users.Get, s, admin)
	api.PUT("/usuarios/:id", h.Users.Update, s, admin)
	api.DELETE("/usuarios/:id", h.Users.Delete, s, admin)

	// ---- Catalog ----
	api.POST("/tipos-habitacion", h.Catalog.CreateRoomType, s, admin)
	api.PUT("/tipos-habitacion/:id", h.Catalog.UpdateRoomType, s, admin)
	api.DELETE("/tipos-habitacion/:id", h.Catalog.DeleteRoomType, s, admin)
	api.POST("/habitaciones", h.Catalog.CreateRoom, s, admin)
	api.PUT("/habitaciones/:id", h.Catalog.UpdateRoom, s, staff)
	api.DELETE("/habitaciones/:id", h.Catalog.DeleteRoom, s, admin)
	api.PATCH("/habitaciones/:id/estado", h.Catalog.ChangeRoomStatus, s, staff)

	// ---- Invoices ----
	api.POST("/facturas", h.Invoices.Create, s, staff)
	api.GET("/facturas", h.Invoices.List, s, staff)
	api.GET("/facturas/:id", h.Invoices.Get, s, staff)
	api.PUT("/facturas/:id", h.Invoices.Update, s, staff)
	api.DELETE("/facturas/:id", h.Invoices.Delete, s, staff)

	api.GET("/estadisticas", h.Stats.Dashboard, s, staff)
}
