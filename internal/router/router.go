// Package router wires the HTTP handlers and their middleware under /api.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/handler"
)

// Handlers are the endpoint groups served by the API.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Clients      *handler.ClientHandler
	Users        *handler.UserHandler
	Catalog      *handler.CatalogHandler
	Reservations *handler.ReservationHandler
	Vouchers     *handler.VoucherHandler
	Invoices     *handler.InvoiceHandler
	Stats        *handler.StatsHandler
}

// Middleware are the cross-cutting layers.  Any of them may be a
// pass-through when its backend is disabled.
type Middleware struct {
	Session     echo.MiddlewareFunc // resolves the caller, required on private routes
	RateLimit   echo.MiddlewareFunc // applied to every /api route
	StrictLimit echo.MiddlewareFunc // login, registration and uploads
	Cache       echo.MiddlewareFunc // public catalog reads
	Invalidate  echo.MiddlewareFunc // drops cached reads after writes
}

// Register mounts every route on e.
func Register(e *echo.Echo, h Handlers, m Middleware) *echo.Group {
	m = m.withDefaults()
	api := e.Group("/api", m.RateLimit, m.Invalidate)

	api.GET("/health", h.Health.Health)
	registerAuth(api, h, m)
	registerCatalog(api, h, m)
	registerGuest(api, h, m)
	registerStaff(api, h, m)
	return api
}

func (m Middleware) withDefaults() Middleware {
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if m.RateLimit == nil {
		m.RateLimit = pass
	}
	if m.StrictLimit == nil {
		m.StrictLimit = pass
	}
	if m.Cache == nil {
		m.Cache = pass
	}
	if m.Invalidate == nil {
		m.Invalidate = pass
	}
	if m.Session == nil {
		panic("router: session middleware is required")
	}
	return m
}

// registerAuth mounts login, logout, the current profile and public
// self-registration.
func registerAuth(api *echo.Group, h Handlers, m Middleware) {
	api.POST("/auth/login", h.Auth.Login, m.StrictLimit)
	api.POST("/auth/logout", h.Auth.Logout, m.Session)
	api.GET("/auth/me", h.Auth.Me, m.Session)

	api.POST("/clientes", h.Clients.Register, m.StrictLimit)
}

// registerCatalog mounts the public, cached reads of room types, rooms and
// availability.
func registerCatalog(api *echo.Group, h Handlers, m Middleware) {
	api.GET("/tipos-habitacion", h.Catalog.ListRoomTypes, m.Cache)
	api.GET("/tipos-habitacion/:id", h.Catalog.GetRoomType, m.Cache)
	api.GET("/habitaciones", h.Catalog.ListRooms, m.Cache)
	api.GET("/habitaciones/:id", h.Catalog.GetRoom, m.Cache)
	api.GET("/disponibilidad", h.Catalog.Availability, m.Cache)
}
