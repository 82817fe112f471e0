package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// PingFunc checks one dependency.
type PingFunc func(ctx context.Context) error

// HealthHandler reports the database and, when configured, Redis.
type HealthHandler struct {
	db    PingFunc
	redis PingFunc
}

// NewHealthHandler builds the handler.  redis may be nil when caching is
// off.
func NewHealthHandler(db, redis PingFunc) *HealthHandler {
	if db == nil {
		panic("nil database ping passed to NewHealthHandler")
	}
	return &HealthHandler{db: db, redis: redis}
}

// Health returns 200 when every dependency answers and 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	healthy := true
	if err := h.db(ctx); err != nil {
		checks["database"] = "down"
		healthy = false
		c.Logger().Warnf("health: database: %v", err)
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis(ctx); err != nil {
			// the cache degrades to pass-through, so redis alone is not fatal
			checks["redis"] = "down"
			c.Logger().Warnf("health: redis: %v", err)
		}
	} else {
		checks["redis"] = "disabled"
	}

	data := map[string]any{"status": "ok", "checks": checks, "time": time.Now().UTC()}
	if !healthy {
		data["status"] = "degraded"
		return c.JSON(http.StatusServiceUnavailable, envelope{Success: false, Data: data, Message: "service unavailable"})
	}
	return ok(c, http.StatusOK, data)
}
