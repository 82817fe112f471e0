package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

type StatsService interface {
	Dashboard(ctx context.Context) (model.Stats, error)
}

type StatsHandler struct {
	base
	stats StatsService
}

func NewStatsHandler(s StatsService, timeout time.Duration) *StatsHandler {
	if s == nil {
		panic("nil service passed to NewStatsHandler")
	}
	return &StatsHandler{base: base{timeout}, stats: s}
}

func (h *StatsHandler) Dashboard(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	st, err := h.stats.Dashboard(ctx)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, st)
}
