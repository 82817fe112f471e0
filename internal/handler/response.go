package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func okMsg(c echo.Context, status int, data any, msg string) error {
	return c.JSON(status, envelope{Success: true, Data: data, Message: msg})
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(k apperror.Kind) int {
	switch k {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindPoolExhausted:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders errors returned by handlers and middleware as the
// JSON envelope.  The wrapped cause is only exposed outside production.
func ErrorHandler(prod bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		body := envelope{Message: "internal server error"}

		var ae *apperror.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			status = StatusOf(ae.Kind)
			body.Message = ae.Message
			if ae.Err != nil && !prod {
				body.Error = ae.Err.Error()
			}
		case errors.As(err, &he):
			status = he.Code
			body.Message = strings.ToLower(http.StatusText(he.Code))
			if m, ok := he.Message.(string); ok && m != "" {
				body.Message = m
			}
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusServiceUnavailable
			body.Message = "request timed out"
		default:
			if !prod {
				body.Error = err.Error()
			}
		}
		if status >= http.StatusInternalServerError {
			c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

// Validator plugs the shared command rules into echo.
type Validator struct{}

func (Validator) Validate(i any) error { return service.Check(i) }

// bind decodes the request and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperror.Validation("invalid request body")
	}
	return c.Validate(req)
}

// base carries the per-request deadline shared by all handlers.
type base struct {
	timeout time.Duration
}

func (b base) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	t := b.timeout
	if t <= 0 {
		t = 15 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), t)
}

func actorOf(c echo.Context) (service.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return service.Actor{}, apperror.Unauthorized("authentication required")
	}
	return a, nil
}

func idParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("invalid id")
	}
	return id, nil
}

func queryUint(c echo.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperror.Validationf("%s must be a positive integer", name)
	}
	return n, nil
}

const (
	defaultLimit = 50
	maxLimit     = 200
	maxOffset    = 1_000_000
)

// page reads limit and offset.  A missing limit means 50, a larger one
// than 200 is capped.
func page(c echo.Context) (limit, offset int, err error) {
	l, err := queryUint(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	o, err := queryUint(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	if o > maxOffset {
		return 0, 0, apperror.Validationf("offset must not exceed %d", maxOffset)
	}
	switch {
	case l == 0:
		limit = defaultLimit
	case l > maxLimit:
		limit = maxLimit
	default:
		limit = int(l)
	}
	return limit, int(o), nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339 and returns UTC.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperror.Validationf("%s must be a date (YYYY-MM-DD)", field)
}

func optionalDate(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(field, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
