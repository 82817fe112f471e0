package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

// InvoiceService issues and tracks invoices.
type InvoiceService interface {
	Generate(ctx context.Context, reservationID, issuedBy uint64) (model.Invoice, error)
	Get(ctx context.Context, id uint64) (model.Invoice, error)
	List(ctx context.Context, f model.InvoiceFilter) ([]model.Invoice, error)
	UpdateStatus(ctx context.Context, id uint64, to model.InvoiceStatus) (model.Invoice, error)
	Void(ctx context.Context, id uint64) (model.Invoice, error)
}

type InvoiceHandler struct {
	base
	invoices InvoiceService
}

func NewInvoiceHandler(s InvoiceService, timeout time.Duration) *InvoiceHandler {
	if s == nil {
		panic("nil service passed to NewInvoiceHandler")
	}
	return &InvoiceHandler{base: base{timeout}, invoices: s}
}

type createInvoiceReq struct {
	ReservationID uint64 `json:"reservation_id" validate:"required"`
}

// Create issues the invoice of a confirmed reservation that has none yet.
func (h *InvoiceHandler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req createInvoiceReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	inv, err := h.invoices.Generate(ctx, req.ReservationID, actor.UserID)
	if err != nil {
		return err
	}
	return okMsg(c, http.StatusCreated, inv, "invoice issued")
}

// List accepts ?status=, ?client_id=, ?reservation_id=, ?limit= and ?offset=.
func (h *InvoiceHandler) List(c echo.Context) error {
	clientID, err := queryUint(c, "client_id")
	if err != nil {
		return err
	}
	resID, err := queryUint(c, "reservation_id")
	if err != nil {
		return err
	}
	limit, offset, err := page(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.invoices.List(ctx, model.InvoiceFilter{
		Status:        model.InvoiceStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
		ClientID:      clientID,
		ReservationID: resID,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (h *InvoiceHandler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	inv, err := h.invoices.Get(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, inv)
}

type invoiceStatusReq struct {
	Status model.InvoiceStatus `json:"status"`
}

func (h *InvoiceHandler) Update(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req invoiceStatusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Status == "" {
		return apperror.Validation("status is required")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	inv, err := h.invoices.UpdateStatus(ctx, id, model.InvoiceStatus(strings.ToLower(string(req.Status))))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, inv)
}

// Delete voids the invoice.  Invoices are never removed.
func (h *InvoiceHandler) Delete(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	inv, err := h.invoices.Void(ctx, id)
	if err != nil {
		return err
	}
	return okMsg(c, http.StatusOK, inv, "invoice voided")
}
