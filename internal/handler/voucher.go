package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// VoucherService handles payment proofs.
type VoucherService interface {
	Submit(ctx context.Context, actor service.Actor, cmd service.SubmitVoucher) (model.Voucher, error)
	Review(ctx context.Context, actor service.Actor, cmd service.ReviewVoucher) (model.Voucher, error)
	Get(ctx context.Context, actor service.Actor, id uint64) (model.Voucher, error)
	List(ctx context.Context, actor service.Actor, f repository.VoucherFilter) ([]model.Voucher, error)
}

type VoucherHandler struct {
	base
	vouchers VoucherService
}

func NewVoucherHandler(s VoucherService, timeout time.Duration) *VoucherHandler {
	if s == nil {
		panic("nil service passed to NewVoucherHandler")
	}
	return &VoucherHandler{base: base{timeout}, vouchers: s}
}

// Submit accepts a multipart form with the file and payment details.
func (h *VoucherHandler) Submit(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return apperror.Validation("file is required")
		}
		return apperror.Validation("invalid multipart form")
	}
	if fh.Size > service.MaxVoucherSize {
		return apperror.Validation("file exceeds the 10 MiB limit")
	}
	data, err := readUpload(fh)
	if err != nil {
		return err
	}

	resID, err := strconv.ParseUint(strings.TrimSpace(c.FormValue("reservation_id")), 10, 64)
	if err != nil || resID == 0 {
		return apperror.Validation("reservation_id is required")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(c.FormValue("amount")))
	if err != nil {
		return apperror.Validation("amount must be a number")
	}
	paidOn := time.Now().UTC()
	if raw := c.FormValue("paid_on"); strings.TrimSpace(raw) != "" {
		if paidOn, err = parseDate("paid_on", raw); err != nil {
			return err
		}
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	v, err := h.vouchers.Submit(ctx, actor, service.SubmitVoucher{
		ReservationID: resID,
		File:          data,
		FileName:      filepath.Base(fh.Filename),
		Method:        model.PaymentMethod(strings.ToLower(strings.TrimSpace(c.FormValue("method")))),
		Amount:        amount,
		PaidOn:        paidOn,
		Notes:         strings.TrimSpace(c.FormValue("notes")),
	})
	if err != nil {
		return err
	}
	return okMsg(c, http.StatusCreated, v, "voucher received, pending review")
}

// readUpload reads at most one byte past the size limit so oversized
// bodies with a lying header are still rejected.
func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperror.Validation("cannot read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, service.MaxVoucherSize+1))
	if err != nil {
		return nil, apperror.Validation("cannot read uploaded file")
	}
	if len(data) > service.MaxVoucherSize {
		return nil, apperror.Validation("file exceeds the 10 MiB limit")
	}
	return data, nil
}

// List accepts ?reservation_id= and ?status=.
func (h *VoucherHandler) List(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	resID, err := queryUint(c, "reservation_id")
	if err != nil {
		return err
	}
	status := model.VoucherStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status"))))
	switch status {
	case "", model.VoucherPending, model.VoucherConfirmed, model.VoucherRejected:
	default:
		return apperror.Validationf("unknown status %q", status)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.vouchers.List(ctx, actor, repository.VoucherFilter{ReservationID: resID, Status: status})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (h *VoucherHandler) Get(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	v, err := h.vouchers.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, v)
}

type reviewReq struct {
	Status model.VoucherStatus `json:"status"`
	Notes  string              `json:"notes"`
}

// Review approves or rejects a pending voucher.
func (h *VoucherHandler) Review(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req reviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	v, err := h.vouchers.Review(ctx, actor, service.ReviewVoucher{
		VoucherID: id,
		Outcome:   model.VoucherStatus(strings.ToLower(string(req.Status))),
		Notes:     strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, v)
}
