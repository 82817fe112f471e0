package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// ReservationService is the booking workflow.
type ReservationService interface {
	Create(ctx context.Context, actor service.Actor, cmd service.CreateReservation) (model.ReservationDetail, error)
	Get(ctx context.Context, actor service.Actor, id uint64) (model.ReservationDetail, error)
	List(ctx context.Context, actor service.Actor, f model.ReservationFilter) ([]model.ReservationDetail, error)
	Update(ctx context.Context, actor service.Actor, id uint64, cmd service.UpdateReservation) (model.ReservationDetail, error)
	Cancel(ctx context.Context, actor service.Actor, id uint64) (model.ReservationDetail, error)
}

type ReservationHandler struct {
	base
	reservations ReservationService
}

func NewReservationHandler(s ReservationService, timeout time.Duration) *ReservationHandler {
	if s == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{base: base{timeout}, reservations: s}
}

type createReservationReq struct {
	ClientID  uint64   `json:"client_id"`
	CheckIn   string   `json:"check_in" validate:"required"`
	CheckOut  string   `json:"check_out" validate:"required"`
	Guests    int      `json:"guests"`
	RoomIDs   []uint64 `json:"room_ids"`
	Notes     string   `json:"notes"`
	HoldRooms bool     `json:"hold_rooms"`
}

// Create books rooms.  Clients book for their own profile, so client_id
// is only read for staff.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req createReservationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := parseDate("check_in", req.CheckIn)
	if err != nil {
		return err
	}
	out, err := parseDate("check_out", req.CheckOut)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	d, err := h.reservations.Create(ctx, actor, service.CreateReservation{
		ClientID:  req.ClientID,
		CheckIn:   in,
		CheckOut:  out,
		Guests:    req.Guests,
		RoomIDs:   req.RoomIDs,
		Notes:     strings.TrimSpace(req.Notes),
		HoldRooms: req.HoldRooms,
	})
	if err != nil {
		return err
	}
	return okMsg(c, http.StatusCreated, d, "reservation created")
}

// List accepts ?status=, ?client_id=, ?from=, ?to=, ?limit= and ?offset=.
func (h *ReservationHandler) List(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	clientID, err := queryUint(c, "client_id")
	if err != nil {
		return err
	}
	from, err := optionalDate("from", c.QueryParam("from"))
	if err != nil {
		return err
	}
	to, err := optionalDate("to", c.QueryParam("to"))
	if err != nil {
		return err
	}
	limit, offset, err := page(c)
	if err != nil {
		return err
	}
	f := model.ReservationFilter{
		Status:   model.ReservationStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
		ClientID: clientID,
		From:     from,
		To:       to,
		Limit:    limit,
		Offset:   offset,
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.reservations.List(ctx, actor, f)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (h *ReservationHandler) Get(c echo.Context) error {
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
	d, err := h.reservations.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, d)
}

type updateReservationReq struct {
	Status   *model.ReservationStatus `json:"status"`
	Notes    *string                  `json:"notes"`
	CheckIn  *string                  `json:"check_in"`
	CheckOut *string                  `json:"check_out"`
}

// Update changes status, notes or, while pending, the dates.
func (h *ReservationHandler) Update(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req updateReservationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	cmd := service.UpdateReservation{Status: req.Status, Notes: req.Notes}
	if req.CheckIn != nil {
		t, err := parseDate("check_in", *req.CheckIn)
		if err != nil {
			return err
		}
		cmd.CheckIn = &t
	}
	if req.CheckOut != nil {
		t, err := parseDate("check_out", *req.CheckOut)
		if err != nil {
			return err
		}
		cmd.CheckOut = &t
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	d, err := h.reservations.Update(ctx, actor, id, cmd)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, d)
}

// Delete cancels the reservation; the row is kept.
func (h *ReservationHandler) Delete(c echo.Context) error {
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
	d, err := h.reservations.Cancel(ctx, actor, id)
	if err != nil {
		return err
	}
	return okMsg(c, http.StatusOK, d, "reservation cancelled")
}
