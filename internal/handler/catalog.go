package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// CatalogService manages room types and rooms.
type CatalogService interface {
	ListRoomTypes(ctx context.Context) ([]model.RoomType, error)
	GetRoomType(ctx context.Context, id uint64) (model.RoomType, error)
	CreateRoomType(ctx context.Context, cmd service.CreateRoomType) (model.RoomType, error)
	UpdateRoomType(ctx context.Context, id uint64, cmd service.UpdateRoomType) (model.RoomType, error)
	DeleteRoomType(ctx context.Context, id uint64) error
	ListRooms(ctx context.Context, f repository.RoomFilter) ([]model.Room, error)
	GetRoom(ctx context.Context, id uint64) (model.Room, error)
	CreateRoom(ctx context.Context, cmd service.CreateRoom) (model.Room, error)
	UpdateRoom(ctx context.Context, id uint64, cmd service.UpdateRoom) (model.Room, error)
	DeleteRoom(ctx context.Context, id uint64) error
	ChangeRoomStatus(ctx context.Context, id uint64, cmd service.ChangeRoomStatus) (model.Room, error)
}

// AvailabilityService answers free-room searches.
type AvailabilityService interface {
	Check(ctx context.Context, q service.AvailabilityQuery) ([]service.AvailableRoom, error)
}

// CatalogHandler serves room types, rooms and availability.
type CatalogHandler struct {
	base
	catalog      CatalogService
	availability AvailabilityService
}

func NewCatalogHandler(cat CatalogService, av AvailabilityService, timeout time.Duration) *CatalogHandler {
	if cat == nil || av == nil {
		panic("nil service passed to NewCatalogHandler")
	}
	return &CatalogHandler{base: base{timeout}, catalog: cat, availability: av}
}

func (h *CatalogHandler) ListRoomTypes(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.catalog.ListRoomTypes(ctx)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (h *CatalogHandler) GetRoomType(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	rt, err := h.catalog.GetRoomType(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, rt)
}

type roomTypeReq struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	MaxCapacity int             `json:"max_capacity"`
	Amenities   []string        `json:"amenities"`
}

func (h *CatalogHandler) CreateRoomType(c echo.Context) error {
	var req roomTypeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	rt, err := h.catalog.CreateRoomType(ctx, service.CreateRoomType(req))
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, rt)
}

type updateRoomTypeReq struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	MaxCapacity *int             `json:"max_capacity"`
	Amenities   []string         `json:"amenities"`
}

func (h *CatalogHandler) UpdateRoomType(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req updateRoomTypeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	rt, err := h.catalog.UpdateRoomType(ctx, id, service.UpdateRoomType(req))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, rt)
}

func (h *CatalogHandler) DeleteRoomType(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.catalog.DeleteRoomType(ctx, id); err != nil {
		return err
	}
	return okMsg(c, http.StatusOK, nil, "room type deleted")
}

// ListRooms accepts ?status= and ?room_type_id= filters.
func (h *CatalogHandler) ListRooms(c echo.Context) error {
	typeID, err := queryUint(c, "room_type_id")
	if err != nil {
		return err
	}
	f := repository.RoomFilter{
		Status:     model.RoomStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
		RoomTypeID: typeID,
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.catalog.ListRooms(ctx, f)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (h *CatalogHandler) GetRoom(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.catalog.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, r)
}

type roomReq struct {
	Number     string `json:"number"`
	Floor      int    `json:"floor"`
	RoomTypeID uint64 `json:"room_type_id"`
	Notes      string `json:"notes"`
}

func (h *CatalogHandler) CreateRoom(c echo.Context) error {
	var req roomReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Number = strings.TrimSpace(req.Number)
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.catalog.CreateRoom(ctx, service.CreateRoom(req))
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, r)
}

type updateRoomReq struct {
	Number     *string `json:"number"`
	Floor      *int    `json:"floor"`
	RoomTypeID *uint64 `json:"room_type_id"`
	Notes      *string `json:"notes"`
}

func (h *CatalogHandler) UpdateRoom(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req updateRoomReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.catalog.UpdateRoom(ctx, id, service.UpdateRoom(req))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, r)
}

func (h *CatalogHandler) DeleteRoom(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.catalog.DeleteRoom(ctx, id); err != nil {
		return err
	}
	return okMsg(c, http.StatusOK, nil, "room deleted")
}

type roomStatusReq struct {
	Status model.RoomStatus `json:"status"`
}

// ChangeRoomStatus handles PATCH /habitaciones/:id/estado.
func (h *CatalogHandler) ChangeRoomStatus(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req roomStatusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.catalog.ChangeRoomStatus(ctx, id, service.ChangeRoomStatus{
		Status: model.RoomStatus(strings.ToLower(string(req.Status))),
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, r)
}

// Availability lists free rooms.  checkin and checkout are optional but
// must be given together.
func (h *CatalogHandler) Availability(c echo.Context) error {
	in, err := optionalDate("checkin", c.QueryParam("checkin"))
	if err != nil {
		return err
	}
	out, err := optionalDate("checkout", c.QueryParam("checkout"))
	if err != nil {
		return err
	}
	typeID, err := queryUint(c, "room_type_id")
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	rooms, err := h.availability.Check(ctx, service.AvailabilityQuery{CheckIn: in, CheckOut: out, RoomTypeID: typeID})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, rooms)
}
