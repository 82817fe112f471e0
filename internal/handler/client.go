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

// ClientService covers guest profiles.
type ClientService interface {
	RegisterClient(ctx context.Context, cmd service.RegisterClient) (service.Profile, error)
	ListClients(ctx context.Context, search string, limit, offset int) ([]model.Client, error)
	GetClient(ctx context.Context, id uint64) (model.Client, error)
	CreateWalkIn(ctx context.Context, cmd service.CreateClient) (model.Client, error)
	UpdateClient(ctx context.Context, id uint64, cmd service.UpdateClient) (model.Client, error)
	DeleteClient(ctx context.Context, id uint64) error
}

type ClientHandler struct {
	base
	clients ClientService
}

func NewClientHandler(s ClientService, timeout time.Duration) *ClientHandler {
	if s == nil {
		panic("nil service passed to NewClientHandler")
	}
	return &ClientHandler{base: base{timeout}, clients: s}
}

type registerReq struct {
	Email          string `json:"email" validate:"required,email,max=255"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	FirstName      string `json:"first_name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"required,max=100"`
	Phone          string `json:"phone"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number" validate:"required"`
	Address        string `json:"address"`
}

// Register is the public self-registration endpoint.
func (h *ClientHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	p, err := h.clients.RegisterClient(ctx, service.RegisterClient{
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Password:       req.Password,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Phone:          strings.TrimSpace(req.Phone),
		DocumentType:   strings.TrimSpace(req.DocumentType),
		DocumentNumber: strings.TrimSpace(req.DocumentNumber),
		Address:        strings.TrimSpace(req.Address),
	})
	if err != nil {
		return err
	}
	return okMsg(c, http.StatusCreated, p, "registration successful")
}

func (h *ClientHandler) List(c echo.Context) error {
	limit, offset, err := page(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.clients.ListClients(ctx, strings.TrimSpace(c.QueryParam("search")), limit, offset)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (h *ClientHandler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	cl, err := h.clients.GetClient(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, cl)
}

type walkInReq struct {
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Phone          string `json:"phone"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	Address        string `json:"address"`
}

// CreateWalkIn registers a guest at the front desk without an account.
func (h *ClientHandler) CreateWalkIn(c echo.Context) error {
	var req walkInReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	cl, err := h.clients.CreateWalkIn(ctx, service.CreateClient{
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Phone:          strings.TrimSpace(req.Phone),
		DocumentType:   strings.TrimSpace(req.DocumentType),
		DocumentNumber: strings.TrimSpace(req.DocumentNumber),
		Address:        strings.TrimSpace(req.Address),
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, cl)
}

type updateClientReq struct {
	Email          *string `json:"email"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Phone          *string `json:"phone"`
	DocumentType   *string `json:"document_type"`
	DocumentNumber *string `json:"document_number"`
	Address        *string `json:"address"`
}

func (h *ClientHandler) Update(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req updateClientReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	cl, err := h.clients.UpdateClient(ctx, id, service.UpdateClient(req))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, cl)
}

func (h *ClientHandler) Delete(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.clients.DeleteClient(ctx, id); err != nil {
		return err
	}
	return okMsg(c, http.StatusOK, nil, "client deleted")
}
