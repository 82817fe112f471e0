package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// UserService covers staff account administration.
type UserService interface {
	ListUsers(ctx context.Context, role model.Role, includeInactive bool) ([]model.User, error)
	GetUser(ctx context.Context, id uint64) (model.User, error)
	CreateUser(ctx context.Context, cmd service.CreateUser) (model.User, error)
	UpdateUser(ctx context.Context, id uint64, cmd service.UpdateUser) (model.User, error)
	DeleteUser(ctx context.Context, actor service.Actor, id uint64) error
}

type UserHandler struct {
	base
	users UserService
}

func NewUserHandler(s UserService, timeout time.Duration) *UserHandler {
	if s == nil {
		panic("nil service passed to NewUserHandler")
	}
	return &UserHandler{base: base{timeout}, users: s}
}

func (h *UserHandler) List(c echo.Context) error {
	role := model.Role(strings.ToLower(strings.TrimSpace(c.QueryParam("role"))))
	if role != "" && !role.Valid() {
		return apperror.Validationf("unknown role %q", role)
	}
	inactive := false
	if raw := c.QueryParam("include_inactive"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return apperror.Validation("include_inactive must be true or false")
		}
		inactive = b
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.users.ListUsers(ctx, role, inactive)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, u)
}

type createUserReq struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	FullName string     `json:"full_name"`
	Role     model.Role `json:"role"`
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.users.CreateUser(ctx, service.CreateUser{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: req.Password,
		FullName: strings.TrimSpace(req.FullName),
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, u)
}

type updateUserReq struct {
	Email    *string     `json:"email"`
	Password *string     `json:"password"`
	FullName *string     `json:"full_name"`
	Role     *model.Role `json:"role"`
	IsActive *bool       `json:"is_active"`
}

func (h *UserHandler) Update(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.users.UpdateUser(ctx, id, service.UpdateUser(req))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, u)
}

// Delete deactivates the account and revokes its sessions.
func (h *UserHandler) Delete(c echo.Context) error {
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
	if err := h.users.DeleteUser(ctx, actor, id); err != nil {
		return err
	}
	return okMsg(c, http.StatusOK, nil, "user deactivated")
}
