package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

// SessionService is the part of the account service the auth endpoints use.
type SessionService interface {
	Login(ctx context.Context, cmd service.Login) (service.Session, error)
	Logout(ctx context.Context, sid string) error
	Me(ctx context.Context, actor service.Actor) (service.Profile, error)
}

// AuthHandler serves login, logout and the current profile.
type AuthHandler struct {
	base
	sessions     SessionService
	cookieSecure bool
}

func NewAuthHandler(s SessionService, cookieSecure bool, timeout time.Duration) *AuthHandler {
	if s == nil {
		panic("nil service passed to NewAuthHandler")
	}
	return &AuthHandler{base: base{timeout}, sessions: s, cookieSecure: cookieSecure}
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies the credentials, sets the HttpOnly session cookie and
// returns the token for API clients.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	sess, err := h.sessions.Login(ctx, service.Login{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return okMsg(c, http.StatusOK, sess, "login successful")
}

// Logout revokes the current session and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.sessions.Logout(ctx, middleware.SessionID(c)); err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return okMsg(c, http.StatusOK, nil, "logged out")
}

func (h *AuthHandler) Me(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	p, err := h.sessions.Me(ctx, actor)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, p)
}
