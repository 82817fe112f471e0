package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

var (
	staff  = service.Actor{UserID: 1, Role: model.RoleStaff}
	client = service.Actor{UserID: 7, Role: model.RoleClient}
)

// tokens maps bearer tokens to callers.
type tokens map[string]service.Actor

func (t tokens) Authenticate(_ context.Context, raw string) (service.Actor, string, error) {
	a, ok := t[raw]
	if !ok {
		return service.Actor{}, "", apperror.Unauthorized("invalid or expired session")
	}
	return a, "sid-" + raw, nil
}

var sessions = middleware.SessionAuth(tokens{"staff": staff, "client": client})

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = Validator{}
	e.HTTPErrorHandler = ErrorHandler(false)
	return e
}

func do(e *echo.Echo, method, path, token string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestErrorHandlerMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperror.Validation("bad"), http.StatusBadRequest},
		{apperror.Unauthorized("who"), http.StatusUnauthorized},
		{apperror.Forbidden("no"), http.StatusForbidden},
		{apperror.NotFound("gone"), http.StatusNotFound},
		{apperror.Conflict("taken"), http.StatusConflict},
		{apperror.PoolExhausted(errors.New("pool")), http.StatusServiceUnavailable},
		{apperror.Infra("database error", errors.New("boom")), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", apperror.NotFound("gone")), http.StatusNotFound},
		{echo.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		e := newEcho()
		e.GET("/x", func(echo.Context) error { return tc.err })
		rec := do(e, http.MethodGet, "/x", "", "")
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.False(t, gjson.Get(rec.Body.String(), "success").Bool())
		assert.NotEmpty(t, gjson.Get(rec.Body.String(), "message").String())
	}
}

func TestErrorHandlerHidesCauseInProd(t *testing.T) {
	for _, prod := range []bool{false, true} {
		e := newEcho()
		e.HTTPErrorHandler = ErrorHandler(prod)
		e.GET("/x", func(echo.Context) error { return apperror.Infra("database error", errors.New("dial tcp: refused")) })
		rec := do(e, http.MethodGet, "/x", "", "")
		body := rec.Body.String()
		assert.Equal(t, "database error", gjson.Get(body, "message").String())
		assert.Equal(t, !prod, gjson.Get(body, "error").Exists(), "prod=%v", prod)
	}
}

type sessionMock struct{ mock.Mock }

func (m *sessionMock) Login(ctx context.Context, cmd service.Login) (service.Session, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(service.Session), args.Error(1)
}

func (m *sessionMock) Logout(ctx context.Context, sid string) error {
	return m.Called(ctx, sid).Error(0)
}

func (m *sessionMock) Me(ctx context.Context, actor service.Actor) (service.Profile, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).(service.Profile), args.Error(1)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	svc := new(sessionMock)
	exp := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.On("Login", mock.Anything, service.Login{Email: "ana@example.com", Password: "secret123"}).
		Return(service.Session{Token: "tok", ExpiresAt: exp, User: model.User{ID: 3, Email: "ana@example.com", Role: model.RoleClient}}, nil)

	h := NewAuthHandler(svc, true, time.Second)
	e := newEcho()
	e.POST("/login", h.Login)
	rec := do(e, http.MethodPost, "/login", "", `{"email":" Ana@Example.com ","password":"secret123"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, "tok", gjson.Get(body, "data.token").String())
	assert.Equal(t, "client", gjson.Get(body, "data.user.role").String())
	assert.False(t, gjson.Get(body, "data.user.password_hash").Exists())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.CookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	svc.AssertExpectations(t)
}

func TestLoginValidatesBody(t *testing.T) {
	svc := new(sessionMock)
	h := NewAuthHandler(svc, false, time.Second)
	e := newEcho()
	e.POST("/login", h.Login)

	rec := do(e, http.MethodPost, "/login", "", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, gjson.Get(rec.Body.String(), "message").String(), "email")

	rec = do(e, http.MethodPost, "/login", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestLogoutRevokesCurrentSession(t *testing.T) {
	svc := new(sessionMock)
	svc.On("Logout", mock.Anything, "sid-client").Return(nil)
	h := NewAuthHandler(svc, false, time.Second)
	e := newEcho()
	e.POST("/logout", h.Logout, sessions)

	rec := do(e, http.MethodPost, "/logout", "client", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	svc.AssertExpectations(t)

	rec = do(e, http.MethodPost, "/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type reservationMock struct{ mock.Mock }

func (m *reservationMock) Create(ctx context.Context, a service.Actor, cmd service.CreateReservation) (model.ReservationDetail, error) {
	args := m.Called(ctx, a, cmd)
	return args.Get(0).(model.ReservationDetail), args.Error(1)
}

func (m *reservationMock) Get(ctx context.Context, a service.Actor, id uint64) (model.ReservationDetail, error) {
	args := m.Called(ctx, a, id)
	return args.Get(0).(model.ReservationDetail), args.Error(1)
}

func (m *reservationMock) List(ctx context.Context, a service.Actor, f model.ReservationFilter) ([]model.ReservationDetail, error) {
	args := m.Called(ctx, a, f)
	return args.Get(0).([]model.ReservationDetail), args.Error(1)
}

func (m *reservationMock) Update(ctx context.Context, a service.Actor, id uint64, cmd service.UpdateReservation) (model.ReservationDetail, error) {
	args := m.Called(ctx, a, id, cmd)
	return args.Get(0).(model.ReservationDetail), args.Error(1)
}

func (m *reservationMock) Cancel(ctx context.Context, a service.Actor, id uint64) (model.ReservationDetail, error) {
	args := m.Called(ctx, a, id)
	return args.Get(0).(model.ReservationDetail), args.Error(1)
}

func TestCreateReservationParsesDates(t *testing.T) {
	svc := new(reservationMock)
	in := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	out := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	svc.On("Create", mock.Anything, client, mock.MatchedBy(func(cmd service.CreateReservation) bool {
		return cmd.CheckIn.Equal(in) && cmd.CheckOut.Equal(out) && cmd.Guests == 2 &&
			len(cmd.RoomIDs) == 1 && cmd.RoomIDs[0] == 101
	})).Return(model.ReservationDetail{Reservation: model.Reservation{
		ID: 9, Code: "RES-1", Status: model.ReservationPending, Total: decimal.RequireFromString("200.00"),
	}}, nil)

	h := NewReservationHandler(svc, time.Second)
	e := newEcho()
	e.POST("/reservations", h.Create, sessions)
	rec := do(e, http.MethodPost, "/reservations", "client",
		`{"check_in":"2025-03-01","check_out":"2025-03-03","guests":2,"room_ids":[101]}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "pending", gjson.Get(body, "data.status").String())
	assert.Equal(t, "200", gjson.Get(body, "data.total").String())
	svc.AssertExpectations(t)
}

func TestCreateReservationRejectsBadDate(t *testing.T) {
	svc := new(reservationMock)
	h := NewReservationHandler(svc, time.Second)
	e := newEcho()
	e.POST("/reservations", h.Create, sessions)

	rec := do(e, http.MethodPost, "/reservations", "client", `{"check_in":"01/03/2025","check_out":"2025-03-03","guests":1,"room_ids":[1]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, gjson.Get(rec.Body.String(), "message").String(), "check_in")

	rec = do(e, http.MethodPost, "/reservations", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationConflictStatus(t *testing.T) {
	svc := new(reservationMock)
	svc.On("Cancel", mock.Anything, staff, uint64(4)).
		Return(model.ReservationDetail{}, apperror.Validation("cannot change reservation from cancelled to cancelled"))
	svc.On("Get", mock.Anything, client, uint64(5)).
		Return(model.ReservationDetail{}, apperror.NotFound("reservation not found"))

	h := NewReservationHandler(svc, time.Second)
	e := newEcho()
	e.DELETE("/reservations/:id", h.Delete, sessions)
	e.GET("/reservations/:id", h.Get, sessions)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodDelete, "/reservations/4", "staff", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/reservations/5", "client", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/reservations/abc", "client", "").Code)
}

type voucherMock struct{ mock.Mock }

func (m *voucherMock) Submit(ctx context.Context, a service.Actor, cmd service.SubmitVoucher) (model.Voucher, error) {
	args := m.Called(ctx, a, cmd)
	return args.Get(0).(model.Voucher), args.Error(1)
}

func (m *voucherMock) Review(ctx context.Context, a service.Actor, cmd service.ReviewVoucher) (model.Voucher, error) {
	args := m.Called(ctx, a, cmd)
	return args.Get(0).(model.Voucher), args.Error(1)
}

func (m *voucherMock) Get(ctx context.Context, a service.Actor, id uint64) (model.Voucher, error) {
	args := m.Called(ctx, a, id)
	return args.Get(0).(model.Voucher), args.Error(1)
}

func (m *voucherMock) List(ctx context.Context, a service.Actor, f repository.VoucherFilter) ([]model.Voucher, error) {
	args := m.Called(ctx, a, f)
	return args.Get(0).([]model.Voucher), args.Error(1)
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile("file", "receipt.png")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func TestSubmitVoucherReadsMultipart(t *testing.T) {
	svc := new(voucherMock)
	svc.On("Submit", mock.Anything, client, mock.MatchedBy(func(cmd service.SubmitVoucher) bool {
		return cmd.ReservationID == 9 && cmd.Method == model.PaymentTransfer &&
			cmd.Amount.Equal(decimal.RequireFromString("200.00")) &&
			cmd.PaidOn.Equal(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)) &&
			cmd.FileName == "receipt.png" && bytes.Equal(cmd.File, pngBytes)
	})).Return(model.Voucher{ID: 3, ReservationID: 9, Status: model.VoucherPending}, nil)

	h := NewVoucherHandler(svc, time.Second)
	e := newEcho()
	e.POST("/comprobantes", h.Submit, sessions)

	body, ct := multipartBody(t, map[string]string{
		"reservation_id": "9", "method": "Transfer", "amount": "200.00", "paid_on": "2025-02-28",
	}, pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/comprobantes", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.Header.Set(echo.HeaderAuthorization, "Bearer client")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", gjson.Get(rec.Body.String(), "data.status").String())
	svc.AssertExpectations(t)
}

func TestSubmitVoucherRequiresFile(t *testing.T) {
	svc := new(voucherMock)
	h := NewVoucherHandler(svc, time.Second)
	e := newEcho()
	e.POST("/comprobantes", h.Submit, sessions)

	body, ct := multipartBody(t, map[string]string{"reservation_id": "9", "amount": "10"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/comprobantes", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.Header.Set(echo.HeaderAuthorization, "Bearer client")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file is required", gjson.Get(rec.Body.String(), "message").String())
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewVoucherPassesOutcome(t *testing.T) {
	svc := new(voucherMock)
	svc.On("Review", mock.Anything, staff, service.ReviewVoucher{VoucherID: 3, Outcome: model.VoucherConfirmed, Notes: "ok"}).
		Return(model.Voucher{ID: 3, Status: model.VoucherConfirmed}, nil)
	h := NewVoucherHandler(svc, time.Second)
	e := newEcho()
	e.PUT("/comprobantes/:id", h.Review, sessions)

	rec := do(e, http.MethodPut, "/comprobantes/3", "staff", `{"status":"CONFIRMED","notes":" ok "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", gjson.Get(rec.Body.String(), "data.status").String())
	svc.AssertExpectations(t)
}

type availabilityMock struct{ mock.Mock }

func (m *availabilityMock) Check(ctx context.Context, q service.AvailabilityQuery) ([]service.AvailableRoom, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]service.AvailableRoom), args.Error(1)
}

// catalogStub satisfies CatalogService for tests that only hit
// availability.
type catalogStub struct{ CatalogService }

func TestAvailabilityQuery(t *testing.T) {
	av := new(availabilityMock)
	total := decimal.RequireFromString("200.00")
	av.On("Check", mock.Anything, mock.MatchedBy(func(q service.AvailabilityQuery) bool {
		return q.CheckIn != nil && q.CheckOut != nil && q.RoomTypeID == 2 &&
			q.CheckIn.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	})).Return([]service.AvailableRoom{{Room: model.Room{ID: 101, Number: "101"}, Nights: 2, EstimatedTotal: &total}}, nil)

	h := NewCatalogHandler(catalogStub{}, av, time.Second)
	e := newEcho()
	e.GET("/disponibilidad", h.Availability)

	rec := do(e, http.MethodGet, "/disponibilidad?checkin=2025-03-01&checkout=2025-03-03&room_type_id=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "data.#").Int())
	assert.Equal(t, int64(2), gjson.Get(body, "data.0.nights").Int())
	assert.Equal(t, "200", gjson.Get(body, "data.0.estimated_total").String())

	rec = do(e, http.MethodGet, "/disponibilidad?checkin=tomorrow", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(e, http.MethodGet, "/disponibilidad?room_type_id=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	av.AssertNumberOfCalls(t, "Check", 1)
}

func TestHealth(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("refused") }

	e := newEcho()
	e.GET("/ok", NewHealthHandler(up, nil).Health)
	e.GET("/cache-down", NewHealthHandler(up, down).Health)
	e.GET("/db-down", NewHealthHandler(down, up).Health)

	rec := do(e, http.MethodGet, "/ok", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", gjson.Get(rec.Body.String(), "data.checks.redis").String())

	rec = do(e, http.MethodGet, "/cache-down", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "down", gjson.Get(rec.Body.String(), "data.checks.redis").String())

	rec = do(e, http.MethodGet, "/db-down", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, gjson.Get(rec.Body.String(), "success").Bool())
	assert.Equal(t, "down", gjson.Get(rec.Body.String(), "data.checks.database").String())
}

func TestPageClampsLimitAndBoundsOffset(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
		bad    bool
	}{
		{"", 50, 0, false},
		{"limit=20&offset=40", 20, 40, false},
		{"limit=500", 200, 0, false},
		{"limit=-1", 0, 0, true},
		{"offset=18446744073709551615", 0, 0, true},
		{"offset=1000001", 0, 0, true},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/reservations?"+tt.query, nil)
			c := e.NewContext(req, httptest.NewRecorder())
			limit, offset, err := page(c)
			if tt.bad {
				require.Error(t, err)
				assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}
