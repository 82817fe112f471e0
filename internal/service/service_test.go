package service

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/database"
)

var (
	fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	staff  = Actor{UserID: 1, Role: "staff"}
	client = Actor{UserID: 7, Role: "client"}

	roomColumns = []string{"id", "number", "floor", "room_type_id", "status", "notes", "created_at", "updated_at",
		"name", "base_price", "max_capacity", "amenities"}
	reservationColumns = []string{"id", "code", "client_id", "check_in", "check_out", "guests", "status", "total",
		"notes", "created_by", "created_at", "updated_at"}
	lineColumns   = []string{"id", "reservation_id", "room_id", "number", "name", "price_per_night", "nights", "subtotal"}
	clientColumns = []string{"id", "user_id", "first_name", "last_name", "email", "phone", "document_type",
		"document_number", "address", "is_active", "created_at", "updated_at"}
	userColumns    = []string{"id", "email", "password_hash", "full_name", "role", "is_active", "created_at", "updated_at"}
	voucherColumns = []string{"id", "reservation_id", "method", "amount", "paid_on", "file_id", "file_name", "mime_type",
		"size_bytes", "view_link", "download_link", "status", "notes", "reviewed_by", "reviewed_at", "created_at", "updated_at"}
)

// newMockDB returns a pool backed by sqlmock together with every repository.
func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock, Repos) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return database.New(sqlDB, time.Second), mock, NewRepos(sqlDB)
}

func newServices(t *testing.T) (*ReservationService, *InvoiceService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, repos := newMockDB(t)
	inv := NewInvoiceService(db, repos, InvoiceDeps{})
	inv.now = func() time.Time { return fixedNow }
	res := NewReservationService(db, repos, inv, nil)
	res.now = func() time.Time { return fixedNow }
	return res, inv, mock
}

func reservationRow(id uint64, status string, in, out time.Time, total string) *sqlmock.Rows {
	return sqlmock.NewRows(reservationColumns).
		AddRow(id, "RES-1-ABCDE", 3, in, out, 2, status, total, "", 1, fixedNow, fixedNow)
}

func clientRow(id uint64) *sqlmock.Rows {
	return sqlmock.NewRows(clientColumns).
		AddRow(id, nil, "Ana", "Diaz", "ana@example.com", "", "CC", "123", "", true, fixedNow, fixedNow)
}

// decimalArg matches a driver value holding the given decimal amount.
type decimalArg string

func (d decimalArg) Match(v driver.Value) bool {
	var got decimal.Decimal
	if err := got.Scan(v); err != nil {
		return false
	}
	return got.Equal(decimal.RequireFromString(string(d)))
}

func assertKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperror.KindOf(err), err.Error())
}
