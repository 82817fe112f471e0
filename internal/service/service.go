// Package service implements the hotel workflows on top of the
// repositories: bookings, vouchers, invoices, the room catalog and
// accounts.  Every exported method returns *apperror.Error values (or
// errors wrapping them) so handlers can map failures to statuses.
package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uint64
	Role   model.Role
}

func (a Actor) Staff() bool { return a.Role.Staff() }

// Repos bundles the repositories shared by the services.
type Repos struct {
	Users        *repository.UserRepo
	Sessions     *repository.SessionRepo
	Clients      *repository.ClientRepo
	RoomTypes    *repository.RoomTypeRepo
	Rooms        *repository.RoomRepo
	Reservations *repository.ReservationRepo
	Vouchers     *repository.VoucherRepo
	Invoices     *repository.InvoiceRepo
	Stats        *repository.StatsRepo
}

// NewRepos builds every repository over one pool.
func NewRepos(db *sql.DB) Repos {
	return Repos{
		Users:        repository.NewUserRepo(db),
		Sessions:     repository.NewSessionRepo(db),
		Clients:      repository.NewClientRepo(db),
		RoomTypes:    repository.NewRoomTypeRepo(db),
		Rooms:        repository.NewRoomRepo(db),
		Reservations: repository.NewReservationRepo(db),
		Vouchers:     repository.NewVoucherRepo(db),
		Invoices:     repository.NewInvoiceRepo(db),
		Stats:        repository.NewStatsRepo(db),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the shared validator so the HTTP layer binds with the
// same rules.
func Validator() *validator.Validate { return validate }

// Check validates a request struct with the shared rules.
func Check(v any) error { return check(v) }

// check validates a command and turns the first failure into a
// validation error naming the field.
func check(cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperror.Validation(describe(verrs[0]))
	}
	return apperror.Validation(err.Error())
}

func describe(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", field, toSnake(fe.Param()))
	case "unique":
		return field + " must not contain duplicates"
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func positive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return apperror.Validationf("%s must be greater than zero", field)
	}
	return nil
}

// dbErr maps repository and pool errors to apperror kinds.  what names
// the entity for not-found messages.
func dbErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperror.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(what + " not found")
	case errors.Is(err, database.ErrPoolExhausted):
		return apperror.PoolExhausted(err)
	case errors.Is(err, repository.ErrReferenced):
		return apperror.Conflictf("%s is referenced by other records", what)
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.Conflictf("%s already exists", what)
	}
	return apperror.Infra("database error", err)
}

// rollback undoes tx unless the caller committed.  Used with defer.
func rollback(tx *database.Tx, committed *bool) {
	if !*committed {
		_ = tx.Rollback()
	}
}

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
