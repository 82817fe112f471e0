package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// CreateReservation books rooms for a client.  ClientID is required from
// staff; client users book for their own profile.  HoldRooms moves the
// rooms to held immediately instead of waiting for a voucher.
type CreateReservation struct {
	ClientID  uint64
	CheckIn   time.Time `validate:"required"`
	CheckOut  time.Time `validate:"required,gtfield=CheckIn"`
	Guests    int       `validate:"required,min=1,max=50"`
	RoomIDs   []uint64  `validate:"required,min=1,max=20,unique,dive,required"`
	Notes     string    `validate:"max=1000"`
	HoldRooms bool
}

// UpdateReservation carries optional changes.
type UpdateReservation struct {
	Status   *model.ReservationStatus `validate:"omitempty,oneof=pending confirmed cancelled"`
	Notes    *string                  `validate:"omitempty,max=1000"`
	CheckIn  *time.Time
	CheckOut *time.Time
}

type SubmitVoucher struct {
	ReservationID uint64              `validate:"required"`
	File          []byte              `validate:"required"`
	FileName      string              `validate:"max=255"`
	Method        model.PaymentMethod `validate:"required,oneof=cash transfer card deposit other"`
	Amount        decimal.Decimal
	PaidOn        time.Time `validate:"required"`
	Notes         string    `validate:"max=1000"`
}

type ReviewVoucher struct {
	VoucherID uint64              `validate:"required"`
	Outcome   model.VoucherStatus `validate:"required,oneof=confirmed rejected"`
	Notes     string              `validate:"max=1000"`
}

type CreateRoomType struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=1000"`
	BasePrice   decimal.Decimal
	MaxCapacity int      `validate:"required,min=1,max=20"`
	Amenities   []string `validate:"max=30,dive,required,max=60"`
}

type UpdateRoomType struct {
	Name        *string `validate:"omitempty,max=100"`
	Description *string `validate:"omitempty,max=1000"`
	BasePrice   *decimal.Decimal
	MaxCapacity *int     `validate:"omitempty,min=1,max=20"`
	Amenities   []string `validate:"omitempty,max=30,dive,required,max=60"`
}

type CreateRoom struct {
	Number     string `validate:"required,max=10"`
	Floor      int    `validate:"min=0,max=200"`
	RoomTypeID uint64 `validate:"required"`
	Notes      string `validate:"max=500"`
}

type UpdateRoom struct {
	Number     *string `validate:"omitempty,max=10"`
	Floor      *int    `validate:"omitempty,min=0,max=200"`
	RoomTypeID *uint64 `validate:"omitempty,min=1"`
	Notes      *string `validate:"omitempty,max=500"`
}

type ChangeRoomStatus struct {
	Status model.RoomStatus `validate:"required,oneof=free held occupied maintenance"`
}

type Login struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// RegisterClient is the public self-registration form.
type RegisterClient struct {
	Email          string `validate:"required,email,max=255"`
	Password       string `validate:"required,min=8,max=72"`
	FirstName      string `validate:"required,max=100"`
	LastName       string `validate:"required,max=100"`
	Phone          string `validate:"max=30"`
	DocumentType   string `validate:"max=20"`
	DocumentNumber string `validate:"required,max=30"`
	Address        string `validate:"max=255"`
}

// CreateClient registers a walk-in guest without an account.
type CreateClient struct {
	Email          string `validate:"omitempty,email,max=255"`
	FirstName      string `validate:"required,max=100"`
	LastName       string `validate:"required,max=100"`
	Phone          string `validate:"max=30"`
	DocumentType   string `validate:"max=20"`
	DocumentNumber string `validate:"required,max=30"`
	Address        string `validate:"max=255"`
}

type UpdateClient struct {
	Email          *string `validate:"omitempty,email,max=255"`
	FirstName      *string `validate:"omitempty,min=1,max=100"`
	LastName       *string `validate:"omitempty,min=1,max=100"`
	Phone          *string `validate:"omitempty,max=30"`
	DocumentType   *string `validate:"omitempty,max=20"`
	DocumentNumber *string `validate:"omitempty,min=1,max=30"`
	Address        *string `validate:"omitempty,max=255"`
}

type CreateUser struct {
	Email    string     `validate:"required,email,max=255"`
	Password string     `validate:"required,min=8,max=72"`
	FullName string     `validate:"required,max=150"`
	Role     model.Role `validate:"required,oneof=admin staff client"`
}

type UpdateUser struct {
	Email    *string     `validate:"omitempty,email,max=255"`
	Password *string     `validate:"omitempty,min=8,max=72"`
	FullName *string     `validate:"omitempty,min=1,max=150"`
	Role     *model.Role `validate:"omitempty,oneof=admin staff client"`
	IsActive *bool
}
