package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation is the aggregate root of the booking workflow.  Total always
// equals the sum of its room lines.
//
// Fields:
//  Code      – human readable unique code (RES-<ms>-<rand>).
//  CheckIn   – first night, inclusive.
//  CheckOut  – departure, exclusive.
//  CreatedBy – user that placed the reservation.
type Reservation struct {
	ID        uint64            `json:"id"`
	Code      string            `json:"code"`
	ClientID  uint64            `json:"client_id"`
	CheckIn   time.Time         `json:"check_in"`
	CheckOut  time.Time         `json:"check_out"`
	Guests    int               `json:"guests"`
	Status    ReservationStatus `json:"status"`
	Total     decimal.Decimal   `json:"total"`
	Notes     string            `json:"notes"`
	CreatedBy uint64            `json:"created_by"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ReservationRoom links a reservation to a room with the price frozen at
// booking time.  Later changes to the room type never touch these values.
type ReservationRoom struct {
	ID            uint64          `json:"id"`
	ReservationID uint64          `json:"reservation_id"`
	RoomID        uint64          `json:"room_id"`
	RoomNumber    string          `json:"room_number,omitempty"`
	TypeName      string          `json:"type_name,omitempty"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	Nights        int             `json:"nights"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// ReservationDetail is the read model returned by the detail endpoint.
type ReservationDetail struct {
	Reservation
	ClientName  string            `json:"client_name"`
	ClientEmail string            `json:"client_email"`
	Rooms       []ReservationRoom `json:"rooms"`
	Vouchers    []Voucher         `json:"vouchers"`
	InvoiceID   *uint64           `json:"invoice_id,omitempty"`
}

// ReservationFilter narrows reservation listings.  Zero values are ignored.
type ReservationFilter struct {
	Status   ReservationStatus
	ClientID uint64
	From     *time.Time // check_in >= From
	To       *time.Time // check_in < To
	Limit    int
	Offset   int
}
