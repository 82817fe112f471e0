package model

// RoomStatus is the operational state of a physical room.
type RoomStatus string

const (
	RoomFree        RoomStatus = "free"
	RoomHeld        RoomStatus = "held"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

// Valid reports whether s is one of the known room states.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomFree, RoomHeld, RoomOccupied, RoomMaintenance:
		return true
	}
	return false
}

// ReservationStatus is the workflow state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s ReservationStatus) Terminal() bool { return s == ReservationCancelled }

// VoucherStatus is the review state of a payment proof.
type VoucherStatus string

const (
	VoucherPending   VoucherStatus = "pending"
	VoucherConfirmed VoucherStatus = "confirmed"
	VoucherRejected  VoucherStatus = "rejected"
)

func (s VoucherStatus) Terminal() bool { return s == VoucherConfirmed || s == VoucherRejected }

// InvoiceStatus is the accounting state of an invoice header.
type InvoiceStatus string

const (
	InvoiceActive InvoiceStatus = "active"
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceVoid   InvoiceStatus = "void"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceActive, InvoicePaid, InvoiceVoid:
		return true
	}
	return false
}

// Role is the authorization role attached to a user and to its session token.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleClient:
		return true
	}
	return false
}

// Staff reports whether r may act on behalf of any client.
func (r Role) Staff() bool { return r == RoleAdmin || r == RoleStaff }

// PaymentMethod describes how a voucher was paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCard     PaymentMethod = "card"
	PaymentDeposit  PaymentMethod = "deposit"
	PaymentOther    PaymentMethod = "other"
)
