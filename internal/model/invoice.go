package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the header of the financial document issued for a confirmed
// reservation.  There is at most one invoice per reservation.
type Invoice struct {
	ID            uint64          `json:"id"`
	Number        string          `json:"number"`
	ReservationID uint64          `json:"reservation_id"`
	ClientID      uint64          `json:"client_id"`
	IssuedBy      uint64          `json:"issued_by"`
	IssuedAt      time.Time       `json:"issued_at"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Status        InvoiceStatus   `json:"status"`
	DocumentID    *string         `json:"document_id,omitempty"`
	DocumentLink  *string         `json:"document_link"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Lines           []InvoiceLine `json:"lines,omitempty"`
	ReservationCode string        `json:"reservation_code,omitempty"`
	ClientName      string        `json:"client_name,omitempty"`
	ClientEmail     string        `json:"client_email,omitempty"`
}

// InvoiceLine mirrors one reserved room.
type InvoiceLine struct {
	ID          uint64          `json:"id"`
	InvoiceID   uint64          `json:"invoice_id"`
	RoomID      uint64          `json:"room_id"`
	Description string          `json:"description"`
	Nights      int             `json:"nights"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status        InvoiceStatus
	ClientID      uint64
	ReservationID uint64
	Limit         int
	Offset        int
}

// Stats aggregates dashboard figures.
type Stats struct {
	Reservations struct {
		Total            int             `json:"total"`
		Pending          int             `json:"pending"`
		Confirmed        int             `json:"confirmed"`
		Cancelled        int             `json:"cancelled"`
		EstimatedRevenue decimal.Decimal `json:"estimated_revenue"`
	} `json:"reservations"`
	Rooms struct {
		Total       int `json:"total"`
		Free        int `json:"free"`
		Held        int `json:"held"`
		Occupied    int `json:"occupied"`
		Maintenance int `json:"maintenance"`
	} `json:"rooms"`
	Invoices struct {
		Total         int             `json:"total"`
		Active        int             `json:"active"`
		Paid          int             `json:"paid"`
		Void          int             `json:"void"`
		BilledRevenue decimal.Decimal `json:"billed_revenue"`
	} `json:"invoices"`
	UniqueClients  int            `json:"unique_clients"`
	TopRooms       []RoomUsage    `json:"top_rooms"`
	MonthlyRevenue []MonthRevenue `json:"monthly_revenue"`
}

type RoomUsage struct {
	RoomID       uint64 `json:"room_id"`
	Number       string `json:"number"`
	TypeName     string `json:"type_name"`
	Reservations int    `json:"reservations"`
}

type MonthRevenue struct {
	Month   string          `json:"month"` // YYYY-MM
	Revenue decimal.Decimal `json:"revenue"`
}
