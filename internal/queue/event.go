// Package queue carries notification events over RabbitMQ.  Services
// publish after their transaction commits; the consumer renders and sends
// the emails.
package queue

import "time"

// Event types.  The type doubles as the routing discriminator read by the
// consumer.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventVoucherReceived      = "voucher.received"
	EventInvoiceIssued        = "invoice.issued"
	EventClientRegistered     = "client.registered"
)

// Event is the single payload published on the notification queue.  It
// holds enough for the consumer to build an email without reading the
// database.
type Event struct {
	Type        string           `json:"type"`
	OccurredAt  string           `json:"occurred_at"`
	Email       string           `json:"email"`
	Name        string           `json:"name"`
	Reservation *ReservationInfo `json:"reservation,omitempty"`
	Voucher     *VoucherInfo     `json:"voucher,omitempty"`
	Invoice     *InvoiceInfo     `json:"invoice,omitempty"`
}

type ReservationInfo struct {
	ID       uint64     `json:"id"`
	Code     string     `json:"code"`
	Status   string     `json:"status"`
	CheckIn  string     `json:"check_in"`
	CheckOut string     `json:"check_out"`
	Guests   int        `json:"guests"`
	Total    string     `json:"total"`
	Rooms    []RoomInfo `json:"rooms"`
}

type RoomInfo struct {
	Number        string `json:"number"`
	Type          string `json:"type"`
	PricePerNight string `json:"price_per_night"`
	Nights        int    `json:"nights"`
}

type VoucherInfo struct {
	ID       uint64 `json:"id"`
	Method   string `json:"method"`
	Amount   string `json:"amount"`
	FileName string `json:"file_name"`
	ViewLink string `json:"view_link"`
}

type InvoiceInfo struct {
	ID           uint64 `json:"id"`
	Number       string `json:"number"`
	Subtotal     string `json:"subtotal"`
	Tax          string `json:"tax"`
	Total        string `json:"total"`
	DocumentLink string `json:"document_link,omitempty"`
}

// NewEvent stamps an event of the given type for a recipient.
func NewEvent(typ, email, name string) Event {
	return Event{Type: typ, OccurredAt: time.Now().UTC().Format(time.RFC3339), Email: email, Name: name}
}
