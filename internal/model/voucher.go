package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Voucher is an uploaded proof of payment awaiting staff review.
type Voucher struct {
	ID            uint64          `json:"id"`
	ReservationID uint64          `json:"reservation_id"`
	Method        PaymentMethod   `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	PaidOn        time.Time       `json:"paid_on"`
	FileID        string          `json:"file_id"`
	FileName      string          `json:"file_name"`
	MimeType      string          `json:"mime_type"`
	SizeBytes     int64           `json:"size_bytes"`
	ViewLink      string          `json:"view_link"`
	DownloadLink  string          `json:"download_link"`
	Status        VoucherStatus   `json:"status"`
	Notes         string          `json:"notes"`
	ReviewedBy    *uint64         `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
