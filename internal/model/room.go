package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomType is catalog reference data shared by many rooms.  BasePrice is
// the nightly rate copied into reservation lines at booking time.
type RoomType struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	MaxCapacity int             `json:"max_capacity"`
	Amenities   []string        `json:"amenities"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Room is a physical unit.  Number is globally unique.
type Room struct {
	ID         uint64     `json:"id"`
	Number     string     `json:"number"`
	Floor      int        `json:"floor"`
	RoomTypeID uint64     `json:"room_type_id"`
	Status     RoomStatus `json:"status"`
	Notes      string     `json:"notes"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Joined from room_types on reads.
	TypeName    string          `json:"type_name,omitempty"`
	BasePrice   decimal.Decimal `json:"base_price"`
	MaxCapacity int             `json:"max_capacity,omitempty"`
	Amenities   []string        `json:"amenities,omitempty"`
}
