package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// Overlaps reports whether the half-open stays [aIn, aOut) and [bIn, bOut)
// share at least one instant.  Back-to-back stays do not overlap.
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return aIn.Before(bOut) && bIn.Before(aOut)
}

// Nights counts started 24h periods between check-in and check-out.
func Nights(checkIn, checkOut time.Time) int {
	d := checkOut.Sub(checkIn)
	if d <= 0 {
		return 0
	}
	n := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		n++
	}
	return n
}

// AvailabilityQuery filters the free-room search.  Both dates or neither.
type AvailabilityQuery struct {
	CheckIn    *time.Time
	CheckOut   *time.Time
	RoomTypeID uint64
}

// AvailableRoom is a free room with the stay estimate when dates were
// given.
type AvailableRoom struct {
	model.Room
	Nights         int              `json:"nights,omitempty"`
	EstimatedTotal *decimal.Decimal `json:"estimated_total,omitempty"`
}

// AvailabilityService answers availability searches.  Reads are
// optimistic; the booking transaction re-checks under lock.
type AvailabilityService struct {
	rooms *repository.RoomRepo
}

func NewAvailabilityService(r Repos) *AvailabilityService {
	if r.Rooms == nil {
		panic("nil room repository passed to NewAvailabilityService")
	}
	return &AvailabilityService{rooms: r.Rooms}
}

func (s *AvailabilityService) Check(ctx context.Context, q AvailabilityQuery) ([]AvailableRoom, error) {
	if (q.CheckIn == nil) != (q.CheckOut == nil) {
		return nil, apperror.Validation("check-in and check-out must be given together")
	}
	nights := 0
	if q.CheckIn != nil {
		if !q.CheckOut.After(*q.CheckIn) {
			return nil, apperror.Validation("check-out must be after check-in")
		}
		nights = Nights(*q.CheckIn, *q.CheckOut)
	}
	rooms, err := s.rooms.Available(ctx, q.CheckIn, q.CheckOut, q.RoomTypeID)
	if err != nil {
		return nil, dbErr(err, "room")
	}
	out := make([]AvailableRoom, 0, len(rooms))
	for _, r := range rooms {
		ar := AvailableRoom{Room: r}
		if nights > 0 {
			total := r.BasePrice.Mul(decimal.NewFromInt(int64(nights)))
			ar.Nights = nights
			ar.EstimatedTotal = &total
		}
		out = append(out, ar)
	}
	return out, nil
}
