package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

var reservationStates = []model.ReservationStatus{model.ReservationPending, model.ReservationConfirmed, model.ReservationCancelled}

func TestReservationTransitionTable(t *testing.T) {
	allowed := map[[2]model.ReservationStatus]bool{
		{model.ReservationPending, model.ReservationConfirmed}:   true,
		{model.ReservationPending, model.ReservationCancelled}:   true,
		{model.ReservationConfirmed, model.ReservationCancelled}: true,
	}
	for _, from := range reservationStates {
		for _, to := range reservationStates {
			want := allowed[[2]model.ReservationStatus{from, to}]
			assert.Equal(t, want, CanTransitionReservation(from, to), "%s -> %s", from, to)

			err := checkReservationTransition(from, to)
			switch {
			case want:
				assert.NoError(t, err)
			case from == model.ReservationCancelled:
				assertKind(t, err, apperror.KindConflict)
			default:
				assertKind(t, err, apperror.KindValidation)
			}
		}
	}
	assertKind(t, checkReservationTransition(model.ReservationPending, "archived"), apperror.KindValidation)
}

func TestNothingLeavesCancelled(t *testing.T) {
	// walk every reachable state; once cancelled no edge leads out
	seen := map[model.ReservationStatus]bool{model.ReservationPending: true}
	queue := []model.ReservationStatus{model.ReservationPending}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range reservationTransitions[cur] {
			if cur == model.ReservationCancelled {
				t.Fatalf("transition out of cancelled to %s", next)
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	assert.Len(t, seen, 3)
	assert.Empty(t, reservationTransitions[model.ReservationCancelled])
}

func TestRoomTransitionTable(t *testing.T) {
	assert.True(t, CanTransitionRoom(model.RoomFree, model.RoomHeld))
	assert.True(t, CanTransitionRoom(model.RoomHeld, model.RoomOccupied))
	assert.True(t, CanTransitionRoom(model.RoomOccupied, model.RoomFree))
	assert.True(t, CanTransitionRoom(model.RoomMaintenance, model.RoomFree))
	assert.False(t, CanTransitionRoom(model.RoomMaintenance, model.RoomOccupied))
	assert.False(t, CanTransitionRoom(model.RoomOccupied, model.RoomHeld))
	assert.False(t, CanTransitionRoom(model.RoomFree, model.RoomFree))
}

func TestNights(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   time.Time
		out  time.Time
		want int
	}{
		{"one night", day, day.AddDate(0, 0, 1), 1},
		{"two nights", day, day.AddDate(0, 0, 2), 2},
		{"partial day rounds up", day, day.Add(25 * time.Hour), 2},
		{"same instant", day, day, 0},
		{"reversed", day.AddDate(0, 0, 1), day, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Nights(tt.in, tt.out))
		})
	}
}

// overlapByDays is the brute-force reference: two stays overlap when some
// night belongs to both.
func overlapByDays(aIn, aOut, bIn, bOut int) bool {
	for d := aIn; d < aOut; d++ {
		if d >= bIn && d < bOut {
			return true
		}
	}
	return false
}

func TestOverlapsMatchesReference(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	day := func(n int) time.Time { return base.AddDate(0, 0, n) }
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		aIn, bIn := rnd.Intn(30), rnd.Intn(30)
		aOut, bOut := aIn+1+rnd.Intn(10), bIn+1+rnd.Intn(10)
		want := overlapByDays(aIn, aOut, bIn, bOut)
		got := Overlaps(day(aIn), day(aOut), day(bIn), day(bOut))
		require.Equal(t, want, got, "[%d,%d) vs [%d,%d)", aIn, aOut, bIn, bOut)
		require.Equal(t, got, Overlaps(day(bIn), day(bOut), day(aIn), day(aOut)))
	}
	// back-to-back stays share no night
	assert.False(t, Overlaps(day(1), day(3), day(3), day(5)))
}

func TestAvailabilityCheck(t *testing.T) {
	_, mock, repos := newMockDB(t)
	svc := NewAvailabilityService(repos)
	in, out := stayIn, stayOut

	_, err := svc.Check(context.Background(), AvailabilityQuery{CheckIn: &in})
	assertKind(t, err, apperror.KindValidation)
	_, err = svc.Check(context.Background(), AvailabilityQuery{CheckIn: &out, CheckOut: &in})
	assertKind(t, err, apperror.KindValidation)

	mock.ExpectQuery(`NOT EXISTS`).WithArgs(out, in).
		WillReturnRows(sqlmock.NewRows(roomColumns).
			AddRow(4, "204", 2, 1, "free", "", fixedNow, fixedNow, "Double", "100.00", 2, nil))
	rooms, err := svc.Check(context.Background(), AvailabilityQuery{CheckIn: &in, CheckOut: &out})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, 2, rooms[0].Nights)
	require.NotNil(t, rooms[0].EstimatedTotal)
	assert.Equal(t, "200.00", rooms[0].EstimatedTotal.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}
