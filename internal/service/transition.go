package service

import (
	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

var reservationTransitions = map[model.ReservationStatus][]model.ReservationStatus{
	model.ReservationPending:   {model.ReservationConfirmed, model.ReservationCancelled},
	model.ReservationConfirmed: {model.ReservationCancelled},
}

var roomTransitions = map[model.RoomStatus][]model.RoomStatus{
	model.RoomFree:        {model.RoomOccupied, model.RoomHeld, model.RoomMaintenance},
	model.RoomOccupied:    {model.RoomFree, model.RoomMaintenance},
	model.RoomHeld:        {model.RoomOccupied, model.RoomFree, model.RoomMaintenance},
	model.RoomMaintenance: {model.RoomFree},
}

// CanTransitionReservation reports whether from -> to is in the table.
func CanTransitionReservation(from, to model.ReservationStatus) bool {
	for _, s := range reservationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionRoom reports whether a manual room change from -> to is
// allowed.
func CanTransitionRoom(from, to model.RoomStatus) bool {
	for _, s := range roomTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkReservationTransition leaving a cancelled reservation is a
// conflict; any other pair outside the table is a validation error.
func checkReservationTransition(from, to model.ReservationStatus) error {
	if from.Terminal() {
		return apperror.Conflict("reservation is cancelled and cannot change")
	}
	if !to.Valid() || !CanTransitionReservation(from, to) {
		return apperror.Validationf("cannot change reservation from %s to %s", from, to)
	}
	return nil
}
