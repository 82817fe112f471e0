package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

// ReservationService runs the booking state machine.  Every mutation locks
// the rows it changes inside one transaction; notifications go out only
// after commit.
type ReservationService struct {
	db        *database.DB
	repos     Repos
	invoices  *InvoiceService
	publisher queue.Publisher
	now       func() time.Time
}

func NewReservationService(db *database.DB, r Repos, invoices *InvoiceService, pub queue.Publisher) *ReservationService {
	if db == nil || r.Reservations == nil || r.Rooms == nil || r.Clients == nil || invoices == nil {
		panic("nil dependency passed to NewReservationService")
	}
	return &ReservationService{db: db, repos: r, invoices: invoices, publisher: pub, now: time.Now}
}

// Create books the requested rooms for [CheckIn, CheckOut).  Either every
// room is booked or none is.
func (s *ReservationService) Create(ctx context.Context, actor Actor, cmd CreateReservation) (model.ReservationDetail, error) {
	if err := check(cmd); err != nil {
		return model.ReservationDetail{}, err
	}
	now := s.now()
	if cmd.CheckIn.Before(startOfDay(now).AddDate(0, 0, -1)) {
		return model.ReservationDetail{}, apperror.Validation("check-in date cannot be in the past")
	}
	nights := Nights(cmd.CheckIn, cmd.CheckOut)
	if nights < 1 {
		return model.ReservationDetail{}, apperror.Validation("stay must be at least one night")
	}
	client, err := s.clientFor(ctx, actor, cmd.ClientID)
	if err != nil {
		return model.ReservationDetail{}, err
	}
	if !client.IsActive {
		return model.ReservationDetail{}, apperror.Validation("client is inactive")
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return model.ReservationDetail{}, dbErr(err, "reservation")
	}
	committed := false
	defer rollback(tx, &committed)

	rooms, err := s.repos.Rooms.LockTx(ctx, tx.Tx, cmd.RoomIDs)
	if err != nil {
		return model.ReservationDetail{}, dbErr(err, "room")
	}
	if len(rooms) != len(cmd.RoomIDs) {
		return model.ReservationDetail{}, apperror.NotFound("one or more rooms not found")
	}
	capacity := 0
	for _, r := range rooms {
		if r.Status != model.RoomFree {
			return model.ReservationDetail{}, apperror.Conflictf("room %s is not available (%s)", r.Number, r.Status)
		}
		capacity += r.MaxCapacity
	}
	if cmd.Guests > capacity {
		return model.ReservationDetail{}, apperror.Validationf("%d guests exceed the capacity of the selected rooms (%d)", cmd.Guests, capacity)
	}
	busy, err := s.repos.Reservations.OverlappingRoomsTx(ctx, tx.Tx, cmd.RoomIDs, cmd.CheckIn, cmd.CheckOut, 0)
	if err != nil {
		return model.ReservationDetail{}, dbErr(err, "reservation")
	}
	if len(busy) > 0 {
		return model.ReservationDetail{}, apperror.Conflictf("room %s is already reserved for the selected dates", roomNumber(rooms, busy[0]))
	}

	lines, total := priceLines(rooms, nights)
	res := model.Reservation{
		Code:      utils.ReservationCode(now),
		ClientID:  client.ID,
		CheckIn:   cmd.CheckIn,
		CheckOut:  cmd.CheckOut,
		Guests:    cmd.Guests,
		Status:    model.ReservationPending,
		Total:     total,
		Notes:     cmd.Notes,
		CreatedBy: actor.UserID,
	}
	if err := s.repos.Reservations.CreateTx(ctx, tx.Tx, &res); err != nil {
		return model.ReservationDetail{}, dbErr(err, "reservation")
	}
	for i := range lines {
		lines[i].ReservationID = res.ID
	}
	if err := s.repos.Reservations.CreateRoomsBulkTx(ctx, tx.Tx, lines); err != nil {
		return model.ReservationDetail{}, dbErr(err, "reservation")
	}
	if cmd.HoldRooms {
		if _, err := s.repos.Rooms.UpdateStatusTx(ctx, tx.Tx, cmd.RoomIDs, model.RoomHeld, model.RoomFree); err != nil {
			return model.ReservationDetail{}, dbErr(err, "room")
		}
	}
	if err := tx.Commit(); err != nil {
		return model.ReservationDetail{}, apperror.Infra("commit failed", err)
	}
	committed = true

	detail := model.ReservationDetail{
		Reservation: res,
		ClientName:  client.FullName(),
		ClientEmail: client.Email,
		Rooms:       lines,
		Vouchers:    []model.Voucher{},
	}
	queue.PublishAsync(ctx, s.publisher, reservationEvent(queue.EventReservationCreated, detail))
	return detail, nil
}

// priceLines freezes the current base price of each room on a new line.
func priceLines(rooms []model.Room, nights int) ([]model.ReservationRoom, decimal.Decimal) {
	total := decimal.Zero
	lines := make([]model.ReservationRoom, 0, len(rooms))
	n := decimal.NewFromInt(int64(nights))
	for _, r := range rooms {
		sub := r.BasePrice.Mul(n)
		lines = append(lines, model.ReservationRoom{
			RoomID:        r.ID,
			RoomNumber:    r.Number,
			TypeName:      r.TypeName,
			PricePerNight: r.BasePrice,
			Nights:        nights,
			Subtotal:      sub,
		})
		total = total.Add(sub)
	}
	return lines, total
}

func roomNumber(rooms []model.Room, id uint64) string {
	for _, r := range rooms {
		if r.ID == id {
			return r.Number
		}
	}
	return "?"
}

// clientFor resolves the client a booking is made for.  Clients may only
// act for their own profile; staff may act for anyone.
func (s *ReservationService) clientFor(ctx context.Context, actor Actor, clientID uint64) (model.Client, error) {
	if actor.Staff() {
		if clientID == 0 {
			return model.Client{}, apperror.Validation("client_id is required")
		}
		c, err := s.repos.Clients.GetByID(ctx, clientID)
		return c, dbErr(err, "client")
	}
	own, err := s.repos.Clients.GetByUserID(ctx, actor.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Client{}, apperror.Forbidden("no client profile linked to this account")
	}
	if err != nil {
		return model.Client{}, dbErr(err, "client")
	}
	if clientID != 0 && clientID != own.ID {
		return model.Client{}, apperror.Forbidden("clients may only book for themselves")
	}
	return own, nil
}

// ownClientID returns the client id a non-staff actor is restricted to.
// ok is false for staff.
func (s *ReservationService) ownClientID(ctx context.Context, actor Actor) (uint64, bool, error) {
	if actor.Staff() {
		return 0, false, nil
	}
	c, err := s.repos.Clients.GetByUserID(ctx, actor.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, true, nil
	}
	if err != nil {
		return 0, true, dbErr(err, "client")
	}
	return c.ID, true, nil
}

// Get returns a reservation with its client, rooms, vouchers and invoice.
// Reservations of other clients look missing to client users.
func (s *ReservationService) Get(ctx context.Context, actor Actor, id uint64) (model.ReservationDetail, error) {
	res, err := s.repos.Reservations.GetByID(ctx, id)
	if err != nil {
		return model.ReservationDetail{}, dbErr(err, "reservation")
	}
	if own, scoped, err := s.ownClientID(ctx, actor); err != nil {
		return model.ReservationDetail{}, err
	} else if scoped && own != res.ClientID {
		return model.ReservationDetail{}, apperror.NotFound("reservation not found")
	}
	return s.detail(ctx, res)
}

func (s *ReservationService) detail(ctx context.Context, res model.Reservation) (model.ReservationDetail, error) {
	d := model.ReservationDetail{Reservation: res}
	client, err := s.repos.Clients.GetByID(ctx, res.ClientID)
	if err != nil {
		return d, dbErr(err, "client")
	}
	d.ClientName, d.ClientEmail = client.FullName(), client.Email
	if d.Rooms, err = s.repos.Reservations.ListRooms(ctx, nil, res.ID); err != nil {
		return d, dbErr(err, "reservation")
	}
	if d.Vouchers, err = s.repos.Vouchers.List(ctx, repository.VoucherFilter{ReservationID: res.ID}); err != nil {
		return d, dbErr(err, "voucher")
	}
	invID, err := s.repos.Invoices.IDForReservation(ctx, res.ID)
	switch {
	case err == nil:
		d.InvoiceID = &invID
	case !errors.Is(err, repository.ErrNotFound):
		return d, dbErr(err, "invoice")
	}
	return d, nil
}

// List returns reservations newest first; client users only see theirs.
func (s *ReservationService) List(ctx context.Context, actor Actor, f model.ReservationFilter) ([]model.ReservationDetail, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperror.Validationf("unknown status %q", f.Status)
	}
	own, scoped, err := s.ownClientID(ctx, actor)
	if err != nil {
		return nil, err
	}
	if scoped {
		if own == 0 {
			return []model.ReservationDetail{}, nil
		}
		f.ClientID = own
	}
	list, err := s.repos.Reservations.List(ctx, f)
	return list, dbErr(err, "reservation")
}

// Update changes notes, dates (pending only) and status.  Client users may
// only cancel and edit their own reservations.
func (s *ReservationService) Update(ctx context.Context, actor Actor, id uint64, cmd UpdateReservation) (model.ReservationDetail, error) {
	if err := check(cmd); err != nil {
		return model.ReservationDetail{}, err
	}
	if cmd.Status != nil && !actor.Staff() && *cmd.Status != model.ReservationCancelled {
		return model.ReservationDetail{}, apperror.Forbidden("clients may only cancel reservations")
	}
	own, scoped, err := s.ownClientID(ctx, actor)
	if err != nil {
		return model.ReservationDetail{}, err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return model.ReservationDetail{}, dbErr(err, "reservation")
	}
	committed := false
	defer rollback(tx, &committed)

	res, err := s.repos.Reservations.GetForUpdateTx(ctx, tx.Tx, id)
	if err != nil {
		return model.ReservationDetail{}, dbErr(err, "reservation")
	}
	if scoped && own != res.ClientID {
		return model.ReservationDetail{}, apperror.NotFound("reservation not found")
	}
	if res.Status.Terminal() {
		return model.ReservationDetail{}, apperror.Conflict("reservation is cancelled and cannot change")
	}

	changed := false
	if cmd.CheckIn != nil || cmd.CheckOut != nil {
		if err := s.rescheduleTx(ctx, tx.Tx, &res, cmd.CheckIn, cmd.CheckOut); err != nil {
			return model.ReservationDetail{}, err
		}
		changed = true
	}
	if cmd.Notes != nil && *cmd.Notes != res.Notes {
		res.Notes = *cmd.Notes
		changed = true
	}
	if changed {
		if err := s.repos.Reservations.UpdateDetailsTx(ctx, tx.Tx, res); err != nil {
			return model.ReservationDetail{}, dbErr(err, "reservation")
		}
	}

	var issued *model.Invoice
	event := ""
	if cmd.Status != nil {
		issued, err = s.transitionTx(ctx, tx.Tx, &res, *cmd.Status, actor.UserID)
		if err != nil {
			return model.ReservationDetail{}, err
		}
		event = statusEvent(res.Status)
	}
	if err := tx.Commit(); err != nil {
		return model.ReservationDetail{}, apperror.Infra("commit failed", err)
	}
	committed = true

	s.afterTransition(ctx, issued)
	d, err := s.detail(ctx, res)
	if err != nil {
		return model.ReservationDetail{}, err
	}
	if event != "" {
		queue.PublishAsync(ctx, s.publisher, reservationEvent(event, d))
	}
	return d, nil
}

// Cancel moves a reservation to cancelled and frees its rooms.
func (s *ReservationService) Cancel(ctx context.Context, actor Actor, id uint64) (model.ReservationDetail, error) {
	st := model.ReservationCancelled
	return s.Update(ctx, actor, id, UpdateReservation{Status: &st})
}

// rescheduleTx moves the stay of a pending reservation and reprices its
// lines from the prices frozen at booking.
func (s *ReservationService) rescheduleTx(ctx context.Context, tx *sql.Tx, res *model.Reservation, in, out *time.Time) error {
	if res.Status != model.ReservationPending {
		return apperror.Validation("dates can only change while the reservation is pending")
	}
	checkIn, checkOut := res.CheckIn, res.CheckOut
	if in != nil {
		checkIn = *in
	}
	if out != nil {
		checkOut = *out
	}
	if !checkOut.After(checkIn) {
		return apperror.Validation("check-out must be after check-in")
	}
	if in != nil && checkIn.Before(startOfDay(s.now()).AddDate(0, 0, -1)) {
		return apperror.Validation("check-in date cannot be in the past")
	}
	nights := Nights(checkIn, checkOut)

	lines, err := s.repos.Reservations.ListRooms(ctx, tx, res.ID)
	if err != nil {
		return dbErr(err, "reservation")
	}
	ids := repository.RoomIDs(lines)
	if _, err := s.repos.Rooms.LockTx(ctx, tx, ids); err != nil {
		return dbErr(err, "room")
	}
	busy, err := s.repos.Reservations.OverlappingRoomsTx(ctx, tx, ids, checkIn, checkOut, res.ID)
	if err != nil {
		return dbErr(err, "reservation")
	}
	if len(busy) > 0 {
		for _, l := range lines {
			if l.RoomID == busy[0] {
				return apperror.Conflictf("room %s is already reserved for the selected dates", l.RoomNumber)
			}
		}
		return apperror.Conflict("a room is already reserved for the selected dates")
	}
	total := decimal.Zero
	n := decimal.NewFromInt(int64(nights))
	for _, l := range lines {
		sub := l.PricePerNight.Mul(n)
		if err := s.repos.Reservations.UpdateRoomLineTx(ctx, tx, l.ID, nights, sub); err != nil {
			return dbErr(err, "reservation")
		}
		total = total.Add(sub)
	}
	res.CheckIn, res.CheckOut, res.Total = checkIn, checkOut, total
	return nil
}

// transitionTx applies a state change to a locked reservation together
// with its room cascade.  Confirming also issues the invoice when none
// exists yet; the new invoice is returned for post-commit work.
func (s *ReservationService) transitionTx(ctx context.Context, tx *sql.Tx, res *model.Reservation, to model.ReservationStatus, actorID uint64) (*model.Invoice, error) {
	if err := checkReservationTransition(res.Status, to); err != nil {
		return nil, err
	}
	lines, err := s.repos.Reservations.ListRooms(ctx, tx, res.ID)
	if err != nil {
		return nil, dbErr(err, "reservation")
	}
	ids := repository.RoomIDs(lines)

	switch to {
	case model.ReservationConfirmed:
		if _, err := s.repos.Rooms.UpdateStatusTx(ctx, tx, ids, model.RoomOccupied, model.RoomFree, model.RoomHeld); err != nil {
			return nil, dbErr(err, "room")
		}
	case model.ReservationCancelled:
		if _, err := s.repos.Rooms.UpdateStatusTx(ctx, tx, ids, model.RoomFree, model.RoomHeld, model.RoomOccupied); err != nil {
			return nil, dbErr(err, "room")
		}
	}
	if err := s.repos.Reservations.UpdateStatusTx(ctx, tx, res.ID, to); err != nil {
		return nil, dbErr(err, "reservation")
	}
	res.Status = to

	if to != model.ReservationConfirmed {
		return nil, nil
	}
	exists, err := s.repos.Invoices.ExistsForReservationTx(ctx, tx, res.ID)
	if err != nil {
		return nil, dbErr(err, "invoice")
	}
	if exists {
		return nil, nil
	}
	inv, err := s.invoices.GenerateTx(ctx, tx, res.ID, actorID)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// afterTransition runs the best-effort follow-up of an invoice issued
// inside a committed transaction.
func (s *ReservationService) afterTransition(ctx context.Context, inv *model.Invoice) {
	if inv == nil {
		return
	}
	s.invoices.afterIssue(ctx, *inv)
}

func statusEvent(st model.ReservationStatus) string {
	switch st {
	case model.ReservationConfirmed:
		return queue.EventReservationConfirmed
	case model.ReservationCancelled:
		return queue.EventReservationCancelled
	}
	return ""
}

func reservationEvent(typ string, d model.ReservationDetail) queue.Event {
	ev := queue.NewEvent(typ, d.ClientEmail, d.ClientName)
	ev.Reservation = reservationInfo(d)
	return ev
}

func reservationInfo(d model.ReservationDetail) *queue.ReservationInfo {
	info := &queue.ReservationInfo{
		ID:       d.ID,
		Code:     d.Code,
		Status:   string(d.Status),
		CheckIn:  d.CheckIn.Format("2006-01-02"),
		CheckOut: d.CheckOut.Format("2006-01-02"),
		Guests:   d.Guests,
		Total:    d.Total.StringFixed(2),
	}
	for _, l := range d.Rooms {
		info.Rooms = append(info.Rooms, queue.RoomInfo{
			Number:        l.RoomNumber,
			Type:          l.TypeName,
			PricePerNight: l.PricePerNight.StringFixed(2),
			Nights:        l.Nights,
		})
	}
	return info
}
