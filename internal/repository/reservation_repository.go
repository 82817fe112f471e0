package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// ReservationRepo provides persistence for reservations and their room
// lines.  Room lines store price_per_night and nights as they were when the
// reservation was made.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationCols = "id, code, client_id, check_in, check_out, guests, status, total, notes, created_by, created_at, updated_at"

// CreateTx inserts a new reservation within the scope of an existing
// transaction and reads the row back to populate the generated ID and
// timestamps.  The caller must commit or rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (code, client_id, check_in, check_out, guests, status, total, notes, created_by)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.Code, res.ClientID, res.CheckIn, res.CheckOut, res.Guests,
		string(res.Status), res.Total, res.Notes, res.CreatedBy)
	if err != nil {
		return mapErr(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	got, err := scanReservation(tx.QueryRowContext(ctx, "SELECT "+reservationCols+" FROM reservations WHERE id = ?", id))
	if err != nil {
		return err
	}
	*res = got
	return nil
}

// CreateRoomsBulkTx inserts multiple reservation_rooms rows in a single
// statement.  Passing an empty slice has no effect and returns nil.
func (r *ReservationRepo) CreateRoomsBulkTx(ctx context.Context, tx *sql.Tx, lines []model.ReservationRoom) error {
	if len(lines) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_rooms (reservation_id, room_id, price_per_night, nights, subtotal) VALUES `
	args := make([]interface{}, 0, len(lines)*5)
	for i, l := range lines {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, l.ReservationID, l.RoomID, l.PricePerNight, l.Nights, l.Subtotal)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID loads a reservation without locking.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx, "SELECT "+reservationCols+" FROM reservations WHERE id = ?", id))
}

// GetForUpdateTx loads and locks a reservation row.  Every state transition
// starts here, which serializes transitions per reservation.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx, "SELECT "+reservationCols+" FROM reservations WHERE id = ? FOR UPDATE", id))
}

// ListRooms returns the room lines of a reservation with room number and
// type name.  q may be a transaction.
func (r *ReservationRepo) ListRooms(ctx context.Context, q Querier, reservationID uint64) ([]model.ReservationRoom, error) {
	if q == nil {
		q = r.db
	}
	rows, err := q.QueryContext(ctx,
		`SELECT rr.id, rr.reservation_id, rr.room_id, h.number, t.name, rr.price_per_night, rr.nights, rr.subtotal
		   FROM reservation_rooms rr
		   JOIN rooms h ON h.id = rr.room_id
		   JOIN room_types t ON t.id = h.room_type_id
		  WHERE rr.reservation_id = ?
		  ORDER BY LENGTH(h.number), h.number`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationRoom{}
	for rows.Next() {
		var l model.ReservationRoom
		if err := rows.Scan(&l.ID, &l.ReservationID, &l.RoomID, &l.RoomNumber, &l.TypeName,
			&l.PricePerNight, &l.Nights, &l.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// RoomIDs returns the ids of the rooms assigned to a reservation.
func RoomIDs(lines []model.ReservationRoom) []uint64 {
	ids := make([]uint64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.RoomID)
	}
	return ids
}

// OverlappingRoomsTx returns which of roomIDs have a pending or confirmed
// reservation intersecting [checkIn, checkOut).  excludeID skips one
// reservation (the one being rescheduled).  Run inside the booking
// transaction after the rooms are locked.
func (r *ReservationRepo) OverlappingRoomsTx(ctx context.Context, tx *sql.Tx, roomIDs []uint64, checkIn, checkOut time.Time, excludeID uint64) ([]uint64, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT rr.room_id
	            FROM reservation_rooms rr
	            JOIN reservations r ON r.id = rr.reservation_id
	           WHERE rr.room_id IN (` + placeholders(len(roomIDs)) + `)
	             AND r.status IN ('pending','confirmed')
	             AND r.check_in < ? AND ? < r.check_out
	             AND r.id <> ?
	           ORDER BY rr.room_id`
	args := append(uint64Args(roomIDs), checkOut, checkIn, excludeID)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// List returns reservations matching f, newest first, with the client name.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.ReservationDetail, error) {
	query := `SELECT r.id, r.code, r.client_id, r.check_in, r.check_out, r.guests, r.status, r.total, r.notes,
	                 r.created_by, r.created_at, r.updated_at, c.first_name, c.last_name, c.email
	            FROM reservations r JOIN clients c ON c.id = r.client_id WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += " AND r.status = ?"
		args = append(args, string(f.Status))
	}
	if f.ClientID != 0 {
		query += " AND r.client_id = ?"
		args = append(args, f.ClientID)
	}
	if f.From != nil {
		query += " AND r.check_in >= ?"
		args = append(args, *f.From)
	}
	if f.To != nil {
		query += " AND r.check_in < ?"
		args = append(args, *f.To)
	}
	query += " ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?"
	args = append(args, pageLimit(f.Limit), f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationDetail{}
	for rows.Next() {
		var d model.ReservationDetail
		var status, first, last string
		var notes sql.NullString
		if err := rows.Scan(&d.ID, &d.Code, &d.ClientID, &d.CheckIn, &d.CheckOut, &d.Guests, &status, &d.Total,
			&notes, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &first, &last, &d.ClientEmail); err != nil {
			return nil, err
		}
		d.Status = model.ReservationStatus(status)
		d.Notes = notes.String
		d.ClientName = strings.TrimSpace(first + " " + last)
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateStatusTx changes the reservation state.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.ReservationStatus) error {
	_, err := tx.ExecContext(ctx, "UPDATE reservations SET status = ? WHERE id = ?", string(status), id)
	return err
}

// UpdateDetailsTx overwrites dates, notes and total.
func (r *ReservationRepo) UpdateDetailsTx(ctx context.Context, tx *sql.Tx, res model.Reservation) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE reservations SET check_in = ?, check_out = ?, notes = ?, total = ? WHERE id = ?",
		res.CheckIn, res.CheckOut, res.Notes, res.Total, res.ID)
	return err
}

// UpdateRoomLineTx rewrites nights and subtotal of one line.  The frozen
// price per night is never changed.
func (r *ReservationRepo) UpdateRoomLineTx(ctx context.Context, tx *sql.Tx, lineID uint64, nights int, subtotal decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, "UPDATE reservation_rooms SET nights = ?, subtotal = ? WHERE id = ?", nights, subtotal, lineID)
	return err
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var res model.Reservation
	var status string
	var notes sql.NullString
	err := s.Scan(&res.ID, &res.Code, &res.ClientID, &res.CheckIn, &res.CheckOut, &res.Guests, &status,
		&res.Total, &notes, &res.CreatedBy, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return model.Reservation{}, mapErr(err)
	}
	res.Status = model.ReservationStatus(status)
	res.Notes = notes.String
	return res, nil
}
