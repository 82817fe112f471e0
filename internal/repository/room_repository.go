package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// RoomRepo manages physical rooms and their operational status.  Reads join
// room_types so callers get the current nightly price and capacity.
type RoomRepo struct{ db *sql.DB }

func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// RoomFilter narrows room listings.
type RoomFilter struct {
	Status     model.RoomStatus
	RoomTypeID uint64
}

const roomSelect = `SELECT h.id, h.number, h.floor, h.room_type_id, h.status, h.notes, h.created_at, h.updated_at,
       t.name, t.base_price, t.max_capacity, t.amenities
  FROM rooms h JOIN room_types t ON t.id = h.room_type_id`

// activeOverlap matches pending/confirmed reservation lines of room h.id
// intersecting [?, ?) with the half-open test a_in < b_out AND b_in < a_out.
const activeOverlap = `SELECT 1 FROM reservation_rooms rr JOIN reservations r ON r.id = rr.reservation_id
  WHERE rr.room_id = h.id AND r.status IN ('pending','confirmed') AND r.check_in < ? AND ? < r.check_out`

func (r *RoomRepo) List(ctx context.Context, f RoomFilter) ([]model.Room, error) {
	query := roomSelect + " WHERE 1=1"
	var args []any
	if f.Status != "" {
		query += " AND h.status=?"
		args = append(args, string(f.Status))
	}
	if f.RoomTypeID != 0 {
		query += " AND h.room_type_id=?"
		args = append(args, f.RoomTypeID)
	}
	query += " ORDER BY LENGTH(h.number), h.number"
	return r.query(ctx, r.db, query, args...)
}

func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (model.Room, error) {
	return scanRoom(r.db.QueryRowContext(ctx, roomSelect+" WHERE h.id=?", id))
}

// GetForUpdateTx locks one room row.
func (r *RoomRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Room, error) {
	return scanRoom(tx.QueryRowContext(ctx, roomSelect+" WHERE h.id=? FOR UPDATE", id))
}

// LockTx locks the given rooms (FOR UPDATE) in id order and returns them.
// Missing ids are simply absent from the result.
func (r *RoomRepo) LockTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]model.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := roomSelect + " WHERE h.id IN (" + placeholders(len(ids)) + ") ORDER BY h.id FOR UPDATE"
	return r.query(ctx, tx, query, uint64Args(ids)...)
}

// Available returns free rooms with no active reservation overlapping
// [checkIn, checkOut).  With nil dates it returns every free room.  Results
// are ordered by room number.
func (r *RoomRepo) Available(ctx context.Context, checkIn, checkOut *time.Time, roomTypeID uint64) ([]model.Room, error) {
	query := roomSelect + " WHERE h.status='free'"
	var args []any
	if roomTypeID != 0 {
		query += " AND h.room_type_id=?"
		args = append(args, roomTypeID)
	}
	if checkIn != nil && checkOut != nil {
		query += " AND NOT EXISTS (" + activeOverlap + ")"
		args = append(args, *checkOut, *checkIn)
	}
	query += " ORDER BY LENGTH(h.number), h.number"
	return r.query(ctx, r.db, query, args...)
}

// NumberTaken reports whether another room already uses number.
func (r *RoomRepo) NumberTaken(ctx context.Context, number string, excludeID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rooms WHERE number=? AND id<>?",
		strings.TrimSpace(number), excludeID).Scan(&n)
	return n > 0, err
}

func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	status := room.Status
	if status == "" {
		status = model.RoomFree
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO rooms (number, floor, room_type_id, status, notes) VALUES (?, ?, ?, ?, ?)",
		strings.TrimSpace(room.Number), room.Floor, room.RoomTypeID, string(status), room.Notes)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*room = got
	return nil
}

// Update overwrites number, floor, type and notes.  Status has its own
// guarded path.
func (r *RoomRepo) Update(ctx context.Context, room *model.Room) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE rooms SET number=?, floor=?, room_type_id=?, notes=? WHERE id=?",
		strings.TrimSpace(room.Number), room.Floor, room.RoomTypeID, room.Notes, room.ID)
	if err != nil {
		return mapErr(err)
	}
	if err := requireAffected(ctx, res, func() error {
		_, err := r.GetByID(ctx, room.ID)
		return err
	}); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, room.ID)
	if err != nil {
		return err
	}
	*room = got
	return nil
}

func (r *RoomRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id=?", id)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasActiveReservations reports whether a pending or confirmed reservation
// references the room.
func (r *RoomRepo) HasActiveReservations(ctx context.Context, id uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservation_rooms rr JOIN reservations r ON r.id = rr.reservation_id
		 WHERE rr.room_id=? AND r.status IN ('pending','confirmed')`, id).Scan(&n)
	return n > 0, err
}

// UpdateStatusTx sets the status of the given rooms.  When from is not
// empty only rooms currently in one of those states change.
func (r *RoomRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, ids []uint64, to model.RoomStatus, from ...model.RoomStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := "UPDATE rooms SET status=? WHERE id IN (" + placeholders(len(ids)) + ")"
	args := append([]any{string(to)}, uint64Args(ids)...)
	if len(from) > 0 {
		query += " AND status IN (" + placeholders(len(from)) + ")"
		for _, s := range from {
			args = append(args, string(s))
		}
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RoomRepo) query(ctx context.Context, q Querier, query string, args ...any) ([]model.Room, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func scanRoom(s rowScanner) (model.Room, error) {
	var room model.Room
	var status string
	var amenities []byte
	err := s.Scan(&room.ID, &room.Number, &room.Floor, &room.RoomTypeID, &status, &room.Notes,
		&room.CreatedAt, &room.UpdatedAt, &room.TypeName, &room.BasePrice, &room.MaxCapacity, &amenities)
	if err != nil {
		return model.Room{}, mapErr(err)
	}
	room.Status = model.RoomStatus(status)
	room.Amenities = decodeAmenities(amenities)
	return room, nil
}
