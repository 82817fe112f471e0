package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// RoomTypeRepo manages the room catalog.
type RoomTypeRepo struct{ db *sql.DB }

func NewRoomTypeRepo(db *sql.DB) *RoomTypeRepo { return &RoomTypeRepo{db: db} }

const roomTypeCols = "id,name,description,base_price,max_capacity,amenities,created_at,updated_at"

func (r *RoomTypeRepo) List(ctx context.Context) ([]model.RoomType, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+roomTypeCols+" FROM room_types ORDER BY base_price, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RoomType{}
	for rows.Next() {
		rt, err := scanRoomType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *RoomTypeRepo) GetByID(ctx context.Context, id uint64) (model.RoomType, error) {
	return scanRoomType(r.db.QueryRowContext(ctx, "SELECT "+roomTypeCols+" FROM room_types WHERE id=?", id))
}

// NameTaken reports whether another room type already uses name, compared
// case-insensitively.  excludeID skips the row being renamed.
func (r *RoomTypeRepo) NameTaken(ctx context.Context, name string, excludeID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM room_types WHERE LOWER(name)=LOWER(?) AND id<>?",
		strings.TrimSpace(name), excludeID).Scan(&n)
	return n > 0, err
}

// Create inserts rt and reads the row back.
func (r *RoomTypeRepo) Create(ctx context.Context, rt *model.RoomType) error {
	amenities, err := json.Marshal(nonNil(rt.Amenities))
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO room_types (name, description, base_price, max_capacity, amenities) VALUES (?, ?, ?, ?, ?)",
		strings.TrimSpace(rt.Name), rt.Description, rt.BasePrice, rt.MaxCapacity, amenities)
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
	*rt = got
	return nil
}

// Update overwrites every editable column.  Existing reservations keep the
// prices frozen on their lines.
func (r *RoomTypeRepo) Update(ctx context.Context, rt *model.RoomType) error {
	amenities, err := json.Marshal(nonNil(rt.Amenities))
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE room_types SET name=?, description=?, base_price=?, max_capacity=?, amenities=? WHERE id=?",
		strings.TrimSpace(rt.Name), rt.Description, rt.BasePrice, rt.MaxCapacity, amenities, rt.ID)
	if err != nil {
		return mapErr(err)
	}
	if err := requireAffected(ctx, res, func() error {
		_, err := r.GetByID(ctx, rt.ID)
		return err
	}); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, rt.ID)
	if err != nil {
		return err
	}
	*rt = got
	return nil
}

// Delete removes a room type; types still used by rooms yield ErrReferenced.
func (r *RoomTypeRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM room_types WHERE id=?", id)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRoomType(s rowScanner) (model.RoomType, error) {
	var rt model.RoomType
	var desc sql.NullString
	var amenities []byte
	err := s.Scan(&rt.ID, &rt.Name, &desc, &rt.BasePrice, &rt.MaxCapacity, &amenities, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return model.RoomType{}, mapErr(err)
	}
	rt.Description = desc.String
	rt.Amenities = decodeAmenities(amenities)
	return rt, nil
}

func decodeAmenities(raw []byte) []string {
	out := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
