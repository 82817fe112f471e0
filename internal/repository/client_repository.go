package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// ClientRepo stores guest profiles.
type ClientRepo struct{ db *sql.DB }

func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

// ClientUpdate carries optional changes; nil fields are left untouched.
type ClientUpdate struct {
	FirstName      *string
	LastName       *string
	Email          *string
	Phone          *string
	DocumentType   *string
	DocumentNumber *string
	Address        *string
}

const clientCols = "id,user_id,first_name,last_name,email,phone,document_type,document_number,address,is_active,created_at,updated_at"

// Create inserts c and fills its ID and timestamps.  Pass a transaction as
// q when the client is created together with its user.
func (r *ClientRepo) Create(ctx context.Context, q Querier, c *model.Client) error {
	if q == nil {
		q = r.db
	}
	var userID any
	if c.UserID != nil {
		userID = *c.UserID
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO clients (user_id, first_name, last_name, email, phone, document_type, document_number, address)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, c.FirstName, c.LastName, strings.ToLower(strings.TrimSpace(c.Email)), c.Phone,
		c.DocumentType, strings.TrimSpace(c.DocumentNumber), c.Address)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.get(ctx, q, "id=?", uint64(id))
	if err != nil {
		return err
	}
	*c = got
	return nil
}

func (r *ClientRepo) GetByID(ctx context.Context, id uint64) (model.Client, error) {
	return r.get(ctx, r.db, "id=?", id)
}

// GetByUserID returns the client profile linked to a user account.
func (r *ClientRepo) GetByUserID(ctx context.Context, userID uint64) (model.Client, error) {
	return r.get(ctx, r.db, "user_id=?", userID)
}

// ExistsByDocument reports whether a client with the document exists.
func (r *ClientRepo) ExistsByDocument(ctx context.Context, q Querier, doc string) (bool, error) {
	if q == nil {
		q = r.db
	}
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM clients WHERE document_number=?", strings.TrimSpace(doc)).Scan(&n)
	return n > 0, err
}

// List returns clients ordered by id; search matches names, email and
// document number.
func (r *ClientRepo) List(ctx context.Context, search string, limit, offset int) ([]model.Client, error) {
	query := "SELECT " + clientCols + " FROM clients"
	var args []any
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + s + "%"
		query += " WHERE first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR document_number LIKE ?"
		args = append(args, like, like, like, like)
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, pageLimit(limit), offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of upd.
func (r *ClientRepo) Update(ctx context.Context, id uint64, upd ClientUpdate) error {
	var sets []string
	var args []any
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+"=?")
			args = append(args, strings.TrimSpace(*v))
		}
	}
	add("first_name", upd.FirstName)
	add("last_name", upd.LastName)
	add("email", upd.Email)
	add("phone", upd.Phone)
	add("document_type", upd.DocumentType)
	add("document_number", upd.DocumentNumber)
	add("address", upd.Address)
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, "UPDATE clients SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(ctx, res, func() error {
		_, err := r.GetByID(ctx, id)
		return err
	})
}

// Delete removes a client.  Clients referenced by reservations yield
// ErrReferenced.
func (r *ClientRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM clients WHERE id=?", id)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveReservationsByUser counts pending or confirmed reservations of
// the client linked to userID.
func (r *ClientRepo) CountActiveReservationsByUser(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations r JOIN clients c ON c.id = r.client_id
		 WHERE c.user_id = ? AND r.status IN ('pending','confirmed')`, userID).Scan(&n)
	return n, err
}

func (r *ClientRepo) get(ctx context.Context, q Querier, where string, arg any) (model.Client, error) {
	return scanClient(q.QueryRowContext(ctx, "SELECT "+clientCols+" FROM clients WHERE "+where+" LIMIT 1", arg))
}

func scanClient(s rowScanner) (model.Client, error) {
	var c model.Client
	var userID sql.NullInt64
	err := s.Scan(&c.ID, &userID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.DocumentType, &c.DocumentNumber, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Client{}, mapErr(err)
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		c.UserID = &uid
	}
	return c, nil
}

// pageLimit clamps list sizes.
func pageLimit(n int) int {
	if n <= 0 || n > 200 {
		return 50
	}
	return n
}
