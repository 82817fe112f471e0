package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser is the input of Create.  The password is hashed here.
type NewUser struct {
	Email    string
	Password string
	FullName string
	Role     model.Role
}

// UserUpdate carries optional changes; nil fields are left untouched.
type UserUpdate struct {
	Email    *string
	FullName *string
	Role     *model.Role
	IsActive *bool
	Password *string
}

const userCols = "id,email,password_hash,full_name,role,is_active,created_at,updated_at"

// Create inserts user and returns its ID.  Pass a *sql.Tx as q to join a
// transaction (client self-registration).
func (r *UserRepo) Create(ctx context.Context, q Querier, u NewUser, cost int) (uint64, error) {
	if q == nil {
		q = r.DB
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(u.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, full_name, role) VALUES (?,?,?,?)",
		email, hash, strings.TrimSpace(u.FullName), string(u.Role))
	if err != nil {
		if errors.Is(mapErr(err), ErrDuplicate) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

// List returns users ordered by id, optionally restricted to one role.
func (r *UserRepo) List(ctx context.Context, role model.Role, includeInactive bool) ([]model.User, error) {
	query := "SELECT " + userCols + " FROM users WHERE 1=1"
	var args []any
	if role != "" {
		query += " AND role=?"
		args = append(args, string(role))
	}
	if !includeInactive {
		query += " AND is_active=1"
	}
	query += " ORDER BY id"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of upd.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd UserUpdate, cost int) error {
	var sets []string
	var args []any
	if upd.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(*upd.Email)))
	}
	if upd.FullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, strings.TrimSpace(*upd.FullName))
	}
	if upd.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, string(*upd.Role))
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *upd.IsActive)
	}
	if upd.Password != nil {
		hash, err := utils.HashPassword(*upd.Password, cost)
		if err != nil {
			return err
		}
		sets = append(sets, "password_hash=?")
		args = append(args, hash)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		if errors.Is(mapErr(err), ErrDuplicate) {
			return ErrEmailExists
		}
		return err
	}
	return requireAffected(ctx, res, func() error {
		_, err := r.GetByID(ctx, id)
		return err
	})
}

// DeactivateTx soft deletes a user and its client profile.
func (r *UserRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, "UPDATE users SET is_active=0 WHERE id=?", id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "UPDATE clients SET is_active=0 WHERE user_id=?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	var role string
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	u.Role = model.Role(role)
	return u, nil
}

// requireAffected turns a zero-row update into ErrNotFound when the row is
// missing.  MySQL reports zero affected rows for no-op updates too, so the
// existence check disambiguates.
func requireAffected(ctx context.Context, res sql.Result, exists func() error) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	return exists()
}
