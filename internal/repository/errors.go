// Package repository holds the SQL data access layer.  Methods take a
// context and, when they must join a caller's transaction, an explicit
// *sql.Tx (the Tx suffix).  Driver errors are translated into the sentinel
// values below so services never inspect MySQL error numbers.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key.
// The concrete error is a *DuplicateError naming the key.
var ErrDuplicate = errors.New("duplicate")

// ErrReferenced is returned when a delete or insert violates a foreign key,
// for example deleting a room type still used by rooms.
var ErrReferenced = errors.New("referenced by other records")

// ErrEmailExists is the duplicate raised by the users email key.
var ErrEmailExists = errors.New("email already exists")

// DuplicateError identifies which unique key was violated.
type DuplicateError struct {
	Key string
	Err error
}

func (e *DuplicateError) Error() string { return fmt.Sprintf("duplicate entry for key %s", e.Key) }
func (e *DuplicateError) Unwrap() error { return e.Err }
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// DuplicateKey returns the violated key name when err is a duplicate.
func DuplicateKey(err error) (string, bool) {
	var de *DuplicateError
	if errors.As(err, &de) {
		return de.Key, true
	}
	return "", false
}

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapErr translates driver errors into package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062:
			return &DuplicateError{Key: duplicateKeyName(me.Message), Err: err}
		case 1451, 1452:
			return fmt.Errorf("%w: %v", ErrReferenced, err)
		}
	}
	return err
}

// duplicateKeyName extracts the key from
// "Duplicate entry 'x' for key 'table.key_name'".
func duplicateKeyName(msg string) string {
	i := strings.LastIndex(msg, "for key '")
	if i < 0 {
		return ""
	}
	k := strings.TrimSuffix(msg[i+len("for key '"):], "'")
	if dot := strings.LastIndex(k, "."); dot >= 0 {
		k = k[dot+1:]
	}
	return k
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func uint64Args(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
