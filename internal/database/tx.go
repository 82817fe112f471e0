package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/go-sql-driver/mysql"
)

// ErrPoolExhausted is returned by BeginTx when no connection became
// available within the acquisition timeout.
var ErrPoolExhausted = errors.New("database: connection pool exhausted")

// Tx is a transaction bound to a dedicated pooled connection.  Commit and
// Rollback release the connection back to the pool.
type Tx struct {
	*sql.Tx
	conn *sql.Conn
	once sync.Once
}

// BeginTx acquires a connection with a bounded wait and starts a
// transaction on it.  The transaction itself follows ctx: if ctx ends
// before Commit the driver rolls it back.
func (d *DB) BeginTx(ctx context.Context) (*Tx, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, d.AcquireTimeout)
	defer cancel()

	conn, err := d.SQL.Conn(acquireCtx)
	if err != nil {
		if isExhausted(ctx, err) {
			return nil, ErrPoolExhausted
		}
		return nil, err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		if isExhausted(ctx, err) {
			return nil, ErrPoolExhausted
		}
		return nil, err
	}
	return &Tx{Tx: tx, conn: conn}, nil
}

func (t *Tx) Commit() error {
	err := t.Tx.Commit()
	t.release()
	return err
}

func (t *Tx) Rollback() error {
	err := t.Tx.Rollback()
	t.release()
	return err
}

func (t *Tx) release() {
	t.once.Do(func() { _ = t.conn.Close() })
}

// isExhausted separates a pool wait that ran out from a caller that gave up.
func isExhausted(parent context.Context, err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1040 { // too many connections
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}
