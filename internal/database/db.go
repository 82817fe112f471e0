// Package database owns the process-wide connection pool.  The pool is
// opened once in main, injected into repositories and services, and closed
// on shutdown.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Options configures Open.
type Options struct {
	User           string
	Pass           string
	Host           string
	Port           string
	Name           string
	MaxOpen        int
	MaxIdle        int
	MaxLifetime    time.Duration
	AcquireTimeout time.Duration // bound on waiting for a pooled connection
}

// DB is the injected database handle.  SQL is exposed for single-statement
// reads; multi-statement mutations go through BeginTx.
type DB struct {
	SQL            *sql.DB
	AcquireTimeout time.Duration
}

// Open connects to MySQL and verifies the connection.
func Open(o Options) (*DB, error) {
	auth := o.User
	if o.Pass != "" {
		auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, o.Host, o.Port, o.Name)

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	if o.MaxOpen <= 0 {
		o.MaxOpen = 25
	}
	if o.MaxIdle <= 0 {
		o.MaxIdle = o.MaxOpen
	}
	if o.MaxLifetime <= 0 {
		o.MaxLifetime = 30 * time.Minute
	}
	sqlDB.SetMaxOpenConns(o.MaxOpen)
	sqlDB.SetMaxIdleConns(o.MaxIdle)
	sqlDB.SetConnMaxLifetime(o.MaxLifetime)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return New(sqlDB, o.AcquireTimeout), nil
}

// New wraps an existing pool.  Tests use it with sqlmock.
func New(sqlDB *sql.DB, acquireTimeout time.Duration) *DB {
	if acquireTimeout <= 0 {
		acquireTimeout = 10 * time.Second
	}
	return &DB{SQL: sqlDB, AcquireTimeout: acquireTimeout}
}

// Close releases every pooled connection.
func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}

// Ping checks connectivity, used by the health endpoint.
func (d *DB) Ping(ctx context.Context) error { return d.SQL.PingContext(ctx) }
