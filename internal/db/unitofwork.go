package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultBusyRetries = 3
	busyBackoff        = 15 * time.Millisecond
)

// UnitOfWork runs fn inside one transaction. fn must only touch the store
// through the DBTX it receives, and may run more than once when the store
// is busy.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

type UoWOption func(*SQLiteUnitOfWork)

// WithBusyRetries sets how many times a transaction that lost a write lock
// race is replayed. Zero disables replays.
func WithBusyRetries(n int) UoWOption {
	return func(u *SQLiteUnitOfWork) {
		if n >= 0 {
			u.retries = n
		}
	}
}

// WithRetryIf replaces the check that decides whether a failed transaction
// is replayed. IsBusy is the default.
func WithRetryIf(fn func(error) bool) UoWOption {
	return func(u *SQLiteUnitOfWork) {
		if fn != nil {
			u.retryIf = fn
		}
	}
}

func WithUoWLogger(l *slog.Logger) UoWOption {
	return func(u *SQLiteUnitOfWork) {
		if l != nil {
			u.logger = l
		}
	}
}

// SQLiteUnitOfWork serialises opportunity moves, imports and field
// migrations into single transactions. Under WAL a deferred transaction that
// upgrades to a writer can fail with SQLITE_BUSY without waiting on
// busy_timeout; those attempts are rolled back and replayed.
type SQLiteUnitOfWork struct {
	db      *sql.DB
	retries int
	retryIf func(error) bool
	logger  *slog.Logger
}

func NewSQLiteUnitOfWork(db *sql.DB, opts ...UoWOption) *SQLiteUnitOfWork {
	u := &SQLiteUnitOfWork{
		db:      db,
		retries: DefaultBusyRetries,
		retryIf: IsBusy,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WithinTx commits when fn returns nil and rolls back on error or panic.
func (u *SQLiteUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	for attempt := 0; ; attempt++ {
		err := u.attempt(ctx, fn)
		if err == nil || attempt >= u.retries || !u.retryIf(err) {
			return err
		}
		u.logger.Debug("transaction replayed", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt+1) * busyBackoff):
		}
	}
}

func (u *SQLiteUnitOfWork) attempt(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
