package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, opts ...db.UoWOption) *db.SQLiteUnitOfWork {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec(`INSERT INTO pipelines (id, name, created_at, updated_at) VALUES ('p1', 'Sales', 't', 't')`)
	require.NoError(t, err)

	return db.NewSQLiteUnitOfWork(database, opts...)
}

// stageName reads a stage's name through a fresh transaction.
func stageName(uow *db.SQLiteUnitOfWork, id string) (string, bool) {
	var val string
	var found bool
	_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		row := tx.QueryRowContext(ctx, `SELECT name FROM stages WHERE id = ?`, id)
		if err := row.Scan(&val); err != nil {
			return nil
		}
		found = true
		return nil
	})
	return val, found
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	uow := openTestDB(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO stages (id, pipeline_id, name, order_index, created_at, updated_at) VALUES (?, 'p1', ?, 0, 't', 't')`, "k1", "v1")
		return err
	})
	require.NoError(t, err)

	val, found := stageName(uow, "k1")
	assert.True(t, found, "row should exist after commit")
	assert.Equal(t, "v1", val)
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	uow := openTestDB(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO stages (id, pipeline_id, name, order_index, created_at, updated_at) VALUES (?, 'p1', ?, 0, 't', 't')`, "k2", "v2")
		if err != nil {
			return err
		}
		return fmt.Errorf("deliberate failure")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliberate failure")

	_, found := stageName(uow, "k2")
	assert.False(t, found, "row should not exist after rollback")
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	uow := openTestDB(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO stages (id, pipeline_id, name, order_index, created_at, updated_at) VALUES (?, 'p1', ?, 0, 't', 't')`, "k3", "v3")
			panic("boom")
		})
	})

	_, found := stageName(uow, "k3")
	assert.False(t, found, "row should not exist after panic rollback")
}

var errLockLost = errors.New("lock lost")

func insertStage(ctx context.Context, tx db.DBTX, id string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stages (id, pipeline_id, name, order_index, created_at, updated_at) VALUES (?, 'p1', ?, 0, 't', 't')`, id, id)
	return err
}

func TestWithinTx_ReplaysRetryableFailure(t *testing.T) {
	uow := openTestDB(t, db.WithRetryIf(func(err error) bool { return errors.Is(err, errLockLost) }))

	attempts := 0
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		attempts++
		if err := insertStage(ctx, tx, "k4"); err != nil {
			return err
		}
		if attempts < 3 {
			return errLockLost
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	_, found := stageName(uow, "k4")
	assert.True(t, found, "the last attempt commits; earlier inserts were rolled back")
}

func TestWithinTx_GivesUpAfterRetries(t *testing.T) {
	uow := openTestDB(t,
		db.WithBusyRetries(2),
		db.WithRetryIf(func(err error) bool { return errors.Is(err, errLockLost) }),
	)

	attempts := 0
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		attempts++
		return errLockLost
	})
	require.ErrorIs(t, err, errLockLost)
	assert.Equal(t, 3, attempts)
}

func TestWithinTx_OtherErrorsNotReplayed(t *testing.T) {
	uow := openTestDB(t)

	attempts := 0
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		attempts++
		return errLockLost
	})
	require.ErrorIs(t, err, errLockLost)
	assert.Equal(t, 1, attempts)
}

func TestWithinTx_ReplayStopsOnCancel(t *testing.T) {
	uow := openTestDB(t, db.WithRetryIf(func(error) bool { return true }))
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		attempts++
		cancel()
		return errLockLost
	})
	require.ErrorIs(t, err, errLockLost)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, db.IsBusy(nil))
	assert.False(t, db.IsBusy(errLockLost))

	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	defer database.Close()
	_, err = database.Exec(`SELECT * FROM no_such_table`)
	require.Error(t, err)
	assert.False(t, db.IsBusy(err), "a schema error is not a lock error")
}
