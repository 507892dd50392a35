package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed   bool
	rolledBack  bool
	commitErr   error
	rollbackErr error
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return f.commitErr
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return f.rollbackErr
}

type fakeBeginner struct {
	tx       *fakeTx
	err      error
	gotLevel pgx.TxIsoLevel
}

func (f *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	f.gotLevel = opts.IsoLevel
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func TestWithTxCommits(t *testing.T) {
	conn := &fakeBeginner{tx: &fakeTx{}}
	err := WithTx(context.Background(), conn, pgx.ReadCommitted, func(pgx.Tx) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, pgx.ReadCommitted, conn.gotLevel)
	assert.True(t, conn.tx.committed)
	assert.False(t, conn.tx.rolledBack)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	conn := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("seat limit reached")
	err := WithTx(context.Background(), conn, pgx.Serializable, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, conn.tx.committed)
	assert.True(t, conn.tx.rolledBack)
}

func TestWithTxJoinsRollbackFailure(t *testing.T) {
	rbErr := errors.New("connection lost")
	conn := &fakeBeginner{tx: &fakeTx{rollbackErr: rbErr}}
	boom := errors.New("insert failed")
	err := WithTx(context.Background(), conn, pgx.ReadCommitted, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, rbErr)
}

func TestWithTxIgnoresClosedTxOnRollback(t *testing.T) {
	conn := &fakeBeginner{tx: &fakeTx{rollbackErr: pgx.ErrTxClosed}}
	boom := errors.New("insert failed")
	err := WithTx(context.Background(), conn, pgx.ReadCommitted, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, pgx.ErrTxClosed)
}

func TestWithTxCommitFailure(t *testing.T) {
	conn := &fakeBeginner{tx: &fakeTx{commitErr: errors.New("serialization failure")}}
	err := WithTx(context.Background(), conn, pgx.ReadCommitted, func(pgx.Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit tx")
	assert.True(t, conn.tx.rolledBack)
}

func TestWithTxBeginFailure(t *testing.T) {
	conn := &fakeBeginner{err: errors.New("pool closed")}
	called := false
	err := WithTx(context.Background(), conn, pgx.ReadCommitted, func(pgx.Tx) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := &fakeBeginner{tx: &fakeTx{}}
	assert.Panics(t, func() {
		_ = WithTx(context.Background(), conn, pgx.ReadCommitted, func(pgx.Tx) error { panic("bug") })
	})
	assert.True(t, conn.tx.rolledBack)
}
