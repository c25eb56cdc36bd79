package queue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/queue"
)

type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

type poolStub struct {
	execErr  error
	execTag  pgconn.CommandTag
	row      rowStub
	beginErr error
}

func (p *poolStub) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return p.execTag, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.row.scan == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not stubbed")
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return nil, p.beginErr
}

func TestPostgresQueue_Enqueue(t *testing.T) {
	pool := &poolStub{}
	q := queue.NewPostgresQueue(pool, 0)
	require.NoError(t, q.Enqueue(context.Background(), domain.QueuePrimary, 42))
}

func TestPostgresQueue_Enqueue_UnknownKind(t *testing.T) {
	pool := &poolStub{}
	q := queue.NewPostgresQueue(pool, 0)
	err := q.Enqueue(context.Background(), domain.QueueKind("bogus"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPostgresQueue_Enqueue_StorageError(t *testing.T) {
	pool := &poolStub{execErr: errors.New("boom")}
	q := queue.NewPostgresQueue(pool, 0)
	err := q.Enqueue(context.Background(), domain.QueueRecalculation, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestPostgresQueue_MarkProcessed(t *testing.T) {
	pool := &poolStub{}
	q := queue.NewPostgresQueue(pool, 0)
	require.NoError(t, q.MarkProcessed(context.Background(), domain.QueuePrimary, 7))
}

func TestPostgresQueue_Depth(t *testing.T) {
	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*(dest[0].(*int64)) = 3
		return nil
	}}}
	q := queue.NewPostgresQueue(pool, 0)
	n, err := q.Depth(context.Background(), domain.QueueRecalculation)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPostgresQueue_FetchNext_BeginTxError(t *testing.T) {
	pool := &poolStub{beginErr: errors.New("conn refused")}
	q := queue.NewPostgresQueue(pool, 0)
	_, err := q.FetchNext(context.Background(), domain.QueuePrimary, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestPostgresQueue_FetchNext_ZeroBatch(t *testing.T) {
	pool := &poolStub{}
	q := queue.NewPostgresQueue(pool, 0)
	entries, err := q.FetchNext(context.Background(), domain.QueuePrimary, 0)
	require.NoError(t, err)
	assert.Nil(t, entries)
}
