package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quave-io/frida-go/internal/adapter/repo/postgres"
	"github.com/quave-io/frida-go/internal/domain"
)

type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// poolStub implements postgres.PgxPool. rowSeq lets a test return a
// different row per successive QueryRow call (e.g. insert-miss then
// select-by-key on a match node conflict).
type poolStub struct {
	execErr error
	rowSeq  []rowStub
	rowIdx  int
}

func (p *poolStub) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.rowIdx >= len(p.rowSeq) {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	r := p.rowSeq[p.rowIdx]
	p.rowIdx++
	return r
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not stubbed")
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return nil, errors.New("not stubbed")
}

type fakePayload struct {
	number    string
	marshaled []byte
	unmarshal func([]byte) error
}

func (f *fakePayload) Validate() error       { return nil }
func (f *fakePayload) PayloadNumber() string { return f.number }
func (f *fakePayload) SchemaVersion() (int, int) { return 1, 0 }
func (f *fakePayload) ExtractSimpleFeatures() []domain.Feature { return nil }
func (f *fakePayload) ExtractGraphFeatures(_ []domain.ConnectedTransaction, _ []domain.DirectConnection) []domain.Feature {
	return nil
}
func (f *fakePayload) ExtractMatchingFields() []domain.MatchingField { return nil }
func (f *fakePayload) MarshalJSON() ([]byte, error)                 { return f.marshaled, nil }
func (f *fakePayload) UnmarshalJSON(raw []byte) error {
	if f.unmarshal != nil {
		return f.unmarshal(raw)
	}
	return nil
}
func (f *fakePayload) ColumnDescriptors() []domain.ColumnDescriptor { return nil }

func TestStore_SaveTransactionAndEnqueue_BeginTxError(t *testing.T) {
	store := postgres.NewStore(&poolStub{}, nil, nil, nil)
	_, err := store.SaveTransactionAndEnqueue(context.Background(), &fakePayload{number: "abc", marshaled: []byte(`{}`)}, 1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestStore_GetTransaction_NotFound(t *testing.T) {
	pool := &poolStub{rowSeq: []rowStub{
		{scan: func(dest ...any) error { return pgx.ErrNoRows }},
	}}
	store := postgres.NewStore(pool, nil, nil, nil)
	_, err := store.GetTransaction(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_LoadPayload_UnmarshalError(t *testing.T) {
	pool := &poolStub{rowSeq: []rowStub{
		{scan: func(dest ...any) error { *(dest[0].(*[]byte)) = []byte(`bad`); return nil }},
	}}
	store := postgres.NewStore(pool, nil, nil, nil)
	p := &fakePayload{unmarshal: func([]byte) error { return errors.New("bad json") }}
	err := store.LoadPayload(context.Background(), 1, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStore_SetTransactionID_NoOp(t *testing.T) {
	store := postgres.NewStore(&poolStub{}, nil, nil, nil)
	require.NoError(t, store.SetTransactionID(context.Background(), 1))
}

func TestStore_GetChannelByName_NotFound(t *testing.T) {
	pool := &poolStub{rowSeq: []rowStub{
		{scan: func(dest ...any) error { return pgx.ErrNoRows }},
	}}
	store := postgres.NewStore(pool, nil, nil, nil)
	_, _, _, err := store.GetChannelByName(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestStore_SaveMatchingFields_ConflictFallsBackToSelect(t *testing.T) {
	pool := &poolStub{rowSeq: []rowStub{
		// insert loses the race
		{scan: func(dest ...any) error { return pgx.ErrNoRows }},
		// select-by-key resolves the id
		{scan: func(dest ...any) error { *(dest[0].(*int64)) = 5; return nil }},
	}}
	store := postgres.NewStore(pool, nil, nil, nil)
	err := store.SaveMatchingFields(context.Background(), 1, []domain.MatchingField{{Matcher: "email", Value: "a@x"}})
	require.NoError(t, err)
}
