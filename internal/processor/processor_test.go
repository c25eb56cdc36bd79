package processor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quave-io/frida-go/internal/config"
	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/processor"
)

type stubPayload struct {
	loadErr        error
	matchingFields []domain.MatchingField
	simple         []domain.Feature
	graph          []domain.Feature
}

func (p *stubPayload) Validate() error       { return nil }
func (p *stubPayload) PayloadNumber() string { return "p1" }
func (p *stubPayload) SchemaVersion() (int, int) { return 1, 0 }
func (p *stubPayload) ExtractSimpleFeatures() []domain.Feature { return p.simple }
func (p *stubPayload) ExtractGraphFeatures(_ []domain.ConnectedTransaction, _ []domain.DirectConnection) []domain.Feature {
	return p.graph
}
func (p *stubPayload) ExtractMatchingFields() []domain.MatchingField { return p.matchingFields }
func (p *stubPayload) MarshalJSON() ([]byte, error)                 { return []byte(`{}`), nil }
func (p *stubPayload) UnmarshalJSON([]byte) error                   { return nil }
func (p *stubPayload) ColumnDescriptors() []domain.ColumnDescriptor { return nil }

type stubProcessible struct {
	loadErr error
}

func (s *stubProcessible) LoadPayload(_ domain.Context, _ int64, _ domain.Payload) error {
	return s.loadErr
}
func (s *stubProcessible) SetTransactionID(_ domain.Context, _ int64) error { return nil }

type stubCommon struct {
	domain.CommonStorage
	directErr    error
	traverseErr  error
	featuresErr  error
}

func (s *stubCommon) SaveMatchingFields(_ domain.Context, _ int64, _ []domain.MatchingField) error {
	return nil
}
func (s *stubCommon) GetDirectConnections(_ domain.Context, _ int64) ([]domain.DirectConnection, error) {
	return nil, s.directErr
}
func (s *stubCommon) FindConnectedTransactions(_ domain.Context, _ int64, _ domain.TraversalOptions) ([]domain.ConnectedTransaction, error) {
	return nil, s.traverseErr
}
func (s *stubCommon) SaveFeatures(_ domain.Context, _ int64, _, _ int, _ []domain.Feature, _ []domain.Feature, _ bool) error {
	return s.featuresErr
}

type stubQueue struct {
	markedProcessed []int64
	enqueued        []int64
	enqueueErr      error
	markErr         error
}

func (q *stubQueue) Enqueue(_ domain.Context, _ domain.QueueKind, transactionID int64) error {
	q.enqueued = append(q.enqueued, transactionID)
	return q.enqueueErr
}
func (q *stubQueue) FetchNext(_ domain.Context, _ domain.QueueKind, _ int) ([]domain.QueueEntry, error) {
	return nil, nil
}
func (q *stubQueue) MarkProcessed(_ domain.Context, _ domain.QueueKind, entryID int64) error {
	q.markedProcessed = append(q.markedProcessed, entryID)
	return q.markErr
}

type stubScorer struct {
	err            error
	calledFeatures []domain.Feature
}

func (s *stubScorer) ScoreAndSave(_ domain.Context, _ int64, _ int64, features []domain.Feature) (domain.ScoringEvent, error) {
	s.calledFeatures = features
	return domain.ScoringEvent{ID: 1}, s.err
}

func newProcessor(storage *stubProcessible, common *stubCommon, queue *stubQueue, scorer *stubScorer, payload *stubPayload) *processor.Processor {
	return processor.New(storage, common, queue, func() domain.Payload { return payload }, scorer, config.Config{
		DefaultMaxDepth:      3,
		DefaultTraversalCap:  100,
		DefaultMinConfidence: 50,
	})
}

func TestProcessor_Process_Success(t *testing.T) {
	queue := &stubQueue{}
	scorer := &stubScorer{}
	payload := &stubPayload{
		matchingFields: []domain.MatchingField{{Matcher: "email", Value: "a@x"}},
		simple:         []domain.Feature{{Name: "amount"}},
		graph:          []domain.Feature{{Name: "degree"}},
	}
	proc := newProcessor(&stubProcessible{}, &stubCommon{}, queue, scorer, payload)

	err := proc.Process(context.Background(), domain.QueuePrimary, domain.QueueEntry{ID: 10, TransactionID: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, queue.markedProcessed)
	assert.Len(t, scorer.calledFeatures, 2)
}

func TestProcessor_Process_LoadFails(t *testing.T) {
	queue := &stubQueue{}
	proc := newProcessor(&stubProcessible{loadErr: domain.ErrNotFound}, &stubCommon{}, queue, &stubScorer{}, &stubPayload{})
	err := proc.Process(context.Background(), domain.QueuePrimary, domain.QueueEntry{ID: 10, TransactionID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, queue.markedProcessed)
}

func TestProcessor_Process_TraversalFails(t *testing.T) {
	queue := &stubQueue{}
	common := &stubCommon{traverseErr: errors.New("boom")}
	proc := newProcessor(&stubProcessible{}, common, queue, &stubScorer{}, &stubPayload{})
	err := proc.Process(context.Background(), domain.QueuePrimary, domain.QueueEntry{ID: 10, TransactionID: 1})
	require.Error(t, err)
	assert.Empty(t, queue.markedProcessed)
}

func TestProcessor_ProcessWithRetry_FirstAttemptSuccessNoRequeue(t *testing.T) {
	queue := &stubQueue{}
	proc := newProcessor(&stubProcessible{}, &stubCommon{}, queue, &stubScorer{}, &stubPayload{})
	retryCfg := config.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	err := proc.ProcessWithRetry(context.Background(), domain.QueuePrimary, domain.QueueEntry{ID: 10, TransactionID: 1}, retryCfg)
	require.NoError(t, err)
	assert.Empty(t, queue.enqueued)
	assert.Equal(t, []int64{10}, queue.markedProcessed)
}

func TestProcessor_ProcessWithRetry_ExhaustsAndRequeues(t *testing.T) {
	queue := &stubQueue{}
	common := &stubCommon{traverseErr: errors.New("boom")}
	proc := newProcessor(&stubProcessible{}, common, queue, &stubScorer{}, &stubPayload{})
	retryCfg := config.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	err := proc.ProcessWithRetry(context.Background(), domain.QueuePrimary, domain.QueueEntry{ID: 10, TransactionID: 1}, retryCfg)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, queue.enqueued)
	assert.Equal(t, []int64{10}, queue.markedProcessed)
}
