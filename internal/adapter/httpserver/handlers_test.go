package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/usecase"
)

// stubPayload is a minimal domain.Payload used only to exercise the HTTP
// import path; its extraction methods are never invoked by these tests.
type stubPayload struct {
	Number string `json:"payload_number"`
}

func (p *stubPayload) Validate() error {
	if p.Number == "" {
		return fmt.Errorf("%w: payload_number required", domain.ErrValidation)
	}
	return nil
}
func (p *stubPayload) PayloadNumber() string       { return p.Number }
func (p *stubPayload) SchemaVersion() (int, int)   { return 1, 0 }
func (p *stubPayload) ExtractSimpleFeatures() []domain.Feature { return nil }
func (p *stubPayload) ExtractGraphFeatures([]domain.ConnectedTransaction, []domain.DirectConnection) []domain.Feature {
	return nil
}
func (p *stubPayload) ExtractMatchingFields() []domain.MatchingField { return nil }
func (p *stubPayload) MarshalJSON() ([]byte, error)                 { return json.Marshal(*p) }
func (p *stubPayload) UnmarshalJSON(data []byte) error              { return json.Unmarshal(data, p) }
func (p *stubPayload) ColumnDescriptors() []domain.ColumnDescriptor  { return nil }

type stubStorage struct {
	domain.CommonStorage
	saveErr       error
	savedID       int64
	tx            domain.Transaction
	getErr        error
	labelResult   domain.LabelingResult
	labelErr      error
	listResult    []domain.Transaction
	listErr       error
}

func (s *stubStorage) SaveTransactionAndEnqueue(ctx domain.Context, payload domain.Payload, major, minor int) (int64, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	return s.savedID, nil
}

func (s *stubStorage) GetTransaction(ctx domain.Context, id int64) (domain.Transaction, error) {
	if s.getErr != nil {
		return domain.Transaction{}, s.getErr
	}
	return s.tx, nil
}

func (s *stubStorage) LabelTransactions(ctx domain.Context, ids []int64, label domain.Label) (domain.LabelingResult, error) {
	if s.labelErr != nil {
		return domain.LabelingResult{}, s.labelErr
	}
	return s.labelResult, nil
}

func (s *stubStorage) ListTransactions(ctx domain.Context, query domain.CompiledQuery) ([]domain.Transaction, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listResult, nil
}

type stubRegistry map[string]domain.TableDescriptor

func (r stubRegistry) Table(name string) (domain.TableDescriptor, bool) {
	t, ok := r[name]
	return t, ok
}

func testRegistry() stubRegistry {
	return stubRegistry{
		"transactions": domain.TableDescriptor{
			Name: "transactions", Alias: "t", PrimaryKey: "id",
			Fields: map[string]domain.FieldDescriptor{
				"id": {Name: "id", Type: domain.FilterTypeNumber},
			},
		},
	}
}

func newTestServer(storage *stubStorage) *Server {
	factory := func() domain.Payload { return &stubPayload{} }
	return NewServer(factory, usecase.NewImporter(storage), usecase.NewLabeler(storage), testRegistry(), storage, nil, 1<<20)
}

func TestImportHandler_Success(t *testing.T) {
	s := newTestServer(&stubStorage{savedID: 42})
	body, _ := json.Marshal(map[string]string{"payload_number": "ord-1"})
	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.ImportHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp["id"])
}

func TestImportHandler_ValidationRejected(t *testing.T) {
	s := newTestServer(&stubStorage{})
	body, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.ImportHandler()(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthHandler_NoDBCheck(t *testing.T) {
	s := newTestServer(&stubStorage{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.HealthHandler()(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHealthHandler_DBCheckFails(t *testing.T) {
	factory := func() domain.Payload { return &stubPayload{} }
	storage := &stubStorage{}
	srv := NewServer(factory, usecase.NewImporter(storage), usecase.NewLabeler(storage), testRegistry(), storage,
		func(ctx domain.Context) error { return fmt.Errorf("db down") }, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.HealthHandler()(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLabelHandler_CompleteSuccess(t *testing.T) {
	s := newTestServer(&stubStorage{labelResult: domain.LabelingResult{SuccessCount: 2}})
	body, _ := json.Marshal(map[string]any{
		"transaction_ids": []int64{1, 2},
		"fraud_level":     string(domain.FraudLevelFraud),
		"source":          string(domain.LabelSourceManual),
	})
	req := httptest.NewRequest(http.MethodPost, "/transactions/label", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.LabelHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLabelHandler_PartialSuccess(t *testing.T) {
	s := newTestServer(&stubStorage{labelResult: domain.LabelingResult{SuccessCount: 1, FailedTransactionIDs: []int64{2}}})
	body, _ := json.Marshal(map[string]any{
		"transaction_ids": []int64{1, 2},
		"fraud_level":     string(domain.FraudLevelFraud),
		"source":          string(domain.LabelSourceManual),
	})
	req := httptest.NewRequest(http.MethodPost, "/transactions/label", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.LabelHandler()(w, req)

	assert.Equal(t, http.StatusMultiStatus, w.Code)
}

func TestLabelHandler_MissingFields(t *testing.T) {
	s := newTestServer(&stubStorage{})
	body, _ := json.Marshal(map[string]any{})
	req := httptest.NewRequest(http.MethodPost, "/transactions/label", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.LabelHandler()(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionHandler_NotFound(t *testing.T) {
	s := newTestServer(&stubStorage{getErr: fmt.Errorf("%w: transaction 9", domain.ErrNotFound)})

	r := chi.NewRouter()
	r.Get("/transactions/{id}", s.TransactionHandler())

	req := httptest.NewRequest(http.MethodGet, "/transactions/9", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransactionHandler_InvalidID(t *testing.T) {
	s := newTestServer(&stubStorage{})

	r := chi.NewRouter()
	r.Get("/transactions/{id}", s.TransactionHandler())

	req := httptest.NewRequest(http.MethodGet, "/transactions/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionsQueryHandler_Success(t *testing.T) {
	s := newTestServer(&stubStorage{listResult: []domain.Transaction{{ID: 1}, {ID: 2}}})
	body, _ := json.Marshal(map[string]any{
		"root": map[string]any{
			"operator": "and",
			"conditions": []map[string]any{
				{"column_path": "id", "operator": ">", "value": 0},
			},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/transactions/query", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.TransactionsQueryHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out []domain.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out, 2)
}
