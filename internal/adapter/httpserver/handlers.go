package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/usecase"
)

const maxImportBody = 5 << 20 // overridden per-Server via Cfg.MaxImportBodyMB

// Server aggregates the HTTP handlers' dependencies.
type Server struct {
	Payloads domain.PayloadFactory
	Importer usecase.Importer
	Labeler  usecase.Labeler
	Registry domain.ModelRegistry
	Storage  domain.CommonStorage
	DBCheck  func(ctx domain.Context) error

	MaxImportBodyBytes int64
}

// NewServer constructs a Server with its handlers' dependencies wired.
func NewServer(payloads domain.PayloadFactory, importer usecase.Importer, labeler usecase.Labeler, registry domain.ModelRegistry, storage domain.CommonStorage, dbCheck func(domain.Context) error, maxImportBodyBytes int64) *Server {
	return &Server{
		Payloads:           payloads,
		Importer:           importer,
		Labeler:            labeler,
		Registry:           registry,
		Storage:            storage,
		DBCheck:            dbCheck,
		MaxImportBodyBytes: maxImportBodyBytes,
	}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// ImportHandler accepts a payload JSON body, persists it, and enqueues it
// on the primary queue (§4.2).
func (s *Server) ImportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := s.MaxImportBodyBytes
		if limit <= 0 {
			limit = maxImportBody
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, fmt.Errorf("%w: body too large or unreadable", domain.ErrValidation), nil)
			return
		}

		payload := s.Payloads()
		if err := payload.UnmarshalJSON(raw); err != nil {
			writeError(w, fmt.Errorf("%w: invalid payload json", domain.ErrValidation), nil)
			return
		}

		id, err := s.Importer.Import(r.Context(), payload)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"id": id})
	}
}

// HealthHandler reports 204 when storage is reachable.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.DBCheck != nil {
			if err := s.DBCheck(r.Context()); err != nil {
				writeError(w, fmt.Errorf("%w: %w", domain.ErrStorage, err), nil)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// labelRequest is the wire shape of a label batch request.
type labelRequest struct {
	TransactionIDs []int64 `json:"transaction_ids" validate:"required,min=1"`
	FraudLevel     string  `json:"fraud_level" validate:"required"`
	FraudCategory  string  `json:"fraud_category"`
	Source         string  `json:"source" validate:"required"`
	LabeledBy      string  `json:"labeled_by"`
}

// LabelHandler applies a fraud label to a batch of transaction ids (§7).
func (s *Server) LabelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req labelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid json", domain.ErrValidation), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, fmt.Errorf("%w: %w", domain.ErrValidation, err), nil)
			return
		}

		label := domain.Label{
			FraudLevel:    domain.FraudLevel(req.FraudLevel),
			FraudCategory: req.FraudCategory,
			Source:        domain.LabelSource(req.Source),
			LabeledBy:     req.LabeledBy,
		}
		result, err := s.Labeler.Label(r.Context(), req.TransactionIDs, label)
		if err != nil {
			writeError(w, err, nil)
			return
		}

		status := http.StatusOK
		if result.IsCompleteFailure() {
			status = http.StatusConflict
		} else if result.IsPartialSuccess() {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, result)
	}
}

// TransactionHandler returns one transaction by id.
func (s *Server) TransactionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid id", domain.ErrValidation), nil)
			return
		}
		tx, err := s.Storage.GetTransaction(r.Context(), id)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

// queryRequest is the JSON wire shape of a filter tree submitted to the
// transactions query endpoint, converted into domain.FilterRequest before
// compilation. Kept separate from the domain type so the domain package
// carries no JSON-encoding concerns (§9).
type queryRequest struct {
	Root   *queryGroup     `json:"root"`
	Sort   []querySort     `json:"sort"`
	Limit  *int            `json:"limit"`
	Offset *int            `json:"offset"`
}

type queryGroup struct {
	Operator   string          `json:"operator" validate:"omitempty,oneof=and or"`
	Conditions []queryCondition `json:"conditions"`
	Groups     []queryGroup    `json:"groups"`
}

type queryCondition struct {
	ColumnPath string `json:"column_path" validate:"required"`
	Operator   string `json:"operator" validate:"required"`
	Value      any    `json:"value"`
}

type querySort struct {
	ColumnPath string `json:"column_path" validate:"required"`
	Direction  string `json:"direction" validate:"omitempty,oneof=ASC DESC"`
}

func toDomainGroup(g *queryGroup) *domain.FilterGroup {
	if g == nil {
		return nil
	}
	out := domain.FilterGroup{Operator: domain.LogicalAnd}
	if g.Operator == string(domain.LogicalOr) {
		out.Operator = domain.LogicalOr
	}
	for _, c := range g.Conditions {
		out.Conditions = append(out.Conditions, domain.FilterCondition{
			ColumnPath: c.ColumnPath,
			Operator:   domain.FilterOperator(c.Operator),
			Value:      c.Value,
		})
	}
	for _, sub := range g.Groups {
		sub := sub
		out.Groups = append(out.Groups, *toDomainGroup(&sub))
	}
	return &out
}

// TransactionsQueryHandler compiles a client-submitted filter tree and
// returns matching transactions (§4.7, substituting for the spec's
// GraphQL query surface: no GraphQL library is wired in this stack, so a
// direct POST of the same typed filter tree serves the same contract).
func (s *Server) TransactionsQueryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid json", domain.ErrValidation), nil)
			return
		}

		filterReq := domain.FilterRequest{
			Root:   toDomainGroup(req.Root),
			Limit:  req.Limit,
			Offset: req.Offset,
		}
		for _, sortOrder := range req.Sort {
			dir := domain.SortAsc
			if sortOrder.Direction == string(domain.SortDesc) {
				dir = domain.SortDesc
			}
			filterReq.Sort = append(filterReq.Sort, domain.SortOrder{ColumnPath: sortOrder.ColumnPath, Direction: dir})
		}

		transactions, err := s.listTransactions(r.Context(), filterReq)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, transactions)
	}
}
