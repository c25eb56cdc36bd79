package domain

// Queue is the durable work queue port (§4.1). The primary processing
// queue and the recalculation queue both implement this contract; which
// one a call targets is selected by QueueKind.
type Queue interface {
	// Enqueue inserts a row with processed_at = null. Duplicate insertion
	// of the same transaction id is permitted (recalculation semantics).
	Enqueue(ctx Context, kind QueueKind, transactionID int64) error
	// FetchNext returns up to n of the oldest eligible rows by created_at,
	// ascending, invisible to concurrent callers until the caller's
	// transactional scope ends.
	FetchNext(ctx Context, kind QueueKind, n int) ([]QueueEntry, error)
	// MarkProcessed sets processed_at = now(). Idempotent; a second call
	// is a no-op.
	MarkProcessed(ctx Context, kind QueueKind, entryID int64) error
}

// Payload is the capability bundle a concrete domain payload (e.g. an
// e-commerce order) supplies to the processor. Modeled as an explicit
// record passed at construction rather than implementation inheritance,
// per §9's "Processible as capability set" design note.
type Payload interface {
	// Validate rejects the payload with ErrValidation on failure.
	Validate() error
	// PayloadNumber returns the externally supplied unique id.
	PayloadNumber() string
	// SchemaVersion returns the (major, minor) schema version pair.
	SchemaVersion() (major, minor int)
	// ExtractSimpleFeatures derives features from the payload alone.
	ExtractSimpleFeatures() []Feature
	// ExtractGraphFeatures derives features from the traversal result.
	ExtractGraphFeatures(connected []ConnectedTransaction, direct []DirectConnection) []Feature
	// ExtractMatchingFields derives the (matcher, value) pairs the payload
	// contributes to the graph.
	ExtractMatchingFields() []MatchingField
	// MarshalJSON and UnmarshalJSON give the payload bidirectional JSON
	// for storage and read-path round trips.
	MarshalJSON() ([]byte, error)
	UnmarshalJSON([]byte) error
	// ColumnDescriptors lists the fields the filter planner may query
	// against this payload's shape.
	ColumnDescriptors() []ColumnDescriptor
}

// PayloadFactory constructs an empty Payload of the concrete domain shape
// so storage adapters can unmarshal into it without depending on the
// concrete type.
type PayloadFactory func() Payload

// ImportableStorage is the storage surface the Importer depends on (§4.2,
// §6). SaveTransactionAndEnqueue persists the transaction row and the
// primary-queue entry for it in one commit, matching §4.2's "neither is
// observable unless commit succeeds" invariant — a plain storage port and a
// plain queue port called back-to-back could not make that guarantee
// without threading a shared transaction handle through two otherwise
// independent interfaces.
type ImportableStorage interface {
	// SaveTransactionAndEnqueue persists the transaction row and enqueues it
	// on QueuePrimary atomically, returning the new transaction id.
	SaveTransactionAndEnqueue(ctx Context, payload Payload, major, minor int) (int64, error)
}

// ProcessibleStorage is the storage surface the Processor uses to load a
// payload by transaction id (§4.6 step 1, §6).
type ProcessibleStorage interface {
	// LoadPayload returns the stored payload for a transaction id, failing
	// with ErrNotFound if absent.
	LoadPayload(ctx Context, transactionID int64, into Payload) error
	// SetTransactionID is used when a payload's identity must be
	// associated with its owning transaction row after load.
	SetTransactionID(ctx Context, transactionID int64) error
}

// CommonStorage is the broad storage surface covering transactions,
// features, matching fields, scoring events, graph traversal, and
// labelling (§6, §4.3, §4.4, §4.5).
type CommonStorage interface {
	// GetTransaction loads a transaction by id.
	GetTransaction(ctx Context, id int64) (Transaction, error)

	// SaveMatchingFields upserts a MatchNode per (matcher, value) and an
	// edge from each node to the transaction. Idempotent: repeated calls
	// with identical inputs never create duplicates and never change
	// existing confidence/importance (§4.3).
	SaveMatchingFields(ctx Context, transactionID int64, fields []MatchingField) error

	// GetDirectConnections returns all transactions sharing at least one
	// MatchNode with the given transaction, excluding itself (§4.3).
	GetDirectConnections(ctx Context, transactionID int64) ([]DirectConnection, error)

	// FindConnectedTransactions performs the depth-bounded bipartite
	// traversal described in §4.3.
	FindConnectedTransactions(ctx Context, transactionID int64, opts TraversalOptions) ([]ConnectedTransaction, error)

	// SaveFeatures replaces the transaction's FeatureSet, stored under
	// version major.minor. retainSimple=true means "ignore simple and retain
	// whatever simple features are already stored" (§4.4).
	SaveFeatures(ctx Context, transactionID int64, major, minor int, simple []Feature, graph []Feature, retainSimple bool) error

	// GetFeatures returns the stored FeatureSet, or ErrNotFound.
	GetFeatures(ctx Context, transactionID int64) (FeatureSet, error)

	// SaveScoringEvent persists a ScoringEvent and its TriggeredRule rows
	// atomically (§4.5).
	SaveScoringEvent(ctx Context, event ScoringEvent, triggeredRuleIDs []int64) (int64, error)

	// LabelTransactions applies a label to a batch of transaction ids,
	// reporting which ids succeeded and which failed (§7, §9).
	LabelTransactions(ctx Context, ids []int64, label Label) (LabelingResult, error)

	// ListTransactions executes a compiled filter/query planner query and
	// returns the matching transactions.
	ListTransactions(ctx Context, query CompiledQuery) ([]Transaction, error)
}

// ScoringStorage is the subset of CommonStorage the Expression Scorer's
// initialisation path uses to load channel/model/rule configuration.
type ScoringStorage interface {
	// GetChannelByName loads a channel and its model's rules, failing with
	// ErrConfig if no channel by that name exists (§4.5).
	GetChannelByName(ctx Context, name string) (Channel, ScoringModel, []ExpressionRule, error)
}

// MatcherConfigProvider resolves matcher name to (confidence, importance),
// defaulting unknown matchers to DefaultMatcherConfig (§6, §9 supplemented
// feature 1).
type MatcherConfigProvider interface {
	Resolve(matcher string) MatcherConfig
}

// EventPublisher is the best-effort, non-critical-path sink for completed
// ScoringEvents (§B domain stack). Implementations must never block or
// gate mark_processed on publish success.
type EventPublisher interface {
	PublishScoringEvent(ctx Context, transactionID int64, event ScoringEvent, triggered []TriggeredRule) error
	Close() error
}
