// Package domain defines core entities, ports, and domain-specific errors
// for the transaction fraud-scoring pipeline.
package domain

import (
	"context"
	"time"
)

// Context is a type alias to stdlib context.Context for convenience across
// layers; adapters and usecases pass context.Context through directly.
type Context = context.Context

// Transaction is the unit of work. Created by the importer; mutated by the
// processor (label, last-scoring timestamp, complete flag). Never deleted
// by the core.
type Transaction struct {
	ID                 int64
	PayloadNumber      string
	SchemaMajor        int
	SchemaMinor        int
	Payload            []byte
	LabelID            *int64
	LastScoringAt      *time.Time
	ProcessingComplete bool
	CreatedAt          time.Time
}

// QueueKind selects which durable queue a QueueEntry belongs to. The
// primary processing queue and the recalculation queue share an identical
// contract (§4.1).
type QueueKind string

const (
	// QueuePrimary is the queue the importer enqueues new transactions to.
	QueuePrimary QueueKind = "processing_queue"
	// QueueRecalculation holds transactions resubmitted for scoring without
	// a fresh import, and entries that exhausted their retry budget.
	QueueRecalculation QueueKind = "recalculation_queue"
)

// QueueEntry is one row on a durable work queue. It is eligible for
// fetch_next iff ProcessedAt is nil; once set it is terminal.
type QueueEntry struct {
	ID            int64
	TransactionID int64
	ProcessedAt   *time.Time
	CreatedAt     time.Time
}

// MatchingField is an extracted (matcher, value) pair a payload contributes
// to the graph. Ephemeral; persisted indirectly through MatchNode and
// MatchNodeTransaction.
type MatchingField struct {
	Matcher string
	Value   string
}

// MatchNode is a canonical identifier in the graph, unique by (Matcher,
// Value). Confidence and Importance are assigned from the matcher
// configuration on first insert and are immutable thereafter.
type MatchNode struct {
	ID         int64
	Matcher    string
	Value      string
	Confidence int
	Importance int
}

// MatchNodeTransaction is the undirected edge between a MatchNode and a
// Transaction, unique by (NodeID, TransactionID).
type MatchNodeTransaction struct {
	NodeID        int64
	TransactionID int64
}

// FeatureKind discriminates the FeatureValue tagged union. Kept as a closed
// sum type rather than an untyped "value" bag so storage round-trips
// preserve the discriminator (§9 design note).
type FeatureKind int

const (
	FeatureInt FeatureKind = iota
	FeatureDouble
	FeatureString
	FeatureBool
	FeatureDateTime
	FeatureIntList
	FeatureDoubleList
	FeatureStringList
	FeatureBoolList
)

// String renders the FeatureKind for logs and CEL type reporting.
func (k FeatureKind) String() string {
	switch k {
	case FeatureInt:
		return "int"
	case FeatureDouble:
		return "double"
	case FeatureString:
		return "string"
	case FeatureBool:
		return "bool"
	case FeatureDateTime:
		return "datetime"
	case FeatureIntList:
		return "int_list"
	case FeatureDoubleList:
		return "double_list"
	case FeatureStringList:
		return "string_list"
	case FeatureBoolList:
		return "bool_list"
	default:
		return "unknown"
	}
}

// FeatureValue is a closed tagged union over the value kinds a Feature may
// carry. Exactly one field is populated, selected by Kind; callers must not
// read a field without checking Kind first.
type FeatureValue struct {
	Kind FeatureKind

	IntVal      int64
	DoubleVal   float64
	StringVal   string
	BoolVal     bool
	DateTimeVal time.Time

	IntListVal    []int64
	DoubleListVal []float64
	StringListVal []string
	BoolListVal   []bool
}

// NewIntFeature constructs an Int FeatureValue.
func NewIntFeature(v int64) FeatureValue { return FeatureValue{Kind: FeatureInt, IntVal: v} }

// NewDoubleFeature constructs a Double FeatureValue.
func NewDoubleFeature(v float64) FeatureValue { return FeatureValue{Kind: FeatureDouble, DoubleVal: v} }

// NewStringFeature constructs a String FeatureValue.
func NewStringFeature(v string) FeatureValue { return FeatureValue{Kind: FeatureString, StringVal: v} }

// NewBoolFeature constructs a Bool FeatureValue.
func NewBoolFeature(v bool) FeatureValue { return FeatureValue{Kind: FeatureBool, BoolVal: v} }

// NewDateTimeFeature constructs a DateTime FeatureValue.
func NewDateTimeFeature(v time.Time) FeatureValue {
	return FeatureValue{Kind: FeatureDateTime, DateTimeVal: v}
}

// NewIntListFeature constructs an IntList FeatureValue.
func NewIntListFeature(v []int64) FeatureValue { return FeatureValue{Kind: FeatureIntList, IntListVal: v} }

// NewDoubleListFeature constructs a DoubleList FeatureValue.
func NewDoubleListFeature(v []float64) FeatureValue {
	return FeatureValue{Kind: FeatureDoubleList, DoubleListVal: v}
}

// NewStringListFeature constructs a StringList FeatureValue.
func NewStringListFeature(v []string) FeatureValue {
	return FeatureValue{Kind: FeatureStringList, StringListVal: v}
}

// NewBoolListFeature constructs a BoolList FeatureValue.
func NewBoolListFeature(v []bool) FeatureValue {
	return FeatureValue{Kind: FeatureBoolList, BoolListVal: v}
}

// Feature is a named typed value extracted from a payload and/or its graph
// neighbourhood.
type Feature struct {
	Name  string
	Value FeatureValue
}

// FeatureSet belongs to a transaction, carries a (major, minor) schema
// version, and splits into two disjoint buckets: Simple (from the payload
// alone) and Graph (from the traversal result). At most one current
// FeatureSet exists per (transaction, version).
type FeatureSet struct {
	TransactionID int64
	Major         int
	Minor         int
	Simple        []Feature
	Graph         []Feature
}

// All returns the combined simple and graph features, the bag an Expression
// Scorer evaluation environment is built from.
func (fs FeatureSet) All() []Feature {
	out := make([]Feature, 0, len(fs.Simple)+len(fs.Graph))
	out = append(out, fs.Simple...)
	out = append(out, fs.Graph...)
	return out
}

// ConnectedTransaction is a transient traversal result: a reached
// transaction, the ordered sequence of matchers and values traversed from
// the root, depth, aggregate confidence and importance along the path.
type ConnectedTransaction struct {
	TransactionID     int64
	PathMatchers      []string
	PathValues        []string
	Depth             int
	PathConfidenceSum int
	PathImportanceSum int
	ReachedAt         time.Time
}

// DirectConnection is a one-hop connection: a shortcut shape of
// ConnectedTransaction at depth 1.
type DirectConnection struct {
	TransactionID int64
	Matcher       string
	Confidence    int
	Importance    int
}

// Channel names an active scoring model.
type Channel struct {
	ID      int64
	Name    string
	ModelID int64
}

// ScoringModel owns a set of expression rules.
type ScoringModel struct {
	ID   int64
	Name string
}

// ExpressionRule is a boolean expression over feature names with a positive
// integer score awarded when it triggers.
type ExpressionRule struct {
	ID          int64
	ModelID     int64
	Name        string
	Description string
	Rule        string
	Score       int
}

// ScoringEvent records one scoring run for one transaction under one
// channel.
type ScoringEvent struct {
	ID            int64
	TransactionID int64
	ChannelID     int64
	TotalScore    int
	CreatedAt     time.Time
}

// TriggeredRule is an edge from a ScoringEvent to a matched ExpressionRule.
type TriggeredRule struct {
	ScoringEventID int64
	RuleID         int64
}

// FraudLevel enumerates the terminal labels a Transaction may carry.
type FraudLevel string

const (
	FraudLevelFraud                FraudLevel = "Fraud"
	FraudLevelNoFraud              FraudLevel = "NoFraud"
	FraudLevelBlockedAutomatically FraudLevel = "BlockedAutomatically"
	FraudLevelAccountTakeover      FraudLevel = "AccountTakeover"
	FraudLevelNotCreditWorthy      FraudLevel = "NotCreditWorthy"
)

// LabelSource identifies who or what produced a Label.
type LabelSource string

const (
	LabelSourceManual LabelSource = "Manual"
	LabelSourceAPI    LabelSource = "Api"
)

// Label is a fraud determination attached to a transaction.
type Label struct {
	ID            int64
	TransactionID int64
	FraudLevel    FraudLevel
	FraudCategory string
	Source        LabelSource
	LabeledBy     string
	CreatedAt     time.Time
}

// LabelingResult reports partial success of a batch label_transactions
// call (§7, §9 supplemented feature 2).
type LabelingResult struct {
	SuccessCount          int
	FailedTransactionIDs  []int64
}

// IsCompleteSuccess holds iff every id in the batch was labeled.
func (r LabelingResult) IsCompleteSuccess() bool {
	return r.SuccessCount > 0 && len(r.FailedTransactionIDs) == 0
}

// IsPartialSuccess holds iff some ids succeeded and some failed.
func (r LabelingResult) IsPartialSuccess() bool {
	return r.SuccessCount > 0 && len(r.FailedTransactionIDs) > 0
}

// IsCompleteFailure holds iff no id in the batch was labeled.
func (r LabelingResult) IsCompleteFailure() bool {
	return r.SuccessCount == 0 && len(r.FailedTransactionIDs) > 0
}

// MatcherConfig is a (confidence, importance) pair assigned to a matcher
// name. Unknown matchers default to (80, 50) per spec §6.
type MatcherConfig struct {
	Confidence int
	Importance int
}

// DefaultMatcherConfig is the fallback applied to matchers absent from the
// loaded configuration.
var DefaultMatcherConfig = MatcherConfig{Confidence: 80, Importance: 50}

// TraversalOptions carries the bounds for find_connected_transactions.
// Zero values are replaced with the documented defaults by matchgraph.Traverse.
type TraversalOptions struct {
	MaxDepth      int
	Limit         int
	MinCreatedAt  *time.Time
	MaxCreatedAt  *time.Time
	MinConfidence int
}

// ColumnDescriptor describes one field the filter planner may reference, as
// supplied by the Payload capability bundle (§6, §9).
type ColumnDescriptor struct {
	Name           string
	HelpText       string
	ScalarType     FilterValueType
	FilterFragment string // optional raw SQL fragment, preferred over "<alias>.<field>"
}
