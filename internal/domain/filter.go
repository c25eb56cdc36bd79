package domain

// FilterValueType is the scalar type a FilterCondition's value must match
// against a column's declared type (§4.7 type-check step).
type FilterValueType int

const (
	FilterTypeString FilterValueType = iota
	FilterTypeNumber
	FilterTypeBoolean
)

// FilterOperator enumerates the comparison operators a FilterCondition may
// use.
type FilterOperator string

const (
	OpEq         FilterOperator = "="
	OpNeq        FilterOperator = "!="
	OpGt         FilterOperator = ">"
	OpGte        FilterOperator = ">="
	OpLt         FilterOperator = "<"
	OpLte        FilterOperator = "<="
	OpLike       FilterOperator = "like"
	OpIn         FilterOperator = "in"
	OpNotIn      FilterOperator = "not_in"
	OpBetween    FilterOperator = "between"
	OpIsNull     FilterOperator = "is_null"
	OpIsNotNull  FilterOperator = "is_not_null"
	OpContains   FilterOperator = "contains"
)

// FilterRange is the value shape for the `between` operator.
type FilterRange struct {
	Min any
	Max any
}

// FilterCondition has a dotted column path (e.g. "customer.email"), an
// operator, and a value whose Go type depends on Operator:
//   - string, float64, bool for scalar comparisons
//   - []string or []float64 for in/not_in
//   - FilterRange for between
//   - nil for is_null/is_not_null
type FilterCondition struct {
	ColumnPath string
	Operator   FilterOperator
	Value      any
}

// LogicalOperator joins the children of a FilterGroup.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// FilterGroup is a logical grouping of conditions and nested groups.
type FilterGroup struct {
	Operator   LogicalOperator
	Conditions []FilterCondition
	Groups     []FilterGroup
}

// SortDirection is the direction of a SortOrder.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// SortOrder names one ORDER BY term.
type SortOrder struct {
	ColumnPath string
	Direction  SortDirection
}

// FilterRequest is the typed filter tree from the read API.
type FilterRequest struct {
	Root   *FilterGroup
	Sort   []SortOrder
	Limit  *int
	Offset *int
}

// RelationKind enumerates the relation shapes the model registry supports.
type RelationKind string

const (
	RelationBelongsTo RelationKind = "BelongsTo"
	RelationHasMany   RelationKind = "HasMany"
	RelationHasOne    RelationKind = "HasOne"
)

// Relation names one traversable edge from a table to another, used when a
// condition's column path crosses a dotted segment.
type Relation struct {
	Kind         RelationKind
	TargetTable  string
	ForeignKey   string
}

// FieldDescriptor declares one column's name and scalar type for type
// checking, plus an optional raw SQL fragment override (§9 design note).
type FieldDescriptor struct {
	Name           string
	Type           FilterValueType
	FilterFragment string
}

// TableDescriptor is one entry in the model registry: a table's name,
// alias, primary key, field set, and named relations.
type TableDescriptor struct {
	Name       string
	Alias      string
	PrimaryKey string
	Fields     map[string]FieldDescriptor
	Relations  map[string]Relation
}

// ModelRegistry resolves table names to their TableDescriptor.
type ModelRegistry interface {
	Table(name string) (TableDescriptor, bool)
}

// CompiledQuery is the output of the filter planner: a parameterised SQL
// query plus its bound arguments in declared order.
type CompiledQuery struct {
	SQL  string
	Args []any
}
