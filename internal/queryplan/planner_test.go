package queryplan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/queryplan"
)

type fakeRegistry map[string]domain.TableDescriptor

func (r fakeRegistry) Table(name string) (domain.TableDescriptor, bool) {
	t, ok := r[name]
	return t, ok
}

func ordersRegistry() fakeRegistry {
	return fakeRegistry{
		"orders": domain.TableDescriptor{
			Name: "orders", Alias: "t", PrimaryKey: "id",
			Fields: map[string]domain.FieldDescriptor{
				"amount":     {Name: "amount", Type: domain.FilterTypeNumber},
				"created_at": {Name: "created_at", Type: domain.FilterTypeNumber},
				"status":     {Name: "status", Type: domain.FilterTypeString},
			},
			Relations: map[string]domain.Relation{
				"customer": {Kind: domain.RelationBelongsTo, TargetTable: "customers", ForeignKey: "customer_id"},
			},
		},
		"customers": domain.TableDescriptor{
			Name: "customers", PrimaryKey: "id",
			Fields: map[string]domain.FieldDescriptor{
				"email":     {Name: "email", Type: domain.FilterTypeString},
				"is_active": {Name: "is_active", Type: domain.FilterTypeBoolean},
			},
		},
	}
}

func TestCompile_JoinAndSort(t *testing.T) {
	t.Parallel()

	limit := 10
	req := domain.FilterRequest{
		Root: &domain.FilterGroup{
			Operator: domain.LogicalAnd,
			Conditions: []domain.FilterCondition{
				{ColumnPath: "customer.is_active", Operator: domain.OpEq, Value: true},
				{ColumnPath: "amount", Operator: domain.OpGt, Value: 50.0},
			},
		},
		Sort:  []domain.SortOrder{{ColumnPath: "created_at", Direction: domain.SortDesc}},
		Limit: &limit,
	}

	q, err := queryplan.Compile(req, "orders", ordersRegistry())
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "LEFT JOIN customers customers_1 ON t.customer_id = customers_1.id")
	assert.Contains(t, q.SQL, "customers_1.is_active = $1")
	assert.Contains(t, q.SQL, "t.amount > $2")
	assert.Contains(t, q.SQL, "ORDER BY t.created_at DESC")
	assert.Contains(t, q.SQL, "LIMIT 10")
	assert.Equal(t, []any{true, 50.0}, q.Args)
}

func TestCompile_ReusesJoinAlias(t *testing.T) {
	t.Parallel()

	req := domain.FilterRequest{
		Root: &domain.FilterGroup{
			Operator: domain.LogicalOr,
			Conditions: []domain.FilterCondition{
				{ColumnPath: "customer.email", Operator: domain.OpEq, Value: "a@x"},
				{ColumnPath: "customer.is_active", Operator: domain.OpEq, Value: false},
			},
		},
	}
	q, err := queryplan.Compile(req, "orders", ordersRegistry())
	require.NoError(t, err)
	assert.Equal(t, 1, countOccurrences(q.SQL, "LEFT JOIN customers"))
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  domain.FilterRequest
	}{
		{
			name: "unknown column",
			req: domain.FilterRequest{Root: &domain.FilterGroup{
				Operator:   domain.LogicalAnd,
				Conditions: []domain.FilterCondition{{ColumnPath: "nope", Operator: domain.OpEq, Value: "x"}},
			}},
		},
		{
			name: "unknown relation",
			req: domain.FilterRequest{Root: &domain.FilterGroup{
				Operator:   domain.LogicalAnd,
				Conditions: []domain.FilterCondition{{ColumnPath: "nope.field", Operator: domain.OpEq, Value: "x"}},
			}},
		},
		{
			name: "type mismatch",
			req: domain.FilterRequest{Root: &domain.FilterGroup{
				Operator:   domain.LogicalAnd,
				Conditions: []domain.FilterCondition{{ColumnPath: "amount", Operator: domain.OpEq, Value: "not-a-number"}},
			}},
		},
		{
			name: "empty in",
			req: domain.FilterRequest{Root: &domain.FilterGroup{
				Operator:   domain.LogicalAnd,
				Conditions: []domain.FilterCondition{{ColumnPath: "status", Operator: domain.OpIn, Value: []string{}}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := queryplan.Compile(tt.req, "orders", ordersRegistry())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrFilter)
		})
	}
}

func TestCompile_Between(t *testing.T) {
	t.Parallel()

	req := domain.FilterRequest{
		Root: &domain.FilterGroup{
			Operator: domain.LogicalAnd,
			Conditions: []domain.FilterCondition{
				{ColumnPath: "amount", Operator: domain.OpBetween, Value: domain.FilterRange{Min: 10.0, Max: 20.0}},
			},
		},
	}
	q, err := queryplan.Compile(req, "orders", ordersRegistry())
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "t.amount BETWEEN $1 AND $2")
	assert.Equal(t, []any{10.0, 20.0}, q.Args)
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count
}
