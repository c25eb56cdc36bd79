// Package queryplan compiles a typed domain.FilterRequest into a
// parameterised SQL query against a domain.ModelRegistry (spec §4.7). It has
// no storage dependency of its own: CommonStorage.ListTransactions takes the
// CompiledQuery this package produces and executes it.
package queryplan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quave-io/frida-go/internal/domain"
)

// Compile renders req against rootTable, resolved through registry, into a
// positional-parameter SQL query plus its bound argument vector in
// declaration order.
func Compile(req domain.FilterRequest, rootTable string, registry domain.ModelRegistry) (domain.CompiledQuery, error) {
	root, ok := registry.Table(rootTable)
	if !ok {
		return domain.CompiledQuery{}, fmt.Errorf("%w: unknown root table %q", domain.ErrFilter, rootTable)
	}
	if root.Alias == "" {
		root.Alias = "t"
	}

	c := &compiler{registry: registry, root: root, joinAlias: map[string]string{}}

	var where string
	if req.Root != nil {
		w, err := c.renderGroup(*req.Root)
		if err != nil {
			return domain.CompiledQuery{}, err
		}
		where = w
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s.* FROM %s %s", root.Alias, root.Name, root.Alias)
	for _, j := range c.joins {
		b.WriteString(" " + j)
	}
	if where != "" {
		b.WriteString(" WHERE " + where)
	}

	if len(req.Sort) > 0 {
		terms := make([]string, 0, len(req.Sort))
		for _, s := range req.Sort {
			alias, field, err := c.resolveColumn(s.ColumnPath)
			if err != nil {
				return domain.CompiledQuery{}, err
			}
			dir := s.Direction
			if dir == "" {
				dir = domain.SortAsc
			}
			terms = append(terms, fmt.Sprintf("%s %s", columnSQL(alias, field), dir))
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}

	if req.Limit != nil {
		b.WriteString(" LIMIT " + strconv.Itoa(*req.Limit))
	}
	if req.Offset != nil {
		b.WriteString(" OFFSET " + strconv.Itoa(*req.Offset))
	}

	return domain.CompiledQuery{SQL: b.String(), Args: c.args}, nil
}

// compiler holds the mutable state threaded through one Compile call: join
// deduplication, alias counters, and the accumulated argument vector.
type compiler struct {
	registry domain.ModelRegistry
	root     domain.TableDescriptor

	joins     []string
	joinAlias map[string]string // "<parentAlias>.<relationName>" -> alias already assigned
	aliasSeq  map[string]int
	args      []any
}

func (c *compiler) renderGroup(g domain.FilterGroup) (string, error) {
	op := " AND "
	if g.Operator == domain.LogicalOr {
		op = " OR "
	}
	var parts []string
	for _, cond := range g.Conditions {
		s, err := c.renderCondition(cond)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	for _, sub := range g.Groups {
		s, err := c.renderGroup(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, op), nil
}

func (c *compiler) renderCondition(cond domain.FilterCondition) (string, error) {
	alias, field, err := c.resolveColumn(cond.ColumnPath)
	if err != nil {
		return "", err
	}
	col := columnSQL(alias, field)

	switch cond.Operator {
	case domain.OpIsNull:
		return col + " IS NULL", nil
	case domain.OpIsNotNull:
		return col + " IS NOT NULL", nil
	case domain.OpIn, domain.OpNotIn:
		values, err := asList(cond.Value)
		if err != nil {
			return "", err
		}
		if len(values) == 0 {
			return "", fmt.Errorf("%w: empty value list for %q", domain.ErrFilter, cond.ColumnPath)
		}
		if err := checkListType(field, values); err != nil {
			return "", err
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = c.bind(v)
		}
		opSQL := "IN"
		if cond.Operator == domain.OpNotIn {
			opSQL = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, opSQL, strings.Join(placeholders, ", ")), nil
	case domain.OpBetween:
		r, ok := cond.Value.(domain.FilterRange)
		if !ok {
			return "", fmt.Errorf("%w: %q between requires a range value", domain.ErrFilter, cond.ColumnPath)
		}
		if err := checkType(field, r.Min); err != nil {
			return "", err
		}
		if err := checkType(field, r.Max); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, c.bind(r.Min), c.bind(r.Max)), nil
	case domain.OpEq, domain.OpNeq, domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte, domain.OpLike, domain.OpContains:
		if err := checkType(field, cond.Value); err != nil {
			return "", err
		}
		sqlOp := string(cond.Operator)
		val := cond.Value
		if cond.Operator == domain.OpContains {
			sqlOp = "LIKE"
			if s, ok := cond.Value.(string); ok {
				val = "%" + s + "%"
			}
		} else if cond.Operator == domain.OpLike {
			sqlOp = "LIKE"
		}
		return fmt.Sprintf("%s %s %s", col, sqlOp, c.bind(val)), nil
	default:
		return "", fmt.Errorf("%w: unsupported operator %q on %q", domain.ErrFilter, cond.Operator, cond.ColumnPath)
	}
}

// resolveColumn splits a dotted column path, following a relation segment
// per non-final component and emitting a deterministically-aliased LEFT
// JOIN the first time each relation is visited, then type-checks the final
// segment against the landing table's field set.
func (c *compiler) resolveColumn(path string) (string, domain.FieldDescriptor, error) {
	segments := strings.Split(path, ".")
	table := c.root
	alias := c.root.Alias

	for i, seg := range segments {
		last := i == len(segments)-1
		if !last {
			rel, ok := table.Relations[seg]
			if !ok {
				return "", domain.FieldDescriptor{}, fmt.Errorf("%w: unknown relation %q on %q", domain.ErrFilter, seg, table.Name)
			}
			target, ok := c.registry.Table(rel.TargetTable)
			if !ok {
				return "", domain.FieldDescriptor{}, fmt.Errorf("%w: unknown table %q for relation %q", domain.ErrFilter, rel.TargetTable, seg)
			}
			key := alias + "." + seg
			joinAlias, seen := c.joinAlias[key]
			if !seen {
				joinAlias = c.nextAlias(rel.TargetTable)
				c.joinAlias[key] = joinAlias
				c.joins = append(c.joins, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
					target.Name, joinAlias, alias, rel.ForeignKey, joinAlias, target.PrimaryKey))
			}
			alias = joinAlias
			table = target
			continue
		}
		field, ok := table.Fields[seg]
		if !ok {
			return "", domain.FieldDescriptor{}, fmt.Errorf("%w: unknown column %q on %q", domain.ErrFilter, seg, table.Name)
		}
		return alias, field, nil
	}
	return "", domain.FieldDescriptor{}, fmt.Errorf("%w: empty column path", domain.ErrFilter)
}

func (c *compiler) nextAlias(table string) string {
	if c.aliasSeq == nil {
		c.aliasSeq = map[string]int{}
	}
	c.aliasSeq[table]++
	return fmt.Sprintf("%s_%d", table, c.aliasSeq[table])
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

// columnSQL prefers a field's raw SQL fragment override when present,
// falling back to "<alias>.<field>" (§9 planner extensibility note).
func columnSQL(alias string, f domain.FieldDescriptor) string {
	if f.FilterFragment != "" {
		return f.FilterFragment
	}
	return alias + "." + f.Name
}

func checkType(f domain.FieldDescriptor, v any) error {
	switch f.Type {
	case domain.FilterTypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: %q expects a string value", domain.ErrFilter, f.Name)
		}
	case domain.FilterTypeNumber:
		switch v.(type) {
		case int, int64, float64, float32:
		default:
			return fmt.Errorf("%w: %q expects a number value", domain.ErrFilter, f.Name)
		}
	case domain.FilterTypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: %q expects a boolean value", domain.ErrFilter, f.Name)
		}
	}
	return nil
}

func checkListType(f domain.FieldDescriptor, values []any) error {
	for _, v := range values {
		if err := checkType(f, v); err != nil {
			return err
		}
	}
	return nil
}

func asList(v any) ([]any, error) {
	switch vv := v.(type) {
	case []any:
		return vv, nil
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, nil
	case []float64:
		out := make([]any, len(vv))
		for i, f := range vv {
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: in/not_in requires a list value", domain.ErrFilter)
	}
}
