// Package query turns a compiled grid definition and submitted state into a
// backend-neutral query, and runs it through the Search, Filter, Sort and
// Paginate stages.
package query

import (
	"slices"
	"strings"
	"time"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

// Op is a condition operator.
type Op string

const (
	OpContains Op = "contains"
	OpIn       Op = "in"
	OpNull     Op = "null"
	OpNotNull  Op = "not_null"
	OpBetween  Op = "between"
)

// Path addresses a column, optionally on a related entity. Conditions on a
// related path are existence checks and never multiply owner rows.
type Path struct {
	Relation string
	Column   string
}

// ParsePath splits "relation.column". Paths without a dot are local columns.
func ParsePath(raw string) Path {
	raw = strings.TrimSpace(raw)
	if relation, column, ok := strings.Cut(raw, "."); ok {
		return Path{Relation: relation, Column: column}
	}
	return Path{Column: raw}
}

// Related reports whether the path crosses a relation.
func (p Path) Related() bool { return p.Relation != "" }

func (p Path) String() string {
	if p.Relation == "" {
		return p.Column
	}
	return p.Relation + "." + p.Column
}

// Condition is one predicate.
type Condition struct {
	Path   Path
	Op     Op
	Values []any
	// From and To bound OpBetween, both inclusive. A zero bound is open.
	From time.Time
	To   time.Time
}

// Group is a set of conditions of which at least one must hold.
type Group []Condition

// Order is one ORDER BY term.
type Order struct {
	Column    string
	Direction grid.Direction
}

// Query is an immutable description of a dataset read. Every method returns a
// modified copy.
type Query struct {
	source string
	where  []Group
	orders []Order
	limit  int
	offset int
}

// From starts a query over a named source.
func From(source string) Query {
	return Query{source: source}
}

func (q Query) Source() string { return q.source }

// Where appends one OR group; groups are AND-ed together. Empty groups are
// ignored.
func (q Query) Where(conds ...Condition) Query {
	if len(conds) == 0 {
		return q
	}
	q.where = append(slices.Clip(q.where), Group(slices.Clone(conds)))
	return q
}

// OrderBy appends an ordering term.
func (q Query) OrderBy(column string, dir grid.Direction) Query {
	q.orders = append(slices.Clip(q.orders), Order{Column: column, Direction: dir})
	return q
}

// Page limits the query to a window of rows.
func (q Query) Page(limit, offset int) Query {
	q.limit = max(limit, 0)
	q.offset = max(offset, 0)
	return q
}

// WithoutPaging drops limit and offset, used for counting.
func (q Query) WithoutPaging() Query {
	q.limit, q.offset = 0, 0
	return q
}

func (q Query) Groups() []Group { return slices.Clone(q.where) }
func (q Query) Orders() []Order { return slices.Clone(q.orders) }
func (q Query) Limit() int      { return q.limit }
func (q Query) Offset() int     { return q.offset }

// Ordered reports whether the query already orders by column.
func (q Query) Ordered(column string) bool {
	return slices.ContainsFunc(q.orders, func(o Order) bool { return o.Column == column })
}
