// Package pgsql compiles grid queries into PostgreSQL statements and runs them
// through pgx.
package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
)

var (
	// ErrUnknownSource is returned for queries over an unregistered source.
	ErrUnknownSource = errors.New("pgsql: unknown source")
	// ErrUnknownRelation is returned for paths through an undeclared relation.
	ErrUnknownRelation = errors.New("pgsql: unknown relation")
	// ErrRelationOrder is returned for ORDER BY terms on a relation path.
	ErrRelationOrder = errors.New("pgsql: ordering by a relation column is not supported")
)

// Querier is the subset of pgxpool.Pool and pgx.Tx the backend needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RelationKind selects how a related table joins its owner.
type RelationKind int

const (
	// HasMany: related.ForeignKey = owner.LocalKey.
	HasMany RelationKind = iota
	// BelongsTo: related.LocalKey = owner.ForeignKey.
	BelongsTo
	// ManyToMany joins through Pivot: pivot.ForeignKey = owner.LocalKey and
	// pivot.RelatedKey = related.LocalKey.
	ManyToMany
)

// Relation describes a related table reachable from a source.
type Relation struct {
	Kind       RelationKind
	Table      string
	ForeignKey string
	// LocalKey defaults to "id".
	LocalKey   string
	Pivot      string
	RelatedKey string
}

// Source maps a query source name to a table.
type Source struct {
	Name      string
	Table     string
	Columns   []string
	Relations map[string]Relation
	// Enrich runs after Fetch, typically to attach has-many relations for
	// display.
	Enrich func(ctx context.Context, db Querier, rows []grid.Record) error
}

// Backend implements query.Backend over PostgreSQL.
type Backend struct {
	db      Querier
	sources map[string]Source
}

// New constructs a Backend.
func New(db Querier, sources ...Source) *Backend {
	b := &Backend{db: db, sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		b.sources[s.Name] = s
	}
	return b
}

// Count implements query.Backend.
func (b *Backend) Count(ctx context.Context, q query.Query) (int, error) {
	sql, args, err := b.BuildCount(q)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := b.db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("pgsql: count %s: %w", q.Source(), err)
	}
	return int(total), nil
}

// Fetch implements query.Backend.
func (b *Backend) Fetch(ctx context.Context, q query.Query) ([]grid.Record, error) {
	sql, args, err := b.BuildSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := b.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgsql: fetch %s: %w", q.Source(), err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("pgsql: scan %s: %w", q.Source(), err)
	}
	out := make([]grid.Record, len(maps))
	for i, m := range maps {
		out[i] = grid.Record(m)
	}
	if src := b.sources[q.Source()]; src.Enrich != nil && len(out) > 0 {
		if err := src.Enrich(ctx, b.db, out); err != nil {
			return nil, fmt.Errorf("pgsql: enrich %s: %w", q.Source(), err)
		}
	}
	return out, nil
}

// BuildSelect renders the row query.
func (b *Backend) BuildSelect(q query.Query) (string, []any, error) {
	src, ok := b.sources[q.Source()]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownSource, q.Source())
	}
	c := compiler{src: src}
	where, err := c.where(q.Groups())
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(src.Columns) == 0 {
		sb.WriteString("t.*")
	} else {
		for i, col := range src.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(ident("t", col))
		}
	}
	sb.WriteString(" FROM ")
	sb.WriteString(pgx.Identifier{src.Table}.Sanitize())
	sb.WriteString(" AS t")
	sb.WriteString(where)

	var orders []string
	for _, o := range q.Orders() {
		path := query.ParsePath(o.Column)
		if path.Related() {
			return "", nil, fmt.Errorf("%w: %s", ErrRelationOrder, o.Column)
		}
		dir := "ASC"
		if o.Direction == grid.Desc {
			dir = "DESC"
		}
		orders = append(orders, ident("t", path.Column)+" "+dir)
	}
	if len(orders) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))
	}
	if limit := q.Limit(); limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(limit))
	}
	if offset := q.Offset(); offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(offset))
	}
	return sb.String(), c.args, nil
}

// BuildCount renders the count query.
func (b *Backend) BuildCount(q query.Query) (string, []any, error) {
	src, ok := b.sources[q.Source()]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownSource, q.Source())
	}
	c := compiler{src: src}
	where, err := c.where(q.Groups())
	if err != nil {
		return "", nil, err
	}
	return "SELECT count(*) FROM " + pgx.Identifier{src.Table}.Sanitize() + " AS t" + where, c.args, nil
}

type compiler struct {
	src  Source
	args []any
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

func (c *compiler) where(groups []query.Group) (string, error) {
	var clauses []string
	for _, g := range groups {
		var ors []string
		for _, cond := range g {
			sql, err := c.condition(cond)
			if err != nil {
				return "", err
			}
			if sql != "" {
				ors = append(ors, sql)
			}
		}
		if len(ors) > 0 {
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

func (c *compiler) condition(cond query.Condition) (string, error) {
	if !cond.Path.Related() {
		return c.predicate("t", cond.Path.Column, cond), nil
	}
	rel, ok := c.src.Relations[cond.Path.Relation]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRelation, cond.Path.Relation)
	}
	// A related null check means no related row carries a value.
	exists := "EXISTS"
	inner := cond
	if cond.Op == query.OpNull {
		exists = "NOT EXISTS"
		inner.Op = query.OpNotNull
	}
	from, join := relationJoin(rel)
	return fmt.Sprintf("%s (SELECT 1 FROM %s WHERE %s AND %s)",
		exists, from, join, c.predicate("r", cond.Path.Column, inner)), nil
}

func (c *compiler) predicate(alias, column string, cond query.Condition) string {
	col := ident(alias, column)
	switch cond.Op {
	case query.OpContains:
		if len(cond.Values) == 0 {
			return ""
		}
		pattern := "%" + escapeLike(fmt.Sprint(cond.Values[0])) + "%"
		return col + "::text ILIKE " + c.bind(pattern)
	case query.OpIn:
		if len(cond.Values) == 0 {
			return "FALSE"
		}
		params := make([]string, len(cond.Values))
		for i, v := range cond.Values {
			params[i] = c.bind(v)
		}
		return col + " IN (" + strings.Join(params, ", ") + ")"
	case query.OpNull:
		return col + " IS NULL"
	case query.OpNotNull:
		return col + " IS NOT NULL"
	case query.OpBetween:
		var parts []string
		if !cond.From.IsZero() {
			parts = append(parts, col+" >= "+c.bind(cond.From))
		}
		if !cond.To.IsZero() {
			parts = append(parts, col+" <= "+c.bind(cond.To))
		}
		if len(parts) == 0 {
			return ""
		}
		return strings.Join(parts, " AND ")
	default:
		return ""
	}
}

func relationJoin(rel Relation) (from, join string) {
	local := rel.LocalKey
	if local == "" {
		local = "id"
	}
	table := pgx.Identifier{rel.Table}.Sanitize()
	switch rel.Kind {
	case BelongsTo:
		return table + " AS r", ident("r", local) + " = " + ident("t", rel.ForeignKey)
	case ManyToMany:
		pivot := pgx.Identifier{rel.Pivot}.Sanitize()
		return pivot + " AS p JOIN " + table + " AS r ON " + ident("r", local) + " = " + ident("p", rel.RelatedKey),
			ident("p", rel.ForeignKey) + " = " + ident("t", local)
	default:
		return table + " AS r", ident("r", rel.ForeignKey) + " = " + ident("t", local)
	}
}

func ident(alias, column string) string {
	return pgx.Identifier{alias, column}.Sanitize()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
