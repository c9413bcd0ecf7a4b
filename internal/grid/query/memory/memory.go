// Package memory evaluates grid queries over in-process records. It backs the
// demo dataset and the pipeline tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
)

// Backend stores records per source name.
type Backend struct {
	mu      sync.RWMutex
	sources map[string][]grid.Record
}

// New constructs an empty Backend.
func New() *Backend {
	return &Backend{sources: make(map[string][]grid.Record)}
}

// Put replaces the records of source.
func (b *Backend) Put(source string, rows []grid.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[source] = slices.Clone(rows)
}

// Count implements query.Backend.
func (b *Backend) Count(ctx context.Context, q query.Query) (int, error) {
	rows, err := b.match(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Fetch implements query.Backend.
func (b *Backend) Fetch(ctx context.Context, q query.Query) ([]grid.Record, error) {
	rows, err := b.match(ctx, q)
	if err != nil {
		return nil, err
	}
	orders := q.Orders()
	if len(orders) > 0 {
		slices.SortStableFunc(rows, func(x, y grid.Record) int {
			for _, o := range orders {
				xv, _ := x.Lookup(o.Column)
				yv, _ := y.Lookup(o.Column)
				c := compare(xv, yv)
				if o.Direction == grid.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	if off := q.Offset(); off > 0 {
		if off >= len(rows) {
			return []grid.Record{}, nil
		}
		rows = rows[off:]
	}
	if limit := q.Limit(); limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (b *Backend) match(ctx context.Context, q query.Query) ([]grid.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	source, ok := b.sources[q.Source()]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memory: unknown source %q", q.Source())
	}
	groups := q.Groups()
	out := make([]grid.Record, 0, len(source))
	for _, rec := range source {
		if matchAll(rec, groups) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func matchAll(rec grid.Record, groups []query.Group) bool {
	for _, g := range groups {
		if !slices.ContainsFunc(g, func(c query.Condition) bool { return matchOne(rec, c) }) {
			return false
		}
	}
	return true
}

func matchOne(rec grid.Record, c query.Condition) bool {
	raw, _ := rec.Lookup(c.Path.String())
	values := present(raw)
	switch c.Op {
	case query.OpNull:
		return len(values) == 0
	case query.OpNotNull:
		return len(values) > 0
	case query.OpContains:
		if len(c.Values) == 0 {
			return false
		}
		// Casers are stateful; one per evaluation.
		fold := cases.Fold()
		needle := fold.String(fmt.Sprint(c.Values[0]))
		return slices.ContainsFunc(values, func(v any) bool {
			return strings.Contains(fold.String(fmt.Sprint(v)), needle)
		})
	case query.OpIn:
		return slices.ContainsFunc(values, func(v any) bool {
			return slices.ContainsFunc(c.Values, func(want any) bool { return equal(v, want) })
		})
	case query.OpBetween:
		return slices.ContainsFunc(values, func(v any) bool {
			t, ok := asTime(v)
			if !ok {
				return false
			}
			if !c.From.IsZero() && t.Before(c.From) {
				return false
			}
			return c.To.IsZero() || !t.After(c.To)
		})
	default:
		return false
	}
}

// present flattens has-many values and drops nils.
func present(v any) []any {
	switch vv := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, 0, len(vv))
		for _, item := range vv {
			if item != nil {
				out = append(out, item)
			}
		}
		return out
	default:
		return []any{v}
	}
}

func equal(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return cmp.Compare(fa, fb)
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return cmp.Compare(boolRank(ba), boolRank(bb))
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
