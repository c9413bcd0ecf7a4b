package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

// Request bundles the compiled definition with the submitted state.
type Request struct {
	Definition *grid.Definition
	State      grid.State
	// MaxPerPage overrides grid.MaxPerPage when positive.
	MaxPerPage int
}

// Stage transforms a query. Stages never fail; input they cannot translate is
// dropped.
type Stage func(Query, Request) Query

// Stages returns the stages in execution order. Paginate is always last.
func Stages() []Stage {
	return []Stage{Search, Filter, Sort, Paginate}
}

const dateLayout = "2006-01-02"

// Search adds one OR group of case-insensitive substring conditions over the
// searchable columns, or the host fallback list when none are declared.
func Search(q Query, req Request) Query {
	term := strings.TrimSpace(req.State.Search)
	if term == "" || req.Definition == nil {
		return q
	}
	fields := req.Definition.SearchableColumns()
	if len(fields) == 0 {
		fields = req.Definition.FallbackSearch
	}
	var group []Condition
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		path := ParsePath(field)
		if path.Column == "" {
			continue
		}
		if _, dup := seen[path.String()]; dup {
			continue
		}
		seen[path.String()] = struct{}{}
		group = append(group, Condition{Path: path, Op: OpContains, Values: []any{term}})
	}
	return q.Where(group...)
}

// Filter translates every submitted value whose key names a declared filter.
// Undeclared keys and values outside a filter's static options are ignored.
func Filter(q Query, req Request) Query {
	def := req.Definition
	if def == nil {
		return q
	}
	for _, key := range req.State.FilterKeys() {
		f := def.Filter(key)
		if f == nil {
			continue
		}
		raws := compact(req.State.Filters[key])
		if f.Type == grid.FilterDateRange {
			if cond, ok := dateRange(f, req.State.Filters[key]); ok {
				q = q.Where(cond)
			}
			continue
		}
		if len(raws) == 0 {
			continue
		}
		if f.Type == grid.FilterSelect || f.Type == grid.FilterBoolean {
			raws = raws[:1]
		}
		q = q.Where(resolve(f, raws)...)
	}
	return q
}

func resolve(f *grid.FilterDef, raws []string) []Condition {
	path := ParsePath(f.Field())
	if f.Type == grid.FilterRelationship && f.Relationship != nil {
		path = Path{Relation: f.Relationship.Relation, Column: f.Relationship.Column}
	}
	var (
		values []any
		group  []Condition
	)
	for _, raw := range raws {
		if !f.Allows(raw) {
			continue
		}
		value := f.Map(raw)
		if s, ok := value.(string); ok {
			switch s {
			case grid.SentinelNull:
				group = append(group, Condition{Path: path, Op: OpNull})
				continue
			case grid.SentinelNotNull:
				group = append(group, Condition{Path: path, Op: OpNotNull})
				continue
			}
			if f.Type == grid.FilterBoolean {
				b, err := strconv.ParseBool(s)
				if err != nil {
					continue
				}
				value = b
			}
		}
		if !slices.ContainsFunc(values, func(v any) bool { return fmt.Sprint(v) == fmt.Sprint(value) }) {
			values = append(values, value)
		}
	}
	if len(values) > 0 {
		group = append([]Condition{{Path: path, Op: OpIn, Values: values}}, group...)
	}
	return group
}

// dateRange reads [from, to] as whole days; the upper bound covers the whole
// of its day. Either bound may be empty.
func dateRange(f *grid.FilterDef, raws []string) (Condition, bool) {
	var from, to time.Time
	if len(raws) > 0 {
		from, _ = time.Parse(dateLayout, strings.TrimSpace(raws[0]))
	}
	if len(raws) > 1 {
		to, _ = time.Parse(dateLayout, strings.TrimSpace(raws[1]))
	}
	if from.IsZero() && to.IsZero() {
		return Condition{}, false
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		from, to = to, from
	}
	cond := Condition{Path: ParsePath(f.Field()), Op: OpBetween, From: from}
	if !to.IsZero() {
		cond.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return cond, true
}

// Sort applies the requested sort when the key is declared sortable, else the
// default sort, else the primary key. The primary key is always appended as a
// tiebreaker so that equal values page stably.
func Sort(q Query, req Request) Query {
	def := req.Definition
	if def == nil {
		return q
	}
	column, direction := ResolveSort(def, req.State)
	if column != "" {
		q = q.OrderBy(column, direction)
	}
	if pk := def.PrimaryKey; pk != "" && !q.Ordered(pk) {
		q = q.OrderBy(pk, grid.Asc)
	}
	return q
}

// ResolveSort returns the validated sort column and direction for state.
func ResolveSort(def *grid.Definition, state grid.State) (string, grid.Direction) {
	if column, ok := def.SortColumn(state.SortBy); ok {
		dir, valid := grid.ParseDirection(string(state.SortDirection))
		if !valid {
			dir = grid.Asc
		}
		return column, dir
	}
	if def.DefaultSort.Column != "" {
		column := def.DefaultSort.Column
		if mapped, ok := def.SortColumn(column); ok {
			column = mapped
		}
		return column, def.DefaultSort.Direction
	}
	return def.PrimaryKey, grid.Asc
}

// Paginate applies limit and offset for the requested page.
func Paginate(q Query, req Request) Query {
	perPage := ResolvePerPage(req)
	page := max(req.State.Page, 1)
	return q.Page(perPage, (page-1)*perPage)
}

// ResolvePerPage bounds the requested page size, defaulting to the
// definition's page size.
func ResolvePerPage(req Request) int {
	limit := grid.MaxPerPage
	if req.MaxPerPage > 0 {
		limit = req.MaxPerPage
	}
	perPage := req.State.PerPage
	if perPage <= 0 && req.Definition != nil {
		perPage = req.Definition.PerPage
	}
	if perPage <= 0 {
		perPage = grid.DefaultPerPage
	}
	return min(perPage, limit)
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
