package controller

import (
	"slices"
	"strings"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

// Each concern takes state in and returns the new state; none of them talk to
// stores or emit signals.

type searching struct{}

func (searching) apply(s grid.State, term string) grid.State {
	s.Search = strings.TrimSpace(term)
	return s
}

type sorting struct {
	def *grid.Definition
}

// toggle flips the direction when key is already the active sort and starts a
// new key ascending. Undeclared keys leave state untouched.
func (c sorting) toggle(s grid.State, key string) (grid.State, bool) {
	if _, ok := c.def.SortColumn(key); !ok {
		return s, false
	}
	current, dir := s.SortBy, s.SortDirection
	if current == "" {
		current, dir = c.def.DefaultSort.Column, c.def.DefaultSort.Direction
	}
	if current == key {
		if dir == "" {
			dir = grid.Asc
		}
		s.SortDirection = dir.Toggle()
	} else {
		s.SortDirection = grid.Asc
	}
	s.SortBy = key
	return s, true
}

// InitialWindow and WindowStep size the incremental load-more view.
const (
	InitialWindow = 25
	WindowStep    = 25
)

type paging struct {
	maxPerPage int
}

func (p paging) reset(s grid.State) grid.State {
	s.Page = 1
	return s
}

func (p paging) limit() int {
	if p.maxPerPage <= 0 {
		return grid.MaxPerPage
	}
	return p.maxPerPage
}

func (p paging) perPage(s grid.State, n int) grid.State {
	s.PerPage = min(max(n, 1), p.limit())
	return s
}

func (p paging) goTo(s grid.State, page int) grid.State {
	s.Page = max(page, 1)
	return s
}

type filtering struct {
	def *grid.Definition
}

// set replaces the values of key and drops the values of every filter that
// depends on it, transitively. Undeclared keys are ignored.
func (f filtering) set(s grid.State, key string, values []string) (grid.State, bool) {
	if f.def.Filter(key) == nil {
		return s, false
	}
	s = s.Clone()
	if s.Filters == nil {
		s.Filters = map[string][]string{}
	}
	blank := !slices.ContainsFunc(values, func(v string) bool { return strings.TrimSpace(v) != "" })
	if blank {
		delete(s.Filters, key)
	} else {
		s.Filters[key] = values
	}
	queue := f.def.Dependents(key)
	seen := map[string]bool{key: true}
	for len(queue) > 0 {
		child := queue[0]
		queue = queue[1:]
		if seen[child] {
			continue
		}
		seen[child] = true
		delete(s.Filters, child)
		queue = append(queue, f.def.Dependents(child)...)
	}
	return s, true
}

func (filtering) clear(s grid.State) grid.State {
	s.Filters = nil
	return s
}

type selection struct {
	ids []string
}

func (s *selection) toggle(id string) {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return
	}
	s.ids = append(s.ids, id)
}

// page selects every id of the page, or deselects them all when they are
// already selected.
func (s *selection) page(ids []string) {
	all := len(ids) > 0
	for _, id := range ids {
		if !slices.Contains(s.ids, id) {
			all = false
			break
		}
	}
	if all {
		s.ids = slices.DeleteFunc(s.ids, func(id string) bool { return slices.Contains(ids, id) })
		return
	}
	for _, id := range ids {
		if !slices.Contains(s.ids, id) {
			s.ids = append(s.ids, id)
		}
	}
}

func (s *selection) clear() bool {
	had := len(s.ids) > 0
	s.ids = nil
	return had
}

func (s *selection) has(id string) bool {
	return slices.Contains(s.ids, id)
}

func (s *selection) list() []string {
	return slices.Clone(s.ids)
}
