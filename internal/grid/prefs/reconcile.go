package prefs

import (
	"slices"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

// Defaults are the definition-level fallbacks. Sortable and Filterable,
// when set, reject URL keys the definition does not declare; nil accepts any.
type Defaults struct {
	Sort       grid.Sort
	PerPage    int
	Sortable   func(key string) bool
	Filterable func(key string) bool
}

// DefaultsFor reads the fallbacks of a compiled definition.
func DefaultsFor(def *grid.Definition) Defaults {
	if def == nil {
		return Defaults{}
	}
	return Defaults{
		Sort:    def.DefaultSort,
		PerPage: def.PerPage,
		Sortable: func(key string) bool {
			_, ok := def.SortColumn(key)
			return ok
		},
		Filterable: func(key string) bool { return def.Filter(key) != nil },
	}
}

func (d Defaults) sortable(key string) bool {
	return d.Sortable == nil || d.Sortable(key)
}

// declaredFilters drops undeclared keys. ok is false when every key given
// was undeclared; an empty set is a deliberate clear and passes.
func (d Defaults) declaredFilters(in map[string][]string) (map[string][]string, bool) {
	if d.Filterable == nil {
		return cloneFilters(in), true
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		if d.Filterable(k) {
			out[k] = slices.Clone(v)
		}
	}
	return out, len(out) > 0 || len(in) == 0
}

// Outcome is the result of one reconciliation.
type Outcome struct {
	State grid.State
	// Persist is the bag to save; nil when nothing changed.
	Persist Bag
	// CleanURL asks the UI to drop the recognized parameters from the
	// address bar.
	CleanURL bool
}

// Reconcile resolves the mount state field by field: URL parameters first,
// then the saved bag, then the defaults. When the URL carried any recognized
// parameter the merged bag is returned for persisting and the URL is to be
// cleaned. Undeclared sort and filter keys are ignored. The page always
// starts at 1 unless the URL names one.
func Reconcile(params Params, saved Bag, defaults Defaults) Outcome {
	state := grid.State{
		SortBy:        defaults.Sort.Column,
		SortDirection: defaults.Sort.Direction,
		PerPage:       defaults.PerPage,
		Page:          1,
	}
	state = saved.Apply(state)
	if !params.Present {
		return Outcome{State: state}
	}

	persist := saved.Clone()
	if params.Search != nil {
		state.Search = *params.Search
		persist[KeySearch] = state.Search
	}
	if params.Sort != nil && defaults.sortable(*params.Sort) {
		if *params.Sort != state.SortBy {
			state.SortDirection = grid.Asc
		}
		state.SortBy = *params.Sort
		persist[KeySortBy] = state.SortBy
		persist[KeySortDirection] = string(state.SortDirection)
	}
	if params.Direction != nil {
		state.SortDirection = *params.Direction
		if state.SortBy != "" {
			persist[KeySortBy] = state.SortBy
		}
		persist[KeySortDirection] = string(state.SortDirection)
	}
	if params.PerPage != nil {
		state.PerPage = *params.PerPage
		persist[KeyPerPage] = state.PerPage
	}
	if params.Filters != nil {
		if filters, ok := defaults.declaredFilters(params.Filters); ok {
			state.Filters = filters
			persist[KeyFilters] = cloneFilters(filters)
		}
	}
	if params.Page != nil {
		state.Page = *params.Page
	}
	return Outcome{State: state, Persist: persist, CleanURL: true}
}
