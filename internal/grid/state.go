package grid

import (
	"maps"
	"slices"
)

// State is the user-submitted state driving one query: search text, filter
// values, sort and paging.
type State struct {
	Search        string              `json:"search"`
	SortBy        string              `json:"sort_by"`
	SortDirection Direction           `json:"sort_direction"`
	Filters       map[string][]string `json:"filters,omitempty"`
	Page          int                 `json:"page"`
	PerPage       int                 `json:"per_page"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	if s.Filters != nil {
		out.Filters = make(map[string][]string, len(s.Filters))
		for k, v := range s.Filters {
			out.Filters[k] = slices.Clone(v)
		}
	}
	return out
}

// FilterKeys returns the submitted filter keys in sorted order.
func (s State) FilterKeys() []string {
	return slices.Sorted(maps.Keys(s.Filters))
}
