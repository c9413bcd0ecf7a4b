// Package prefs remembers grid state per entity, either in the visitor's
// session or in the signed-in user's preference document, and reconciles it
// with URL-supplied state on every mount.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

// Preference keys. No other key may be stored.
const (
	KeySearch        = "search"
	KeySortBy        = "sortBy"
	KeySortDirection = "sortDirection"
	KeyPerPage       = "perPage"
	KeyFilters       = "filters"
)

// ErrUnknownKey is returned when writing a key outside the fixed schema.
var ErrUnknownKey = errors.New("prefs: unknown preference key")

// Keys lists the preference schema.
func Keys() []string {
	return []string{KeySearch, KeySortBy, KeySortDirection, KeyPerPage, KeyFilters}
}

func checkKey(key string) error {
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

// Bag is the saved state of one entity. Values decoded from JSON arrive as
// float64 and []any; the typed accessors normalise them.
type Bag map[string]any

// Clone returns a shallow copy.
func (b Bag) Clone() Bag {
	if b == nil {
		return Bag{}
	}
	return maps.Clone(b)
}

func (b Bag) Search() (string, bool) {
	s, ok := b[KeySearch].(string)
	return s, ok
}

func (b Bag) SortBy() (string, bool) {
	s, ok := b[KeySortBy].(string)
	return s, ok && s != ""
}

func (b Bag) SortDirection() (grid.Direction, bool) {
	switch v := b[KeySortDirection].(type) {
	case string:
		return grid.ParseDirection(v)
	case grid.Direction:
		return grid.ParseDirection(string(v))
	}
	return "", false
}

func (b Bag) PerPage() (int, bool) {
	var n int
	switch v := b[KeyPerPage].(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	return n, n > 0
}

func (b Bag) Filters() (map[string][]string, bool) {
	switch v := b[KeyFilters].(type) {
	case map[string][]string:
		return cloneFilters(v), true
	case map[string]any:
		out := make(map[string][]string, len(v))
		for key, raw := range v {
			switch vals := raw.(type) {
			case []string:
				out[key] = slices.Clone(vals)
			case []any:
				list := make([]string, 0, len(vals))
				for _, item := range vals {
					if item == nil {
						list = append(list, "")
						continue
					}
					list = append(list, fmt.Sprint(item))
				}
				out[key] = list
			case string:
				out[key] = []string{vals}
			}
		}
		return out, true
	}
	return nil, false
}

// BagFromState captures the persisted subset of state. Page is never saved.
func BagFromState(s grid.State) Bag {
	b := Bag{
		KeySearch:        s.Search,
		KeySortBy:        s.SortBy,
		KeySortDirection: string(s.SortDirection),
		KeyFilters:       cloneFilters(s.Filters),
	}
	if s.PerPage > 0 {
		b[KeyPerPage] = s.PerPage
	}
	return b
}

// Apply overlays the saved fields onto state.
func (b Bag) Apply(s grid.State) grid.State {
	if v, ok := b.Search(); ok {
		s.Search = v
	}
	if v, ok := b.SortBy(); ok {
		s.SortBy = v
		if dir, ok := b.SortDirection(); ok {
			s.SortDirection = dir
		}
	}
	if v, ok := b.PerPage(); ok {
		s.PerPage = v
	}
	if v, ok := b.Filters(); ok {
		s.Filters = v
	}
	return s
}

func cloneFilters(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
	}
	return out
}
