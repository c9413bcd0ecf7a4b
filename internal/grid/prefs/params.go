package prefs

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

// Recognized state parameter names. Anything else in a request is inert.
const (
	ParamSearch    = "search"
	ParamSort      = "sort"
	ParamDirection = "direction"
	ParamPerPage   = "per_page"
	ParamPage      = "page"
	ParamFilters   = "filters"
)

var filterParam = regexp.MustCompile(`^filters\[([^\[\]]+)\](?:\[(from|to)?\])?$`)

// Params is the recognized grid state carried by a request. Nil fields were
// absent.
type Params struct {
	Search    *string
	Sort      *string
	Direction *grid.Direction
	PerPage   *int
	Page      *int
	Filters   map[string][]string
	// Present is set when any recognized name occurred, even with an
	// unusable value.
	Present bool
}

// ParseParams extracts grid state from query or form values. Filters use
// filters[key]=v, filters[key][]=v for lists and filters[key][from]/[to] for
// date ranges.
func ParseParams(values url.Values) Params {
	var p Params
	for name, vals := range values {
		if len(vals) == 0 {
			continue
		}
		first := strings.TrimSpace(vals[0])
		switch name {
		case ParamSearch:
			p.Present = true
			p.Search = &first
		case ParamSort:
			p.Present = true
			if first != "" {
				p.Sort = &first
			}
		case ParamDirection:
			p.Present = true
			if dir, ok := grid.ParseDirection(first); ok {
				p.Direction = &dir
			}
		case ParamPerPage:
			p.Present = true
			if n, err := strconv.Atoi(first); err == nil && n > 0 {
				p.PerPage = &n
			}
		case ParamPage:
			p.Present = true
			if n, err := strconv.Atoi(first); err == nil && n > 0 {
				p.Page = &n
			}
		case ParamFilters:
			p.Present = true
			if p.Filters == nil {
				p.Filters = map[string][]string{}
			}
		default:
			m := filterParam.FindStringSubmatch(name)
			if m == nil {
				continue
			}
			p.Present = true
			if p.Filters == nil {
				p.Filters = map[string][]string{}
			}
			key := m[1]
			switch m[2] {
			case "from", "to":
				pair := p.Filters[key]
				if len(pair) < 2 {
					pair = append(pair, make([]string, 2-len(pair))...)
				}
				if m[2] == "from" {
					pair[0] = first
				} else {
					pair[1] = first
				}
				p.Filters[key] = pair
			default:
				// Empty entries are kept so positional values survive.
				for _, v := range vals {
					p.Filters[key] = append(p.Filters[key], strings.TrimSpace(v))
				}
			}
		}
	}
	return p
}

// Recognized reports whether name is a grid state parameter.
func Recognized(name string) bool {
	switch name {
	case ParamSearch, ParamSort, ParamDirection, ParamPerPage, ParamPage, ParamFilters:
		return true
	}
	return filterParam.MatchString(name)
}

// StripParams returns u as a path plus query with every recognized parameter
// removed. Unrelated parameters are kept.
func StripParams(u *url.URL) string {
	values := u.Query()
	for name := range values {
		if Recognized(name) {
			values.Del(name)
		}
	}
	out := u.Path
	if out == "" {
		out = "/"
	}
	if enc := values.Encode(); enc != "" {
		out += "?" + enc
	}
	return out
}

// Values encodes state as recognized parameters, the inverse of ParseParams.
func Values(s grid.State) url.Values {
	v := url.Values{}
	if s.Search != "" {
		v.Set(ParamSearch, s.Search)
	}
	if s.SortBy != "" {
		v.Set(ParamSort, s.SortBy)
		if s.SortDirection != "" {
			v.Set(ParamDirection, string(s.SortDirection))
		}
	}
	if s.PerPage > 0 {
		v.Set(ParamPerPage, strconv.Itoa(s.PerPage))
	}
	if s.Page > 1 {
		v.Set(ParamPage, strconv.Itoa(s.Page))
	}
	for _, key := range s.FilterKeys() {
		for _, val := range s.Filters[key] {
			v.Add("filters["+key+"][]", val)
		}
	}
	return v
}
