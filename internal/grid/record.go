package grid

import (
	"fmt"
	"strings"
)

// Record is one row of a grid's dataset. Related entities are nested either as
// a single Record (belongs-to) or as a slice of Records (has-many).
type Record map[string]any

// Lookup resolves a dotted path. For has-many relations the values of every
// related record are returned as a []any.
func (r Record) Lookup(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	head, rest, nested := strings.Cut(path, ".")
	value, ok := r[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return value, true
	}
	switch rel := value.(type) {
	case Record:
		return rel.Lookup(rest)
	case map[string]any:
		return Record(rel).Lookup(rest)
	case []Record:
		out := make([]any, 0, len(rel))
		for _, item := range rel {
			if v, ok := item.Lookup(rest); ok {
				out = append(out, v)
			}
		}
		return out, true
	case []map[string]any:
		out := make([]any, 0, len(rel))
		for _, item := range rel {
			if v, ok := Record(item).Lookup(rest); ok {
				out = append(out, v)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// ID returns the primary key rendered as a string.
func (r Record) ID(primaryKey string) string {
	if primaryKey == "" {
		primaryKey = DefaultPrimaryKey
	}
	v, ok := r[primaryKey]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Related returns the records nested under relation, regardless of whether the
// relation is stored as a single record or a slice.
func (r Record) Related(relation string) []Record {
	switch rel := r[relation].(type) {
	case Record:
		return []Record{rel}
	case map[string]any:
		return []Record{Record(rel)}
	case []Record:
		return rel
	case []map[string]any:
		out := make([]Record, len(rel))
		for i, item := range rel {
			out[i] = Record(item)
		}
		return out
	default:
		return nil
	}
}
