// Package grid holds the declarative description of admin data grids: column,
// filter and action builders, the compiled Definition consumed by the query
// pipeline, and the serializable view handed to the rendering layer.
package grid

import "strings"

// RenderType selects the allowlisted component used to draw a cell.
type RenderType string

// Supported cell render types.
const (
	RenderText     RenderType = "text"
	RenderBadge    RenderType = "badge"
	RenderBoolean  RenderType = "boolean"
	RenderDate     RenderType = "date"
	RenderDateTime RenderType = "datetime"
	RenderCurrency RenderType = "currency"
	RenderNumber   RenderType = "number"
	RenderLink     RenderType = "link"
	RenderAvatar   RenderType = "avatar"
	RenderSafeHTML RenderType = "safeHtml"
)

// RenderTypes lists every cell render type in declaration order.
func RenderTypes() []RenderType {
	return []RenderType{
		RenderText,
		RenderBadge,
		RenderBoolean,
		RenderDate,
		RenderDateTime,
		RenderCurrency,
		RenderNumber,
		RenderLink,
		RenderAvatar,
		RenderSafeHTML,
	}
}

// FilterType selects both the comparison semantics and the filter control.
type FilterType string

// Supported filter types.
const (
	FilterSelect       FilterType = "select"
	FilterMultiSelect  FilterType = "multiselect"
	FilterBoolean      FilterType = "boolean"
	FilterDateRange    FilterType = "date_range"
	FilterRelationship FilterType = "relationship"
)

// FilterTypes lists every filter type in declaration order.
func FilterTypes() []FilterType {
	return []FilterType{FilterSelect, FilterMultiSelect, FilterBoolean, FilterDateRange, FilterRelationship}
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection normalises user input; ok is false for anything but asc/desc.
func ParseDirection(raw string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(Asc):
		return Asc, true
	case string(Desc):
		return Desc, true
	default:
		return "", false
	}
}

// Toggle flips the direction.
func (d Direction) Toggle() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// Sort names a column and a direction.
type Sort struct {
	Column    string    `json:"column" yaml:"column"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// IsZero reports whether no column is set.
func (s Sort) IsZero() bool {
	return s.Column == ""
}

// Value mapping sentinels understood by the filter stage.
const (
	SentinelNull    = "null"
	SentinelNotNull = "not_null"
)
