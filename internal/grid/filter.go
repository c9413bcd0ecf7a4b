package grid

import "context"

// Option is one selectable filter value.
type Option struct {
	Value string `json:"value" yaml:"value" validate:"required"`
	Label string `json:"label" yaml:"label"`
}

// OptionsProvider loads filter options lazily.
type OptionsProvider func(ctx context.Context) ([]Option, error)

// Relationship describes the related entity and column a relationship filter
// compares against.
type Relationship struct {
	Relation string `json:"relation" yaml:"relation" validate:"required"`
	Column   string `json:"column" yaml:"column" validate:"required"`
}

// FilterDef is a compiled filter.
type FilterDef struct {
	Key   string
	Label string
	Type  FilterType
	// Column is the compared field; defaults to Key.
	Column       string
	Options      []Option
	Provider     OptionsProvider
	ValueMapping map[string]any
	Relationship *Relationship
	DependsOn    string
}

// Field returns the column the filter compares against.
func (f *FilterDef) Field() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Key
}

// Map translates a submitted value through the value mapping. Unmapped values
// pass through unchanged.
func (f *FilterDef) Map(raw string) any {
	if mapped, ok := f.ValueMapping[raw]; ok {
		return mapped
	}
	return raw
}

// Allows reports whether raw is acceptable for a filter with static options.
// Filters without static options accept any value.
func (f *FilterDef) Allows(raw string) bool {
	if len(f.Options) == 0 || f.Provider != nil {
		return true
	}
	if _, ok := f.ValueMapping[raw]; ok {
		return true
	}
	for _, opt := range f.Options {
		if opt.Value == raw {
			return true
		}
	}
	return false
}

// Filter builds a FilterDef.
type Filter struct {
	def FilterDef
	vis visibility
}

// NewFilter starts a filter of the given type.
func NewFilter(key, label string, t FilterType) *Filter {
	return &Filter{def: FilterDef{Key: key, Label: label, Type: t}}
}

func (f *Filter) Column(column string) *Filter {
	f.def.Column = column
	return f
}

func (f *Filter) Options(options ...Option) *Filter {
	f.def.Options = append([]Option(nil), options...)
	return f
}

func (f *Filter) OptionsFrom(provider OptionsProvider) *Filter {
	f.def.Provider = provider
	return f
}

// MapValue maps a submitted raw value to the compared value. Mapping to
// SentinelNull or SentinelNotNull produces a null check instead of equality.
func (f *Filter) MapValue(raw string, value any) *Filter {
	if f.def.ValueMapping == nil {
		f.def.ValueMapping = make(map[string]any)
	}
	f.def.ValueMapping[raw] = value
	return f
}

func (f *Filter) Relationship(relation, column string) *Filter {
	f.def.Type = FilterRelationship
	f.def.Relationship = &Relationship{Relation: relation, Column: column}
	return f
}

func (f *Filter) DependsOn(parent string) *Filter {
	f.def.DependsOn = parent
	return f
}

func (f *Filter) Visible(visible bool) *Filter {
	f.vis.hidden = !visible
	f.vis.when = nil
	return f
}

func (f *Filter) VisibleWhen(fn func(Access) bool) *Filter {
	f.vis.when = fn
	return f
}

func (f *Filter) Gate(capability string) *Filter {
	f.vis.gate = capability
	return f
}
