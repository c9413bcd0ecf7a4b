package grid

// FilterSpec is the data form of a filter, as supplied by host configuration.
type FilterSpec struct {
	Type         FilterType     `yaml:"type" validate:"required,oneof=select multiselect boolean date_range relationship"`
	Label        string         `yaml:"label"`
	Column       string         `yaml:"column"`
	Options      []Option       `yaml:"options" validate:"dive"`
	Relationship *Relationship  `yaml:"relationship"`
	ValueMapping map[string]any `yaml:"value_mapping"`
	DependsOn    string         `yaml:"depends_on"`
}

// Config is the host-implemented configuration contract for one entity type.
// Compile merges it into the declared parts.
type Config interface {
	// EntityKey namespaces preferences; it must be stable across releases.
	EntityKey() string
	// SearchableFields is the fallback search list used when no column is
	// declared searchable.
	SearchableFields() []string
	FilterFields() map[string]FilterSpec
	// SortableFields maps exposed sort keys to compared columns.
	SortableFields() map[string]string
	DefaultSort() Sort
	BulkActions() []*BulkAction
}

func (s FilterSpec) builder(key string) *Filter {
	label := s.Label
	if label == "" {
		label = key
	}
	f := NewFilter(key, label, s.Type).Column(s.Column).Options(s.Options...).DependsOn(s.DependsOn)
	if s.Relationship != nil {
		f.Relationship(s.Relationship.Relation, s.Relationship.Column)
	}
	for raw, value := range s.ValueMapping {
		f.MapValue(raw, value)
	}
	return f
}
