package grid

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	// DefaultPrimaryKey is the implicit stable sort column.
	DefaultPrimaryKey = "id"
	// DefaultPerPage applies when neither the definition nor the request sets a page size.
	DefaultPerPage = 25
	// MaxPerPage bounds any requested page size.
	MaxPerPage = 200
)

var (
	// ErrMissingEntity is returned when neither the parts nor the config name the entity.
	ErrMissingEntity = errors.New("grid: entity key required")
	// ErrDuplicateKey is returned when two columns, filters or actions share a key.
	ErrDuplicateKey = errors.New("grid: duplicate key")
	// ErrRelationSort is returned when a sort targets a column across a relation.
	ErrRelationSort = errors.New("grid: sort across a relation is not supported")
)

// Parts are the builders a grid type is compiled from.
type Parts struct {
	Entity      string
	Headers     []*Header
	RowActions  []*RowAction
	BulkActions []*BulkAction
	Filters     []*Filter
	DefaultSort Sort
	PerPage     int
	PrimaryKey  string
	// RowClick names the row action triggered by clicking a row.
	RowClick string
	Config   Config
}

// Definition is a compiled grid. It is immutable once Compile returns.
type Definition struct {
	Entity         string
	Headers        []HeaderDef
	RowActions     []ActionDef
	BulkActions    []BulkActionDef
	Filters        []FilterDef
	DefaultSort    Sort
	PerPage        int
	PrimaryKey     string
	RowClick       string
	FallbackSearch []string

	columns  map[string]*ColumnDef
	filters  map[string]*FilterDef
	sortable map[string]string
	actions  map[string]*ActionDef
	bulk     map[string]*BulkActionDef
}

// Compile evaluates visibility against access, drops invisible entries and
// indexes what remains. Render types are not validated here.
func Compile(access Access, parts Parts) (*Definition, error) {
	if access == nil {
		access = Guest()
	}
	filters := slices.Clone(parts.Filters)
	bulkActions := slices.Clone(parts.BulkActions)
	def := &Definition{
		Entity:      parts.Entity,
		DefaultSort: parts.DefaultSort,
		PerPage:     parts.PerPage,
		PrimaryKey:  parts.PrimaryKey,
		columns:     make(map[string]*ColumnDef),
		filters:     make(map[string]*FilterDef),
		sortable:    make(map[string]string),
		actions:     make(map[string]*ActionDef),
		bulk:        make(map[string]*BulkActionDef),
	}

	var configSorts map[string]string
	if cfg := parts.Config; cfg != nil {
		if key := cfg.EntityKey(); key != "" {
			def.Entity = key
		}
		def.FallbackSearch = slices.Clone(cfg.SearchableFields())
		declared := make(map[string]struct{}, len(filters))
		for _, f := range filters {
			declared[f.def.Key] = struct{}{}
		}
		specs := cfg.FilterFields()
		for _, key := range slices.Sorted(maps.Keys(specs)) {
			if _, ok := declared[key]; ok {
				continue
			}
			filters = append(filters, specs[key].builder(key))
		}
		if def.DefaultSort.IsZero() {
			def.DefaultSort = cfg.DefaultSort()
		}
		if sized, ok := cfg.(interface{ PerPage() int }); ok && def.PerPage <= 0 {
			def.PerPage = sized.PerPage()
		}
		bulkActions = append(bulkActions, cfg.BulkActions()...)
		configSorts = cfg.SortableFields()
	}
	if def.Entity == "" {
		return nil, ErrMissingEntity
	}
	if def.PrimaryKey == "" {
		def.PrimaryKey = DefaultPrimaryKey
	}
	if def.PerPage <= 0 {
		def.PerPage = DefaultPerPage
	}
	def.PerPage = min(def.PerPage, MaxPerPage)
	if def.DefaultSort.Column != "" && def.DefaultSort.Direction == "" {
		def.DefaultSort.Direction = Asc
	}

	if err := validateGates(parts.Headers, parts.RowActions, bulkActions, filters); err != nil {
		return nil, err
	}

	for _, h := range parts.Headers {
		if !h.vis.evaluate(access) {
			continue
		}
		hd := HeaderDef{Label: h.label}
		if h.column != nil {
			if !h.column.vis.evaluate(access) {
				continue
			}
			col := h.column.def
			if _, dup := def.columns[col.Key]; dup {
				return nil, fmt.Errorf("%w: column %q", ErrDuplicateKey, col.Key)
			}
			if _, ok := configSorts[col.Key]; ok {
				col.Sortable = true
			}
			hd.Column = &col
			def.columns[col.Key] = hd.Column
			if col.Sortable {
				def.sortable[col.Key] = col.Key
			}
		}
		def.Headers = append(def.Headers, hd)
	}
	for key, column := range configSorts {
		if _, ok := def.sortable[key]; !ok && column != "" {
			def.sortable[key] = column
		}
	}
	for key, column := range def.sortable {
		if strings.Contains(column, ".") {
			return nil, fmt.Errorf("%w: %q sorts by %q", ErrRelationSort, key, column)
		}
	}
	if strings.Contains(def.DefaultSort.Column, ".") {
		return nil, fmt.Errorf("%w: default sort %q", ErrRelationSort, def.DefaultSort.Column)
	}

	for _, f := range filters {
		if !f.vis.evaluate(access) {
			continue
		}
		if _, dup := def.filters[f.def.Key]; dup {
			return nil, fmt.Errorf("%w: filter %q", ErrDuplicateKey, f.def.Key)
		}
		def.Filters = append(def.Filters, f.def)
		def.filters[f.def.Key] = nil
	}
	for i := range def.Filters {
		def.filters[def.Filters[i].Key] = &def.Filters[i]
	}

	for _, a := range parts.RowActions {
		if !a.vis.evaluate(access) {
			continue
		}
		if _, dup := def.actions[a.def.Key]; dup {
			return nil, fmt.Errorf("%w: row action %q", ErrDuplicateKey, a.def.Key)
		}
		def.RowActions = append(def.RowActions, a.def)
		def.actions[a.def.Key] = nil
	}
	for i := range def.RowActions {
		def.actions[def.RowActions[i].Key] = &def.RowActions[i]
	}

	for _, a := range bulkActions {
		if !a.vis.evaluate(access) {
			continue
		}
		if _, dup := def.bulk[a.def.Key]; dup {
			return nil, fmt.Errorf("%w: bulk action %q", ErrDuplicateKey, a.def.Key)
		}
		def.BulkActions = append(def.BulkActions, a.def)
		def.bulk[a.def.Key] = nil
	}
	for i := range def.BulkActions {
		def.bulk[def.BulkActions[i].Key] = &def.BulkActions[i]
	}

	if _, ok := def.actions[parts.RowClick]; ok {
		def.RowClick = parts.RowClick
	}
	return def, nil
}

func validateGates(headers []*Header, rows []*RowAction, bulk []*BulkAction, filters []*Filter) error {
	var gates []string
	for _, h := range headers {
		gates = append(gates, h.vis.gate)
		if h.column != nil {
			gates = append(gates, h.column.vis.gate)
		}
	}
	for _, a := range rows {
		gates = append(gates, a.vis.gate)
	}
	for _, a := range bulk {
		gates = append(gates, a.vis.gate)
	}
	for _, f := range filters {
		gates = append(gates, f.vis.gate)
	}
	for _, g := range gates {
		if err := ValidateGate(g); err != nil {
			return err
		}
	}
	return nil
}

// Column returns the visible column with key, or nil.
func (d *Definition) Column(key string) *ColumnDef {
	return d.columns[key]
}

// Columns returns the visible columns in header order.
func (d *Definition) Columns() []*ColumnDef {
	out := make([]*ColumnDef, 0, len(d.columns))
	for _, h := range d.Headers {
		if h.Column != nil {
			out = append(out, h.Column)
		}
	}
	return out
}

// SearchableColumns returns the keys of columns declared searchable.
func (d *Definition) SearchableColumns() []string {
	var keys []string
	for _, c := range d.Columns() {
		if c.Searchable {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// SortColumn resolves a sort key to the compared column.
func (d *Definition) SortColumn(key string) (string, bool) {
	column, ok := d.sortable[key]
	return column, ok
}

// SortableKeys returns the exposed sort keys in sorted order.
func (d *Definition) SortableKeys() []string {
	return slices.Sorted(maps.Keys(d.sortable))
}

// Filter returns the declared filter with key, or nil.
func (d *Definition) Filter(key string) *FilterDef {
	return d.filters[key]
}

// Dependents returns the keys of filters that depend on parent.
func (d *Definition) Dependents(parent string) []string {
	var keys []string
	for _, f := range d.Filters {
		if f.DependsOn == parent {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// RowAction returns the visible row action with key, or nil.
func (d *Definition) RowAction(key string) *ActionDef {
	return d.actions[key]
}

// BulkAction returns the visible bulk action with key, or nil.
func (d *Definition) BulkAction(key string) *BulkActionDef {
	return d.bulk[key]
}
