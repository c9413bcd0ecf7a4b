package grid

import "slices"

// DefinitionView is the serializable projection of a Definition. Every
// callable is reduced to a capability flag.
type DefinitionView struct {
	Entity      string       `json:"entity"`
	Headers     []HeaderView `json:"headers"`
	RowActions  []ActionView `json:"row_actions"`
	BulkActions []ActionView `json:"bulk_actions"`
	Filters     []FilterView `json:"filters"`
	DefaultSort Sort         `json:"default_sort"`
	PerPage     int          `json:"per_page"`
	PrimaryKey  string       `json:"primary_key"`
	RowClick    string       `json:"row_click,omitempty"`
}

type HeaderView struct {
	Label  string      `json:"label"`
	Column *ColumnView `json:"column,omitempty"`
}

type ColumnView struct {
	Key          string            `json:"key"`
	Label        string            `json:"label"`
	Sortable     bool              `json:"sortable"`
	Searchable   bool              `json:"searchable"`
	RenderType   RenderType        `json:"render_type"`
	HasFormatter bool              `json:"has_formatter"`
	HasAccessor  bool              `json:"has_accessor"`
	Variants     map[string]string `json:"variants,omitempty"`
	Currency     string            `json:"currency,omitempty"`
}

type ActionView struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	Icon         string `json:"icon,omitempty"`
	Variant      string `json:"variant,omitempty"`
	Confirmation string `json:"confirmation,omitempty"`
	Gate         string `json:"gate,omitempty"`
	HasExecute   bool   `json:"has_execute"`
	HasPredicate bool   `json:"has_predicate"`
	IsVisible    bool   `json:"is_visible"`
	OpensModal   bool   `json:"opens_modal"`
	ModalView    string `json:"modal_view,omitempty"`
}

type FilterView struct {
	Key                string        `json:"key"`
	Label              string        `json:"label"`
	Type               FilterType    `json:"type"`
	Column             string        `json:"column"`
	Options            []Option      `json:"options"`
	HasOptionsProvider bool          `json:"has_options_provider"`
	MappedValues       []string      `json:"mapped_values,omitempty"`
	Relationship       *Relationship `json:"relationship,omitempty"`
	DependsOn          string        `json:"depends_on,omitempty"`
}

// View projects the definition. Options of provider-backed filters are left
// empty; callers resolve them with a context.
func (d *Definition) View() DefinitionView {
	v := DefinitionView{
		Entity:      d.Entity,
		Headers:     make([]HeaderView, 0, len(d.Headers)),
		RowActions:  make([]ActionView, 0, len(d.RowActions)),
		BulkActions: make([]ActionView, 0, len(d.BulkActions)),
		Filters:     make([]FilterView, 0, len(d.Filters)),
		DefaultSort: d.DefaultSort,
		PerPage:     d.PerPage,
		PrimaryKey:  d.PrimaryKey,
		RowClick:    d.RowClick,
	}
	for _, h := range d.Headers {
		hv := HeaderView{Label: h.Label}
		if c := h.Column; c != nil {
			hv.Column = &ColumnView{
				Key:          c.Key,
				Label:        c.Label,
				Sortable:     c.Sortable,
				Searchable:   c.Searchable,
				RenderType:   c.RenderType,
				HasFormatter: c.Formatter != nil,
				HasAccessor:  c.Accessor != nil,
				Variants:     c.Variants,
				Currency:     c.Currency,
			}
		}
		v.Headers = append(v.Headers, hv)
	}
	for _, a := range d.RowActions {
		v.RowActions = append(v.RowActions, ActionView{
			Key:          a.Key,
			Label:        a.Label,
			Icon:         a.Icon,
			Variant:      a.Variant,
			Confirmation: a.Confirmation,
			Gate:         a.Gate,
			HasExecute:   a.Execute != nil,
			HasPredicate: a.Predicate != nil,
			IsVisible:    true,
			OpensModal:   a.OpensModal,
			ModalView:    a.ModalView,
		})
	}
	for _, a := range d.BulkActions {
		v.BulkActions = append(v.BulkActions, ActionView{
			Key:          a.Key,
			Label:        a.Label,
			Icon:         a.Icon,
			Variant:      a.Variant,
			Confirmation: a.Confirmation,
			Gate:         a.Gate,
			HasExecute:   a.Execute != nil,
			IsVisible:    true,
			OpensModal:   a.OpensModal,
			ModalView:    a.ModalView,
		})
	}
	for _, f := range d.Filters {
		fv := FilterView{
			Key:                f.Key,
			Label:              f.Label,
			Type:               f.Type,
			Column:             f.Field(),
			Options:            append([]Option{}, f.Options...),
			HasOptionsProvider: f.Provider != nil,
			Relationship:       f.Relationship,
			DependsOn:          f.DependsOn,
		}
		for raw := range f.ValueMapping {
			fv.MappedValues = append(fv.MappedValues, raw)
		}
		slices.Sort(fv.MappedValues)
		v.Filters = append(v.Filters, fv)
	}
	return v
}
