package grid

import "context"

// RowPredicate decides per record whether a row action is offered.
type RowPredicate func(rec Record) bool

// RowExecutor performs a row action.
type RowExecutor func(ctx context.Context, rec Record) error

// BulkExecutor performs a bulk action on the selected primary keys.
type BulkExecutor func(ctx context.Context, ids []string) error

// ActionDef is a compiled row action.
type ActionDef struct {
	Key          string
	Label        string
	Icon         string
	Variant      string
	Confirmation string
	Gate         string
	Predicate    RowPredicate
	Execute      RowExecutor
	OpensModal   bool
	ModalView    string
}

// AvailableFor evaluates the row predicate.
func (a *ActionDef) AvailableFor(rec Record) bool {
	if a.Predicate == nil {
		return true
	}
	return a.Predicate(rec)
}

// BulkActionDef is a compiled bulk action.
type BulkActionDef struct {
	Key          string
	Label        string
	Icon         string
	Variant      string
	Confirmation string
	Gate         string
	Execute      BulkExecutor
	OpensModal   bool
	ModalView    string
}

// RowAction builds an ActionDef.
type RowAction struct {
	def ActionDef
	vis visibility
}

// NewRowAction starts a row action.
func NewRowAction(key, label string) *RowAction {
	return &RowAction{def: ActionDef{Key: key, Label: label, Variant: "default"}}
}

func (a *RowAction) Icon(icon string) *RowAction {
	a.def.Icon = icon
	return a
}

func (a *RowAction) Variant(variant string) *RowAction {
	a.def.Variant = variant
	return a
}

func (a *RowAction) Confirm(text string) *RowAction {
	a.def.Confirmation = text
	return a
}

func (a *RowAction) When(pred RowPredicate) *RowAction {
	a.def.Predicate = pred
	return a
}

func (a *RowAction) Execute(fn RowExecutor) *RowAction {
	a.def.Execute = fn
	return a
}

// Modal makes the action open the named view instead of executing directly.
func (a *RowAction) Modal(view string) *RowAction {
	a.def.OpensModal = true
	a.def.ModalView = view
	return a
}

// Gate hides the action unless the viewer holds capability.
func (a *RowAction) Gate(capability string) *RowAction {
	a.def.Gate = capability
	a.vis.gate = capability
	return a
}

func (a *RowAction) Visible(visible bool) *RowAction {
	a.vis.hidden = !visible
	a.vis.when = nil
	return a
}

func (a *RowAction) VisibleWhen(fn func(Access) bool) *RowAction {
	a.vis.when = fn
	return a
}

// BulkAction builds a BulkActionDef.
type BulkAction struct {
	def BulkActionDef
	vis visibility
}

// NewBulkAction starts a bulk action.
func NewBulkAction(key, label string) *BulkAction {
	return &BulkAction{def: BulkActionDef{Key: key, Label: label, Variant: "default"}}
}

func (a *BulkAction) Icon(icon string) *BulkAction {
	a.def.Icon = icon
	return a
}

func (a *BulkAction) Variant(variant string) *BulkAction {
	a.def.Variant = variant
	return a
}

func (a *BulkAction) Confirm(text string) *BulkAction {
	a.def.Confirmation = text
	return a
}

func (a *BulkAction) Execute(fn BulkExecutor) *BulkAction {
	a.def.Execute = fn
	return a
}

func (a *BulkAction) Modal(view string) *BulkAction {
	a.def.OpensModal = true
	a.def.ModalView = view
	return a
}

func (a *BulkAction) Gate(capability string) *BulkAction {
	a.def.Gate = capability
	a.vis.gate = capability
	return a
}

func (a *BulkAction) Visible(visible bool) *BulkAction {
	a.vis.hidden = !visible
	a.vis.when = nil
	return a
}

func (a *BulkAction) VisibleWhen(fn func(Access) bool) *BulkAction {
	a.vis.when = fn
	return a
}

// Key returns the action key.
func (a *BulkAction) Key() string {
	return a.def.Key
}
