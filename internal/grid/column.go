package grid

// Formatter transforms a cell value before it is rendered. It may return
// markup only for columns rendered as RenderSafeHTML.
type Formatter func(value any, rec Record) any

// Accessor extracts the cell value from a record when a plain key lookup is
// not enough.
type Accessor func(rec Record) any

// ColumnDef is a compiled column.
type ColumnDef struct {
	Key        string
	Label      string
	Sortable   bool
	Searchable bool
	RenderType RenderType
	Formatter  Formatter
	Accessor   Accessor
	// Variants maps a raw value to a badge variant.
	Variants map[string]string
	// Currency is an ISO 4217 code for RenderCurrency columns.
	Currency string
}

// Value returns the raw cell value for rec, before formatting.
func (c *ColumnDef) Value(rec Record) any {
	if c.Accessor != nil {
		return c.Accessor(rec)
	}
	v, _ := rec.Lookup(c.Key)
	return v
}

// Column builds a ColumnDef. Columns are neither sortable nor searchable
// unless declared.
type Column struct {
	def ColumnDef
	vis visibility
}

// NewColumn starts a text column.
func NewColumn(key, label string) *Column {
	return &Column{def: ColumnDef{Key: key, Label: label, RenderType: RenderText}}
}

func (c *Column) Sortable() *Column {
	c.def.Sortable = true
	return c
}

func (c *Column) Searchable() *Column {
	c.def.Searchable = true
	return c
}

// Render sets the render type. Unknown types are only rejected when a cell is drawn.
func (c *Column) Render(t RenderType) *Column {
	c.def.RenderType = t
	return c
}

func (c *Column) Format(f Formatter) *Column {
	c.def.Formatter = f
	return c
}

func (c *Column) Content(a Accessor) *Column {
	c.def.Accessor = a
	return c
}

func (c *Column) Variants(variants map[string]string) *Column {
	c.def.Variants = variants
	return c
}

func (c *Column) Currency(code string) *Column {
	c.def.Currency = code
	return c
}

func (c *Column) Visible(visible bool) *Column {
	c.vis.hidden = !visible
	c.vis.when = nil
	return c
}

func (c *Column) VisibleWhen(fn func(Access) bool) *Column {
	c.vis.when = fn
	return c
}

func (c *Column) Gate(capability string) *Column {
	c.vis.gate = capability
	return c
}

// Key returns the column key.
func (c *Column) Key() string {
	return c.def.Key
}
