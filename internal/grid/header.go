package grid

// HeaderDef is a compiled header, optionally bound to a column.
type HeaderDef struct {
	Label  string
	Column *ColumnDef
}

// Header builds a HeaderDef.
type Header struct {
	label  string
	column *Column
	vis    visibility
}

// NewHeader starts an unbound header, typically used for action or selection columns.
func NewHeader(label string) *Header {
	return &Header{label: label}
}

// ColumnHeader returns a header bound to col and labelled after it.
func ColumnHeader(col *Column) *Header {
	return &Header{label: col.def.Label, column: col}
}

// Bind attaches a column to the header.
func (h *Header) Bind(col *Column) *Header {
	h.column = col
	return h
}

func (h *Header) Visible(visible bool) *Header {
	h.vis.hidden = !visible
	h.vis.when = nil
	return h
}

func (h *Header) VisibleWhen(fn func(Access) bool) *Header {
	h.vis.when = fn
	return h
}

func (h *Header) Gate(capability string) *Header {
	h.vis.gate = capability
	return h
}

// Columns wraps each column in its own header.
func Columns(cols ...*Column) []*Header {
	headers := make([]*Header, 0, len(cols))
	for _, c := range cols {
		headers = append(headers, ColumnHeader(c))
	}
	return headers
}
