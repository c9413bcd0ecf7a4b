package render

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/grid/sanitize"
)

const (
	dateLayout     = "02 Jan 2006"
	dateTimeLayout = "02 Jan 2006 15:04"
)

// Cell is one rendered cell handed to a template.
type Cell struct {
	Key       string
	Component string
	Value     any
	Display   string
	// HTML is only set for RenderSafeHTML and always sanitized.
	HTML    template.HTML
	Variant string
	Href    string
}

// CellRenderer draws cells through a registry.
type CellRenderer struct {
	registry *Registry[grid.RenderType]
	printer  *message.Printer
	location *time.Location
}

// NewCellRenderer constructs a CellRenderer. A nil location means UTC.
func NewCellRenderer(registry *Registry[grid.RenderType], lang language.Tag, loc *time.Location) *CellRenderer {
	if registry == nil {
		registry = NewCellRegistry()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CellRenderer{registry: registry, printer: message.NewPrinter(lang), location: loc}
}

// Registry exposes the cell registry for host extension.
func (r *CellRenderer) Registry() *Registry[grid.RenderType] {
	return r.registry
}

// Render resolves the column's component and formats its value for rec. An
// unregistered render type is an error; there is no raw fallback.
func (r *CellRenderer) Render(col *grid.ColumnDef, rec grid.Record) (Cell, error) {
	component, err := r.registry.Component(col.RenderType)
	if err != nil {
		return Cell{}, fmt.Errorf("render: column %q: %w", col.Key, err)
	}
	value := col.Value(rec)
	if col.Formatter != nil {
		value = col.Formatter(value, rec)
	}
	cell := Cell{Key: col.Key, Component: component, Value: value}

	switch col.RenderType {
	case grid.RenderBoolean:
		b := truthy(value)
		cell.Value = b
		cell.Display = "No"
		if b {
			cell.Display = "Yes"
		}
	case grid.RenderBadge:
		cell.Display = stringify(value)
		cell.Variant = "default"
		if v, ok := col.Variants[cell.Display]; ok {
			cell.Variant = v
		}
	case grid.RenderDate:
		cell.Display = r.formatTime(value, dateLayout)
	case grid.RenderDateTime:
		cell.Display = r.formatTime(value, dateTimeLayout)
	case grid.RenderNumber:
		if n, ok := toFloat(value); ok {
			cell.Display = r.printer.Sprint(number.Decimal(n))
		} else {
			cell.Display = stringify(value)
		}
	case grid.RenderCurrency:
		cell.Display = r.formatCurrency(value, col.Currency)
	case grid.RenderLink, grid.RenderAvatar:
		cell.Display = stringify(value)
		cell.Href = sanitize.URL(cell.Display)
	case grid.RenderSafeHTML:
		clean := sanitize.Sanitize(stringify(value))
		cell.HTML = template.HTML(clean)
		cell.Display = clean
	default:
		cell.Display = stringify(value)
	}
	return cell, nil
}

func (r *CellRenderer) formatTime(v any, layout string) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.In(r.location).Format(layout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return r.formatTime(*t, layout)
	case string:
		for _, l := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if parsed, err := time.Parse(l, t); err == nil {
				return parsed.In(r.location).Format(layout)
			}
		}
		return t
	}
	return stringify(v)
}

func (r *CellRenderer) formatCurrency(v any, code string) string {
	n, ok := toFloat(v)
	if !ok {
		return stringify(v)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	scale, _ := currency.Standard.Rounding(unit)
	return unit.String() + " " + r.printer.Sprint(number.Decimal(n, number.Scale(scale)))
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	}
	n, ok := toFloat(v)
	return ok && n != 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
