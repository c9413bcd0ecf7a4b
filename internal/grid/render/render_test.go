package render

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

func TestRegistryClosure(t *testing.T) {
	cells := NewCellRegistry()
	for _, rt := range grid.RenderTypes() {
		component, err := cells.Component(rt)
		require.NoError(t, err)
		assert.NotEmpty(t, component)
	}
	filters := NewFilterRegistry()
	for _, ft := range grid.FilterTypes() {
		component, err := filters.Component(ft)
		require.NoError(t, err)
		assert.NotEmpty(t, component)
	}

	for _, bad := range []grid.RenderType{"", "raw", "html", "{{.}}", "safehtml"} {
		_, err := cells.Component(bad)
		assert.ErrorIs(t, err, ErrUnregistered, "type %q", bad)
	}
	_, err := filters.Component("regex")
	assert.ErrorIs(t, err, ErrUnregistered)
}

func TestRegistryRejectsOverride(t *testing.T) {
	cells := NewCellRegistry()
	err := cells.Register(grid.RenderSafeHTML, "cell/raw")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	component, _ := cells.Component(grid.RenderSafeHTML)
	assert.Equal(t, "cell/safeHtml", component)

	require.NoError(t, cells.Register("progress", "cell/progress"))
	component, err = cells.Component("progress")
	require.NoError(t, err)
	assert.Equal(t, "cell/progress", component)
	assert.Contains(t, cells.Types(), grid.RenderType("progress"))

	assert.ErrorIs(t, cells.Register("empty", ""), ErrEmptyComponent)
}

func TestRegistryConcurrentUse(t *testing.T) {
	cells := NewCellRegistry()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cells.Register(grid.RenderType("custom"+string(rune('a'+i))), "cell/custom")
			_, _ = cells.Component(grid.RenderText)
		}()
	}
	wg.Wait()
	assert.Len(t, cells.Types(), len(grid.RenderTypes())+20)
}

func newRenderer() *CellRenderer {
	return NewCellRenderer(nil, language.English, time.UTC)
}

func column(key string, rt grid.RenderType) *grid.ColumnDef {
	return &grid.ColumnDef{Key: key, Label: key, RenderType: rt}
}

func TestRenderUnregisteredFailsFast(t *testing.T) {
	_, err := newRenderer().Render(column("name", "marquee"), grid.Record{"name": "<b>x</b>"})
	require.ErrorIs(t, err, ErrUnregistered)
}

func TestRenderSafeHTMLIsSanitized(t *testing.T) {
	col := column("bio", grid.RenderSafeHTML)
	col.Formatter = func(v any, _ grid.Record) any {
		return `<p onclick="x">` + v.(string) + `</p><script>alert(1)</script>`
	}
	cell, err := newRenderer().Render(col, grid.Record{"bio": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "cell/safeHtml", cell.Component)
	assert.Equal(t, `<p>hello</p>`, string(cell.HTML))
}

func TestRenderTextNeverProducesHTML(t *testing.T) {
	cell, err := newRenderer().Render(column("name", grid.RenderText), grid.Record{"name": "<script>x</script>"})
	require.NoError(t, err)
	assert.Empty(t, cell.HTML)
	assert.Equal(t, "<script>x</script>", cell.Display)
}

func TestRenderFormats(t *testing.T) {
	r := newRenderer()
	created := time.Date(2024, 5, 6, 7, 8, 0, 0, time.UTC)

	cell, err := r.Render(column("active", grid.RenderBoolean), grid.Record{"active": "1"})
	require.NoError(t, err)
	assert.Equal(t, "Yes", cell.Display)

	cell, err = r.Render(column("created", grid.RenderDate), grid.Record{"created": created})
	require.NoError(t, err)
	assert.Equal(t, "06 May 2024", cell.Display)

	cell, err = r.Render(column("created", grid.RenderDateTime), grid.Record{"created": "2024-05-06T07:08:00Z"})
	require.NoError(t, err)
	assert.Equal(t, "06 May 2024 07:08", cell.Display)

	cell, err = r.Render(column("total", grid.RenderNumber), grid.Record{"total": 1234567})
	require.NoError(t, err)
	assert.Equal(t, "1,234,567", cell.Display)

	price := column("price", grid.RenderCurrency)
	price.Currency = "EUR"
	cell, err = r.Render(price, grid.Record{"price": 1234.5})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cell.Display, "EUR "))
	assert.Contains(t, cell.Display, "1,234.50")

	status := column("status", grid.RenderBadge)
	status.Variants = map[string]string{"active": "success"}
	cell, err = r.Render(status, grid.Record{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, "success", cell.Variant)

	cell, err = r.Render(column("site", grid.RenderLink), grid.Record{"site": "javascript:alert(1)"})
	require.NoError(t, err)
	assert.Equal(t, "#", cell.Href)

	roles := column("roles.name", grid.RenderBadge)
	cell, err = r.Render(roles, grid.Record{"roles": []grid.Record{{"name": "admin"}, {"name": "ops"}}})
	require.NoError(t, err)
	assert.Equal(t, "admin, ops", cell.Display)
}
