package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/admingrid/internal/grid/render"
	"github.com/odyssey-erp/admingrid/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
	assert.True(t, engine.Has("pages/grid.html"))
	assert.False(t, engine.Has("pages/missing.html"))
}

func TestEveryRegisteredComponentHasTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	cells := render.NewCellRegistry()
	for _, rt := range cells.Types() {
		component, err := cells.Component(rt)
		require.NoError(t, err)
		assert.True(t, engine.Has(component), "missing template %s", component)
	}
	filters := render.NewFilterRegistry()
	for _, ft := range filters.Types() {
		component, err := filters.Component(ft)
		require.NoError(t, err)
		assert.True(t, engine.Has(component), "missing template %s", component)
	}
}

func TestRenderBuffersOnError(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/missing.html", TemplateData{})
	require.Error(t, err)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	require.NoError(t, engine.templates.ExecuteTemplate(rec, "partials/flash", &shared.FlashMessage{Kind: "success", Message: "<b>saved</b>"}))
	assert.Contains(t, rec.Body.String(), "&lt;b&gt;saved&lt;/b&gt;")
}
