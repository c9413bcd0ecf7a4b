package controller

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/text/language"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
	"github.com/odyssey-erp/admingrid/internal/grid/render"
)

var defaultLanguage = language.English

// Row is one rendered record. Cells align with the definition headers; an
// unbound header yields a zero Cell.
type Row struct {
	ID         string            `json:"id"`
	Cells      []render.Cell     `json:"cells"`
	Actions    []grid.ActionView `json:"actions"`
	Click      string            `json:"click,omitempty"`
	ClickModal bool              `json:"click_modal"`
	Selected   bool              `json:"selected"`
	Record     grid.Record       `json:"-"`
}

// FilterControl is a filter ready to draw.
type FilterControl struct {
	grid.FilterView
	Component string   `json:"component"`
	Values    []string `json:"values"`
}

// Page is the outcome of one render pass.
type Page struct {
	View          grid.DefinitionView `json:"view"`
	State         grid.State          `json:"state"`
	Paging        query.Paging        `json:"paging"`
	Rows          []Row               `json:"rows"`
	Filters       []FilterControl     `json:"filters"`
	Selected      []string            `json:"selected"`
	PageSelected  bool                `json:"page_selected"`
	Incremental   bool                `json:"incremental"`
	HasMore       bool                `json:"has_more"`
	RowClickModal bool                `json:"row_click_modal"`
}

// Render materializes the current state. Derived values are memoized for
// this pass only.
func (c *Controller) Render(ctx context.Context) (Page, error) {
	m := newMemo()
	req := query.Request{Definition: c.def, State: c.state}

	var (
		result query.Result
		err    error
	)
	if c.incremental {
		result, err = c.pipeline.Window(ctx, c.base, req, c.window)
	} else {
		result, err = c.pipeline.Run(ctx, c.base, req)
	}
	if err != nil {
		return Page{}, err
	}

	page := Page{
		View:        c.def.View(),
		Paging:      result.Paging,
		Rows:        make([]Row, 0, len(result.Rows)),
		Incremental: c.incremental,
		HasMore:     result.HasMore(),
	}
	if !c.incremental {
		c.state.Page = result.Page
	}
	page.State = c.state.Clone()

	c.pageIDs = c.pageIDs[:0]
	for _, rec := range result.Rows {
		row, err := c.row(m, rec)
		if err != nil {
			return Page{}, err
		}
		c.pageIDs = append(c.pageIDs, row.ID)
		page.Rows = append(page.Rows, row)
	}
	page.RowClickModal = c.rowClickModal(m)

	for i := range c.def.Filters {
		f := &c.def.Filters[i]
		component, err := c.filters.Component(f.Type)
		if err != nil {
			return Page{}, fmt.Errorf("controller: filter %q: %w", f.Key, err)
		}
		options := c.loader.Load(ctx, c.def.Entity, f)
		page.View.Filters[i].Options = options
		control := FilterControl{
			FilterView: page.View.Filters[i],
			Component:  component,
			Values:     slices.Clone(c.state.Filters[f.Key]),
		}
		page.Filters = append(page.Filters, control)
	}

	page.Selected = c.selection.list()
	page.PageSelected = len(c.pageIDs) > 0 && !slices.ContainsFunc(c.pageIDs, func(id string) bool {
		return !c.selection.has(id)
	})
	return page, nil
}

func (c *Controller) row(m *memo, rec grid.Record) (Row, error) {
	id := rec.ID(c.def.PrimaryKey)
	row := Row{
		ID:       id,
		Cells:    make([]render.Cell, 0, len(c.def.Headers)),
		Actions:  []grid.ActionView{},
		Selected: c.selection.has(id),
		Record:   rec,
	}
	for _, h := range c.def.Headers {
		if h.Column == nil {
			row.Cells = append(row.Cells, render.Cell{})
			continue
		}
		cell, err := c.cells.Render(h.Column, rec)
		if err != nil {
			return Row{}, err
		}
		row.Cells = append(row.Cells, cell)
	}
	views := remember(m, func() []grid.ActionView { return c.def.View().RowActions }, "row-action-views")
	for i := range c.def.RowActions {
		a := &c.def.RowActions[i]
		if !a.AvailableFor(rec) {
			continue
		}
		row.Actions = append(row.Actions, views[i])
		if a.Key == c.def.RowClick {
			row.Click = a.Key
			row.ClickModal = c.rowClickModal(m)
		}
	}
	return row, nil
}

func (c *Controller) rowClickModal(m *memo) bool {
	return remember(m, func() bool {
		a := c.def.RowAction(c.def.RowClick)
		return a != nil && a.OpensModal
	}, "row-click-modal", c.def.RowClick)
}
