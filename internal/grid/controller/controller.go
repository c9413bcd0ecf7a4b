// Package controller drives one grid instance: it reconciles state on mount,
// applies user interactions, persists preferences and materializes pages.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/grid/prefs"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
	"github.com/odyssey-erp/admingrid/internal/grid/render"
)

var (
	ErrUnknownAction        = errors.New("controller: unknown action")
	ErrActionUnavailable    = errors.New("controller: action not available for row")
	ErrConfirmationRequired = errors.New("controller: confirmation required")
	ErrEmptySelection       = errors.New("controller: nothing selected")
	ErrNoExecutor           = errors.New("controller: action has no executor")
)

// FailureCounter counts preference writes that did not reach the store.
type FailureCounter interface {
	PreferenceWriteFailed(store string)
}

// Options carry the optional collaborators of a Controller.
type Options struct {
	Base       query.Query
	MaxPerPage int
	Cells      *render.CellRenderer
	Filters    *render.Registry[grid.FilterType]
	Loader     *query.OptionsLoader
	Logger     *slog.Logger
	Failures   FailureCounter
}

// Snapshot is the instance state kept between interactions.
type Snapshot struct {
	State       grid.State `json:"state"`
	Window      int        `json:"window"`
	Incremental bool       `json:"incremental"`
	Selected    []string   `json:"selected,omitempty"`
	PageIDs     []string   `json:"page_ids,omitempty"`
}

// Controller is not safe for concurrent use; one instance serves one
// interaction at a time.
type Controller struct {
	def      *grid.Definition
	base     query.Query
	pipeline *query.Pipeline
	store    prefs.Store
	sink     Sink
	cells    *render.CellRenderer
	filters  *render.Registry[grid.FilterType]
	loader   *query.OptionsLoader
	logger   *slog.Logger
	failures FailureCounter

	searching searching
	sorting   sorting
	paging    paging
	filtering filtering
	selection selection

	state       grid.State
	window      int
	incremental bool
	pageIDs     []string
}

// New constructs a Controller for def. A nil store disables persistence.
func New(def *grid.Definition, pipeline *query.Pipeline, store prefs.Store, sink Sink, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cells == nil {
		opts.Cells = render.NewCellRenderer(nil, defaultLanguage, nil)
	}
	if opts.Filters == nil {
		opts.Filters = render.NewFilterRegistry()
	}
	if opts.Loader == nil {
		opts.Loader = query.NewOptionsLoader(opts.Logger)
	}
	if opts.Base.Source() == "" {
		opts.Base = query.From(def.Entity)
	}
	if sink == nil {
		sink = &Recorder{}
	}
	c := &Controller{
		def:       def,
		base:      opts.Base,
		pipeline:  pipeline,
		store:     store,
		sink:      sink,
		cells:     opts.Cells,
		filters:   opts.Filters,
		loader:    opts.Loader,
		logger:    opts.Logger,
		failures:  opts.Failures,
		sorting:   sorting{def: def},
		paging:    paging{maxPerPage: opts.MaxPerPage},
		filtering: filtering{def: def},
		window:    InitialWindow,
	}
	c.state = prefs.Reconcile(prefs.Params{}, nil, prefs.DefaultsFor(def)).State
	return c
}

// Definition returns the compiled definition.
func (c *Controller) Definition() *grid.Definition { return c.def }

// State returns a copy of the current state.
func (c *Controller) State() grid.State { return c.state.Clone() }

// Selection returns the selected primary keys in selection order.
func (c *Controller) Selection() []string { return c.selection.list() }

// Snapshot captures the instance state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		State:       c.state.Clone(),
		Window:      c.window,
		Incremental: c.incremental,
		Selected:    c.selection.list(),
		PageIDs:     append([]string(nil), c.pageIDs...),
	}
}

// Restore resumes a previously captured instance.
func (c *Controller) Restore(s Snapshot) {
	c.state = s.State.Clone()
	c.window = min(max(s.Window, InitialWindow), c.windowLimit())
	c.incremental = s.Incremental
	c.selection = selection{ids: append([]string(nil), s.Selected...)}
	c.pageIDs = append([]string(nil), s.PageIDs...)
}

// Mount reconciles the URL of the request with the saved preferences. When
// the URL carried grid parameters they are persisted and a CleanURL signal
// names the address without them.
func (c *Controller) Mount(ctx context.Context, u *url.URL) {
	params := prefs.ParseParams(u.Query())
	saved := c.load(ctx)
	outcome := prefs.Reconcile(params, saved, prefs.DefaultsFor(c.def))
	c.state = outcome.State
	c.window = InitialWindow
	c.incremental = false
	if outcome.Persist != nil {
		c.write(ctx, outcome.Persist)
	}
	if outcome.CleanURL {
		c.sink.Emit(CleanURL{Path: prefs.StripParams(u)})
	}
}

// Search replaces the search term.
func (c *Controller) Search(ctx context.Context, term string) {
	c.dropSelection()
	c.commit(ctx, c.searching.apply(c.state, term), true)
}

// Sort toggles the sort on key. Undeclared keys are ignored.
func (c *Controller) Sort(ctx context.Context, key string) {
	next, ok := c.sorting.toggle(c.state, key)
	if !ok {
		return
	}
	c.commit(ctx, next, true)
}

// SetFilter replaces the values of filter key and clears its dependents.
// Undeclared keys are ignored.
func (c *Controller) SetFilter(ctx context.Context, key string, values []string) {
	next, ok := c.filtering.set(c.state, key, values)
	if !ok {
		return
	}
	c.dropSelection()
	c.commit(ctx, next, true)
}

// ClearFilters removes every filter value.
func (c *Controller) ClearFilters(ctx context.Context) {
	c.dropSelection()
	c.commit(ctx, c.filtering.clear(c.state.Clone()), true)
}

// SetPerPage changes the page size, bounded to the configured maximum.
func (c *Controller) SetPerPage(ctx context.Context, n int) {
	c.commit(ctx, c.paging.perPage(c.state, n), true)
}

// GotoPage moves to page. Pages past the end are clamped by Render.
func (c *Controller) GotoPage(ctx context.Context, page int) {
	c.commit(ctx, c.paging.goTo(c.state, page), false)
	c.window = InitialWindow
	c.incremental = false
	c.sink.Emit(ScrollToTop{Entity: c.def.Entity})
}

// LoadMore grows the incremental window by one step, up to the page size
// bound.
func (c *Controller) LoadMore(ctx context.Context) {
	if !c.incremental {
		c.incremental = true
		c.window = InitialWindow
	}
	c.window = min(c.window+WindowStep, c.windowLimit())
	c.commit(ctx, c.state, false)
}

func (c *Controller) windowLimit() int {
	return min(c.paging.limit(), c.pipeline.MaxPerPage())
}

// Select toggles id in the selection.
func (c *Controller) Select(id string) {
	c.selection.toggle(id)
	c.sink.Emit(SelectionChanged{IDs: c.selection.list()})
}

// SelectPage toggles every id of the page. A nil ids selects the last
// rendered page.
func (c *Controller) SelectPage(ids []string) {
	if ids == nil {
		ids = c.pageIDs
	}
	c.selection.page(ids)
	c.sink.Emit(SelectionChanged{IDs: c.selection.list()})
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.selection.clear()
	c.sink.Emit(SelectionChanged{IDs: []string{}})
}

// RunRowAction runs the row action key on the row identified by id. Modal
// actions only emit OpenModal; actions with a confirmation prompt require
// confirmed.
func (c *Controller) RunRowAction(ctx context.Context, key, id string, confirmed bool) error {
	action := c.def.RowAction(key)
	if action == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAction, key)
	}
	rec, err := c.pipeline.Find(ctx, c.base, c.def, id)
	if err != nil {
		return err
	}
	if !action.AvailableFor(rec) {
		return fmt.Errorf("%w: %s", ErrActionUnavailable, key)
	}
	if action.OpensModal {
		c.sink.Emit(OpenModal{
			View:          action.ModalView,
			Props:         map[string]any{"id": id, "action": key, "entity": c.def.Entity},
			Title:         action.Label,
			CorrelationID: uuid.NewString(),
		})
		return nil
	}
	if action.Confirmation != "" && !confirmed {
		return ErrConfirmationRequired
	}
	if action.Execute == nil {
		return fmt.Errorf("%w: %s", ErrNoExecutor, key)
	}
	if err := action.Execute(ctx, rec); err != nil {
		return fmt.Errorf("controller: action %s: %w", key, err)
	}
	c.sink.Emit(ActionConfirmed{Action: key, IDs: []string{id}})
	return nil
}

// RunBulkAction runs the bulk action key on ids, or on the selection when ids
// is empty. The selection is cleared after a successful run.
func (c *Controller) RunBulkAction(ctx context.Context, key string, ids []string, confirmed bool) error {
	action := c.def.BulkAction(key)
	if action == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAction, key)
	}
	if len(ids) == 0 {
		ids = c.selection.list()
	}
	if len(ids) == 0 {
		return ErrEmptySelection
	}
	if action.OpensModal {
		c.sink.Emit(OpenModal{
			View:          action.ModalView,
			Props:         map[string]any{"ids": ids, "action": key, "entity": c.def.Entity},
			Title:         action.Label,
			CorrelationID: uuid.NewString(),
		})
		return nil
	}
	if action.Confirmation != "" && !confirmed {
		return ErrConfirmationRequired
	}
	if action.Execute == nil {
		return fmt.Errorf("%w: %s", ErrNoExecutor, key)
	}
	if err := action.Execute(ctx, ids); err != nil {
		return fmt.Errorf("controller: bulk action %s: %w", key, err)
	}
	c.sink.Emit(ActionConfirmed{Action: key, IDs: ids, Bulk: true})
	c.ClearSelection()
	return nil
}

// ClearPreferences forgets the saved bag and returns to the defaults.
func (c *Controller) ClearPreferences(ctx context.Context) {
	if c.store != nil {
		if err := c.store.Clear(ctx, c.def.Entity); err != nil {
			c.failed(err)
		}
	}
	c.dropSelection()
	c.state = prefs.Reconcile(prefs.Params{}, nil, prefs.DefaultsFor(c.def)).State
	c.window = InitialWindow
	c.incremental = false
	c.sink.Emit(ScrollToTop{Entity: c.def.Entity})
}

func (c *Controller) commit(ctx context.Context, next grid.State, reset bool) {
	c.state = next
	if reset {
		c.state = c.paging.reset(c.state)
		c.window = InitialWindow
		c.incremental = false
		c.sink.Emit(ScrollToTop{Entity: c.def.Entity})
	}
	c.write(ctx, prefs.BagFromState(c.state))
}

func (c *Controller) dropSelection() {
	if c.selection.clear() {
		c.sink.Emit(SelectionChanged{IDs: []string{}})
	}
}

func (c *Controller) load(ctx context.Context) prefs.Bag {
	if c.store == nil {
		return nil
	}
	bag, _, err := c.store.All(ctx, c.def.Entity)
	if err != nil {
		c.logger.Warn("grid preferences unavailable",
			slog.String("entity", c.def.Entity),
			slog.String("store", c.store.Kind()),
			slog.Any("error", err))
		return nil
	}
	return bag
}

func (c *Controller) write(ctx context.Context, bag prefs.Bag) {
	if c.store == nil {
		return
	}
	if err := c.store.SetMany(ctx, c.def.Entity, bag); err != nil {
		c.failed(err)
	}
}

func (c *Controller) failed(err error) {
	c.logger.Warn("grid preferences write failed",
		slog.String("entity", c.def.Entity),
		slog.String("store", c.store.Kind()),
		slog.Any("error", err))
	if c.failures != nil {
		c.failures.PreferenceWriteFailed(c.store.Kind())
	}
}
