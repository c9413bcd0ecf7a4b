package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

// ErrNotFound is returned by Find when no row has the requested key.
var ErrNotFound = errors.New("query: record not found")

// Backend executes queries against a dataset.
type Backend interface {
	Count(ctx context.Context, q Query) (int, error)
	Fetch(ctx context.Context, q Query) ([]grid.Record, error)
}

// Observer receives the outcome of every pipeline run.
type Observer interface {
	ObservePipeline(entity string, elapsed time.Duration, err error)
}

// PipelineOptions tune a Pipeline.
type PipelineOptions struct {
	MaxPerPage int
	Observer   Observer
}

// Result is one materialized page.
type Result struct {
	Rows []grid.Record `json:"rows"`
	Paging
}

// Pipeline runs the stages against a backend.
type Pipeline struct {
	backend Backend
	opts    PipelineOptions
}

// NewPipeline constructs a Pipeline.
func NewPipeline(backend Backend, opts PipelineOptions) *Pipeline {
	return &Pipeline{backend: backend, opts: opts}
}

// Build applies Search, Filter and Sort to base. The returned query is not
// paginated.
func (p *Pipeline) Build(base Query, req Request) Query {
	return Sort(Filter(Search(base, req), req), req)
}

// Run materializes the requested page. A page past the end is clamped to the
// last page.
func (p *Pipeline) Run(ctx context.Context, base Query, req Request) (Result, error) {
	req.MaxPerPage = p.MaxPerPage()
	return p.run(ctx, base, req)
}

// Window fetches the first limit rows of the filtered, sorted set, used by
// the incremental load-more view. limit is bounded by MaxPerPage.
func (p *Pipeline) Window(ctx context.Context, base Query, req Request, limit int) (Result, error) {
	req.State.Page = 1
	req.State.PerPage = min(max(limit, 1), p.MaxPerPage())
	req.MaxPerPage = p.MaxPerPage()
	return p.run(ctx, base, req)
}

// MaxPerPage is the largest page or window the pipeline materializes.
func (p *Pipeline) MaxPerPage() int {
	if p.opts.MaxPerPage > 0 {
		return min(p.opts.MaxPerPage, grid.MaxPerPage)
	}
	return grid.MaxPerPage
}

func (p *Pipeline) run(ctx context.Context, base Query, req Request) (result Result, err error) {
	start := time.Now()
	if p.opts.Observer != nil && req.Definition != nil {
		defer func() {
			p.opts.Observer.ObservePipeline(req.Definition.Entity, time.Since(start), err)
		}()
	}
	q := p.Build(base, req)

	total, err := p.backend.Count(ctx, q.WithoutPaging())
	if err != nil {
		return Result{}, fmt.Errorf("query: count: %w", err)
	}
	paging := NewPaging(req.State.Page, ResolvePerPage(req), total)
	req.State.Page = paging.Page
	q = Paginate(q, req)

	rows := []grid.Record{}
	if total > 0 {
		rows, err = p.backend.Fetch(ctx, q)
		if err != nil {
			return Result{}, fmt.Errorf("query: fetch: %w", err)
		}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Find loads the single row whose primary key equals id. Search and filter
// state are ignored; only the base query scopes the lookup.
func (p *Pipeline) Find(ctx context.Context, base Query, def *grid.Definition, id string) (grid.Record, error) {
	pk := grid.DefaultPrimaryKey
	if def != nil && def.PrimaryKey != "" {
		pk = def.PrimaryKey
	}
	q := base.Where(Condition{Path: Path{Column: pk}, Op: OpIn, Values: []any{id}}).Page(1, 0)
	rows, err := p.backend.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query: find: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rows[0], nil
}
