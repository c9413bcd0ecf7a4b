package query

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

// OptionsLoader resolves filter options, collapsing concurrent loads of the
// same provider. Provider failures degrade to an empty list.
type OptionsLoader struct {
	group  singleflight.Group
	logger *slog.Logger
}

// NewOptionsLoader constructs an OptionsLoader.
func NewOptionsLoader(logger *slog.Logger) *OptionsLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptionsLoader{logger: logger}
}

// Load returns the options of f. Static options are returned as-is.
func (l *OptionsLoader) Load(ctx context.Context, entity string, f *grid.FilterDef) []grid.Option {
	if f == nil {
		return nil
	}
	if f.Provider == nil {
		return slices.Clone(f.Options)
	}
	provider := f.Provider
	ch := l.group.DoChan(entity+"/"+f.Key, func() (interface{}, error) {
		return provider(ctx)
	})
	select {
	case <-ctx.Done():
		l.logger.Warn("grid filter options cancelled", slog.String("entity", entity), slog.String("filter", f.Key))
		return []grid.Option{}
	case res := <-ch:
		if res.Err != nil {
			l.logger.Error("grid filter options failed",
				slog.String("entity", entity),
				slog.String("filter", f.Key),
				slog.Any("error", res.Err))
			return []grid.Option{}
		}
		opts, _ := res.Val.([]grid.Option)
		return slices.Clone(opts)
	}
}

// LoadAll resolves the options of every filter of def keyed by filter key.
func (l *OptionsLoader) LoadAll(ctx context.Context, def *grid.Definition) map[string][]grid.Option {
	out := make(map[string][]grid.Option, len(def.Filters))
	for i := range def.Filters {
		f := &def.Filters[i]
		out[f.Key] = l.Load(ctx, def.Entity, f)
	}
	return out
}
