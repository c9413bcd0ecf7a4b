package grid

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrUnknownEntity is returned when a catalog has no entry for an entity.
var ErrUnknownEntity = errors.New("grid: unknown entity")

// Catalog is a set of host grid configurations read from YAML.
//
//	version: 1
//	grids:
//	  users:
//	    searchable: [name, email]
//	    default_sort: {column: created_at, direction: desc}
//	    sortable: {updated: updated_at}
//	    filters:
//	      status: {type: select, options: [{value: active}]}
type Catalog struct {
	Version int                      `yaml:"version" validate:"required,min=1"`
	Grids   map[string]*CatalogEntry `yaml:"grids" validate:"required,dive,required"`
}

// CatalogEntry implements Config for one entity.
type CatalogEntry struct {
	Entity     string                `yaml:"-"`
	Searchable []string              `yaml:"searchable"`
	Filters    map[string]FilterSpec `yaml:"filters" validate:"dive"`
	Sortable   map[string]string     `yaml:"sortable"`
	Sort       Sort                  `yaml:"default_sort"`
	PageSize   int                   `yaml:"per_page" validate:"omitempty,min=1,max=200"`
}

var catalogValidator = validator.New()

// LoadCatalog decodes and validates a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("grid: decode catalog: %w", err)
	}
	if err := catalogValidator.Struct(cat); err != nil {
		return nil, fmt.Errorf("grid: invalid catalog: %w", err)
	}
	for _, name := range slices.Sorted(maps.Keys(cat.Grids)) {
		entry := cat.Grids[name]
		entry.Entity = name
		if err := entry.check(); err != nil {
			return nil, err
		}
	}
	return &cat, nil
}

// LoadCatalogFile reads a catalog from fsys.
func LoadCatalogFile(fsys fs.FS, path string) (*Catalog, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("grid: open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Entry returns the configuration for entity.
func (c *Catalog) Entry(entity string) (*CatalogEntry, error) {
	if c != nil {
		if entry, ok := c.Grids[entity]; ok {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
}

func (e *CatalogEntry) check() error {
	if e.Sort.Direction != "" {
		if _, ok := ParseDirection(string(e.Sort.Direction)); !ok {
			return fmt.Errorf("grid: catalog %s: invalid default sort direction %q", e.Entity, e.Sort.Direction)
		}
	}
	for key, spec := range e.Filters {
		if spec.Type == FilterRelationship && spec.Relationship == nil {
			return fmt.Errorf("grid: catalog %s: relationship filter %q needs a relationship", e.Entity, key)
		}
		if spec.DependsOn != "" {
			if _, ok := e.Filters[spec.DependsOn]; !ok {
				return fmt.Errorf("grid: catalog %s: filter %q depends on undeclared %q", e.Entity, key, spec.DependsOn)
			}
		}
	}
	return nil
}

func (e *CatalogEntry) EntityKey() string { return e.Entity }
func (e *CatalogEntry) SearchableFields() []string { return e.Searchable }
func (e *CatalogEntry) FilterFields() map[string]FilterSpec { return e.Filters }
func (e *CatalogEntry) SortableFields() map[string]string { return e.Sortable }
func (e *CatalogEntry) DefaultSort() Sort { return e.Sort }
func (e *CatalogEntry) BulkActions() []*BulkAction { return nil }
func (e *CatalogEntry) PerPage() int { return e.PageSize }
