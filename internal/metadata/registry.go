package metadata

import (
	"fmt"
	"sort"
)

// Registry holds every loaded model. It is built once at startup and only
// read afterwards, so lookups take no locks.
type Registry struct {
	models   map[string]*Model
	bySingle map[string]*Model
	byPlural map[string]*Model
}

// NewRegistry indexes models by name and slug.
func NewRegistry(models ...*Model) (*Registry, error) {
	r := &Registry{
		models:   make(map[string]*Model, len(models)),
		bySingle: make(map[string]*Model),
		byPlural: make(map[string]*Model),
	}
	for _, m := range models {
		if _, dup := r.models[m.Name]; dup {
			return nil, fmt.Errorf("model %s declared twice", m.Name)
		}
		m.index()
		r.models[m.Name] = m

		if m.Singular != "" {
			if other, dup := r.bySingle[m.Singular]; dup {
				return nil, fmt.Errorf("slug %s used by both %s and %s", m.Singular, other.Name, m.Name)
			}
			r.bySingle[m.Singular] = m
		}
		if m.Plural != "" {
			if other, dup := r.byPlural[m.Plural]; dup {
				return nil, fmt.Errorf("slug %s used by both %s and %s", m.Plural, other.Name, m.Name)
			}
			r.byPlural[m.Plural] = m
		}
	}
	return r, nil
}

// Get returns the model with the given name.
func (r *Registry) Get(name string) (*Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// BySingular resolves a single-entity slug (e.g. "book").
func (r *Registry) BySingular(slug string) (*Model, bool) {
	m, ok := r.bySingle[slug]
	return m, ok
}

// ByPlural resolves a collection slug (e.g. "books").
func (r *Registry) ByPlural(slug string) (*Model, bool) {
	m, ok := r.byPlural[slug]
	return m, ok
}

// Models returns all models sorted by name.
func (r *Registry) Models() []*Model {
	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
