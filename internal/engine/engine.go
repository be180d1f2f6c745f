package engine

import (
	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

// Engine runs authorized CRUD operations against the models of one registry.
type Engine struct {
	store    *store.Store
	registry *metadata.Registry
}

func New(s *store.Store, reg *metadata.Registry) *Engine {
	return &Engine{store: s, registry: reg}
}

// Registry returns the models the engine serves.
func (e *Engine) Registry() *metadata.Registry {
	return e.registry
}

// GetModel looks up a model by name.
func (e *Engine) GetModel(name string) (*metadata.Model, error) {
	m, ok := e.registry.Get(name)
	if !ok {
		return nil, UnknownModelError(name)
	}
	return m, nil
}
