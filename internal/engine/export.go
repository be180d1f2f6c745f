package engine

import "github.com/lex1olnk/mang2/internal/metadata"

// GetExportData shapes an entity, a list of entities or nil for output. Only
// declared properties, attached relations and "-count" fields survive.
// Recursion follows the attached relations, never the schema, so it ends
// with the data.
func (e *Engine) GetExportData(name string, data any) (any, error) {
	m, err := e.GetModel(name)
	if err != nil {
		return nil, err
	}
	return e.export(m, data), nil
}

func (e *Engine) export(m *metadata.Model, data any) any {
	switch v := data.(type) {
	case map[string]any:
		return e.exportEntity(m, v)
	case []map[string]any:
		out := make([]any, len(v))
		for i, row := range v {
			out[i] = e.exportEntity(m, row)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			if row, ok := item.(map[string]any); ok {
				out = append(out, e.exportEntity(m, row))
			}
		}
		return out
	}
	return nil
}

func (e *Engine) exportEntity(m *metadata.Model, row map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	out := make(map[string]any, len(m.Properties))
	for _, p := range m.Properties {
		if v, ok := row[p.Name]; ok {
			out[p.Name] = v
		}
	}
	for name, rel := range m.Relations {
		if n, ok := row[name+CountSuffix]; ok && rel.Countable() {
			out[name+CountSuffix] = n
		}
		v, ok := row[name]
		if !ok {
			continue
		}
		target, found := e.registry.Get(rel.Target)
		if !found {
			continue
		}
		out[name] = e.export(target, v)
	}
	return out
}
