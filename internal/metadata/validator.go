package metadata

import (
	"fmt"
	"sort"
)

// Violation is one failed check on a candidate record.
type Violation struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

// Validate checks record against the model's properties and rules. With
// checkRequired false (partial update) absent required fields are allowed.
// An empty result means the record is valid.
func (m *Model) Validate(record map[string]any, checkRequired bool) []Violation {
	var out []Violation

	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		value := record[name]
		prop, ok := m.Property(name)
		if !ok {
			out = append(out, Violation{Field: name, Rule: "unknown", Message: "unknown property"})
			continue
		}
		if value == nil {
			if prop.Required && !prop.ReadOnly {
				out = append(out, Violation{Field: name, Rule: "required", Message: "must not be null"})
			}
			continue
		}
		if !prop.Accepts(value) {
			out = append(out, Violation{Field: name, Rule: "type", Message: fmt.Sprintf("must be of type %s", prop.Type)})
		}
	}

	if checkRequired {
		for _, prop := range m.Properties {
			if !prop.Required || prop.ReadOnly || prop.Name == IDField {
				continue
			}
			if _, present := record[prop.Name]; !present {
				out = append(out, Violation{Field: prop.Name, Rule: "required", Message: "required property"})
			}
		}
	}

	if len(out) > 0 {
		return out
	}

	for _, r := range m.Rules {
		violated, err := r.Violated(record, !checkRequired)
		if err != nil {
			out = append(out, Violation{Field: r.Field, Rule: "expression", Message: err.Error()})
			continue
		}
		if violated {
			out = append(out, Violation{Field: r.Field, Rule: "expression", Message: r.Message})
		}
	}
	return out
}
