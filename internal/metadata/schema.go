package metadata

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const schemaRefPrefix = "#/components/schemas/"

// Document is the subset of an OpenAPI document the loader reads.
type Document struct {
	Components struct {
		Schemas map[string]*Schema `yaml:"schemas"`
	} `yaml:"components"`
}

// Schema is one OpenAPI schema object.
type Schema struct {
	Type       string     `yaml:"type"`
	Format     string     `yaml:"format"`
	Ref        string     `yaml:"$ref"`
	ReadOnly   bool       `yaml:"readOnly"`
	Required   []string   `yaml:"required"`
	Properties Properties `yaml:"properties"`
	AllOf      []*Schema  `yaml:"allOf"`
	Items      *Schema    `yaml:"items"`
}

// NamedSchema is a property name with its schema.
type NamedSchema struct {
	Name   string
	Schema *Schema
}

// Properties keeps the declaration order of a properties mapping.
type Properties []NamedSchema

func (p *Properties) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", node.Line)
	}
	out := make(Properties, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var s Schema
		if err := node.Content[i+1].Decode(&s); err != nil {
			return err
		}
		out = append(out, NamedSchema{Name: node.Content[i].Value, Schema: &s})
	}
	*p = out
	return nil
}

// Ref is a structural reference from one schema to another.
type Ref struct {
	Name     string
	Model    string
	Many     bool
	Required bool
}

// Structure is what the loader needs from a schema: scalar properties and references.
type Structure struct {
	Properties []Property
	Refs       []Ref
}

// Ref returns the reference with the given name.
func (s *Structure) Ref(name string) (Ref, bool) {
	for _, r := range s.Refs {
		if r.Name == name {
			return r, true
		}
	}
	return Ref{}, false
}

// ParseSchema decodes a YAML or JSON OpenAPI document.
func ParseSchema(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(doc.Components.Schemas) == 0 {
		return nil, fmt.Errorf("parse schema: no components.schemas declared")
	}
	return &doc, nil
}

// LoadSchema reads and decodes a schema document.
func LoadSchema(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(data)
}

// Has reports whether the document declares a schema with the given name.
func (d *Document) Has(name string) bool {
	_, ok := d.Components.Schemas[name]
	return ok
}

// Structure flattens a named schema through allOf and $ref.
func (d *Document) Structure(name string) (*Structure, error) {
	s, ok := d.Components.Schemas[name]
	if !ok {
		return nil, fmt.Errorf("schema %s not found", name)
	}
	st := &Structure{}
	if err := d.collect(s, st, map[string]bool{name: true}); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return st, nil
}

func (d *Document) collect(s *Schema, st *Structure, visiting map[string]bool) error {
	switch {
	case s.Ref != "":
		name, err := refName(s.Ref)
		if err != nil {
			return err
		}
		target, ok := d.Components.Schemas[name]
		if !ok {
			return fmt.Errorf("reference %s not found", s.Ref)
		}
		if visiting[name] {
			return fmt.Errorf("reference cycle through %s", name)
		}
		visiting[name] = true
		defer delete(visiting, name)
		return d.collect(target, st, visiting)

	case len(s.AllOf) > 0:
		for _, part := range s.AllOf {
			if err := d.collect(part, st, visiting); err != nil {
				return err
			}
		}
		return nil

	case s.Type == "object":
		required := make(map[string]bool, len(s.Required))
		for _, r := range s.Required {
			required[r] = true
		}
		for _, p := range s.Properties {
			if err := addProperty(st, p, required[p.Name]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("cannot read schema (expected object, allOf or $ref)")
}

func addProperty(st *Structure, p NamedSchema, required bool) error {
	s := p.Schema
	switch {
	case s.Ref != "":
		model, err := refName(s.Ref)
		if err != nil {
			return fmt.Errorf("property %s: %w", p.Name, err)
		}
		st.Refs = upsertRef(st.Refs, Ref{Name: p.Name, Model: model, Required: required})
	case s.Type == "array" && s.Items != nil && s.Items.Ref != "":
		model, err := refName(s.Items.Ref)
		if err != nil {
			return fmt.Errorf("property %s: %w", p.Name, err)
		}
		st.Refs = upsertRef(st.Refs, Ref{Name: p.Name, Model: model, Many: true, Required: required})
	case IsScalarType(s.Type):
		prop := Property{Name: p.Name, Type: PropertyType(s.Type), Format: s.Format, Required: required, ReadOnly: s.ReadOnly}
		for i := range st.Properties {
			if st.Properties[i].Name == p.Name {
				prop.Required = prop.Required || st.Properties[i].Required
				st.Properties[i] = prop
				return nil
			}
		}
		st.Properties = append(st.Properties, prop)
	}
	// other shapes (inline objects, untyped arrays) carry no column
	return nil
}

func upsertRef(refs []Ref, r Ref) []Ref {
	for i := range refs {
		if refs[i].Name == r.Name {
			refs[i] = r
			return refs
		}
	}
	return append(refs, r)
}

func refName(ref string) (string, error) {
	if !strings.HasPrefix(ref, schemaRefPrefix) {
		return "", fmt.Errorf("reference %q must start with %s", ref, schemaRefPrefix)
	}
	return strings.TrimPrefix(ref, schemaRefPrefix), nil
}
