package metadata

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
)

// FullSuffix names the unrestricted variant registered for every policy model.
const FullSuffix = "Full"

// LoadFiles reads the schema document and policy file and builds the registry.
func LoadFiles(schemaPath, policyPath string) (*Registry, error) {
	doc, err := LoadSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	pol, err := LoadPolicy(policyPath)
	if err != nil {
		return nil, err
	}
	return Load(doc, pol)
}

// Load merges the structural schema with the policy into a registry. Every
// policy entry X yields X and XFull; XFull reads schema XFull when declared.
// Any dangling reference aborts loading.
func Load(doc *Document, pol *Policy) (*Registry, error) {
	names := make([]string, 0, len(pol.Models))
	for name := range pol.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	var models []*Model
	for _, name := range names {
		mp := pol.Models[name]
		variants := []string{name}
		if _, explicit := pol.Models[name+FullSuffix]; !explicit && !strings.HasSuffix(name, FullSuffix) {
			variants = append(variants, name+FullSuffix)
		}
		for _, variant := range variants {
			schemaName := variant
			if !doc.Has(schemaName) {
				schemaName = name
			}
			m, err := buildModel(doc, variant, schemaName, mp)
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", variant, err)
			}
			if variant == name {
				m.Singular, m.Plural = slugs(name, mp.Slug)
			}
			models = append(models, m)
		}
	}

	reg, err := NewRegistry(models...)
	if err != nil {
		return nil, err
	}
	for _, m := range reg.Models() {
		if err := check(reg, m); err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
	}

	log.Printf("Loaded %d models from %d policy entries", len(models), len(names))
	return reg, nil
}

func buildModel(doc *Document, name, schemaName string, mp ModelPolicy) (*Model, error) {
	if mp.Table == "" {
		return nil, fmt.Errorf("table is required")
	}
	st, err := doc.Structure(schemaName)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Name:        name,
		Table:       mp.Table,
		Properties:  st.Properties,
		Relations:   make(map[string]*Relation, len(mp.Refs)),
		Access:      make(map[Action]AccessRule, len(mp.Access)),
		InjectOwner: mp.UserID,
	}
	if mp.Defaults != nil {
		m.Defaults = *mp.Defaults
	}
	for action, rule := range mp.Access {
		m.Access[Action(action)] = rule
	}

	for refName, rp := range mp.Refs {
		rel, err := buildRelation(refName, rp, st)
		if err != nil {
			return nil, err
		}
		m.Relations[refName] = rel
	}

	for _, rp := range mp.Rules {
		rule, err := CompileRule(rp)
		if err != nil {
			return nil, err
		}
		m.Rules = append(m.Rules, rule)
	}
	return m, nil
}

func buildRelation(name string, rp RefPolicy, st *Structure) (*Relation, error) {
	rel := &Relation{Name: name, Target: rp.Model}
	if rel.Target == "" {
		ref, ok := st.Ref(name)
		if !ok {
			return nil, fmt.Errorf("relation %s: no target model in policy or schema", name)
		}
		rel.Target = ref.Model
	}

	kinds := 0
	if rp.Belongs != "" {
		rel.Kind, rel.ForeignKey = BelongsTo, rp.Belongs
		kinds++
	}
	if rp.HasMany != "" {
		rel.Kind, rel.ForeignKey = HasMany, rp.HasMany
		kinds++
	}
	if rp.Pivot != "" {
		rel.Kind, rel.Pivot = ManyToMany, rp.Pivot
		kinds++
	}
	if kinds != 1 {
		return nil, fmt.Errorf("relation %s: exactly one of belongs, hasMany or pivot is required", name)
	}
	return rel, nil
}

// check validates cross-model references once every model exists.
func check(reg *Registry, m *Model) error {
	for name, rel := range m.Relations {
		if m.HasProperty(name) {
			return fmt.Errorf("relation %s collides with a property", name)
		}
		target, ok := reg.Get(rel.Target)
		if !ok {
			return fmt.Errorf("relation %s: unknown target model %s", name, rel.Target)
		}
		switch rel.Kind {
		case BelongsTo:
			if !m.HasProperty(rel.ForeignKey) {
				return fmt.Errorf("relation %s: foreign key %s is not a property of %s", name, rel.ForeignKey, m.Name)
			}
		case HasMany:
			if !target.HasProperty(rel.ForeignKey) {
				return fmt.Errorf("relation %s: foreign key %s is not a property of %s", name, rel.ForeignKey, target.Name)
			}
		case ManyToMany:
			if target.Table == m.Table {
				return fmt.Errorf("relation %s: pivot %s would link %s to itself", name, rel.Pivot, m.Table)
			}
		}
	}

	for action, rule := range m.Access {
		d := rule.Delegation
		if d == nil {
			continue
		}
		if d.Inherit != "" {
			rel := m.Relation(d.Inherit)
			if rel == nil || !rel.IsBelongsTo() {
				return fmt.Errorf("access %s: inherit %s must name a belongsTo relation", action, d.Inherit)
			}
			if parent, _ := reg.Get(rel.Target); parent.Table == m.Table {
				return fmt.Errorf("access %s: inherit %s joins %s to itself", action, d.Inherit, m.Table)
			}
		}
		for _, col := range d.PivotCondition {
			if !strings.Contains(col, ".") {
				return fmt.Errorf("access %s: pivot_condition column %s must be table-qualified", action, col)
			}
		}
	}
	return nil
}

func slugs(name string, sp *SlugPolicy) (string, string) {
	single := inflect.Underscore(name)
	if sp != nil && sp.Single != "" {
		single = sp.Single
	}
	plural := inflect.Pluralize(single)
	if sp != nil && sp.Plural != "" {
		plural = sp.Plural
	}
	return single, plural
}
