package metadata

// Action is one of the operations an access policy governs.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionGrant  Action = "grant"
)

// Actions lists every action in declaration order. Grant flags map onto these names.
var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionGrant}

// IsAction reports whether name is a known action.
func IsAction(name string) bool {
	for _, a := range Actions {
		if string(a) == name {
			return true
		}
	}
	return false
}

// Reserved column names managed by the engine.
const (
	IDField        = "id"
	UpdatedAtField = "updated_at"
	OwnerField     = "user_id"
	PivotUserField = "user_id"
)

// Defaults are per-model pagination settings; zero means "use the configured fallback".
type Defaults struct {
	PageSize    int `json:"pageSize,omitempty"`
	MaxPageSize int `json:"maxPageSize,omitempty"`
}

// Model is the compiled schema plus policy for one entity type. Models are
// built by the loader and never mutated afterwards.
type Model struct {
	Name        string                `json:"name"`
	Table       string                `json:"table"`
	Singular    string                `json:"singular,omitempty"`
	Plural      string                `json:"plural,omitempty"`
	Properties  []Property            `json:"properties"`
	Relations   map[string]*Relation  `json:"relations,omitempty"`
	Access      map[Action]AccessRule `json:"access,omitempty"`
	Defaults    Defaults              `json:"defaults"`
	InjectOwner bool                  `json:"inject_owner,omitempty"`
	Rules       []*Rule               `json:"rules,omitempty"`

	propIndex map[string]int
}

// Property returns the property with the given name.
func (m *Model) Property(name string) (Property, bool) {
	if i, ok := m.propIndex[name]; ok {
		return m.Properties[i], true
	}
	return Property{}, false
}

// HasProperty returns true if the model declares a property with the given name.
func (m *Model) HasProperty(name string) bool {
	_, ok := m.propIndex[name]
	return ok
}

// PropertyNames returns property names in declaration order.
func (m *Model) PropertyNames() []string {
	names := make([]string, len(m.Properties))
	for i, p := range m.Properties {
		names[i] = p.Name
	}
	return names
}

// BooleanProperties returns the names of boolean properties.
func (m *Model) BooleanProperties() []string {
	var names []string
	for _, p := range m.Properties {
		if p.Type == TypeBoolean {
			names = append(names, p.Name)
		}
	}
	return names
}

// TimestampProperties returns the names of timestamp properties.
func (m *Model) TimestampProperties() []string {
	var names []string
	for _, p := range m.Properties {
		if p.IsTimestamp() {
			names = append(names, p.Name)
		}
	}
	return names
}

// Relation returns the relation with the given name, or nil.
func (m *Model) Relation(name string) *Relation {
	return m.Relations[name]
}

// Rule returns the access rule for an action. Undeclared actions are denied.
func (m *Model) Rule(action Action) AccessRule {
	if r, ok := m.Access[action]; ok {
		return r
	}
	return AccessRule{Kind: AccessDenied}
}

// HasOwner reports whether rows of the model carry an owner column.
func (m *Model) HasOwner() bool {
	return m.InjectOwner || m.HasProperty(OwnerField)
}

// PivotKey is the column pivot tables use to reference this model.
func (m *Model) PivotKey() string {
	return m.Table + "_id"
}

func (m *Model) index() {
	m.propIndex = make(map[string]int, len(m.Properties))
	for i, p := range m.Properties {
		m.propIndex[p.Name] = i
	}
}
