package metadata

// PropertyType is the scalar type of a model property.
type PropertyType string

const (
	TypeInteger PropertyType = "integer"
	TypeNumber  PropertyType = "number"
	TypeString  PropertyType = "string"
	TypeBoolean PropertyType = "boolean"
)

// FormatDateTime marks a string property holding a timestamp.
const FormatDateTime = "date-time"

// IsScalarType reports whether t is one of the supported property types.
func IsScalarType(t string) bool {
	switch PropertyType(t) {
	case TypeInteger, TypeNumber, TypeString, TypeBoolean:
		return true
	}
	return false
}

type Property struct {
	Name     string       `json:"name"`
	Type     PropertyType `json:"type"`
	Format   string       `json:"format,omitempty"`
	Required bool         `json:"required,omitempty"`
	ReadOnly bool         `json:"read_only,omitempty"`
}

// IsTimestamp reports whether the property holds a timestamp.
func (p Property) IsTimestamp() bool {
	return p.Type == TypeString && (p.Format == FormatDateTime || p.Name == UpdatedAtField)
}

// Accepts reports whether v is a valid value for the property type.
// JSON numbers decode as float64, so integral floats are accepted as integers.
func (p Property) Accepts(v any) bool {
	if v == nil {
		return true
	}
	switch p.Type {
	case TypeInteger:
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
	case TypeNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	}
	return false
}
