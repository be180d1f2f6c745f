package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bookModel(t *testing.T) *Model {
	t.Helper()
	m, _ := loadLibrary(t).Get("Book")
	return m
}

func TestValidate_Valid(t *testing.T) {
	m := bookModel(t)
	assert.Empty(t, m.Validate(map[string]any{"title": "Dune", "pages": float64(412), "published": true}, true))
}

func TestValidate_Violations(t *testing.T) {
	m := bookModel(t)

	got := m.Validate(map[string]any{"pages": "many", "colour": "red", "published": 1}, true)
	assert.ElementsMatch(t, []Violation{
		{Field: "colour", Rule: "unknown", Message: "unknown property"},
		{Field: "pages", Rule: "type", Message: "must be of type integer"},
		{Field: "published", Rule: "type", Message: "must be of type boolean"},
		{Field: "title", Rule: "required", Message: "required property"},
	}, got)
}

func TestValidate_PartialSkipsRequired(t *testing.T) {
	m := bookModel(t)
	assert.Empty(t, m.Validate(map[string]any{"pages": float64(3)}, false))

	got := m.Validate(map[string]any{"title": nil}, false)
	assert.Equal(t, []Violation{{Field: "title", Rule: "required", Message: "must not be null"}}, got)
}

func TestValidate_IntegerRejectsFraction(t *testing.T) {
	m := bookModel(t)
	got := m.Validate(map[string]any{"title": "x", "pages": 1.5}, true)
	assert.Equal(t, []Violation{{Field: "pages", Rule: "type", Message: "must be of type integer"}}, got)
}

func TestValidate_ExpressionRule(t *testing.T) {
	m := bookModel(t)
	got := m.Validate(map[string]any{"title": "x", "pages": float64(0)}, true)
	assert.Equal(t, []Violation{{Field: "pages", Rule: "expression", Message: "must be positive"}}, got)
}

func TestActor_IsAdmin(t *testing.T) {
	var anon *Actor
	assert.False(t, anon.IsAdmin())
	assert.True(t, (&Actor{ID: 1, Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&Actor{ID: 2, Role: "editor"}).IsAdmin())
}

func TestProperty_IsTimestamp(t *testing.T) {
	assert.True(t, Property{Name: "published_at", Type: TypeString, Format: FormatDateTime}.IsTimestamp())
	assert.True(t, Property{Name: UpdatedAtField, Type: TypeString}.IsTimestamp())
	assert.False(t, Property{Name: "title", Type: TypeString}.IsTimestamp())
	assert.False(t, Property{Name: "pages", Type: TypeInteger, Format: FormatDateTime}.IsTimestamp())

	assert.Equal(t, []string{UpdatedAtField}, bookModel(t).TimestampProperties())
}
