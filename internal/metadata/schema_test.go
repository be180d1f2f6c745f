package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructure_FlattensAllOfAndKeepsOrder(t *testing.T) {
	doc, err := LoadSchema("testdata/openapi.yaml")
	require.NoError(t, err)

	st, err := doc.Structure("Book")
	require.NoError(t, err)

	names := make([]string, len(st.Properties))
	for i, p := range st.Properties {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"id", "title", "pages", "published", "author_id", "user_id", "updated_at"}, names)

	id := st.Properties[0]
	assert.True(t, id.Required)
	assert.True(t, id.ReadOnly)
	assert.Equal(t, TypeInteger, id.Type)
	assert.Equal(t, TypeBoolean, st.Properties[3].Type)

	ref, ok := st.Ref("author")
	require.True(t, ok)
	assert.Equal(t, Ref{Name: "author", Model: "Author"}, ref)
}

func TestStructure_ArrayReference(t *testing.T) {
	doc, err := LoadSchema("testdata/openapi.yaml")
	require.NoError(t, err)

	st, err := doc.Structure("Author")
	require.NoError(t, err)

	ref, ok := st.Ref("books")
	require.True(t, ok)
	assert.True(t, ref.Many)
	assert.Equal(t, "Book", ref.Model)
}

func TestStructure_Errors(t *testing.T) {
	doc, err := ParseSchema([]byte(`
components:
  schemas:
    Bad:
      $ref: '#/definitions/Other'
    Loop:
      $ref: '#/components/schemas/Loop'
    Missing:
      $ref: '#/components/schemas/Nowhere'
    Scalar:
      type: string
`))
	require.NoError(t, err)

	for _, name := range []string{"Bad", "Loop", "Missing", "Scalar", "Unknown"} {
		_, err := doc.Structure(name)
		assert.Error(t, err, name)
	}
}

func TestParseSchema_RequiresSchemas(t *testing.T) {
	_, err := ParseSchema([]byte("openapi: 3.0.3\n"))
	assert.Error(t, err)
}
