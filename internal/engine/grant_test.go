package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex1olnk/mang2/internal/metadata"
)

func TestGrant_MergesFlags(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Update(ctx, "Book", int64(1), map[string]any{"title": "Dune Messiah"}, bob)
	assertAppError(t, err, "ACCESS_DENIED")

	require.NoError(t, e.Grant(ctx, "Book", "1", "3", map[string]any{"update": true}, alice))

	_, err = e.Update(ctx, "Book", int64(1), map[string]any{"title": "Dune Messiah"}, bob)
	require.NoError(t, err)

	// The earlier read flag survives the merge.
	rows, err := e.Find(ctx, "Book", nil, Options{Actor: bob})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune Messiah", "Ulysses"}, titles(rows))
	assert.Equal(t, int64(1), queryValue(t, e, `SELECT COUNT(*) FROM book_pivot_user WHERE book_id = 1 AND user_id = 3`))

	require.NoError(t, e.Grant(ctx, "Book", int64(1), int64(3), map[string]any{"read": false}, alice))
	rows, err = e.Find(ctx, "Book", nil, Options{Actor: bob})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ulysses"}, titles(rows))
}

func TestGrant_ThroughPivotFlag(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Grant(ctx, "Book", int64(3), int64(2), map[string]any{"read": true}, carol))

	rows, err := e.Find(ctx, "Book", nil, Options{Actor: alice})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune", "Emma", "Ulysses"}, titles(rows))
}

func TestGrant_CustomPivotCondition(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Chapter reads through the book's pivot, so the grant lands on book 3.
	require.NoError(t, e.Grant(ctx, "Chapter", int64(3), int64(2), map[string]any{"read": true}, admin))

	rows, err := e.Find(ctx, "Chapter", nil, Options{Actor: alice})
	require.NoError(t, err)
	assert.Equal(t, []string{"Book One", "Book Two", "Telemachus"}, titles(rows))
}

func TestGrant_Rejects(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		model  string
		id     any
		userID any
		flags  map[string]any
		actor  *metadata.Actor
		code   string
	}{
		{"stranger", "Book", 1, 5, map[string]any{"read": true}, carol, "ACCESS_DENIED"},
		{"pivot read only", "Book", 1, 5, map[string]any{"read": true}, bob, "ACCESS_DENIED"},
		{"anonymous", "Book", 1, 5, map[string]any{"read": true}, nil, "ACCESS_DENIED"},
		{"undeclared grant", "Chapter", 1, 5, map[string]any{"read": true}, alice, "ACCESS_DENIED"},
		{"missing row", "Book", 99, 5, map[string]any{"read": true}, alice, "NOT_FOUND"},
		{"bad user id", "Book", 1, "x", map[string]any{"read": true}, alice, "VALIDATION_FAILED"},
		{"no flags", "Book", 1, 5, map[string]any{}, alice, "VALIDATION_FAILED"},
		{"unknown model", "Nope", 1, 5, map[string]any{"read": true}, alice, "UNKNOWN_MODEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Grant(ctx, tt.model, tt.id, tt.userID, tt.flags, tt.actor)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestGrant_FlagValidation(t *testing.T) {
	e := newTestEngine(t)

	err := e.Grant(context.Background(), "Book", int64(1), int64(5), map[string]any{
		"read":   "yes",
		"fly":    true,
		"create": true,
	}, alice)
	appErr := assertAppError(t, err, "VALIDATION_FAILED")
	require.Len(t, appErr.Details, 3)

	byField := map[string]string{}
	for _, d := range appErr.Details {
		byField[d.Field] = d.Rule
	}
	assert.Equal(t, map[string]string{"read": "type", "fly": "unknown", "create": "grant"}, byField)
	assert.Equal(t, int64(0), queryValue(t, e, `SELECT COUNT(*) FROM book_pivot_user WHERE user_id = 5 AND book_id = 1`))
}
