package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex1olnk/mang2/internal/store"
)

func render(t *testing.T, filter any) (string, []any) {
	t.Helper()
	pred, err := CompileFilter(filter, "t")
	require.NoError(t, err)
	d := store.NewDialect("postgres")
	pb := d.NewParamBuilder()
	return pred.SQL(d, pb), pb.Params()
}

func TestCompileFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter any
		sql    string
		args   []any
	}{
		{
			name:   "fields are AND-ed",
			filter: map[string]any{"a": 1, "b": 2},
			sql:    `("t"."a" = $1 AND "t"."b" = $2)`,
			args:   []any{1, 2},
		},
		{
			name:   "or switches the junction",
			filter: map[string]any{":or": []any{map[string]any{"a": 1}, map[string]any{"a": 2}}},
			sql:    `("t"."a" = $1 OR "t"."a" = $2)`,
			args:   []any{1, 2},
		},
		{
			name:   "upper-case OR",
			filter: map[string]any{"OR": []any{map[string]any{"a": 1}, map[string]any{"b": nil}}},
			sql:    `("t"."a" = $1 OR "t"."b" IS NULL)`,
			args:   []any{1},
		},
		{
			name:   "array not-equal is NOT IN",
			filter: map[string]any{"a": map[string]any{"!=": []any{1, 2}}},
			sql:    `"t"."a" NOT IN ($1, $2)`,
			args:   []any{1, 2},
		},
		{
			name:   "array value is IN",
			filter: map[string]any{"a": []int64{4, 5}},
			sql:    `"t"."a" IN ($1, $2)`,
			args:   []any{int64(4), int64(5)},
		},
		{
			name:   "empty array matches nothing",
			filter: map[string]any{"a": []any{}},
			sql:    `1=0`,
		},
		{
			name:   "comparators",
			filter: map[string]any{"a": map[string]any{">=": 3, "<": 9}},
			sql:    `("t"."a" < $1 AND "t"."a" >= $2)`,
			args:   []any{9, 3},
		},
		{
			name:   "null inequality",
			filter: map[string]any{"a": map[string]any{"!=": nil}},
			sql:    `"t"."a" IS NOT NULL`,
		},
		{
			name:   "qualified field keeps its table",
			filter: map[string]any{"p.owner_id": 7},
			sql:    `"p"."owner_id" = $1`,
			args:   []any{7},
		},
		{
			name: "nested groups",
			filter: []any{
				map[string]any{"a": 1},
				map[string]any{"OR": []any{map[string]any{"b": 2}, map[string]any{"c": 3}}},
			},
			sql:  `("t"."a" = $1 AND ("t"."b" = $2 OR "t"."c" = $3))`,
			args: []any{1, 2, 3},
		},
		{
			name: "object inside or keeps its fields AND-ed",
			filter: map[string]any{":or": []any{
				map[string]any{"a": 1, "b": 2},
				map[string]any{"c": 3},
			}},
			sql:  `(("t"."a" = $1 AND "t"."b" = $2) OR "t"."c" = $3)`,
			args: []any{1, 2, 3},
		},
		{
			name: "range inside or stays a range",
			filter: map[string]any{"OR": []any{
				map[string]any{"age": map[string]any{">": 18, "<": 65}},
				map[string]any{"vip": true},
			}},
			sql:  `(("t"."age" < $1 AND "t"."age" > $2) OR "t"."vip" = $3)`,
			args: []any{65, 18, true},
		},
		{
			name: "list inside or is AND-ed",
			filter: map[string]any{"OR": []any{
				[]any{map[string]any{"a": 1}, map[string]any{"b": 2}},
				map[string]any{"c": 3},
			}},
			sql:  `(("t"."a" = $1 AND "t"."b" = $2) OR "t"."c" = $3)`,
			args: []any{1, 2, 3},
		},
		{
			name:   "empty object matches everything",
			filter: map[string]any{},
			sql:    `1=1`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := render(t, tt.filter)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCompileFilter_Nil(t *testing.T) {
	pred, err := CompileFilter(nil, "t")
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestCompileFilter_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		filter any
	}{
		{"scalar filter", 42},
		{"string filter", "a=1"},
		{"junction with sibling", map[string]any{"OR": []any{}, "a": 1}},
		{"junction without array", map[string]any{"AND": map[string]any{"a": 1}}},
		{"unknown comparator", map[string]any{"a": map[string]any{"like": "x"}}},
		{"array with ordering comparator", map[string]any{"a": map[string]any{">": []any{1, 2}}}},
		{"nested object in array", map[string]any{"a": []any{map[string]any{"b": 1}}}},
		{"injection in field name", map[string]any{"a; DROP TABLE t": 1}},
		{"scalar inside list", []any{1}},
		{"null with ordering comparator", map[string]any{"a": map[string]any{"<": nil}}},
		{"empty comparator object", map[string]any{"a": map[string]any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileFilter(tt.filter, "t")
			require.Error(t, err)
			var appErr *AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "MALFORMED_FILTER", appErr.Code)
			assert.Equal(t, 400, appErr.Status)
		})
	}
}
