package engine

import (
	"encoding/json"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lex1olnk/mang2/internal/store"
)

type junction int

const (
	junctionAnd junction = iota
	junctionOr
)

func (j junction) join(preds []store.Predicate) store.Predicate {
	if j == junctionOr {
		return store.Or(preds)
	}
	return store.And(preds)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

var comparators = map[string]bool{"=": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true}

// CompileFilter turns a filter expression into a predicate on table. Field
// names without a table prefix are qualified with table. A nil filter matches
// every row.
//
//	{"a": 1, "b": 2}                  a = 1 AND b = 2
//	{"OR": [{"a": 1}, {"a": 2}]}      (a = 1 OR a = 2)
//	{"a": {"!=": [1, 2]}}             a NOT IN (1, 2)
func CompileFilter(filter any, table string) (store.Predicate, error) {
	if filter == nil {
		return nil, nil
	}
	return compileExpr(filter, table, junctionAnd)
}

// compileExpr joins list items with j. Each item starts again from AND.

func compileExpr(expr any, table string, j junction) (store.Predicate, error) {
	if m, ok := expr.(map[string]any); ok {
		return compileMap(m, table)
	}
	items, ok := asList(expr)
	if !ok {
		return nil, MalformedFilterError("expected an object or an array, got %T", expr)
	}
	preds := make([]store.Predicate, 0, len(items))
	for _, item := range items {
		p, err := compileExpr(item, table, junctionAnd)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return j.join(preds), nil
}

func compileMap(m map[string]any, table string) (store.Predicate, error) {
	for key, value := range m {
		switched, ok := junctionKey(key)
		if !ok {
			continue
		}
		if len(m) != 1 {
			return nil, MalformedFilterError("%s cannot be combined with other keys", key)
		}
		if _, isList := asList(value); !isList {
			return nil, MalformedFilterError("%s expects an array", key)
		}
		return compileExpr(value, table, switched)
	}
	if len(m) == 0 {
		return store.And{}, nil
	}

	fields := make([]string, 0, len(m))
	for k := range m {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	preds := make([]store.Predicate, 0, len(fields))
	for _, field := range fields {
		leaf, err := compileField(field, m[field], table)
		if err != nil {
			return nil, err
		}
		preds = append(preds, leaf)
	}
	return store.And(preds), nil
}

func junctionKey(key string) (junction, bool) {
	switch strings.ToUpper(strings.TrimPrefix(key, ":")) {
	case "AND":
		return junctionAnd, true
	case "OR":
		return junctionOr, true
	}
	return 0, false
}

func compileField(field string, value any, table string) (store.Predicate, error) {
	if !identPattern.MatchString(field) {
		return nil, MalformedFilterError("invalid field name %q", field)
	}
	column := field
	if !strings.Contains(field, ".") {
		column = table + "." + field
	}

	if ops, ok := value.(map[string]any); ok {
		if len(ops) == 0 {
			return nil, MalformedFilterError("%s: empty comparator object", field)
		}
		keys := make([]string, 0, len(ops))
		for op := range ops {
			keys = append(keys, op)
		}
		sort.Strings(keys)
		preds := make([]store.Predicate, 0, len(keys))
		for _, op := range keys {
			p, err := compileComparison(field, column, op, ops[op])
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		return store.And(preds), nil
	}
	return compileComparison(field, column, "=", value)
}

func compileComparison(field, column, op string, value any) (store.Predicate, error) {
	if !comparators[op] {
		return nil, MalformedFilterError("%s: unsupported comparator %q", field, op)
	}
	if items, ok := asList(value); ok {
		for _, item := range items {
			if !isScalar(item) {
				return nil, MalformedFilterError("%s: array values must be scalars", field)
			}
		}
		switch op {
		case "=":
			return store.In{Column: column, Values: items}, nil
		case "!=":
			return store.NotIn{Column: column, Values: items}, nil
		}
		return nil, MalformedFilterError("%s: comparator %q does not accept an array", field, op)
	}
	if value != nil && !isScalar(value) {
		return nil, MalformedFilterError("%s: unsupported value of type %T", field, value)
	}
	if value == nil && op != "=" && op != "!=" {
		return nil, MalformedFilterError("%s: comparator %q does not accept null", field, op)
	}
	return store.Cmp{Column: column, Op: op, Value: value}, nil
}

// asList reports whether v is a slice or array and returns its elements.
func asList(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func isScalar(v any) bool {
	switch v.(type) {
	case json.Number, time.Time:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
