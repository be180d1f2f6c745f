package store

import (
	"fmt"
	"strings"
)

// Predicate renders a WHERE/ON fragment, registering its parameters with pb.
type Predicate interface {
	SQL(d Dialect, pb ParamBuilder) string
}

// Ident quotes a possibly table-qualified identifier: book.id -> "book"."id".
// A trailing * is left bare so "book.*" selects every column of book.
func Ident(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// Eq is column = value, or column IS NULL when value is nil.
type Eq struct {
	Column string
	Value  any
}

func (p Eq) SQL(d Dialect, pb ParamBuilder) string {
	if p.Value == nil {
		return Ident(p.Column) + " IS NULL"
	}
	return fmt.Sprintf("%s = %s", Ident(p.Column), pb.Add(p.Value))
}

// Cmp is column <op> value for one of = != > >= < <=.
type Cmp struct {
	Column string
	Op     string
	Value  any
}

func (p Cmp) SQL(d Dialect, pb ParamBuilder) string {
	if p.Value == nil {
		switch p.Op {
		case "=":
			return Ident(p.Column) + " IS NULL"
		case "!=":
			return Ident(p.Column) + " IS NOT NULL"
		}
	}
	return fmt.Sprintf("%s %s %s", Ident(p.Column), p.Op, pb.Add(p.Value))
}

// In is set membership.
type In struct {
	Column string
	Values []any
}

func (p In) SQL(d Dialect, pb ParamBuilder) string {
	return d.InExpr(Ident(p.Column), pb, p.Values)
}

// NotIn is negated set membership.
type NotIn struct {
	Column string
	Values []any
}

func (p NotIn) SQL(d Dialect, pb ParamBuilder) string {
	return d.NotInExpr(Ident(p.Column), pb, p.Values)
}

// ColumnsEq compares two columns, used for join conditions.
type ColumnsEq struct {
	Left  string
	Right string
}

func (p ColumnsEq) SQL(d Dialect, pb ParamBuilder) string {
	return Ident(p.Left) + " = " + Ident(p.Right)
}

// And joins predicates with AND; an empty And is always true.
type And []Predicate

func (p And) SQL(d Dialect, pb ParamBuilder) string {
	return group(d, pb, p, " AND ", "1=1")
}

// Or joins predicates with OR; an empty Or is always false.
type Or []Predicate

func (p Or) SQL(d Dialect, pb ParamBuilder) string {
	return group(d, pb, p, " OR ", "1=0")
}

func group(d Dialect, pb ParamBuilder, preds []Predicate, sep, empty string) string {
	switch len(preds) {
	case 0:
		return empty
	case 1:
		return preds[0].SQL(d, pb)
	}
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.SQL(d, pb)
	}
	return "(" + strings.Join(parts, sep) + ")"
}
