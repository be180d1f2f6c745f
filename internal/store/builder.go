package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type JoinKind string

const (
	InnerJoin JoinKind = "INNER JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
	RightJoin JoinKind = "RIGHT JOIN"
)

// Join is one joined table; On predicates are AND-ed.
type Join struct {
	Kind  JoinKind
	Table string
	On    []Predicate
}

// SelectBuilder assembles a parameterized SELECT.
type SelectBuilder struct {
	table    string
	columns  []string
	distinct bool
	joins    []Join
	where    []Predicate
	groupBy  []string
	orderBy  []string
	limit    int
	offset   int
}

// Select starts a query against table. Without explicit columns it selects "table".*.
func Select(table string) *SelectBuilder {
	return &SelectBuilder{table: table}
}

// Table returns the table the query starts from.
func (b *SelectBuilder) Table() string { return b.table }

// Columns replaces the projection with raw SQL expressions.
func (b *SelectBuilder) Columns(exprs ...string) *SelectBuilder {
	b.columns = exprs
	return b
}

// AddColumn appends a raw SQL expression to the projection.
func (b *SelectBuilder) AddColumn(expr string) *SelectBuilder {
	if len(b.columns) == 0 {
		b.columns = []string{Ident(b.table + ".*")}
	}
	b.columns = append(b.columns, expr)
	return b
}

func (b *SelectBuilder) Distinct() *SelectBuilder {
	b.distinct = true
	return b
}

func (b *SelectBuilder) Join(kind JoinKind, table string, on ...Predicate) *SelectBuilder {
	b.joins = append(b.joins, Join{Kind: kind, Table: table, On: on})
	return b
}

// Where adds a predicate; multiple calls are AND-ed.
func (b *SelectBuilder) Where(p Predicate) *SelectBuilder {
	if p != nil {
		b.where = append(b.where, p)
	}
	return b
}

func (b *SelectBuilder) GroupBy(column string) *SelectBuilder {
	b.groupBy = append(b.groupBy, column)
	return b
}

func (b *SelectBuilder) OrderBy(column string) *SelectBuilder {
	b.orderBy = append(b.orderBy, column)
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = n
	return b
}

// Build renders the SQL and its parameters for the dialect.
func (b *SelectBuilder) Build(d Dialect) (string, []any) {
	pb := d.NewParamBuilder()
	var sb strings.Builder

	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	if len(b.columns) == 0 {
		sb.WriteString(Ident(b.table + ".*"))
	} else {
		sb.WriteString(strings.Join(b.columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(Ident(b.table))

	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(string(j.Kind))
		sb.WriteString(" ")
		sb.WriteString(Ident(j.Table))
		sb.WriteString(" ON ")
		sb.WriteString(And(j.On).SQL(d, pb))
	}

	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(And(b.where).SQL(d, pb))
	}

	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(identList(b.groupBy))
	}

	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(identList(b.orderBy))
	}

	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(pb.Add(b.limit))
	} else if b.offset > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(d.NoLimit())
	}
	if b.offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(pb.Add(b.offset))
	}

	return sb.String(), pb.Params()
}

func identList(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = Ident(c)
	}
	return strings.Join(out, ", ")
}

func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InsertSQL builds an INSERT returning the generated id.
func InsertSQL(d Dialect, table string, data map[string]any) (string, []any) {
	if len(data) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", Ident(table), Ident("id")), nil
	}
	pb := d.NewParamBuilder()
	keys := sortedKeys(data)
	cols := make([]string, len(keys))
	phs := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = Ident(k)
		phs[i] = pb.Add(data[k])
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		Ident(table), strings.Join(cols, ", "), strings.Join(phs, ", "), Ident("id"))
	return sql, pb.Params()
}

// UpdateSQL builds an UPDATE by id. Columns listed in nowColumns are set to the
// dialect's current timestamp.
func UpdateSQL(d Dialect, table string, id any, data map[string]any, nowColumns ...string) (string, []any) {
	pb := d.NewParamBuilder()
	var sets []string
	for _, k := range sortedKeys(data) {
		sets = append(sets, fmt.Sprintf("%s = %s", Ident(k), pb.Add(data[k])))
	}
	for _, c := range nowColumns {
		sets = append(sets, fmt.Sprintf("%s = %s", Ident(c), d.NowExpr()))
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		Ident(table), strings.Join(sets, ", "), Ident("id"), pb.Add(id))
	return sql, pb.Params()
}

// DeleteSQL builds a DELETE by id.
func DeleteSQL(d Dialect, table string, id any) (string, []any) {
	pb := d.NewParamBuilder()
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", Ident(table), Ident("id"), pb.Add(id))
	return sql, pb.Params()
}

// UpsertSQL builds an insert that merges the non-key columns on conflict.
func UpsertSQL(d Dialect, table string, data map[string]any, conflict []string) (string, []any) {
	pb := d.NewParamBuilder()
	keys := sortedKeys(data)
	isKey := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		isKey[c] = true
	}

	cols := make([]string, len(keys))
	phs := make([]string, len(keys))
	var sets []string
	for i, k := range keys {
		cols[i] = Ident(k)
		phs[i] = pb.Add(data[k])
		if !isKey[k] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", Ident(k), Ident(k)))
		}
	}

	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		Ident(table), strings.Join(cols, ", "), strings.Join(phs, ", "), identList(conflict), action)
	return sql, pb.Params()
}

// CountAlias is the column name count projections are returned under.
const CountAlias = "count"

// CountExpr returns COUNT(*) or COUNT(DISTINCT column) aliased as count.
func CountExpr(distinctColumn string) string {
	if distinctColumn == "" {
		return "COUNT(*) AS " + Ident(CountAlias)
	}
	return fmt.Sprintf("COUNT(DISTINCT %s) AS %s", Ident(distinctColumn), Ident(CountAlias))
}

// ToInt64 converts a scanned numeric value to int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), n == float64(int64(n))
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
