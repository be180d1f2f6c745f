package engine

import (
	"context"
	"fmt"

	"github.com/lex1olnk/mang2/internal/instrument"
	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

// PublicRead overrides a model's read rule so any actor can read. Mutations
// use it to re-fetch the row they just wrote.
var PublicRead = &metadata.AccessRule{Kind: metadata.AccessPublic}

// Join is an explicit join with one key pair. An empty Kind is a right join.
type Join struct {
	Kind  store.JoinKind
	Table string
	Left  string
	Right string
}

// Options tune one read.
type Options struct {
	Actor *metadata.Actor
	// Access replaces the model's read rule.
	Access *metadata.AccessRule
	Limit  int
	Offset int
	// With names relations to attach, a "-count" suffix attaches a count instead.
	With []string
	// Table reads from another table than the model's, e.g. an aggregate view.
	Table string
	Joins []Join
	// Columns are extra raw projections added after "<table>".*.
	Columns []string
}

func (o Options) readRule(m *metadata.Model) metadata.AccessRule {
	if o.Access != nil {
		return *o.Access
	}
	return m.Rule(metadata.ActionRead)
}

// selectQuery assembles the scoped base query. scoped is true when a
// delegated read rule was folded in as joins.
func (e *Engine) selectQuery(m *metadata.Model, filter any, opts Options) (sb *store.SelectBuilder, scoped bool, err error) {
	check := decide(opts.readRule(m), opts.Actor)
	if check.Decision == Denied {
		return nil, false, AccessDeniedError(m.Name, metadata.ActionRead)
	}

	table := m.Table
	if opts.Table != "" {
		table = opts.Table
	}
	pred, err := CompileFilter(filter, table)
	if err != nil {
		return nil, false, err
	}

	sb = store.Select(table).Where(pred)
	for _, j := range opts.Joins {
		kind := j.Kind
		if kind == "" {
			kind = store.RightJoin
		}
		sb.Join(kind, j.Table, store.ColumnsEq{Left: j.Left, Right: j.Right})
	}
	if opts.Limit > 0 {
		sb.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		sb.Offset(opts.Offset)
	}

	if check.Decision == NeedsOwnershipCheck {
		if err := e.applyReadScope(sb, m, check.Rule, opts.Actor); err != nil {
			return nil, false, err
		}
		scoped = true
	}
	return sb, scoped, nil
}

// Find returns the rows of model name matching filter, with opts.With attached.
func (e *Engine) Find(ctx context.Context, name string, filter any, opts Options) ([]map[string]any, error) {
	m, err := e.GetModel(name)
	if err != nil {
		return nil, err
	}
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "query", "find")
	defer span.End()
	span.SetEntity(m.Name, "")

	rows, err := e.find(ctx, m, filter, opts)
	if err != nil {
		span.SetStatus("error")
		return nil, err
	}
	span.SetMetadata("rows", len(rows))
	return rows, nil
}

func (e *Engine) find(ctx context.Context, m *metadata.Model, filter any, opts Options) ([]map[string]any, error) {
	sb, scoped, err := e.selectQuery(m, filter, opts)
	if err != nil {
		return nil, err
	}
	if scoped {
		sb.Distinct()
	}
	for _, col := range opts.Columns {
		sb.AddColumn(col)
	}
	sb.OrderBy(sb.Table() + "." + metadata.IDField)

	sqlStr, args := sb.Build(e.store.Dialect)
	rows, err := store.QueryRows(ctx, e.store.DB, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.Name, err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	if e.store.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans(rows, m.BooleanProperties())
	}
	store.NormalizeTimestamps(rows, m.TimestampProperties())

	if len(opts.With) > 0 {
		if err := e.resolve(ctx, m, rows, opts.With, opts.Actor); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// FindOne returns the single row matching filter, or nil when nothing matches.
// More than one match is an internal error.
func (e *Engine) FindOne(ctx context.Context, name string, filter any, opts Options) (map[string]any, error) {
	m, err := e.GetModel(name)
	if err != nil {
		return nil, err
	}
	return e.findOne(ctx, m, filter, opts)
}

func (e *Engine) findOne(ctx context.Context, m *metadata.Model, filter any, opts Options) (map[string]any, error) {
	if opts.Limit == 0 {
		opts.Limit = 2
	}
	rows, err := e.find(ctx, m, filter, opts)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	}
	return nil, fmt.Errorf("findOne %s: filter matched %d rows", m.Name, len(rows))
}

// Count returns the number of rows of model name visible under opts.
func (e *Engine) Count(ctx context.Context, name string, filter any, opts Options) (int64, error) {
	m, err := e.GetModel(name)
	if err != nil {
		return 0, err
	}
	counts, err := e.count(ctx, m, filter, opts, "")
	if err != nil {
		return 0, err
	}
	return counts[""], nil
}

// count projects COUNT, grouped by groupBy when set. The result is keyed by
// the group value, or by "" when ungrouped.
func (e *Engine) count(ctx context.Context, m *metadata.Model, filter any, opts Options, groupBy string) (map[string]int64, error) {
	opts.Limit, opts.Offset = 0, 0
	sb, scoped, err := e.selectQuery(m, filter, opts)
	if err != nil {
		return nil, err
	}

	distinct := ""
	if scoped {
		distinct = sb.Table() + "." + metadata.IDField
	}
	cols := []string{store.CountExpr(distinct)}
	if groupBy != "" {
		cols = append(cols, store.Ident(groupBy)+" AS "+store.Ident(groupAlias))
		sb.GroupBy(groupBy)
	}
	sb.Columns(cols...)

	sqlStr, args := sb.Build(e.store.Dialect)
	rows, err := store.QueryRows(ctx, e.store.DB, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", m.Name, err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		n, ok := store.ToInt64(row[store.CountAlias])
		if !ok {
			return nil, fmt.Errorf("count %s: unexpected count value %v", m.Name, row[store.CountAlias])
		}
		key := ""
		if groupBy != "" {
			key = keyOf(row[groupAlias])
		}
		out[key] = n
	}
	return out, nil
}

const groupAlias = "_group"
