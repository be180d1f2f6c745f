package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

// CountSuffix requests the number of related rows instead of the rows.
const CountSuffix = "-count"

const pivotOwnerAlias = "_pivot_owner_id"

type include struct {
	key   string
	rel   *metadata.Relation
	count bool
}

// resolve attaches the requested relations to rows. Every relation costs one
// batched query; the queries run concurrently and nothing is assigned until
// all of them have succeeded.
func (e *Engine) resolve(ctx context.Context, m *metadata.Model, rows []map[string]any, with []string, actor *metadata.Actor) error {
	includes := make([]include, 0, len(with))
	for _, key := range with {
		name, count := strings.CutSuffix(key, CountSuffix)
		rel := m.Relation(name)
		if rel == nil {
			return UnknownReferenceError(m.Name, name)
		}
		if count && !rel.Countable() {
			return UnknownPropertyError(m.Name, key)
		}
		includes = append(includes, include{key: key, rel: rel, count: count})
	}
	if len(rows) == 0 {
		return nil
	}

	assigns := make([]func(), len(includes))
	g, gctx := errgroup.WithContext(ctx)
	for i, inc := range includes {
		g.Go(func() error {
			assign, err := e.load(gctx, m, inc, rows, actor)
			if err != nil {
				return fmt.Errorf("load %s.%s: %w", m.Name, inc.key, err)
			}
			assigns[i] = assign
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, assign := range assigns {
		assign()
	}
	return nil
}

func (e *Engine) load(ctx context.Context, m *metadata.Model, inc include, rows []map[string]any, actor *metadata.Actor) (func(), error) {
	target, err := e.GetModel(inc.rel.Target)
	if err != nil {
		return nil, err
	}
	opts := Options{Actor: actor}

	switch {
	case inc.count && inc.rel.IsHasMany():
		fk := target.Table + "." + inc.rel.ForeignKey
		counts, err := e.count(ctx, target, map[string]any{fk: collectValues(rows, metadata.IDField)}, opts, fk)
		if err != nil {
			return nil, err
		}
		return assignCounts(rows, inc.key, counts), nil

	case inc.count:
		ownerCol, join := pivotLink(m, target, inc.rel)
		opts.Joins = []Join{join}
		counts, err := e.count(ctx, target, map[string]any{ownerCol: collectValues(rows, metadata.IDField)}, opts, ownerCol)
		if err != nil {
			return nil, err
		}
		return assignCounts(rows, inc.key, counts), nil

	case inc.rel.IsBelongsTo():
		ids := collectValues(rows, inc.rel.ForeignKey)
		byID := map[string]map[string]any{}
		if len(ids) > 0 {
			parents, err := e.find(ctx, target, map[string]any{metadata.IDField: ids}, opts)
			if err != nil {
				return nil, err
			}
			for _, p := range parents {
				byID[keyOf(p[metadata.IDField])] = p
			}
		}
		return func() {
			for _, row := range rows {
				if parent, ok := byID[keyOf(row[inc.rel.ForeignKey])]; ok {
					row[inc.key] = parent
				} else {
					row[inc.key] = nil
				}
			}
		}, nil

	case inc.rel.IsHasMany():
		children, err := e.find(ctx, target, map[string]any{inc.rel.ForeignKey: collectValues(rows, metadata.IDField)}, opts)
		if err != nil {
			return nil, err
		}
		return assignGroups(rows, inc.key, groupBy(children, inc.rel.ForeignKey, false)), nil

	default:
		ownerCol, join := pivotLink(m, target, inc.rel)
		opts.Joins = []Join{join}
		opts.Columns = []string{store.Ident(ownerCol) + " AS " + store.Ident(pivotOwnerAlias)}
		linked, err := e.find(ctx, target, map[string]any{ownerCol: collectValues(rows, metadata.IDField)}, opts)
		if err != nil {
			return nil, err
		}
		return assignGroups(rows, inc.key, groupBy(linked, pivotOwnerAlias, true)), nil
	}
}

// pivotLink returns the pivot column holding the owner id and the join from
// the target table to the pivot.
func pivotLink(owner, target *metadata.Model, rel *metadata.Relation) (string, Join) {
	return rel.Pivot + "." + owner.PivotKey(), Join{
		Kind:  store.InnerJoin,
		Table: rel.Pivot,
		Left:  rel.Pivot + "." + target.PivotKey(),
		Right: target.Table + "." + metadata.IDField,
	}
}

func groupBy(rows []map[string]any, field string, drop bool) map[string][]map[string]any {
	grouped := make(map[string][]map[string]any)
	for _, row := range rows {
		k := keyOf(row[field])
		if drop {
			delete(row, field)
		}
		grouped[k] = append(grouped[k], row)
	}
	return grouped
}

func assignGroups(rows []map[string]any, key string, grouped map[string][]map[string]any) func() {
	return func() {
		for _, row := range rows {
			related := grouped[keyOf(row[metadata.IDField])]
			if related == nil {
				related = []map[string]any{}
			}
			row[key] = related
		}
	}
}

func assignCounts(rows []map[string]any, key string, counts map[string]int64) func() {
	return func() {
		for _, row := range rows {
			row[key] = counts[keyOf(row[metadata.IDField])]
		}
	}
}

func collectValues(rows []map[string]any, field string) []any {
	seen := make(map[string]bool)
	values := []any{}
	for _, row := range rows {
		v := row[field]
		if v == nil {
			continue
		}
		k := keyOf(v)
		if !seen[k] {
			seen[k] = true
			values = append(values, v)
		}
	}
	return values
}

// keyOf normalises ids so 7, int64(7) and 7.0 index the same entry.
func keyOf(v any) string {
	if n, ok := store.ToInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%v", v)
}
