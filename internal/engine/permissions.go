package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

type Decision int

const (
	Denied Decision = iota
	Allowed
	NeedsOwnershipCheck
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case NeedsOwnershipCheck:
		return "needs-ownership-check"
	}
	return "denied"
}

// Check is the outcome of a static access check. Rule carries the delegation
// to resolve when Decision is NeedsOwnershipCheck.
type Check struct {
	Decision Decision
	Rule     metadata.AccessRule
}

// StaticCheck decides an action without touching the store.
func StaticCheck(m *metadata.Model, action metadata.Action, actor *metadata.Actor) Check {
	return decide(m.Rule(action), actor)
}

func decide(rule metadata.AccessRule, actor *metadata.Actor) Check {
	if actor.IsAdmin() {
		return Check{Decision: Allowed, Rule: rule}
	}
	switch rule.Kind {
	case metadata.AccessPublic:
		return Check{Decision: Allowed, Rule: rule}
	case metadata.AccessRoleList:
		if actor != nil && rule.AllowsRole(actor.Role) {
			return Check{Decision: Allowed, Rule: rule}
		}
		if actor != nil && rule.Delegation != nil {
			return Check{Decision: NeedsOwnershipCheck, Rule: rule}
		}
	case metadata.AccessDelegated:
		if actor != nil {
			return Check{Decision: NeedsOwnershipCheck, Rule: rule}
		}
	}
	return Check{Decision: Denied, Rule: rule}
}

// ResolvedCheck decides an action on one stored entity. Ownership is direct
// (owner column equals the actor) or inherited through the delegation's
// belongsTo relation; otherwise a pivot row for (entity, actor) must carry the
// action flag.
func (e *Engine) ResolvedCheck(ctx context.Context, m *metadata.Model, action metadata.Action, actor *metadata.Actor, entity map[string]any) (bool, error) {
	check := StaticCheck(m, action, actor)
	switch check.Decision {
	case Allowed:
		return true, nil
	case Denied:
		return false, nil
	}
	if actor == nil {
		return false, nil
	}

	d := check.Rule.Delegation
	if d == nil {
		d = &metadata.Delegation{}
	}
	if d.Inherit != "" {
		owned, err := e.ownsParent(ctx, m, d.Inherit, actor, entity)
		if err != nil || owned {
			return owned, err
		}
	} else if m.HasOwner() && sameID(entity[metadata.OwnerField], actor.ID) {
		return true, nil
	}

	if d.Pivot == "" {
		return false, nil
	}

	sb := store.Select(m.Table).
		Columns(store.Ident(m.Table+"."+metadata.IDField)).
		Join(store.InnerJoin, d.Pivot, pivotJoin(m, d, m.Table)).
		Where(store.Eq{Column: m.Table + "." + metadata.IDField, Value: entity[metadata.IDField]}).
		Where(store.Eq{Column: d.Pivot + "." + metadata.PivotUserField, Value: actor.ID}).
		Where(store.Eq{Column: d.Pivot + "." + string(action), Value: true}).
		Limit(1)
	return e.exists(ctx, sb)
}

func (e *Engine) ownsParent(ctx context.Context, m *metadata.Model, inherit string, actor *metadata.Actor, entity map[string]any) (bool, error) {
	rel := m.Relation(inherit)
	fk := entity[rel.ForeignKey]
	if fk == nil {
		return false, nil
	}
	parent, err := e.GetModel(rel.Target)
	if err != nil {
		return false, err
	}
	sb := store.Select(parent.Table).
		Columns(store.Ident(parent.Table+"."+metadata.IDField)).
		Where(store.Eq{Column: parent.Table + "." + metadata.IDField, Value: fk}).
		Where(store.Eq{Column: parent.Table + "." + metadata.OwnerField, Value: actor.ID}).
		Limit(1)
	return e.exists(ctx, sb)
}

func (e *Engine) exists(ctx context.Context, sb *store.SelectBuilder) (bool, error) {
	sqlStr, args := sb.Build(e.store.Dialect)
	_, err := store.QueryRow(ctx, e.store.DB, sqlStr, args...)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("access check: %w", err)
	}
	return true, nil
}

// applyReadScope folds a delegated read rule into sb: the parent is left-joined
// for inherited ownership, the pivot is left-joined on the actor's grant row,
// and the row must match one of the ownership disjuncts. Columns of the model
// are read from sb's table, which may override m.Table.
func (e *Engine) applyReadScope(sb *store.SelectBuilder, m *metadata.Model, rule metadata.AccessRule, actor *metadata.Actor) error {
	d := rule.Delegation
	if d == nil {
		d = &metadata.Delegation{}
	}
	table := sb.Table()

	var owners store.Or
	if d.Inherit != "" {
		rel := m.Relation(d.Inherit)
		parent, err := e.GetModel(rel.Target)
		if err != nil {
			return err
		}
		sb.Join(store.LeftJoin, parent.Table, store.ColumnsEq{
			Left:  parent.Table + "." + metadata.IDField,
			Right: table + "." + rel.ForeignKey,
		})
		owners = append(owners, store.Eq{Column: parent.Table + "." + metadata.OwnerField, Value: actor.ID})
	} else if m.HasOwner() {
		owners = append(owners, store.Eq{Column: table + "." + metadata.OwnerField, Value: actor.ID})
	}

	if d.Pivot != "" {
		sb.Join(store.LeftJoin, d.Pivot,
			pivotJoin(m, d, table),
			store.Eq{Column: d.Pivot + "." + metadata.PivotUserField, Value: actor.ID})
		owners = append(owners, store.Eq{Column: d.Pivot + "." + string(metadata.ActionRead), Value: true})
	}

	sb.Where(owners)
	return nil
}

// pivotJoin links the pivot to the model read from table, by default on
// <pivot>.<model table>_id = <table>.id.
func pivotJoin(m *metadata.Model, d *metadata.Delegation, table string) store.Predicate {
	if len(d.PivotCondition) == 2 {
		return store.ColumnsEq{
			Left:  retable(d.PivotCondition[0], m.Table, table),
			Right: retable(d.PivotCondition[1], m.Table, table),
		}
	}
	return store.ColumnsEq{
		Left:  d.Pivot + "." + m.PivotKey(),
		Right: table + "." + metadata.IDField,
	}
}

// retable moves a column qualified with from onto table.
func retable(column, from, table string) string {
	if rest, ok := strings.CutPrefix(column, from+"."); ok {
		return table + "." + rest
	}
	return column
}

// pivotKey returns the pivot column that identifies the entity and the
// entity column whose value it holds.
func pivotKey(m *metadata.Model, d *metadata.Delegation) (pivotCol, entityCol string, ok bool) {
	if len(d.PivotCondition) != 2 {
		return m.PivotKey(), metadata.IDField, true
	}
	left, right := d.PivotCondition[0], d.PivotCondition[1]
	if strings.HasPrefix(right, d.Pivot+".") {
		left, right = right, left
	}
	if !strings.HasPrefix(left, d.Pivot+".") || !strings.HasPrefix(right, m.Table+".") {
		return "", "", false
	}
	return strings.TrimPrefix(left, d.Pivot+"."), strings.TrimPrefix(right, m.Table+"."), true
}

func sameID(a any, id int64) bool {
	n, ok := store.ToInt64(a)
	return ok && n == id
}
