package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/lex1olnk/mang2/internal/instrument"
	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

// Grant writes per-action flags for userID on row id of model name into the
// pivot tables the actions delegate to. The actor must itself hold grant on
// the row.
func (e *Engine) Grant(ctx context.Context, name string, id, userID any, flags map[string]any, actor *metadata.Actor) error {
	m, err := e.GetModel(name)
	if err != nil {
		return err
	}
	rowID, err := parseID(id)
	if err != nil {
		return err
	}
	subject, err := parseID(userID)
	if err != nil {
		return fieldError(metadata.PivotUserField, "type", "must be a positive integer")
	}
	if len(flags) == 0 {
		return fieldError("", "empty", "no actions to grant")
	}
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "crud", "grant")
	defer span.End()
	span.SetEntity(m.Name, keyOf(rowID))

	existing, err := e.fetch(ctx, m, rowID)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, m, metadata.ActionGrant, actor, existing); err != nil {
		return err
	}

	upserts, err := grantRows(m, existing, subject, flags)
	if err != nil {
		return err
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pivots := make([]string, 0, len(upserts))
	for pivot := range upserts {
		pivots = append(pivots, pivot)
	}
	sort.Strings(pivots)
	for _, pivot := range pivots {
		u := upserts[pivot]
		sqlStr, args := store.UpsertSQL(e.store.Dialect, pivot, u.values, []string{u.key, metadata.PivotUserField})
		if _, err := store.Exec(ctx, tx, sqlStr, args...); err != nil {
			return fmt.Errorf("grant %s/%d: %w", m.Name, rowID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	instrument.GetInstrumenter(ctx).EmitBusinessEvent(ctx, "grant", m.Name, keyOf(rowID), map[string]any{
		"user_id": subject,
		"flags":   flags,
	})
	return nil
}

type pivotUpsert struct {
	key    string
	values map[string]any
}

// grantRows validates every flag and groups them by pivot table.
func grantRows(m *metadata.Model, entity map[string]any, subject int64, flags map[string]any) (map[string]*pivotUpsert, error) {
	actions := make([]string, 0, len(flags))
	for a := range flags {
		actions = append(actions, a)
	}
	sort.Strings(actions)

	var details []ErrorDetail
	upserts := make(map[string]*pivotUpsert)
	for _, action := range actions {
		flag, ok := flags[action].(bool)
		if !ok {
			details = append(details, ErrorDetail{Field: action, Rule: "type", Message: "must be a boolean"})
			continue
		}
		if !metadata.IsAction(action) {
			details = append(details, ErrorDetail{Field: action, Rule: "unknown", Message: "unknown action"})
			continue
		}
		d := m.Rule(metadata.Action(action)).Delegation
		if d == nil || d.Pivot == "" {
			details = append(details, ErrorDetail{Field: action, Rule: "grant", Message: "cannot be assigned"})
			continue
		}
		key, entityCol, ok := pivotKey(m, d)
		if !ok || entity[entityCol] == nil {
			details = append(details, ErrorDetail{Field: action, Rule: "grant", Message: "cannot be assigned"})
			continue
		}

		u := upserts[d.Pivot]
		if u == nil {
			u = &pivotUpsert{key: key, values: map[string]any{
				key:                     entity[entityCol],
				metadata.PivotUserField: subject,
			}}
			upserts[d.Pivot] = u
		} else if u.key != key {
			details = append(details, ErrorDetail{Field: action, Rule: "grant", Message: "cannot be assigned"})
			continue
		}
		u.values[action] = flag
	}
	if len(details) > 0 {
		return nil, ValidationError(details)
	}
	return upserts, nil
}
