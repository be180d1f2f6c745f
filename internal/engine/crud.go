package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/lex1olnk/mang2/internal/instrument"
	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

// Create inserts a new row of model name and returns it as stored.
func (e *Engine) Create(ctx context.Context, name string, data map[string]any, actor *metadata.Actor) (map[string]any, error) {
	m, err := e.GetModel(name)
	if err != nil {
		return nil, err
	}
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "crud", "create")
	defer span.End()
	span.SetEntity(m.Name, "")

	if StaticCheck(m, metadata.ActionCreate, actor).Decision != Allowed {
		return nil, AccessDeniedError(m.Name, metadata.ActionCreate)
	}
	if m.InjectOwner && actor == nil {
		return nil, AccessDeniedError(m.Name, metadata.ActionCreate)
	}

	if _, ok := data[metadata.IDField]; ok {
		return nil, fieldError(metadata.IDField, "immutable", "id is assigned by the server")
	}
	record, err := mapInput(m, data)
	if err != nil {
		return nil, err
	}
	if vs := m.Validate(record, true); len(vs) > 0 {
		return nil, violationsError(vs)
	}
	if m.InjectOwner {
		record[metadata.OwnerField] = actor.ID
	}

	sqlStr, args := store.InsertSQL(e.store.Dialect, m.Table, record)
	row, err := store.QueryRow(ctx, e.store.DB, sqlStr, args...)
	if err != nil {
		return nil, e.writeError(m, err)
	}

	id := row[metadata.IDField]
	span.SetEntity(m.Name, keyOf(id))
	instrument.GetInstrumenter(ctx).EmitBusinessEvent(ctx, "create", m.Name, keyOf(id), nil)
	return e.refetch(ctx, m, id, actor)
}

// Update applies a partial update to row id of model name and returns the
// row as stored.
func (e *Engine) Update(ctx context.Context, name string, id any, data map[string]any, actor *metadata.Actor) (map[string]any, error) {
	patch := make(map[string]any, len(data))
	for k, v := range data {
		if k != metadata.IDField {
			patch[k] = v
		}
	}
	if len(patch) == 0 {
		return nil, fieldError("", "empty", "update payload is empty")
	}

	m, err := e.GetModel(name)
	if err != nil {
		return nil, err
	}
	rowID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "crud", "update")
	defer span.End()
	span.SetEntity(m.Name, keyOf(rowID))

	existing, err := e.fetch(ctx, m, rowID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, m, metadata.ActionUpdate, actor, existing); err != nil {
		return nil, err
	}

	record, err := mapInput(m, patch)
	if err != nil {
		return nil, err
	}
	if vs := m.Validate(record, false); len(vs) > 0 {
		return nil, violationsError(vs)
	}

	var stamp []string
	if m.HasProperty(metadata.UpdatedAtField) {
		stamp = append(stamp, metadata.UpdatedAtField)
	}
	if len(record) > 0 || len(stamp) > 0 {
		sqlStr, args := store.UpdateSQL(e.store.Dialect, m.Table, rowID, record, stamp...)
		if _, err := store.Exec(ctx, e.store.DB, sqlStr, args...); err != nil {
			return nil, e.writeError(m, err)
		}
	}

	instrument.GetInstrumenter(ctx).EmitBusinessEvent(ctx, "update", m.Name, keyOf(rowID), nil)
	return e.refetch(ctx, m, rowID, actor)
}

// Delete removes row id of model name.
func (e *Engine) Delete(ctx context.Context, name string, id any, actor *metadata.Actor) error {
	m, err := e.GetModel(name)
	if err != nil {
		return err
	}
	rowID, err := parseID(id)
	if err != nil {
		return err
	}
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "crud", "delete")
	defer span.End()
	span.SetEntity(m.Name, keyOf(rowID))

	existing, err := e.fetch(ctx, m, rowID)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, m, metadata.ActionDelete, actor, existing); err != nil {
		return err
	}

	sqlStr, args := store.DeleteSQL(e.store.Dialect, m.Table, rowID)
	if _, err := store.Exec(ctx, e.store.DB, sqlStr, args...); err != nil {
		return fmt.Errorf("delete %s/%d: %w", m.Name, rowID, err)
	}
	instrument.GetInstrumenter(ctx).EmitBusinessEvent(ctx, "delete", m.Name, keyOf(rowID), nil)
	return nil
}

func (e *Engine) authorize(ctx context.Context, m *metadata.Model, action metadata.Action, actor *metadata.Actor, entity map[string]any) error {
	ok, err := e.ResolvedCheck(ctx, m, action, actor, entity)
	if err != nil {
		return err
	}
	if !ok {
		return AccessDeniedError(m.Name, action)
	}
	return nil
}

// fetch loads a row by id without read scoping, for the mutation gates.
func (e *Engine) fetch(ctx context.Context, m *metadata.Model, id int64) (map[string]any, error) {
	sqlStr, args := store.Select(m.Table).
		Where(store.Eq{Column: m.Table + "." + metadata.IDField, Value: id}).
		Build(e.store.Dialect)
	row, err := store.QueryRow(ctx, e.store.DB, sqlStr, args...)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundError(m.Name, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%d: %w", m.Name, id, err)
	}
	return row, nil
}

func (e *Engine) refetch(ctx context.Context, m *metadata.Model, id any, actor *metadata.Actor) (map[string]any, error) {
	row, err := e.findOne(ctx, m, map[string]any{metadata.IDField: id}, Options{Actor: actor, Access: PublicRead})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("refetch %s/%v: row vanished", m.Name, id)
	}
	return row, nil
}

func (e *Engine) writeError(m *metadata.Model, err error) error {
	if errors.Is(store.MapError(e.store.Dialect, err), store.ErrUniqueViolation) {
		return fieldError("", "unique", "duplicate value")
	}
	return fmt.Errorf("write %s: %w", m.Name, err)
}

// mapInput turns client fields into columns. A belongsTo reference is stored
// through its foreign key, taken from the referenced entity's id.
func mapInput(m *metadata.Model, data map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	record := make(map[string]any, len(data))
	for _, k := range keys {
		v := data[k]
		if k == metadata.UpdatedAtField {
			return nil, fieldError(k, "managed", "updated_at is managed by the server")
		}
		if rel := m.Relation(k); rel != nil {
			if !rel.IsBelongsTo() {
				return nil, UnknownPropertyError(m.Name, k)
			}
			ref, err := referenceID(k, v)
			if err != nil {
				return nil, err
			}
			record[rel.ForeignKey] = ref
			continue
		}
		prop, ok := m.Property(k)
		if !ok {
			return nil, UnknownPropertyError(m.Name, k)
		}
		if prop.ReadOnly {
			return nil, fieldError(k, "readonly", "property is read-only")
		}
		record[k] = v
	}
	return record, nil
}

func referenceID(field string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	ref, ok := v.(map[string]any)
	if !ok {
		return nil, fieldError(field, "reference", "must be an object with an id")
	}
	id, err := parseID(ref[metadata.IDField])
	if err != nil {
		return nil, fieldError(field, "reference", "must be an object with an id")
	}
	return id, nil
}

// parseID accepts a positive integer id in any of the shapes clients send.
func parseID(v any) (int64, error) {
	var (
		n  int64
		ok bool
	)
	switch id := v.(type) {
	case string:
		parsed, err := strconv.ParseInt(id, 10, 64)
		n, ok = parsed, err == nil
	default:
		n, ok = store.ToInt64(v)
	}
	if !ok || n <= 0 {
		return 0, fieldError(metadata.IDField, "type", "must be a positive integer")
	}
	return n, nil
}
