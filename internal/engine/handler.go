package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lex1olnk/mang2/internal/config"
	"github.com/lex1olnk/mang2/internal/metadata"
)

// ActorKey is the fiber local holding the request's metadata.ActorSource.
const ActorKey = "actor"

type Handler struct {
	engine     *Engine
	pagination config.PaginationConfig
}

func NewHandler(e *Engine, pagination config.PaginationConfig) *Handler {
	return &Handler{engine: e, pagination: pagination}
}

// List handles GET /api/:type
func (h *Handler) List(c *fiber.Ctx) error {
	m, err := h.resolveModel(c.Params("type"), true)
	if err != nil {
		return err
	}
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if actor.IsAdmin() {
		if full, ok := h.engine.Registry().Get(m.Name + metadata.FullSuffix); ok {
			m = full
		}
	}

	filter, err := parseFilter(c.Query("filter"))
	if err != nil {
		return err
	}

	page := 1
	if p := c.Query("page"); p != "" {
		if page, err = strconv.Atoi(p); err != nil || page < 1 {
			return BadRequestError("page must be a positive integer")
		}
	}
	pageSize, maxPageSize := h.pageSizes(m)
	if ps := c.Query("pageSize"); ps != "" {
		if pageSize, err = strconv.Atoi(ps); err != nil || pageSize < 1 {
			return BadRequestError("pageSize must be a positive integer")
		}
	}
	if pageSize > maxPageSize {
		return BadRequestError(fmt.Sprintf("pageSize must not exceed %d", maxPageSize))
	}

	ctx := c.UserContext()
	total, err := h.engine.Count(ctx, m.Name, filter, Options{Actor: actor})
	if err != nil {
		return err
	}
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))

	data := any([]any{})
	if page <= pages {
		rows, err := h.engine.Find(ctx, m.Name, filter, Options{
			Actor:  actor,
			Limit:  pageSize,
			Offset: (page - 1) * pageSize,
			With:   parseWith(c.Query("with")),
		})
		if err != nil {
			return err
		}
		if data, err = h.engine.GetExportData(m.Name, rows); err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{
		"data": data,
		"pager": fiber.Map{
			"total":   pages,
			"size":    pageSize,
			"current": page,
		},
	})
}

// Get handles GET /api/:type/:id
func (h *Handler) Get(c *fiber.Ctx) error {
	m, err := h.resolveModel(c.Params("type"), false)
	if err != nil {
		return err
	}
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Params("id"))
	if err != nil {
		return err
	}

	row, err := h.engine.FindOne(c.UserContext(), m.Name, map[string]any{metadata.IDField: id}, Options{
		Actor: actor,
		With:  parseWith(c.Query("with")),
	})
	if err != nil {
		return err
	}
	if row == nil {
		return NotFoundError(m.Name, id)
	}
	return h.respond(c, fiber.StatusOK, m, row)
}

// Create handles POST /api/:type
func (h *Handler) Create(c *fiber.Ctx) error {
	m, err := h.resolveModel(c.Params("type"), true)
	if err != nil {
		return err
	}
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	body, err := parseBody(c)
	if err != nil {
		return err
	}

	row, err := h.engine.Create(c.UserContext(), m.Name, body, actor)
	if err != nil {
		return err
	}
	return h.respond(c, fiber.StatusCreated, m, row)
}

// Update handles PATCH /api/:type/:id
func (h *Handler) Update(c *fiber.Ctx) error {
	m, err := h.resolveModel(c.Params("type"), false)
	if err != nil {
		return err
	}
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	body, err := parseBody(c)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return BadRequestError("Empty update payload")
	}

	row, err := h.engine.Update(c.UserContext(), m.Name, c.Params("id"), body, actor)
	if err != nil {
		return err
	}
	return h.respond(c, fiber.StatusOK, m, row)
}

// Delete handles DELETE /api/:type/:id
func (h *Handler) Delete(c *fiber.Ctx) error {
	m, err := h.resolveModel(c.Params("type"), false)
	if err != nil {
		return err
	}
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if err := h.engine.Delete(c.UserContext(), m.Name, id, actor); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

// Grant handles POST /api/grant/user/:userId/:type/:id
func (h *Handler) Grant(c *fiber.Ctx) error {
	m, err := h.resolveModel(c.Params("type"), false)
	if err != nil {
		return err
	}
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	body, err := parseBody(c)
	if err != nil {
		return err
	}

	if err := h.engine.Grant(c.UserContext(), m.Name, c.Params("id"), c.Params("userId"), body, actor); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": body})
}

func (h *Handler) resolveModel(slug string, plural bool) (*metadata.Model, error) {
	reg := h.engine.Registry()
	var (
		m  *metadata.Model
		ok bool
	)
	if plural {
		m, ok = reg.ByPlural(slug)
	} else {
		m, ok = reg.BySingular(slug)
	}
	if !ok {
		return nil, UnknownModelError(slug)
	}
	return m, nil
}

func (h *Handler) pageSizes(m *metadata.Model) (size, limit int) {
	size, limit = m.Defaults.PageSize, m.Defaults.MaxPageSize
	if size == 0 {
		size = h.pagination.PageSize
	}
	if limit == 0 {
		limit = h.pagination.MaxPageSize
	}
	return size, limit
}

func (h *Handler) respond(c *fiber.Ctx, status int, m *metadata.Model, row map[string]any) error {
	data, err := h.engine.GetExportData(m.Name, row)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": data})
}

func actorFrom(c *fiber.Ctx) (*metadata.Actor, error) {
	src, ok := c.Locals(ActorKey).(metadata.ActorSource)
	if !ok || src == nil {
		return nil, nil
	}
	return src.Actor(c.UserContext())
}

func parseFilter(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := DecodeJSON([]byte(raw))
	if err != nil {
		return nil, MalformedFilterError("invalid JSON: %v", err)
	}
	return v, nil
}

func parseBody(c *fiber.Ctx) (map[string]any, error) {
	if len(c.Body()) == 0 {
		return map[string]any{}, nil
	}
	v, err := DecodeJSON(c.Body())
	if err != nil {
		return nil, BadRequestError("Invalid JSON body")
	}
	body, ok := v.(map[string]any)
	if !ok {
		return nil, BadRequestError("JSON body must be an object")
	}
	return body, nil
}

func parseWith(raw string) []string {
	var with []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			with = append(with, name)
		}
	}
	return with
}

// DecodeJSON decodes a JSON document, turning integral numbers into int64 and
// the rest into float64.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
	case []any:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
	}
	return v
}
