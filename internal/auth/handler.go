package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lex1olnk/mang2/internal/engine"
	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

// PasswordField is the user column holding the bcrypt hash.
const PasswordField = "password_hash"

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	engine    *engine.Engine
	jwtSecret string
	userModel string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(e *engine.Engine, jwtSecret, userModel string) *AuthHandler {
	return &AuthHandler{engine: e, jwtSecret: jwtSecret, userModel: userModel}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.BadRequestError("Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	user, err := h.engine.FindOne(c.UserContext(), h.userModel,
		map[string]any{"email": body.Email},
		engine.Options{Access: engine.PublicRead})
	if err != nil {
		return err
	}
	if user == nil {
		return engine.UnauthorizedError("Invalid email or password")
	}

	hash, _ := user[PasswordField].(string)
	if !CheckPassword(body.Password, hash) {
		return engine.UnauthorizedError("Invalid email or password")
	}

	id, ok := store.ToInt64(user[metadata.IDField])
	if !ok {
		return engine.UnauthorizedError("Invalid email or password")
	}
	token, err := GenerateAccessToken(id, h.jwtSecret)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"access_token": token}})
}

// Context handles GET /api/context: the current user, or null when anonymous.
func (h *AuthHandler) Context(c *fiber.Ctx) error {
	rc := GetRequestContext(c)
	if rc == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	user, err := rc.User(c.UserContext())
	if err != nil {
		return err
	}
	if user == nil {
		return c.JSON(fiber.Map{"data": nil})
	}

	name := h.userModel
	if base, ok := strings.CutSuffix(name, metadata.FullSuffix); ok {
		if _, known := h.engine.Registry().Get(base); known {
			name = base
		}
	}
	data, err := h.engine.GetExportData(name, user)
	if err != nil {
		return err
	}
	out := data.(map[string]any)
	if role, ok := user[RoleField]; ok {
		out[RoleField] = role
	}
	return c.JSON(fiber.Map{"data": out})
}

// RegisterAuthRoutes registers the session routes. They must be mounted
// before the model routes.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler) {
	api := app.Group("/api")
	api.Post("/auth/login", h.Login)
	api.Get("/context", h.Context)
}
