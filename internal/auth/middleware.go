package auth

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lex1olnk/mang2/internal/engine"
	"github.com/lex1olnk/mang2/internal/instrument"
)

// Middleware attaches a RequestContext to every request. A request without an
// Authorization header is anonymous; a malformed or expired token is rejected.
func Middleware(e *engine.Engine, secret, userModel string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var userID int64
		if header := c.Get("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return engine.UnauthorizedError("Invalid auth header format")
			}
			id, err := ParseAccessToken(parts[1], secret)
			if err != nil {
				return engine.UnauthorizedError("Invalid or expired token")
			}
			userID = id
			c.SetUserContext(instrument.WithActorID(c.UserContext(), strconv.FormatInt(id, 10)))
		}

		c.Locals(engine.ActorKey, NewRequestContext(e, userModel, userID))
		return c.Next()
	}
}

// GetRequestContext extracts the RequestContext from a Fiber context.
func GetRequestContext(c *fiber.Ctx) *RequestContext {
	rc, _ := c.Locals(engine.ActorKey).(*RequestContext)
	return rc
}
