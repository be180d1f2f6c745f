package engine

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the model routes. Register fixed /api routes before
// calling it, since /api/:type matches any segment.
func RegisterRoutes(app *fiber.App, h *Handler) {
	api := app.Group("/api")

	api.Post("/grant/user/:userId/:type/:id", h.Grant)
	api.Get("/:type", h.List)
	api.Get("/:type/:id", h.Get)
	api.Post("/:type", h.Create)
	api.Patch("/:type/:id", h.Update)
	api.Delete("/:type/:id", h.Delete)
}

// ErrorHandler renders AppErrors with their status and hides everything else
// behind an opaque 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error: &AppError{Code: "HTTP_ERROR", Message: fiberErr.Message},
		})
	}

	log.Printf("ERROR: %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: &AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
