package instrument

import (
	"github.com/gofiber/fiber/v2"
)

// TraceHeader carries the trace id in and out of a request.
const TraceHeader = "X-Trace-ID"

// Middleware returns a Fiber middleware that traces each request: it
// propagates or generates a trace ID, opens a root HTTP span and puts the
// instrumenter on the request context for the engine.
func Middleware(inst Instrumenter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(TraceHeader)
		if traceID == "" {
			traceID = newUUID()
		}

		ctx := WithTraceID(c.UserContext(), traceID)
		ctx = WithInstrumenter(ctx, inst)
		ctx, span := inst.StartSpan(ctx, "http", "handler", "request")
		span.SetMetadata("method", c.Method())
		span.SetMetadata("path", c.Path())
		c.SetUserContext(ctx)
		c.Set(TraceHeader, traceID)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil && status < 400 {
			status = fiber.StatusInternalServerError
		}
		span.SetMetadata("status_code", status)
		if status >= 400 {
			span.SetStatus("error")
		} else {
			span.SetStatus("ok")
		}
		span.End()
		return err
	}
}
