package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// ShutdownGrace bounds how long cmd/gateway waits for in-flight
// requests to finish on SIGTERM before forcing the listener closed.
const ShutdownGrace = 10 * time.Second

// DefaultErrorHandler renders a handler panic/return error that never
// went through WithError as a JSON ResponseError rather than Fiber's
// default plain-text body: a *fiber.Error (routing errors, fiber's own
// body-parse failures) keeps its own status code; any other error goes
// through WithError.
func DefaultErrorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return jsonErr(c, fe.Code, "", "Request Error", fe.Message)
	}

	return WithError(c, err)
}
