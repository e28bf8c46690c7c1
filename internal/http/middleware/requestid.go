package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"familyvault/internal/logging"
)

const (
	// RequestIDHeader is the header that carries the request id in and out.
	RequestIDHeader = "X-Request-ID"
	// RequestIDLocalKey is the fiber locals key holding the request id.
	RequestIDLocalKey = "request_id"
)

// RequestID reuses an incoming X-Request-ID or generates one, exposes it
// in locals and on the response, and puts it on the user context so
// backend calls made while serving the request carry the same id.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(RequestIDLocalKey, id)
		c.Set(RequestIDHeader, id)
		c.SetUserContext(logging.WithRequestID(c.UserContext(), id))
		return c.Next()
	}
}

// RequestIDFrom returns the id stored by RequestID.
func RequestIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(RequestIDLocalKey).(string)
	return id
}
