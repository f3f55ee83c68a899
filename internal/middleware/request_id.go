package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/utils"
)

const RequestIDKey = "X-Request-ID"

// NewRequestIDMiddleware honours an incoming X-Request-ID and otherwise
// assigns a ULID, echoing it on the response.
func NewRequestIDMiddleware() fiber.Handler {
	u := utils.New()

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)
		if requestID == "" {
			requestID, _ = u.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}
