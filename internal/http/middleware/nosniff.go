package middleware

import "github.com/gofiber/fiber/v2"

// NoSniff marks every response with X-Content-Type-Options: nosniff so browsers do not guess a
// content type from the bytes of a download.
func NoSniff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
		return c.Next()
	}
}
