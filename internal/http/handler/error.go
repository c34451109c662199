package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"medvault/internal/http/middleware"
	"medvault/internal/service"
)

// envelope is the uniform response body. Successful responses set Data (and Total for lists);
// failures set Error, Code and RequestID.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Total     *int   `json:"total,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(envelope{
		Success:   false,
		Error:     message,
		Code:      code,
		RequestID: requestIDFromCtx(c),
	})
}

// writeInternal answers 500 and hands err to the request logger.
func writeInternal(c *fiber.Ctx, err error) error {
	c.Locals(middleware.ErrorLocalKey, err.Error())
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// writeServiceError translates service errors into status codes.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "Document not found")
	case errors.Is(err, service.ErrFileMissing):
		return writeError(c, fiber.StatusNotFound, "FILE_MISSING", "File not found on disk")
	case errors.Is(err, service.ErrUnsupportedType):
		return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_TYPE", "Invalid file type. Only PDF, images, and Word documents are allowed.")
	case errors.Is(err, service.ErrFileTooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large")
	case errors.Is(err, service.ErrValidation):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid upload")
	default:
		return writeInternal(c, err)
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE", "File too large")
		default:
			c.Locals(middleware.ErrorLocalKey, err.Error())
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
