package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"docvault/internal/http/middleware"
	"docvault/internal/logging"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "FORBIDDEN")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

var statusCodes = map[int]struct{ code, message string }{
	fiber.StatusBadRequest:            {"BAD_REQUEST", "bad request"},
	fiber.StatusUnauthorized:          {"UNAUTHENTICATED", "authentication required"},
	fiber.StatusForbidden:             {"FORBIDDEN", "not allowed"},
	fiber.StatusNotFound:              {"NOT_FOUND", "resource not found"},
	fiber.StatusMethodNotAllowed:      {"METHOD_NOT_ALLOWED", "method not allowed"},
	fiber.StatusRequestTimeout:        {"TIMEOUT", "request timed out"},
	fiber.StatusRequestEntityTooLarge: {"PAYLOAD_TOO_LARGE", "request body too large"},
	fiber.StatusServiceUnavailable:    {"UNAVAILABLE", "service unavailable"},
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
// Errors that end up as 5xx are logged with the request id; the client only sees the envelope.
// A nil log discards them.
func ErrorHandler(log logging.Logger) fiber.ErrorHandler {
	if log == nil {
		log = logging.Nop{}
	}
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		if status >= fiber.StatusInternalServerError {
			log.Error(c.UserContext(), "request failed",
				"request_id", middleware.RequestIDFromCtx(c),
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"error", err.Error(),
			)
		}

		if sc, ok := statusCodes[status]; ok {
			return writeError(c, status, sc.code, sc.message)
		}
		if status < fiber.StatusInternalServerError {
			return writeError(c, status, "REQUEST_ERROR", strings.ToLower(utils.StatusMessage(status)))
		}
		return writeError(c, status, "INTERNAL_ERROR", "internal server error")
	}
}
