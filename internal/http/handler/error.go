package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"familyvault/internal/api"
	"familyvault/internal/auth"
	"familyvault/internal/http/middleware"
	"familyvault/internal/model"
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
// - code: machine-readable short error code (e.g., "UNAUTHENTICATED", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFrom(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeAPIError maps a controller error onto the error envelope. Backend
// messages are already meant for users, so they pass through.
func writeAPIError(c *fiber.Ctx, err error) error {
	var (
		invalid *model.ValidationError
		failed  *api.OperationFailed
		network *api.NetworkError
	)
	switch {
	case errors.As(err, &invalid):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_FAILED", invalid.Message)
	case errors.Is(err, auth.ErrNotAuthenticated):
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "please log in to continue")
	case errors.As(err, &failed):
		return writeError(c, fiber.StatusBadGateway, "BACKEND_REJECTED", failed.Message)
	case errors.As(err, &network):
		return writeError(c, fiber.StatusBadGateway, "BACKEND_UNREACHABLE", "vault backend unreachable")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHENTICATED", "please log in to continue")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "upload too large")
		case fiber.StatusTooManyRequests:
			return writeError(c, status, "RATE_LIMITED", "too many requests")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
