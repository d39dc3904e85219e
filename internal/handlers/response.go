package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"usersapi/internal/apperrors"
	"usersapi/internal/middleware"
	"usersapi/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// SuccessResponse is the envelope for every successful call.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// ErrorResponse is the envelope for every failed call.
type ErrorResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Error   ErrorDetail `json:"error"`
}

func ok(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func fail(c *fiber.Ctx, status int, message, description string) error {
	return c.Status(status).JSON(ErrorResponse{
		Status:  false,
		Message: message,
		Error: ErrorDetail{
			Code:        status,
			Description: description,
		},
	})
}

// failWith maps err onto a status and envelope. fallback is the message used
// for unclassified failures, whose details are logged and not returned.
func failWith(c *fiber.Ctx, log *slog.Logger, err error, fallback string) error {
	status := apperrors.StatusCode(err)

	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return fail(c, status, verr.First(), strings.Join(verr.Messages(), "; "))
	case errors.Is(err, apperrors.ErrValidation):
		return fail(c, status, "Validation failed", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return fail(c, status, "User not found", "User not found!")
	case errors.Is(err, apperrors.ErrDuplicateKey):
		return fail(c, status, "User already exists", "A user with this userId or username already exists")
	case errors.Is(err, apperrors.ErrIdentityMismatch):
		return fail(c, status, "userId mismatch", err.Error())
	}

	log.Error(fallback, "error", err, "request_id", middleware.RequestIDFrom(c), "path", c.Path())
	return fail(c, status, fallback, "Internal server error")
}

// ErrorHandler renders errors that escape handlers, including unmatched
// routes and recovered panics, in the failure envelope.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fail(c, fe.Code, fe.Message, fe.Message)
		}
		log.Error("unhandled error", "error", err, "request_id", middleware.RequestIDFrom(c), "path", c.Path())
		return fail(c, fiber.StatusInternalServerError, "Something went wrong", "Internal server error")
	}
}
