package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorMapper returns the HTTP status for errors it recognises.
type ErrorMapper func(err error) (status int, ok bool)

// StatusFor resolves the HTTP status for err, consulting mappers after the
// errors this package owns.
func StatusFor(err error, mappers ...ErrorMapper) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return fiber.StatusBadRequest
	}

	switch {
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrMissingUserID):
		return fiber.StatusUnauthorized
	}

	for _, m := range mappers {
		if status, ok := m(err); ok {
			return status
		}
	}
	return fiber.StatusInternalServerError
}

// ErrorHandlerMiddleware renders errors returned by handlers as the standard
// error envelope.
func ErrorHandlerMiddleware(mappers ...ErrorMapper) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := StatusFor(err, mappers...)
		message := err.Error()
		if status == fiber.StatusInternalServerError {
			message = "Internal server error"
		}

		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return ctx.Status(status).JSON(ErrorResponseWithData(status, message, validationErr.Fields))
		}
		return ctx.Status(status).JSON(ErrorResponse(status, message))
	}
}
