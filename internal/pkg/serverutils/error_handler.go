package serverutils

import (
	"errors"

	"clinical-assistant-be/pkg/corpus"
	"clinical-assistant-be/pkg/likelihood"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var validationErr *ValidationError
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case errors.Is(err, corpus.ErrIndexNotBuilt):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, corpus.ErrCorruptIndex), errors.Is(err, corpus.ErrIndexBuild):
		return fiber.StatusInternalServerError
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, likelihood.ErrNoTranscript):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders err with the failure envelope.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := StatusFor(err)
	return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
}

func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if err := ctx.Next(); err != nil {
			return ErrorHandler(ctx, err)
		}
		return nil
	}
}
