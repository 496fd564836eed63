package serverutils

import (
	"errors"

	"syllabus-calendar-be/internal/entity"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts errors bubbling out of handlers into JSON
// responses. Import taxonomy errors keep their category and request id so
// clients can render actionable messages.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var importErr *entity.ImportError
		if errors.As(err, &importErr) {
			status := statusForCategory(importErr.Category)
			return ctx.Status(status).JSON(BaseResponse[*entity.ImportError]{
				Code:    status,
				Message: importErr.Message,
				Data:    importErr,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, err.Error()))
	}
}

func statusForCategory(category entity.ErrorCategory) int {
	switch category {
	case entity.ErrorCategoryValidation:
		return fiber.StatusBadRequest
	case entity.ErrorCategoryNetwork:
		return fiber.StatusServiceUnavailable
	case entity.ErrorCategoryServer, entity.ErrorCategoryInvalidResponse:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
