package helper

import (
	"crecheku_backend/internals/features/presence/model"

	"github.com/gofiber/fiber/v2"
)

// ✅ Success Response (default 200)
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return SuccessWithCode(c, fiber.StatusOK, message, data)
}

// ✅ Success Response with custom code (e.g. 202 for an accepted run)
func SuccessWithCode(c *fiber.Ctx, code int, message string, data interface{}) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

// ✅ Plain error response
func Error(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "error",
		"message": message,
	})
}

func ErrorWithDetails(c *fiber.Ctx, code int, message string, errors interface{}) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "error",
		"message": message,
		"errors":  errors,
	})
}

// PresenceError renders an engine error with its kind and reason so callers can branch on them.
func PresenceError(c *fiber.Ctx, err error) error {
	pe := model.AsError(err)
	if pe == nil {
		return FromFiberError(c, err)
	}
	return ErrorWithDetails(c, model.HTTPStatus(err), pe.Message, fiber.Map{
		"kind":      pe.Kind,
		"reason":    pe.Reason,
		"retryable": pe.Retryable(),
	})
}
