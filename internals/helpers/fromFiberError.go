package helper

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// FromFiberError renders *fiber.Error with its own code; anything else is a 500.
func FromFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return Error(c, fe.Code, fe.Message)
	}
	return Error(c, fiber.StatusInternalServerError, err.Error())
}

// ErrorHandler is the app-wide fiber error handler using the same envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return FromFiberError(c, err)
}
