package response

import (
	domainErrors "disputehub/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// FromError writes err with the status of its kind. Internal errors are not
// echoed to the client.
func FromError(c *fiber.Ctx, err error) error {
	status := domainErrors.HTTPStatus(err)
	message := err.Error()
	if domainErrors.KindOf(err) == domainErrors.KindInternal {
		message = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  domainErrors.Code(err),
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func Unauthorized(c *fiber.Ctx) error {
	return Error(c, fiber.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *fiber.Ctx) error {
	return Error(c, fiber.StatusForbidden, "Insufficient permissions")
}
