package middleware

import (
	"github.com/gofiber/fiber/v2"

	"campus/internal/database"
)

func AdminMiddleware(c *fiber.Ctx) error {
	acct := c.Locals("account").(database.Account)

	if acct.Role != database.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Forbidden",
		})
	}

	return c.Next()
}
