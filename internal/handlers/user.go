package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"campus/internal/config"
	"campus/internal/database"
	"campus/internal/platform/account"
)

func GetCurrentUser(c *fiber.Ctx) error {
	acct := c.Locals("account").(database.Account)

	return c.JSON(acct)
}

func UpdateCurrentUser(c *fiber.Ctx) error {
	accounts := c.Locals("accounts").(account.Store)
	acct := c.Locals("account").(database.Account)

	type UpdateInput struct {
		Email *string `json:"email" validate:"omitempty,email"`
	}

	var input UpdateInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if input.Email != nil {
		acct.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}

	if err := accounts.Update(c.Context(), &acct); err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duplicate_email"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.JSON(acct)
}
