package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	passwordvalidator "github.com/wagslane/go-password-validator"

	"campus/internal/config"
	"campus/internal/database"
	"campus/internal/platform/auth"
	"campus/internal/token"
)

type AuthToken struct {
	AccessToken         string    `json:"access_token"`
	TokenType           string    `json:"token_type"`
	ExpiresIn           int       `json:"expires_in"`
	ExpiresAt           time.Time `json:"expires_at"`
	ForcePasswordChange bool      `json:"force_password_change"`
}

func newAuthToken(accessToken string, forceChange bool) AuthToken {
	return AuthToken{
		AccessToken:         accessToken,
		TokenType:           "Bearer",
		ExpiresIn:           int(token.SessionTTL.Seconds()),
		ExpiresAt:           time.Now().Add(token.SessionTTL),
		ForcePasswordChange: forceChange,
	}
}

func SigninWithPassword(c *fiber.Ctx) error {
	guard := c.Locals("guard").(*auth.Guard)

	type LoginInput struct {
		Handle   string `json:"handle" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	result := guard.AttemptLogin(c.Context(), input.Handle, input.Password)
	switch result.Kind {
	case auth.KindSuccess:
		return c.JSON(fiber.Map{
			"token":   newAuthToken(result.Token, result.Account.ForcePasswordChange),
			"account": result.Account,
		})
	case auth.KindInvalidCredentials:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials"})
	case auth.KindAccountInactive:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "account_inactive"})
	case auth.KindAccountLocked:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "account_locked"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}

func RefreshToken(c *fiber.Ctx) error {
	tokens := c.Locals("tokens").(*token.Service)
	acct := c.Locals("account").(database.Account)

	if acct.Locked() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "account_locked"})
	}

	accessToken, err := tokens.Generate(acct.ID, acct.Role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.JSON(newAuthToken(accessToken, acct.ForcePasswordChange))
}

func ChangePassword(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	guard := c.Locals("guard").(*auth.Guard)
	acct := c.Locals("account").(database.Account)

	type ChangePasswordInput struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required"`
	}

	var input ChangePasswordInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	// Entropy floor is off unless configured. There is no mandated
	// complexity policy for this platform.
	if cfg.PasswordMinEntropy > 0 {
		if err := passwordvalidator.Validate(input.NewPassword, cfg.PasswordMinEntropy); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
	}

	result := guard.ChangePassword(c.Context(), acct.ID, input.CurrentPassword, input.NewPassword)
	switch result.Kind {
	case auth.KindSuccess:
		return c.SendStatus(fiber.StatusNoContent)
	case auth.KindInvalidCurrentPassword:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_current_password"})
	case auth.KindNotFound:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}
