package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"campus/internal/platform/account"
	"campus/internal/token"
)

const (
	AuthProviderJWT    = "jwt"
	AuthProviderAPIKey = "api_key"
)

const (
	HeaderXAPIKey = "X-API-Key"
)

func AuthMiddleware(c *fiber.Ctx) error {
	accounts := c.Locals("accounts").(account.Store)
	tokens := c.Locals("tokens").(*token.Service)

	xAPIKey := c.Get(HeaderXAPIKey)
	if xAPIKey != "" {
		acct, err := accounts.FindByAuthKey(c.Context(), xAPIKey)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}
		if !acct.IsActive {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}

		c.Locals("auth_provider", AuthProviderAPIKey)
		c.Locals("account", *acct)

		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	accountID, err := claims.AccountID()
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	acct, err := accounts.FindByID(c.Context(), accountID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}
	if !acct.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	c.Locals("auth_provider", AuthProviderJWT)
	c.Locals("account", *acct)

	return c.Next()
}
