package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"campus/internal/config"
	"campus/internal/database"
	"campus/internal/platform/account"
	"campus/internal/platform/audit"
	"campus/internal/platform/auth"
	"campus/pkg/utils"
)

func parseAccountID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("account_id"))
}

func CreateAccount(c *fiber.Ctx) error {
	accounts := c.Locals("accounts").(account.Store)
	recorder := c.Locals("audit").(audit.Recorder)
	actor := c.Locals("account").(database.Account)

	type AccountInput struct {
		DisplayName string `json:"display_name" validate:"required"`
		Email       string `json:"email" validate:"required,email"`
		Role        string `json:"role" validate:"required"`
	}

	var input AccountInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if !database.ValidRole(input.Role) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Role must be admin, teacher or student"})
	}

	tempPassword := utils.GenerateTempPassword()
	hash, err := utils.HashPassword(tempPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	acct := database.Account{
		DisplayName:         strings.TrimSpace(input.DisplayName),
		Email:               strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash:        hash,
		Role:                input.Role,
		IsActive:            true,
		ForcePasswordChange: true,
	}

	if err := accounts.Create(c.Context(), &acct); err != nil {
		switch {
		case errors.Is(err, account.ErrDuplicateEmail):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duplicate_email"})
		case errors.Is(err, account.ErrDuplicateHandle):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duplicate_handle"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	recorder.Record(c.Context(), &actor.ID, audit.ActionAccountCreate,
		fmt.Sprintf("created %s account %s", acct.Role, acct.ID))

	// The temporary password leaves the server exactly once.
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"account":       acct,
		"temp_password": tempPassword,
	})
}

func ListAccounts(c *fiber.Ctx) error {
	accounts := c.Locals("accounts").(account.Store)

	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)

	all, err := accounts.List(c.Context(), limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.JSON(all)
}

func GetAccount(c *fiber.Ctx) error {
	accounts := c.Locals("accounts").(account.Store)

	id, err := parseAccountID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account ID"})
	}

	acct, err := accounts.FindByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.JSON(acct)
}

// UpdateAccount edits profile fields and the active flag. The role is
// immutable after creation and is deliberately absent from the input.
func UpdateAccount(c *fiber.Ctx) error {
	accounts := c.Locals("accounts").(account.Store)

	type UpdateInput struct {
		DisplayName *string `json:"display_name"`
		Email       *string `json:"email" validate:"omitempty,email"`
		IsActive    *bool   `json:"is_active"`
	}

	var input UpdateInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	if err := config.Validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	id, err := parseAccountID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account ID"})
	}

	acct, err := accounts.FindByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	if input.DisplayName != nil {
		acct.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.Email != nil {
		acct.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.IsActive != nil {
		acct.IsActive = *input.IsActive
	}

	if err := accounts.Update(c.Context(), acct); err != nil {
		switch {
		case errors.Is(err, account.ErrDuplicateEmail):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duplicate_email"})
		case errors.Is(err, account.ErrDuplicateHandle):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duplicate_handle"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.JSON(acct)
}

// DeactivateAccount is a soft delete: the row stays for the audit trail
// but the account can no longer authenticate.
func DeactivateAccount(c *fiber.Ctx) error {
	accounts := c.Locals("accounts").(account.Store)
	recorder := c.Locals("audit").(audit.Recorder)
	actor := c.Locals("account").(database.Account)

	id, err := parseAccountID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account ID"})
	}

	acct, err := accounts.FindByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	acct.IsActive = false
	if err := accounts.Update(c.Context(), acct); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	recorder.Record(c.Context(), &actor.ID, audit.ActionAccountDeactivate,
		fmt.Sprintf("deactivated account %s", acct.ID))

	return c.SendStatus(fiber.StatusNoContent)
}

func ResetAccountPassword(c *fiber.Ctx) error {
	guard := c.Locals("guard").(*auth.Guard)

	id, err := parseAccountID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account ID"})
	}

	result := guard.ResetPassword(c.Context(), id)
	switch result.Kind {
	case auth.KindSuccess:
		return c.JSON(fiber.Map{"temp_password": result.TempPassword})
	case auth.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}

func UnlockAccount(c *fiber.Ctx) error {
	guard := c.Locals("guard").(*auth.Guard)

	id, err := parseAccountID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account ID"})
	}

	result := guard.Unlock(c.Context(), id)
	switch result.Kind {
	case auth.KindSuccess:
		return c.SendStatus(fiber.StatusNoContent)
	case auth.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}

func CreateAuthKey(c *fiber.Ctx) error {
	accounts := c.Locals("accounts").(account.Store)

	id, err := parseAccountID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid account ID"})
	}

	authKey, err := accounts.CreateAuthKey(c.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.JSON(authKey)
}

// ListAuditEvents reads straight from the database; the guard itself is
// write-only against the audit trail.
func ListAuditEvents(c *fiber.Ctx) error {
	db, ok := c.Locals("db").(*gorm.DB)
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "Audit log not available"})
	}

	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)

	var events []database.AuditEvent
	result := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&events)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.JSON(events)
}
