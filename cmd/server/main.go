package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"campus/internal/config"
	"campus/internal/database"
	"campus/internal/handlers"
	"campus/internal/mail"
	"campus/internal/middleware"
	"campus/internal/platform/account"
	"campus/internal/platform/audit"
	"campus/internal/platform/auth"
	"campus/internal/token"
	"campus/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var (
		db       *gorm.DB
		accounts account.Store
		recorder audit.Recorder
	)

	if cfg.DatabaseURL == "inmem" {
		// Local development without postgres. Accounts live in process
		// memory and vanish on restart.
		store := account.NewInMemStore()
		seedAdmin(store)
		accounts = store
		recorder = audit.NewMemRecorder()
	} else {
		db, err = database.Connect(cfg)
		if err != nil {
			log.Fatal(err)
		}
		accounts = account.NewGormStore(db)
		recorder = audit.NewGormRecorder(db)
	}

	tokens := token.NewService(cfg.JWTSecret)

	guard := auth.NewGuard(accounts, recorder, tokens)
	if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" {
		mailer := mail.NewMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase)
		guard = guard.WithMailer(mailer, cfg.MailFrom)
	}

	app := fiber.New()

	app.Use(compress.New())
	app.Use(helmet.New())
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(healthcheck.New())

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		if db != nil {
			c.Locals("db", db)
		}
		c.Locals("accounts", accounts)
		c.Locals("audit", recorder)
		c.Locals("guard", guard)
		c.Locals("tokens", tokens)
		return c.Next()
	})

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signin", handlers.SigninWithPassword)
	authGroup.Get("/token-refresh", middleware.AuthMiddleware, handlers.RefreshToken)
	authGroup.Post("/change-password", middleware.AuthMiddleware, handlers.ChangePassword)

	user := api.Group("/user", middleware.AuthMiddleware)
	user.Get("/me", handlers.GetCurrentUser)
	user.Put("/me", handlers.UpdateCurrentUser)

	admin := api.Group("/admin", middleware.AuthMiddleware, middleware.AdminMiddleware)
	admin.Post("/accounts", handlers.CreateAccount)
	admin.Get("/accounts", handlers.ListAccounts)
	admin.Get("/accounts/:account_id", handlers.GetAccount)
	admin.Put("/accounts/:account_id", handlers.UpdateAccount)
	admin.Delete("/accounts/:account_id", handlers.DeactivateAccount)
	admin.Post("/accounts/:account_id/reset-password", handlers.ResetAccountPassword)
	admin.Post("/accounts/:account_id/unlock", handlers.UnlockAccount)
	admin.Post("/accounts/:account_id/auth-key", handlers.CreateAuthKey)
	admin.Get("/audit", handlers.ListAuditEvents)

	diag := api.Group("/diag", middleware.AuthMiddleware, middleware.AdminMiddleware)
	diag.Get("/version", handlers.GetVersion)
	diag.Get("/ip", handlers.GetIP)
	diag.Get("/headers", handlers.GetHeaders)

	app.Use(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	log.Fatal(app.Listen(fmt.Sprintf(":%d", cfg.ServerPort)))
}

func seedAdmin(store *account.InMemStore) {
	tempPassword := utils.GenerateTempPassword()
	hash, err := utils.HashPassword(tempPassword)
	if err != nil {
		log.Fatal(err)
	}

	acct := database.Account{
		DisplayName:         "admin",
		Email:               "admin@localhost",
		PasswordHash:        hash,
		Role:                database.RoleAdmin,
		IsActive:            true,
		ForcePasswordChange: true,
	}
	if err := store.Create(context.Background(), &acct); err != nil {
		log.Fatal(err)
	}

	log.Printf("seeded admin account %s with password %s", acct.ID, tempPassword)
}
