package handlers

import "github.com/gofiber/fiber/v2"

// Version is stamped at build time via -ldflags.
var Version = "dev"

func GetVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"version": Version})
}

func GetIP(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ip": c.IP()})
}

func GetHeaders(c *fiber.Ctx) error {
	return c.JSON(c.GetReqHeaders())
}
