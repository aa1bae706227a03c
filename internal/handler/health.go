package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/studio/pkg/response"
)

// Root handles GET /
func Root(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"name": "AI Song Generator", "status": "ok"})
}

// Health handles GET /health
func Health(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"status": "ok"})
}
