package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/convoflow/convoflow-backend/internal/providers"
)

// ListProviders handles GET /api/v1/providers
func ListProviders(registry *providers.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"providers": registry.List()})
	}
}

// ListModels handles GET /api/v1/providers/:id/models
func ListModels(registry *providers.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provider := registry.Get(c.Params("id"))
		if provider == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Provider not found",
			})
		}

		models, err := provider.GetModels(c.Context())
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{"models": models})
	}
}
