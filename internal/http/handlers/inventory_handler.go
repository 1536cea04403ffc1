package handlers

import (
	"github.com/gofiber/fiber/v2"

	"musicstore/internal/log"
	"musicstore/internal/services"
	"musicstore/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// Check is GET /api/v1/availability?productId=N.
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Query("productId"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "productId"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing or invalid productId",
		})
	}
	avail, err := h.Inv.CheckAvailability(c.UserContext(), id)
	if err != nil {
		log.Error(c, "availability.check", err, map[string]any{"product": id})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not check availability",
		})
	}
	return c.JSON(avail)
}
