package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	checkout *services.CheckoutService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(checkout *services.CheckoutService) *AdminHandler {
	return &AdminHandler{checkout: checkout}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order along its lifecycle.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	status, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown order status")
	}

	order, err := h.checkout.AdvanceOrder(c.UserContext(), id, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// GetOrder returns any order regardless of owner.
func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.checkout.GetOrder(c.UserContext(), models.Owner{}, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}
