package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

type CheckoutHandler struct {
	carts    *services.CartService
	checkout *services.CheckoutService
}

func NewCheckoutHandler(carts *services.CartService, checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{carts: carts, checkout: checkout}
}

type shippingRequest struct {
	AddressID string                 `json:"address_id"`
	Address   models.AddressSnapshot `json:"address"`
	Name      string                 `json:"name"`
	Email     string                 `json:"email"`
	Phone     string                 `json:"phone"`
}

// SelectShipping takes an address_id for registered users, or an inline
// address plus contact details for guests.
func (h *CheckoutHandler) SelectShipping(c *fiber.Ctx) error {
	var req shippingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	sel := services.ShippingSelection{
		Address: req.Address,
		Contact: models.GuestContact{Name: req.Name, Email: req.Email, Phone: req.Phone},
	}
	if req.AddressID != "" {
		id, err := uuid.Parse(req.AddressID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid address_id")
		}
		sel.AddressID = id
	}

	actor, err := actorOrUnauthorized(c)
	if err != nil {
		return err
	}
	cart, err := h.carts.Resolve(c.UserContext(), actor)
	if err != nil {
		return err
	}
	cart, err = h.checkout.SelectShipping(c.UserContext(), actor, cart, sel)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

func (h *CheckoutHandler) PlaceOrder(c *fiber.Ctx) error {
	var req services.PaymentAttempt
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	actor, err := actorOrUnauthorized(c)
	if err != nil {
		return err
	}
	cart, err := h.carts.Resolve(c.UserContext(), actor)
	if err != nil {
		return err
	}
	order, err := h.checkout.PlaceOrder(c.UserContext(), actor, cart, req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}
