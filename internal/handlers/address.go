package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/services"
)

// AddressHandler manages the authenticated user's address book.
type AddressHandler struct {
	addresses *services.AddressService
}

func NewAddressHandler(addresses *services.AddressService) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

func (h *AddressHandler) ListAddresses(c *fiber.Ctx) error {
	userID, err := userOrUnauthorized(c)
	if err != nil {
		return err
	}
	list, err := h.addresses.List(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": list})
}

func (h *AddressHandler) GetAddress(c *fiber.Ctx) error {
	userID, err := userOrUnauthorized(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	addr, err := h.addresses.Get(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": addr})
}

func (h *AddressHandler) CreateAddress(c *fiber.Ctx) error {
	userID, err := userOrUnauthorized(c)
	if err != nil {
		return err
	}
	var req services.AddressInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	addr, err := h.addresses.Create(c.UserContext(), userID, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": addr})
}

func (h *AddressHandler) UpdateAddress(c *fiber.Ctx) error {
	userID, err := userOrUnauthorized(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req services.AddressInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	addr, err := h.addresses.Update(c.UserContext(), userID, id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": addr})
}

func (h *AddressHandler) DeleteAddress(c *fiber.Ctx) error {
	userID, err := userOrUnauthorized(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.addresses.Delete(c.UserContext(), userID, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *AddressHandler) SetDefault(c *fiber.Ctx) error {
	userID, err := userOrUnauthorized(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	addr, err := h.addresses.SetDefault(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": addr})
}
