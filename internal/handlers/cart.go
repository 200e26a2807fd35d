package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// CartHandler exposes the caller's cart. The actor always comes from the
// request, never from the body.
type CartHandler struct {
	carts   *services.CartService
	catalog *services.CatalogService
}

func NewCartHandler(carts *services.CartService, catalog *services.CatalogService) *CartHandler {
	return &CartHandler{carts: carts, catalog: catalog}
}

type addItemRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	cart, err := h.resolve(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item_id")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.catalog.FindItem(c.UserContext(), itemID)
	if err != nil {
		return err
	}
	cart, err := h.resolve(c)
	if err != nil {
		return err
	}
	cart, err = h.carts.AddItem(c.UserContext(), cart, item, req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": cart})
}

func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	itemID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateItemRequest
	if err := c.BodyParser(&req); err != nil || req.Quantity == nil {
		return fiber.NewError(fiber.StatusBadRequest, "quantity is required")
	}

	cart, err := h.resolve(c)
	if err != nil {
		return err
	}
	item := &models.Item{ID: itemID}
	if *req.Quantity > 0 {
		if item, err = h.catalog.FindItem(c.UserContext(), itemID); err != nil {
			return err
		}
	}
	cart, err = h.carts.UpdateItemQuantity(c.UserContext(), cart, item, *req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

// RemoveItem works for items that have since left the catalog.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	itemID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	cart, err := h.resolve(c)
	if err != nil {
		return err
	}
	cart, err = h.carts.RemoveItem(c.UserContext(), cart, &models.Item{ID: itemID})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	cart, err := h.resolve(c)
	if err != nil {
		return err
	}
	cart, err = h.carts.Clear(c.UserContext(), cart)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

func (h *CartHandler) resolve(c *fiber.Ctx) (*models.Cart, error) {
	actor, err := actorOrUnauthorized(c)
	if err != nil {
		return nil, err
	}
	return h.carts.Resolve(c.UserContext(), actor)
}
