package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	auth   *services.AuthService
	carts  *services.CartService
	logger *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, carts *services.CartService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, carts: carts, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new user account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}

	user, token, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	cart := h.mergeGuestCart(c, user)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    userResponse(user),
		"token":   token,
		"cart":    cart,
	})
}

// Login authenticates an existing user and folds the caller's guest cart
// into the user's cart.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}

	user, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	cart := h.mergeGuestCart(c, user)

	return c.JSON(fiber.Map{
		"success": true,
		"user":    userResponse(user),
		"token":   token,
		"cart":    cart,
	})
}

// mergeGuestCart never fails the login itself; a merge that cannot be
// applied leaves the guest cart in place for a later attempt.
func (h *AuthHandler) mergeGuestCart(c *fiber.Ctx, user *models.User) *models.Cart {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		return nil
	}
	cart, err := h.carts.MergeGuestIntoUser(c.UserContext(), sessionID, user.ID)
	if err != nil {
		h.logger.Warn("guest cart merge skipped",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return nil
	}
	return cart
}

func userResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	}
}
