package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// Deps carries the services the HTTP layer is built from.
type Deps struct {
	Auth        *services.AuthService
	Catalog     *services.CatalogService
	Carts       *services.CartService
	Checkout    *services.CheckoutService
	Addresses   *services.AddressService
	Logger      *zap.Logger
	JWTSecret   string
	AdminAPIKey string
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Carts, deps.Logger)
	catalogHandler := handlers.NewCatalogHandler(deps.Catalog)
	cartHandler := handlers.NewCartHandler(deps.Carts, deps.Catalog)
	checkoutHandler := handlers.NewCheckoutHandler(deps.Carts, deps.Checkout)
	orderHandler := handlers.NewOrderHandler(deps.Checkout)
	addressHandler := handlers.NewAddressHandler(deps.Addresses)
	adminHandler := handlers.NewAdminHandler(deps.Checkout)
	itemHandler := handlers.NewItemHandler(deps.Catalog)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", middleware.Actor(deps.JWTSecret))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Catalog routes
	items := api.Group("/items")
	items.Get("/", catalogHandler.ListItems)
	items.Get("/:id", catalogHandler.GetItem)

	// Cart and checkout, open to guests and users alike
	cart := api.Group("/cart")
	cart.Get("/", cartHandler.GetCart)
	cart.Delete("/", cartHandler.Clear)
	cart.Post("/items", cartHandler.AddItem)
	cart.Put("/items/:id", cartHandler.UpdateItem)
	cart.Delete("/items/:id", cartHandler.RemoveItem)

	checkout := api.Group("/checkout")
	checkout.Post("/shipping", checkoutHandler.SelectShipping)
	checkout.Post("/payment", checkoutHandler.PlaceOrder)

	orders := api.Group("/orders")
	orders.Get("/", middleware.RequireUser(), orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Post("/:id/cancel", orderHandler.CancelOrder)

	// Protected routes
	addresses := api.Group("/addresses", middleware.RequireUser())
	addresses.Get("/", addressHandler.ListAddresses)
	addresses.Post("/", addressHandler.CreateAddress)
	addresses.Get("/:id", addressHandler.GetAddress)
	addresses.Put("/:id", addressHandler.UpdateAddress)
	addresses.Delete("/:id", addressHandler.DeleteAddress)
	addresses.Post("/:id/default", addressHandler.SetDefault)

	admin := api.Group("/admin", middleware.AdminKey(deps.AdminAPIKey))
	admin.Get("/orders/:id", adminHandler.GetOrder)
	admin.Put("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.Get("/items", itemHandler.ListItems)
	admin.Post("/items", itemHandler.CreateItem)
	admin.Get("/items/:id", itemHandler.GetItem)
	admin.Put("/items/:id", itemHandler.UpdateItem)
	admin.Delete("/items/:id", itemHandler.DeleteItem)
}
