package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// ErrorHandler renders errors in the {"success":false,"error":...} envelope.
// Domain errors map to 4xx; everything else is logged and reported as 500.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := classify(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
		return c.Status(status).JSON(body)
	}
}

func classify(err error) (int, fiber.Map) {
	var (
		fiberErr *fiber.Error
		stockErr *services.InsufficientStockError
		transErr *services.InvalidTransitionError
		notFound *services.NotFoundError
	)
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, errorBody(fiberErr.Message)
	case errors.As(err, &stockErr):
		body := errorBody(stockErr.Error())
		body["details"] = fiber.Map{
			"item_id":   stockErr.ItemID,
			"name":      stockErr.Name,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		}
		return fiber.StatusConflict, body
	case errors.As(err, &transErr):
		body := errorBody(transErr.Error())
		body["details"] = fiber.Map{"from": transErr.From, "to": transErr.To}
		return fiber.StatusConflict, body
	case errors.As(err, &notFound):
		return fiber.StatusNotFound, errorBody(notFound.Error())
	case errors.Is(err, services.ErrPaymentDeclined):
		return fiber.StatusPaymentRequired, errorBody(err.Error())
	case errors.Is(err, services.ErrAddressNotOwned):
		return fiber.StatusForbidden, errorBody(err.Error())
	case errors.Is(err, services.ErrEmptyCart), errors.Is(err, services.ErrShippingRequired):
		return fiber.StatusUnprocessableEntity, errorBody(err.Error())
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, errorBody(err.Error())
	case errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrInvalidShipping),
		errors.Is(err, services.ErrInvalidAddress),
		errors.Is(err, services.ErrInvalidRegistration),
		errors.Is(err, services.ErrInvalidItem),
		errors.Is(err, models.ErrInvalidOwner):
		return fiber.StatusBadRequest, errorBody(err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, errorBody(err.Error())
	case errors.Is(err, services.ErrUserExists), errors.Is(err, services.ErrCartChanged):
		return fiber.StatusConflict, errorBody(err.Error())
	default:
		return fiber.StatusInternalServerError, errorBody("internal server error")
	}
}

func errorBody(message string) fiber.Map {
	return fiber.Map{"success": false, "error": message}
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func actorOrUnauthorized(c *fiber.Ctx) (models.Owner, error) {
	owner, ok := middleware.GetActor(c)
	if !ok {
		return models.Owner{}, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return owner, nil
}

func userOrUnauthorized(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}
