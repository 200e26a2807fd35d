package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const (
	actorContextKey = "currentActor"

	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"

	maxSessionIDLength = 128
	sessionCookieTTL   = 30 * 24 * time.Hour
)

// Actor resolves who is calling. A valid bearer token yields the user; a
// request with a malformed or expired token is rejected rather than
// downgraded to a guest. Without a token the session id comes from the
// X-Session-ID header or the session_id cookie, and a new one is issued when
// neither is present.
func Actor(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
			}

			userID, err := utils.ParseToken(jwtSecret, strings.TrimSpace(parts[1]))
			if err != nil {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
			}
			c.Locals(actorContextKey, models.UserOwner(userID))
			return c.Next()
		}

		sessionID := strings.TrimSpace(c.Get(SessionHeader))
		if sessionID == "" {
			sessionID = strings.TrimSpace(c.Cookies(SessionCookie))
		}
		if len(sessionID) > maxSessionIDLength {
			return fiber.NewError(fiber.StatusBadRequest, "session id too long")
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    sessionID,
				Path:     "/",
				Expires:  time.Now().Add(sessionCookieTTL),
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		c.Set(SessionHeader, sessionID)
		c.Locals(actorContextKey, models.SessionOwner(sessionID))
		return c.Next()
	}
}

// RequireUser rejects guests. It must run after Actor.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := GetCurrentUserID(c); !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		return c.Next()
	}
}

// GetActor returns the owner resolved by Actor.
func GetActor(c *fiber.Ctx) (models.Owner, bool) {
	owner, ok := c.Locals(actorContextKey).(models.Owner)
	if !ok || owner.IsZero() {
		return models.Owner{}, false
	}
	return owner, true
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	owner, ok := GetActor(c)
	if !ok {
		return uuid.Nil, false
	}
	return owner.UserID()
}

// GetSessionID returns the guest session id of the request, if any. It is
// also read on authenticated requests so login can merge the guest cart.
func GetSessionID(c *fiber.Ctx) string {
	if owner, ok := GetActor(c); ok {
		if id, ok := owner.SessionID(); ok {
			return id
		}
	}
	if id := strings.TrimSpace(c.Get(SessionHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(c.Cookies(SessionCookie))
}
