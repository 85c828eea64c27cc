package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/printops/mps-console/internal/session"
	"github.com/printops/mps-console/pkg/blacklist"
	"github.com/printops/mps-console/pkg/jwt"
)

// AuthMiddleware authenticates a request from the cookie triple (or an
// Authorization header for API callers), rejects blacklisted tokens and
// stores the decoded session in fiber.Locals. A missing or tampered
// session cookie fails closed to 401.
func AuthMiddleware(store *session.CookieStore, tokenBlacklist *blacklist.TokenBlacklist) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := store.GetAccessToken(c)
		if token == "" {
			// Fall back to a bearer header for non-browser clients.
			authHeader := c.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing access token",
			})
		}

		// Check if the token was revoked at logout
		isBlacklisted, err := tokenBlacklist.IsBlacklisted(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to verify token status",
			})
		}
		if isBlacklisted {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token has been revoked",
			})
		}

		sess := store.GetSession(c)
		if sess == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid session",
			})
		}

		// Check if the user was blacklisted after this token was issued
		// (password change invalidates outstanding tokens)
		if issuedAt, err := jwt.ParseIssuedAt(token); err == nil {
			userBlacklisted, err := tokenBlacklist.IsUserBlacklisted(c.Context(), sess.UserID, issuedAt)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to verify token status",
				})
			}
			if userBlacklisted {
				store.DestroySession(c)
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "token invalidated due to password change",
				})
			}
		}

		// Store session and token for downstream handlers
		c.Locals("session", sess)
		c.Locals("access_token", token)

		return c.Next()
	}
}
