package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/service"
)

// RequireRole verifies that the session holds one of the given roles.
func RequireRole(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := c.Locals("session").(*domain.Session)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		for _, role := range roles {
			if sess.Role == role {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":          "Forbidden: insufficient permissions",
			"required_roles": roles,
		})
	}
}

// RequireAction verifies against the active navigation config that the
// session may perform actionID on pageID. This is the server-side
// counterpart of the UI's affordance gate: every mutating route mounts
// it, so hiding a button client-side is never the only enforcement.
func RequireAction(navService *service.NavigationService, pageID, actionID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := c.Locals("session").(*domain.Session)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		allowed, err := navService.HasActionAccess(c.Context(), sess, pageID, actionID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to check permission",
			})
		}

		if !allowed {
			// Authorization denials are final; no retry, no refresh.
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: missing required permission",
				"required_permission": fiber.Map{
					"page":   pageID,
					"action": actionID,
				},
			})
		}

		return c.Next()
	}
}

// RequireSystemAdmin is a convenience wrapper for the platform role.
func RequireSystemAdmin() fiber.Handler {
	return RequireRole(domain.RoleSystemAdmin)
}

// RequireAdmin admits system and customer administrators.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleSystemAdmin, domain.RoleCustomerAdmin)
}
