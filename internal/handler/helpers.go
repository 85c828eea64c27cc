package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/service"
)

// upstreamError translates a boundary error into an HTTP response,
// forwarding the upstream message where structured.
func upstreamError(c *fiber.Ctx, err error) error {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status < 400 || status > 599 {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    apiErr.Code,
				"message": apiErr.Message,
			},
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fiber.Map{"message": err.Error()},
	})
}

// serviceError maps service-layer errors: validation problems surface
// inline as 400, everything else as 500.
func serviceError(c *fiber.Ctx, err error) error {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "validation failed",
			"violations": validationErr.Violations,
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// currentSession pulls the session the auth middleware stored.
func currentSession(c *fiber.Ctx) (*domain.Session, bool) {
	sess, ok := c.Locals("session").(*domain.Session)
	return sess, ok && sess != nil
}
