package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/service"
	"github.com/printops/mps-console/pkg/validator"
)

type NavigationHandler struct {
	navService *service.NavigationService
	validator  *validator.Validator
}

func NewNavigationHandler(navService *service.NavigationService, validator *validator.Validator) *NavigationHandler {
	return &NavigationHandler{
		navService: navService,
		validator:  validator,
	}
}

type navigationRequest struct {
	CustomerID *uuid.UUID       `json:"customer_id,omitempty"`
	Role       string           `json:"role" validate:"required,role"`
	Name       string           `json:"name" validate:"required,min=2,max=255"`
	Items      []domain.NavItem `json:"items" validate:"required,min=1"`
}

// CreateConfig registers a new (inactive) navigation config.
// POST /api/navigation-configs
func (h *NavigationHandler) CreateConfig(c *fiber.Ctx) error {
	var req navigationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	cfg := &domain.NavigationConfig{
		CustomerID: req.CustomerID,
		Role:       domain.Role(req.Role),
		Name:       req.Name,
		Items:      req.Items,
	}

	if err := h.navService.Create(c.Context(), cfg); err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(cfg)
}

// ListConfigs lists the configs of a scope.
// GET /api/navigation-configs?role=...&customer_id=...
func (h *NavigationHandler) ListConfigs(c *fiber.Ctx) error {
	sess, ok := currentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	role := domain.Role(c.Query("role"))
	if !role.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "role query parameter is required",
		})
	}

	customerID, err := scopeFromQuery(c, sess)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid customer ID",
		})
	}

	configs, err := h.navService.List(c.Context(), customerID, role)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"configs": configs,
		"count":   len(configs),
	})
}

// GetConfig retrieves one config.
// GET /api/navigation-configs/:id
func (h *NavigationHandler) GetConfig(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid config ID",
		})
	}

	cfg, err := h.navService.Get(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Navigation config not found",
		})
	}

	return c.JSON(cfg)
}

// UpdateConfig replaces a config's name and items.
// PUT /api/navigation-configs/:id
func (h *NavigationHandler) UpdateConfig(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid config ID",
		})
	}

	cfg, err := h.navService.Get(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Navigation config not found",
		})
	}

	var req navigationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	cfg.Name = req.Name
	cfg.Items = req.Items

	if err := h.navService.Update(c.Context(), cfg); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(cfg)
}

// ActivateConfig makes a config the single active one in its scope.
// POST /api/navigation-configs/:id/activate
func (h *NavigationHandler) ActivateConfig(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid config ID",
		})
	}

	if err := h.navService.Activate(c.Context(), id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Navigation config not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Navigation config activated",
	})
}

// DeleteConfig removes a config.
// DELETE /api/navigation-configs/:id
func (h *NavigationHandler) DeleteConfig(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid config ID",
		})
	}

	if err := h.navService.Delete(c.Context(), id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Navigation config not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Navigation config deleted successfully",
	})
}

// Grants returns the caller's flattened page/action grants. The client
// uses it to hide or disable controls. Hiding a control is cosmetic:
// the server re-checks every mutation through RequireAction, so this
// endpoint must never be treated as an enforcement point.
// GET /api/navigation/grants
func (h *NavigationHandler) Grants(c *fiber.Ctx) error {
	sess, ok := currentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	customerID, err := scopeFromQuery(c, sess)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid customer ID",
		})
	}

	grants, err := h.navService.Grants(c.Context(), customerID, sess.Role)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"grants": grants,
	})
}
