package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/repository"
	"github.com/printops/mps-console/pkg/validator"
)

type ResourceTypeHandler struct {
	repo      repository.ResourceTypeRepository
	validator *validator.Validator
}

func NewResourceTypeHandler(repo repository.ResourceTypeRepository, validator *validator.Validator) *ResourceTypeHandler {
	return &ResourceTypeHandler{
		repo:      repo,
		validator: validator,
	}
}

type resourceTypeRequest struct {
	Key    string                  `json:"key" validate:"required,min=2,max=100"`
	Name   string                  `json:"name" validate:"required,min=2,max=255"`
	Fields []domain.ConditionField `json:"fields" validate:"required,min=1,dive"`
}

// CreateResourceType registers a new field catalog.
// POST /api/resource-types
func (h *ResourceTypeHandler) CreateResourceType(c *fiber.Ctx) error {
	var req resourceTypeRequest
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

	if msg := validateFields(req.Fields); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msg,
		})
	}

	now := time.Now()
	rt := &domain.ResourceType{
		ID:        uuid.New(),
		Key:       req.Key,
		Name:      req.Name,
		Fields:    req.Fields,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(c.Context(), rt); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create resource type",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(rt)
}

// ListResourceTypes lists every field catalog.
// GET /api/resource-types
func (h *ResourceTypeHandler) ListResourceTypes(c *fiber.Ctx) error {
	types, err := h.repo.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list resource types",
		})
	}

	return c.JSON(fiber.Map{
		"resource_types": types,
		"count":          len(types),
	})
}

// GetResourceType retrieves one catalog by key.
// GET /api/resource-types/:key
func (h *ResourceTypeHandler) GetResourceType(c *fiber.Ctx) error {
	rt, err := h.repo.GetByKey(c.Context(), c.Params("key"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Resource type not found",
		})
	}

	return c.JSON(rt)
}

// UpdateResourceType replaces a catalog's name and fields.
// PUT /api/resource-types/:key
func (h *ResourceTypeHandler) UpdateResourceType(c *fiber.Ctx) error {
	rt, err := h.repo.GetByKey(c.Context(), c.Params("key"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Resource type not found",
		})
	}

	var req resourceTypeRequest
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

	if msg := validateFields(req.Fields); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msg,
		})
	}

	rt.Key = req.Key
	rt.Name = req.Name
	rt.Fields = req.Fields
	rt.UpdatedAt = time.Now()

	if err := h.repo.Update(c.Context(), rt); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update resource type",
		})
	}

	return c.JSON(rt)
}

// DeleteResourceType removes a catalog.
// DELETE /api/resource-types/:id
func (h *ResourceTypeHandler) DeleteResourceType(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid resource type ID",
		})
	}

	if err := h.repo.Delete(c.Context(), id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Resource type not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Resource type deleted successfully",
	})
}

// validateFields rejects unknown data types and operators outside the
// type's allowed set before the catalog is saved.
func validateFields(fields []domain.ConditionField) string {
	for _, field := range fields {
		if field.Field == "" {
			return "every field needs a name"
		}
		if !field.DataType.Valid() {
			return "unknown data type " + string(field.DataType)
		}
		for _, op := range field.Operators {
			if !field.DataType.AllowsOperator(op) {
				return "operator " + op + " is not allowed for type " + string(field.DataType)
			}
		}
	}
	return ""
}
