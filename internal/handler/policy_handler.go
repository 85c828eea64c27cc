package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/service"
	"github.com/printops/mps-console/pkg/validator"
)

type PolicyHandler struct {
	policyService *service.PolicyService
	assistant     *service.Assistant
	validator     *validator.Validator
}

func NewPolicyHandler(policyService *service.PolicyService, assistant *service.Assistant, validator *validator.Validator) *PolicyHandler {
	return &PolicyHandler{
		policyService: policyService,
		assistant:     assistant,
		validator:     validator,
	}
}

type policyRequest struct {
	CustomerID *uuid.UUID        `json:"customer_id,omitempty"`
	Name       string            `json:"name" validate:"required,min=2,max=255"`
	Effect     string            `json:"effect" validate:"required,effect"`
	Actions    []string          `json:"actions" validate:"required,min=1"`
	Subject    domain.Matcher    `json:"subject"`
	Resource   domain.Matcher    `json:"resource"`
	Conditions *domain.Condition `json:"conditions,omitempty"`
}

func (r *policyRequest) toDomain() *domain.Policy {
	return &domain.Policy{
		CustomerID: r.CustomerID,
		Name:       r.Name,
		Effect:     domain.Effect(r.Effect),
		Actions:    r.Actions,
		Subject:    r.Subject,
		Resource:   r.Resource,
		Conditions: r.Conditions,
	}
}

// CreatePolicy persists a validated policy.
// POST /api/policies
func (h *PolicyHandler) CreatePolicy(c *fiber.Ctx) error {
	var req policyRequest
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

	policy := req.toDomain()
	if err := h.policyService.Create(c.Context(), policy); err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(policy)
}

// GetPolicy retrieves one policy.
// GET /api/policies/:id
func (h *PolicyHandler) GetPolicy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid policy ID",
		})
	}

	policy, err := h.policyService.Get(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Policy not found",
		})
	}

	return c.JSON(policy)
}

// ListPolicies lists the caller's customer scope plus globals. System
// admins may pass ?customer_id= to inspect another scope.
// GET /api/policies
func (h *PolicyHandler) ListPolicies(c *fiber.Ctx) error {
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

	policies, err := h.policyService.List(c.Context(), customerID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"policies": policies,
		"count":    len(policies),
	})
}

// UpdatePolicy persists changes to a policy.
// PUT /api/policies/:id
func (h *PolicyHandler) UpdatePolicy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid policy ID",
		})
	}

	var req policyRequest
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

	policy := req.toDomain()
	policy.ID = id
	if err := h.policyService.Update(c.Context(), policy); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(policy)
}

// DeletePolicy removes a policy.
// DELETE /api/policies/:id
func (h *PolicyHandler) DeletePolicy(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid policy ID",
		})
	}

	if err := h.policyService.Delete(c.Context(), id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Policy not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Policy deleted successfully",
	})
}

// SubjectFields lists the subject attribute catalog for the editor.
// GET /api/policies/subject-fields
func (h *PolicyHandler) SubjectFields(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"fields": h.policyService.SubjectFields(),
	})
}

// AnalyzeDraft submits a draft for debounced analysis. The draft is
// keyed by the authoring user; repeated submissions reset the timer.
// POST /api/policies/analyze
func (h *PolicyHandler) AnalyzeDraft(c *fiber.Ctx) error {
	sess, ok := currentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req policyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.assistant.Submit(sess.UserID, req.toDomain()); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "pending",
	})
}

// DraftAnalysis returns the latest finished analysis for the caller.
// GET /api/policies/analyze/result
func (h *PolicyHandler) DraftAnalysis(c *fiber.Ctx) error {
	sess, ok := currentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	result, ok := h.assistant.Result(sess.UserID)
	if !ok {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "pending",
		})
	}

	return c.JSON(result)
}

type evaluateRequest struct {
	Subject  map[string]interface{} `json:"subject"`
	Action   string                 `json:"action" validate:"required"`
	Resource map[string]interface{} `json:"resource"`
}

// Evaluate runs the preview simulation against the caller's scope.
// Advisory only; the backend makes the authoritative decision.
// POST /api/policies/evaluate
func (h *PolicyHandler) Evaluate(c *fiber.Ctx) error {
	sess, ok := currentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req evaluateRequest
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

	customerID, err := scopeFromQuery(c, sess)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid customer ID",
		})
	}

	policies, err := h.policyService.List(c.Context(), customerID)
	if err != nil {
		return serviceError(c, err)
	}

	decision := service.Evaluate(policies, service.EvaluationInput{
		Subject:  req.Subject,
		Action:   req.Action,
		Resource: req.Resource,
	})

	return c.JSON(decision)
}

// scopeFromQuery resolves the customer scope for catalog queries: the
// caller's own customer, or an explicit ?customer_id= for system
// admins.
func scopeFromQuery(c *fiber.Ctx, sess *domain.Session) (*uuid.UUID, error) {
	if raw := c.Query("customer_id"); raw != "" && sess.Role == domain.RoleSystemAdmin {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		return &id, nil
	}

	if sess.CustomerID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(sess.CustomerID)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
