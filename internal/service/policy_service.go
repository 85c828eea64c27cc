package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/repository"
)

// ValidationError collects condition violations found while validating
// a draft. Violations are surfaced inline at authoring time; a policy
// carrying any is never persisted.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// subjectCatalog declares the subject attributes condition leaves may
// reference, analogous to a resource type's field catalog.
var subjectCatalog = []domain.ConditionField{
	{Field: "subject.role", Label: "Role", DataType: domain.DataTypeString},
	{Field: "subject.customer_id", Label: "Customer", DataType: domain.DataTypeString},
	{Field: "subject.username", Label: "Username", DataType: domain.DataTypeString},
	{Field: "subject.email", Label: "Email", DataType: domain.DataTypeString},
	{Field: "subject.is_default_customer", Label: "Default customer", DataType: domain.DataTypeBoolean},
}

// PolicyService owns the policy catalog: CRUD with condition
// validation against the field catalogs, plus the preview-only
// evaluation used by the assistant. Authoritative enforcement lives in
// the MPS backend; this service only guarantees well-formed rules.
type PolicyService struct {
	policyRepo       repository.PolicyRepository
	resourceTypeRepo repository.ResourceTypeRepository
}

func NewPolicyService(policyRepo repository.PolicyRepository, resourceTypeRepo repository.ResourceTypeRepository) *PolicyService {
	return &PolicyService{
		policyRepo:       policyRepo,
		resourceTypeRepo: resourceTypeRepo,
	}
}

// Create validates and persists a new policy.
func (s *PolicyService) Create(ctx context.Context, policy *domain.Policy) error {
	if err := s.validate(ctx, policy); err != nil {
		return err
	}

	policy.ID = uuid.New()
	now := time.Now()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	return s.policyRepo.Create(ctx, policy)
}

// Update validates and persists changes to an existing policy.
func (s *PolicyService) Update(ctx context.Context, policy *domain.Policy) error {
	if err := s.validate(ctx, policy); err != nil {
		return err
	}

	policy.UpdatedAt = time.Now()
	return s.policyRepo.Update(ctx, policy)
}

// Get retrieves one policy.
func (s *PolicyService) Get(ctx context.Context, id uuid.UUID) (*domain.Policy, error) {
	return s.policyRepo.GetByID(ctx, id)
}

// List returns the customer's policies including global ones.
func (s *PolicyService) List(ctx context.Context, customerID *uuid.UUID) ([]*domain.Policy, error) {
	return s.policyRepo.ListByCustomer(ctx, customerID)
}

// ListAll returns the whole catalog across customer scopes.
func (s *PolicyService) ListAll(ctx context.Context) ([]*domain.Policy, error) {
	return s.policyRepo.ListAll(ctx)
}

// Delete removes a policy.
func (s *PolicyService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.policyRepo.Delete(ctx, id)
}

// validate checks the policy's envelope and its condition tree against
// the subject catalog and the referenced resource type's field catalog.
func (s *PolicyService) validate(ctx context.Context, policy *domain.Policy) error {
	var violations []string

	if strings.TrimSpace(policy.Name) == "" {
		violations = append(violations, "name is required")
	}
	if !policy.Effect.Valid() {
		violations = append(violations, "effect must be ALLOW or DENY")
	}
	if len(policy.Actions) == 0 {
		violations = append(violations, "at least one action is required")
	}

	// The resource matcher's type selects the field catalog for
	// resource.* leaves.
	var resourceType *domain.ResourceType
	if policy.Resource.Type != "" {
		rt, err := s.resourceTypeRepo.GetByKey(ctx, policy.Resource.Type)
		if err != nil {
			violations = append(violations, fmt.Sprintf("unknown resource type %q", policy.Resource.Type))
		} else {
			resourceType = rt
		}
	}

	if policy.Conditions != nil {
		violations = append(violations, s.validateCondition(*policy.Conditions, resourceType)...)
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func (s *PolicyService) validateCondition(node domain.Condition, resourceType *domain.ResourceType) []string {
	if node.IsGate() {
		var violations []string
		if node.Gate != domain.GateAnd && node.Gate != domain.GateOr {
			violations = append(violations, fmt.Sprintf("unknown gate %q", node.Gate))
		}
		if len(node.Conditions) == 0 {
			violations = append(violations, fmt.Sprintf("gate %s has no conditions", node.Gate))
		}
		for _, child := range node.Conditions {
			violations = append(violations, s.validateCondition(child, resourceType)...)
		}
		return violations
	}

	return validateLeaf(node, resourceType)
}

// validateLeaf checks that the field exists in
// a catalog, the declared data type matches the catalog entry, and the
// operator belongs to that type's allowed set.
func validateLeaf(leaf domain.Condition, resourceType *domain.ResourceType) []string {
	var violations []string

	if leaf.Field == "" {
		return []string{"condition leaf is missing a field"}
	}

	entry := lookupField(leaf.Field, resourceType)
	if entry == nil {
		return []string{fmt.Sprintf("field %q is not in any catalog", leaf.Field)}
	}

	if leaf.DataType != entry.DataType {
		violations = append(violations, fmt.Sprintf(
			"field %q is %s, condition declares %s", leaf.Field, entry.DataType, leaf.DataType))
	}

	if leaf.Operator == "" {
		violations = append(violations, fmt.Sprintf("field %q condition is missing an operator", leaf.Field))
	} else if !entry.AllowsOperator(leaf.Operator) {
		violations = append(violations, fmt.Sprintf(
			"operator %q is not allowed for %s field %q", leaf.Operator, entry.DataType, leaf.Field))
	}

	return violations
}

func lookupField(field string, resourceType *domain.ResourceType) *domain.ConditionField {
	for i := range subjectCatalog {
		if subjectCatalog[i].Field == field {
			return &subjectCatalog[i]
		}
	}
	if resourceType != nil {
		if entry := resourceType.FieldByName(field); entry != nil {
			return entry
		}
	}
	return nil
}

// SubjectFields exposes the subject attribute catalog for the policy
// editor UI.
func (s *PolicyService) SubjectFields() []domain.ConditionField {
	fields := make([]domain.ConditionField, len(subjectCatalog))
	copy(fields, subjectCatalog)
	return fields
}
