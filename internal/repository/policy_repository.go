package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/printops/mps-console/internal/domain"
)

type PolicyRepository interface {
	Create(ctx context.Context, policy *domain.Policy) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Policy, error)
	// ListByCustomer returns the customer's policies plus the global
	// ones (customer_id IS NULL). A nil customerID lists only globals.
	ListByCustomer(ctx context.Context, customerID *uuid.UUID) ([]*domain.Policy, error)
	// ListAll returns every policy across all customer scopes. A global
	// draft can conflict with any customer-scoped policy, so conflict
	// scans need the whole catalog.
	ListAll(ctx context.Context) ([]*domain.Policy, error)
	Update(ctx context.Context, policy *domain.Policy) error
	Delete(ctx context.Context, id uuid.UUID) error
}
