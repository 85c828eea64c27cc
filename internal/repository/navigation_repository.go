package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/printops/mps-console/internal/domain"
)

type NavigationRepository interface {
	Create(ctx context.Context, cfg *domain.NavigationConfig) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.NavigationConfig, error)
	// GetActive returns the single active config for the scope, falling
	// back to the global scope (customer_id IS NULL) when the customer
	// has none of its own.
	GetActive(ctx context.Context, customerID *uuid.UUID, role domain.Role) (*domain.NavigationConfig, error)
	ListByScope(ctx context.Context, customerID *uuid.UUID, role domain.Role) ([]*domain.NavigationConfig, error)
	Update(ctx context.Context, cfg *domain.NavigationConfig) error
	// Activate makes the config the only active one in its scope and
	// bumps its version, in a single transaction.
	Activate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
