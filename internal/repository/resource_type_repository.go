package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/printops/mps-console/internal/domain"
)

type ResourceTypeRepository interface {
	Create(ctx context.Context, rt *domain.ResourceType) error
	GetByKey(ctx context.Context, key string) (*domain.ResourceType, error)
	List(ctx context.Context) ([]*domain.ResourceType, error)
	Update(ctx context.Context, rt *domain.ResourceType) error
	Delete(ctx context.Context, id uuid.UUID) error
}
