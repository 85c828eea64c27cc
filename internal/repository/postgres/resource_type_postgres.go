package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/repository"
)

type resourceTypeRepository struct {
	db *sqlx.DB
}

// NewResourceTypeRepository creates a new PostgreSQL resource type repository
func NewResourceTypeRepository(db *sqlx.DB) repository.ResourceTypeRepository {
	return &resourceTypeRepository{db: db}
}

type resourceTypeRow struct {
	ID        uuid.UUID `db:"id"`
	Key       string    `db:"key"`
	Name      string    `db:"name"`
	Fields    []byte    `db:"fields"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toResourceTypeRow(rt *domain.ResourceType) (*resourceTypeRow, error) {
	fields, err := json.Marshal(rt.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	return &resourceTypeRow{
		ID:        rt.ID,
		Key:       rt.Key,
		Name:      rt.Name,
		Fields:    fields,
		CreatedAt: rt.CreatedAt,
		UpdatedAt: rt.UpdatedAt,
	}, nil
}

func (r *resourceTypeRow) toDomain() (*domain.ResourceType, error) {
	rt := &domain.ResourceType{
		ID:        r.ID,
		Key:       r.Key,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if len(r.Fields) > 0 {
		if err := json.Unmarshal(r.Fields, &rt.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
		}
	}

	return rt, nil
}

// Create inserts a new resource type
func (r *resourceTypeRepository) Create(ctx context.Context, rt *domain.ResourceType) error {
	row, err := toResourceTypeRow(rt)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO resource_types (id, key, name, fields, created_at, updated_at)
		VALUES (:id, :key, :name, :fields, :created_at, :updated_at)`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to create resource type: %w", err)
	}

	return nil
}

// GetByKey retrieves a resource type by its key
func (r *resourceTypeRepository) GetByKey(ctx context.Context, key string) (*domain.ResourceType, error) {
	query := `
		SELECT id, key, name, fields, created_at, updated_at
		FROM resource_types
		WHERE key = $1`

	var row resourceTypeRow
	err := r.db.GetContext(ctx, &row, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("resource type not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get resource type by key: %w", err)
	}

	return row.toDomain()
}

// List retrieves all resource types
func (r *resourceTypeRepository) List(ctx context.Context) ([]*domain.ResourceType, error) {
	query := `
		SELECT id, key, name, fields, created_at, updated_at
		FROM resource_types
		ORDER BY key`

	var rows []resourceTypeRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list resource types: %w", err)
	}

	types := make([]*domain.ResourceType, 0, len(rows))
	for i := range rows {
		rt, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		types = append(types, rt)
	}

	return types, nil
}

// Update updates an existing resource type
func (r *resourceTypeRepository) Update(ctx context.Context, rt *domain.ResourceType) error {
	row, err := toResourceTypeRow(rt)
	if err != nil {
		return err
	}

	query := `
		UPDATE resource_types
		SET key = :key,
			name = :name,
			fields = :fields,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update resource type: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("resource type not found")
	}

	return nil
}

// Delete removes a resource type by ID
func (r *resourceTypeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM resource_types WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource type: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("resource type not found")
	}

	return nil
}
