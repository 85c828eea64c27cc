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

type navigationRepository struct {
	db *sqlx.DB
}

// NewNavigationRepository creates a new PostgreSQL navigation config repository
func NewNavigationRepository(db *sqlx.DB) repository.NavigationRepository {
	return &navigationRepository{db: db}
}

type navigationRow struct {
	ID         uuid.UUID  `db:"id"`
	CustomerID *uuid.UUID `db:"customer_id"`
	Role       string     `db:"role"`
	Name       string     `db:"name"`
	Items      []byte     `db:"items"`
	Version    int        `db:"version"`
	IsActive   bool       `db:"is_active"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

func toNavigationRow(cfg *domain.NavigationConfig) (*navigationRow, error) {
	items, err := json.Marshal(cfg.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal nav items: %w", err)
	}

	return &navigationRow{
		ID:         cfg.ID,
		CustomerID: cfg.CustomerID,
		Role:       string(cfg.Role),
		Name:       cfg.Name,
		Items:      items,
		Version:    cfg.Version,
		IsActive:   cfg.IsActive,
		CreatedAt:  cfg.CreatedAt,
		UpdatedAt:  cfg.UpdatedAt,
	}, nil
}

func (r *navigationRow) toDomain() (*domain.NavigationConfig, error) {
	cfg := &domain.NavigationConfig{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		Role:       domain.Role(r.Role),
		Name:       r.Name,
		Version:    r.Version,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}

	if len(r.Items) > 0 {
		if err := json.Unmarshal(r.Items, &cfg.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nav items: %w", err)
		}
	}

	return cfg, nil
}

const navigationColumns = `id, customer_id, role, name, items, version, is_active, created_at, updated_at`

// Create inserts a new navigation config (inactive until activated)
func (r *navigationRepository) Create(ctx context.Context, cfg *domain.NavigationConfig) error {
	row, err := toNavigationRow(cfg)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO navigation_configs (
			id, customer_id, role, name, items, version, is_active, created_at, updated_at
		) VALUES (
			:id, :customer_id, :role, :name, :items, :version, :is_active, :created_at, :updated_at
		)`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to create navigation config: %w", err)
	}

	return nil
}

// GetByID retrieves a navigation config by its ID
func (r *navigationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.NavigationConfig, error) {
	query := `SELECT ` + navigationColumns + ` FROM navigation_configs WHERE id = $1`

	var row navigationRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("navigation config not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get navigation config by id: %w", err)
	}

	return row.toDomain()
}

// GetActive retrieves the active config for the scope, preferring the
// customer's own config over the global one.
func (r *navigationRepository) GetActive(ctx context.Context, customerID *uuid.UUID, role domain.Role) (*domain.NavigationConfig, error) {
	var row navigationRow
	var err error

	if customerID == nil {
		query := `
			SELECT ` + navigationColumns + `
			FROM navigation_configs
			WHERE customer_id IS NULL AND role = $1 AND is_active = TRUE`
		err = r.db.GetContext(ctx, &row, query, string(role))
	} else {
		query := `
			SELECT ` + navigationColumns + `
			FROM navigation_configs
			WHERE (customer_id = $1 OR customer_id IS NULL) AND role = $2 AND is_active = TRUE
			ORDER BY customer_id NULLS LAST
			LIMIT 1`
		err = r.db.GetContext(ctx, &row, query, *customerID, string(role))
	}

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active navigation config: %w", err)
		}
		return nil, fmt.Errorf("failed to get active navigation config: %w", err)
	}

	return row.toDomain()
}

// ListByScope retrieves every config (active or not) for the scope
func (r *navigationRepository) ListByScope(ctx context.Context, customerID *uuid.UUID, role domain.Role) ([]*domain.NavigationConfig, error) {
	var rows []navigationRow
	var err error

	if customerID == nil {
		query := `
			SELECT ` + navigationColumns + `
			FROM navigation_configs
			WHERE customer_id IS NULL AND role = $1
			ORDER BY version DESC`
		err = r.db.SelectContext(ctx, &rows, query, string(role))
	} else {
		query := `
			SELECT ` + navigationColumns + `
			FROM navigation_configs
			WHERE customer_id = $1 AND role = $2
			ORDER BY version DESC`
		err = r.db.SelectContext(ctx, &rows, query, *customerID, string(role))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list navigation configs: %w", err)
	}

	configs := make([]*domain.NavigationConfig, 0, len(rows))
	for i := range rows {
		cfg, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, nil
}

// Update updates a config's name and items
func (r *navigationRepository) Update(ctx context.Context, cfg *domain.NavigationConfig) error {
	row, err := toNavigationRow(cfg)
	if err != nil {
		return err
	}

	query := `
		UPDATE navigation_configs
		SET name = :name,
			items = :items,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update navigation config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("navigation config not found")
	}

	return nil
}

// Activate deactivates every other config in the same (customer, role)
// scope and activates this one with a bumped version, atomically.
func (r *navigationRepository) Activate(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row navigationRow
	query := `SELECT ` + navigationColumns + ` FROM navigation_configs WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("navigation config not found: %w", err)
		}
		return fmt.Errorf("failed to lock navigation config: %w", err)
	}

	// Exactly one active config per scope: clear the rest first.
	if row.CustomerID == nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE navigation_configs
			SET is_active = FALSE
			WHERE customer_id IS NULL AND role = $1 AND id <> $2`,
			row.Role, id)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE navigation_configs
			SET is_active = FALSE
			WHERE customer_id = $1 AND role = $2 AND id <> $3`,
			*row.CustomerID, row.Role, id)
	}
	if err != nil {
		return fmt.Errorf("failed to deactivate sibling configs: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE navigation_configs
		SET is_active = TRUE, version = version + 1, updated_at = $1
		WHERE id = $2`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to activate navigation config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}

	return nil
}

// Delete removes a navigation config by ID
func (r *navigationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM navigation_configs WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete navigation config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("navigation config not found")
	}

	return nil
}
