package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/repository"
)

type policyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository creates a new PostgreSQL policy repository
func NewPolicyRepository(db *sqlx.DB) repository.PolicyRepository {
	return &policyRepository{db: db}
}

// policyRow is the flat table shape; matchers and conditions are JSONB.
type policyRow struct {
	ID         uuid.UUID      `db:"id"`
	CustomerID *uuid.UUID     `db:"customer_id"`
	Name       string         `db:"name"`
	Effect     string         `db:"effect"`
	Actions    pq.StringArray `db:"actions"`
	Subject    []byte         `db:"subject"`
	Resource   []byte         `db:"resource"`
	Conditions []byte         `db:"conditions"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func toPolicyRow(p *domain.Policy) (*policyRow, error) {
	subject, err := json.Marshal(p.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subject matcher: %w", err)
	}
	resource, err := json.Marshal(p.Resource)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource matcher: %w", err)
	}

	var conditions []byte
	if p.Conditions != nil {
		conditions, err = json.Marshal(p.Conditions)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal conditions: %w", err)
		}
	}

	return &policyRow{
		ID:         p.ID,
		CustomerID: p.CustomerID,
		Name:       p.Name,
		Effect:     string(p.Effect),
		Actions:    pq.StringArray(p.Actions),
		Subject:    subject,
		Resource:   resource,
		Conditions: conditions,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}, nil
}

func (r *policyRow) toDomain() (*domain.Policy, error) {
	p := &domain.Policy{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		Name:       r.Name,
		Effect:     domain.Effect(r.Effect),
		Actions:    []string(r.Actions),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}

	if err := json.Unmarshal(r.Subject, &p.Subject); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subject matcher: %w", err)
	}
	if err := json.Unmarshal(r.Resource, &p.Resource); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resource matcher: %w", err)
	}
	if len(r.Conditions) > 0 {
		p.Conditions = &domain.Condition{}
		if err := json.Unmarshal(r.Conditions, p.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
	}

	return p, nil
}

// Create inserts a new policy
func (r *policyRepository) Create(ctx context.Context, policy *domain.Policy) error {
	row, err := toPolicyRow(policy)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO policies (
			id, customer_id, name, effect, actions,
			subject, resource, conditions, created_at, updated_at
		) VALUES (
			:id, :customer_id, :name, :effect, :actions,
			:subject, :resource, :conditions, :created_at, :updated_at
		)`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	return nil
}

// GetByID retrieves a policy by its ID
func (r *policyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Policy, error) {
	query := `
		SELECT id, customer_id, name, effect, actions,
			   subject, resource, conditions, created_at, updated_at
		FROM policies
		WHERE id = $1`

	var row policyRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("policy not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get policy by id: %w", err)
	}

	return row.toDomain()
}

// ListByCustomer retrieves the customer's policies plus global ones
func (r *policyRepository) ListByCustomer(ctx context.Context, customerID *uuid.UUID) ([]*domain.Policy, error) {
	var rows []policyRow
	var err error

	if customerID == nil {
		query := `
			SELECT id, customer_id, name, effect, actions,
				   subject, resource, conditions, created_at, updated_at
			FROM policies
			WHERE customer_id IS NULL
			ORDER BY created_at DESC`
		err = r.db.SelectContext(ctx, &rows, query)
	} else {
		query := `
			SELECT id, customer_id, name, effect, actions,
				   subject, resource, conditions, created_at, updated_at
			FROM policies
			WHERE customer_id = $1 OR customer_id IS NULL
			ORDER BY created_at DESC`
		err = r.db.SelectContext(ctx, &rows, query, *customerID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	policies := make([]*domain.Policy, 0, len(rows))
	for i := range rows {
		policy, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}

	return policies, nil
}

// ListAll retrieves every policy regardless of customer scope
func (r *policyRepository) ListAll(ctx context.Context) ([]*domain.Policy, error) {
	query := `
		SELECT id, customer_id, name, effect, actions,
			   subject, resource, conditions, created_at, updated_at
		FROM policies
		ORDER BY created_at DESC`

	var rows []policyRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list all policies: %w", err)
	}

	policies := make([]*domain.Policy, 0, len(rows))
	for i := range rows {
		policy, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}

	return policies, nil
}

// Update updates an existing policy
func (r *policyRepository) Update(ctx context.Context, policy *domain.Policy) error {
	row, err := toPolicyRow(policy)
	if err != nil {
		return err
	}

	query := `
		UPDATE policies
		SET name = :name,
			effect = :effect,
			actions = :actions,
			subject = :subject,
			resource = :resource,
			conditions = :conditions,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("policy not found")
	}

	return nil
}

// Delete removes a policy by ID
func (r *policyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM policies WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("policy not found")
	}

	return nil
}
