package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/service"
)

type fakeNavRepo struct {
	configs map[uuid.UUID]*domain.NavigationConfig
}

func newFakeNavRepo(configs ...*domain.NavigationConfig) *fakeNavRepo {
	r := &fakeNavRepo{configs: make(map[uuid.UUID]*domain.NavigationConfig)}
	for _, cfg := range configs {
		if cfg.ID == uuid.Nil {
			cfg.ID = uuid.New()
		}
		r.configs[cfg.ID] = cfg
	}
	return r
}

func (r *fakeNavRepo) Create(ctx context.Context, cfg *domain.NavigationConfig) error {
	r.configs[cfg.ID] = cfg
	return nil
}

func (r *fakeNavRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.NavigationConfig, error) {
	cfg, ok := r.configs[id]
	if !ok {
		return nil, fmt.Errorf("navigation config %s not found", id)
	}
	return cfg, nil
}

func (r *fakeNavRepo) GetActive(ctx context.Context, customerID *uuid.UUID, role domain.Role) (*domain.NavigationConfig, error) {
	// Customer-scoped config wins over the global default.
	var global *domain.NavigationConfig
	for _, cfg := range r.configs {
		if !cfg.IsActive || cfg.Role != role {
			continue
		}
		if cfg.CustomerID == nil {
			global = cfg
			continue
		}
		if customerID != nil && *cfg.CustomerID == *customerID {
			return cfg, nil
		}
	}
	if global != nil {
		return global, nil
	}
	return nil, fmt.Errorf("no active navigation config")
}

func (r *fakeNavRepo) ListByScope(ctx context.Context, customerID *uuid.UUID, role domain.Role) ([]*domain.NavigationConfig, error) {
	var out []*domain.NavigationConfig
	for _, cfg := range r.configs {
		if cfg.Role == role {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (r *fakeNavRepo) Update(ctx context.Context, cfg *domain.NavigationConfig) error {
	r.configs[cfg.ID] = cfg
	return nil
}

func (r *fakeNavRepo) Activate(ctx context.Context, id uuid.UUID) error {
	target, ok := r.configs[id]
	if !ok {
		return fmt.Errorf("navigation config %s not found", id)
	}
	for _, cfg := range r.configs {
		if cfg.Role == target.Role {
			cfg.IsActive = cfg.ID == id
		}
	}
	target.Version++
	return nil
}

func (r *fakeNavRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.configs, id)
	return nil
}

// unreachableRedis exercises the cache fail-through path: every cache
// call errors and the service falls back to the repository.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
}

func activeDevicesConfig(role domain.Role) *domain.NavigationConfig {
	return &domain.NavigationConfig{
		ID:       uuid.New(),
		Role:     role,
		Name:     "default",
		IsActive: true,
		Items: []domain.NavItem{
			{
				PageID:    "devices",
				Label:     "Devices",
				ActionIDs: []string{"view", "export"},
			},
		},
	}
}

func TestNavigationService_Grants_FallsThroughToRepo(t *testing.T) {
	svc := service.NewNavigationService(
		newFakeNavRepo(activeDevicesConfig(domain.RoleCustomerAdmin)),
		unreachableRedis(),
	)

	grants, err := svc.Grants(context.Background(), nil, domain.RoleCustomerAdmin)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"view", "export"}, grants["devices"])
}

func TestNavigationService_Grants_EmptyWithoutActiveConfig(t *testing.T) {
	svc := service.NewNavigationService(newFakeNavRepo(), unreachableRedis())

	grants, err := svc.Grants(context.Background(), nil, domain.RoleUser)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestNavigationService_HasActionAccess(t *testing.T) {
	svc := service.NewNavigationService(
		newFakeNavRepo(activeDevicesConfig(domain.RoleCustomerAdmin)),
		unreachableRedis(),
	)

	sess := &domain.Session{
		UserID: "u-1",
		Role:   domain.RoleCustomerAdmin,
	}

	tests := []struct {
		name     string
		pageID   string
		actionID string
		want     bool
	}{
		{"granted_action", "devices", "view", true},
		{"ungranted_action", "devices", "delete", false},
		{"page_only", "devices", "", true},
		{"unknown_page", "billing", "view", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.HasActionAccess(context.Background(), sess, tt.pageID, tt.actionID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	// No session at all denies
	ok, err := svc.HasActionAccess(context.Background(), nil, "devices", "view")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNavigationService_Create_Validates(t *testing.T) {
	svc := service.NewNavigationService(newFakeNavRepo(), unreachableRedis())

	tests := []struct {
		name   string
		cfg    *domain.NavigationConfig
		wantIn string
	}{
		{
			"bad_role",
			&domain.NavigationConfig{Role: "Root", Name: "x", Items: []domain.NavItem{{PageID: "p"}}},
			"role must be a known role",
		},
		{
			"missing_name",
			&domain.NavigationConfig{Role: domain.RoleUser, Items: []domain.NavItem{{PageID: "p"}}},
			"name is required",
		},
		{
			"missing_page_id",
			&domain.NavigationConfig{Role: domain.RoleUser, Name: "x", Items: []domain.NavItem{{Label: "Orphan"}}},
			"every item needs a page_id",
		},
		{
			"duplicate_page_id",
			&domain.NavigationConfig{
				Role: domain.RoleUser,
				Name: "x",
				Items: []domain.NavItem{
					{PageID: "devices"},
					{PageID: "devices"},
				},
			},
			`duplicate page_id "devices"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.cfg)
			require.Error(t, err)

			var verr *service.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tt.wantIn)
		})
	}
}

func TestNavigationService_Activate_SwapsActiveConfig(t *testing.T) {
	old := activeDevicesConfig(domain.RoleCustomerAdmin)
	next := &domain.NavigationConfig{
		ID:   uuid.New(),
		Role: domain.RoleCustomerAdmin,
		Name: "v2",
		Items: []domain.NavItem{
			{PageID: "devices", ActionIDs: []string{"view"}},
		},
	}

	repo := newFakeNavRepo(old, next)
	svc := service.NewNavigationService(repo, unreachableRedis())

	require.NoError(t, svc.Activate(context.Background(), next.ID))

	assert.False(t, old.IsActive)
	assert.True(t, next.IsActive)

	grants, err := svc.Grants(context.Background(), nil, domain.RoleCustomerAdmin)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"view"}, grants["devices"])
}
