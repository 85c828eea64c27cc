package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/repository"
)

// NavigationService resolves the active navigation config for a
// session's (customer, role) scope and answers page/action access
// questions. Resolved grant sets are cached in Redis and invalidated on
// activation.
//
// The grant set only drives UI affordances. It is not a trust
// boundary: every mutating route is independently re-checked by the
// RequireAction middleware and, ultimately, by the MPS backend.
type NavigationService struct {
	navRepo  repository.NavigationRepository
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewNavigationService(navRepo repository.NavigationRepository, redisClient *redis.Client) *NavigationService {
	return &NavigationService{
		navRepo:  navRepo,
		redis:    redisClient,
		cacheTTL: 5 * time.Minute,
	}
}

// Grants returns the flattened page -> action set for the scope,
// consulting the cache first. Cache trouble falls through to Postgres;
// a missing active config yields empty grants (fail closed).
func (s *NavigationService) Grants(ctx context.Context, customerID *uuid.UUID, role domain.Role) (domain.Grants, error) {
	key := grantsCacheKey(customerID, role)

	cached, err := s.redis.Get(ctx, key).Bytes()
	if err == nil {
		var grants domain.Grants
		if err := json.Unmarshal(cached, &grants); err == nil {
			return grants, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("[NAVIGATION] grants cache read failed: %v", err)
	}

	cfg, err := s.navRepo.GetActive(ctx, customerID, role)
	if err != nil {
		// No active config means no access, not an error surface.
		return domain.Grants{}, nil
	}

	grants := cfg.Flatten()

	if data, err := json.Marshal(grants); err == nil {
		if err := s.redis.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			log.Printf("[NAVIGATION] grants cache write failed: %v", err)
		}
	}

	return grants, nil
}

// HasActionAccess reports whether the session may perform actionID on
// pageID. An empty actionID checks page access only.
func (s *NavigationService) HasActionAccess(ctx context.Context, session *domain.Session, pageID, actionID string) (bool, error) {
	if session == nil {
		return false, nil
	}

	customerID, err := parseCustomerID(session.CustomerID)
	if err != nil {
		return false, err
	}

	grants, err := s.Grants(ctx, customerID, session.Role)
	if err != nil {
		return false, err
	}

	if actionID == "" {
		return grants.HasPageAccess(pageID), nil
	}
	return grants.HasActionAccess(pageID, actionID), nil
}

// Create validates and persists a new (inactive) config.
func (s *NavigationService) Create(ctx context.Context, cfg *domain.NavigationConfig) error {
	if err := validateNavConfig(cfg); err != nil {
		return err
	}

	cfg.ID = uuid.New()
	cfg.Version = 1
	cfg.IsActive = false
	now := time.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	return s.navRepo.Create(ctx, cfg)
}

// Update validates and persists changes to a config's name and items.
func (s *NavigationService) Update(ctx context.Context, cfg *domain.NavigationConfig) error {
	if err := validateNavConfig(cfg); err != nil {
		return err
	}

	cfg.UpdatedAt = time.Now()
	if err := s.navRepo.Update(ctx, cfg); err != nil {
		return err
	}

	// The config may be the active one; drop the cached grants.
	s.invalidate(ctx, cfg.CustomerID, cfg.Role)
	return nil
}

// Activate makes the config the single active one in its scope and
// invalidates the cached grants for that scope.
func (s *NavigationService) Activate(ctx context.Context, id uuid.UUID) error {
	cfg, err := s.navRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.navRepo.Activate(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, cfg.CustomerID, cfg.Role)
	return nil
}

// Get retrieves one config.
func (s *NavigationService) Get(ctx context.Context, id uuid.UUID) (*domain.NavigationConfig, error) {
	return s.navRepo.GetByID(ctx, id)
}

// List returns every config in a scope.
func (s *NavigationService) List(ctx context.Context, customerID *uuid.UUID, role domain.Role) ([]*domain.NavigationConfig, error) {
	return s.navRepo.ListByScope(ctx, customerID, role)
}

// Delete removes a config.
func (s *NavigationService) Delete(ctx context.Context, id uuid.UUID) error {
	cfg, err := s.navRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.navRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, cfg.CustomerID, cfg.Role)
	return nil
}

func (s *NavigationService) invalidate(ctx context.Context, customerID *uuid.UUID, role domain.Role) {
	key := grantsCacheKey(customerID, role)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		log.Printf("[NAVIGATION] grants cache invalidation failed: %v", err)
	}
}

func grantsCacheKey(customerID *uuid.UUID, role domain.Role) string {
	scope := "global"
	if customerID != nil {
		scope = customerID.String()
	}
	return fmt.Sprintf("nav:grants:%s:%s", scope, role)
}

func parseCustomerID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid customer id in session: %w", err)
	}
	return &id, nil
}

// validateNavConfig checks for a valid role and for
// items keyed by unique, non-empty page ids.
func validateNavConfig(cfg *domain.NavigationConfig) error {
	var violations []string

	if !cfg.Role.Valid() {
		violations = append(violations, "role must be a known role")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		violations = append(violations, "name is required")
	}

	seen := make(map[string]bool)
	var walk func(items []domain.NavItem)
	walk = func(items []domain.NavItem) {
		for _, item := range items {
			if item.PageID == "" {
				violations = append(violations, "every item needs a page_id")
				continue
			}
			if seen[item.PageID] {
				violations = append(violations, fmt.Sprintf("duplicate page_id %q", item.PageID))
			}
			seen[item.PageID] = true
			walk(item.Children)
		}
	}
	walk(cfg.Items)

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
