package domain

import (
	"time"

	"github.com/google/uuid"
)

// NavItem is one node of a navigation config tree, keyed by page id.
// ActionIDs are the actions granted on that page.
type NavItem struct {
	PageID    string    `json:"page_id"`
	Label     string    `json:"label"`
	Href      string    `json:"href,omitempty"`
	ActionIDs []string  `json:"action_ids,omitempty"`
	Children  []NavItem `json:"children,omitempty"`
}

// NavigationConfig maps a (customer, role) scope to the pages and
// actions its users may see. At most one config is active per scope at
// a time; activating a config deactivates the previous one.
type NavigationConfig struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"` // nil = global default
	Role       Role       `json:"role" db:"role"`
	Name       string     `json:"name" db:"name"`
	Items      []NavItem  `json:"items" db:"-"`
	Version    int        `json:"version" db:"version"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Grants is the flattened page -> action set view of an active config.
// It backs the UI affordance gate; it carries no authority of its own,
// every mutation is re-checked server-side.
type Grants map[string][]string

// Flatten walks the item tree and collects every page's action set.
func (nc *NavigationConfig) Flatten() Grants {
	grants := make(Grants)
	var walk func(items []NavItem)
	walk = func(items []NavItem) {
		for _, item := range items {
			grants[item.PageID] = append(grants[item.PageID], item.ActionIDs...)
			walk(item.Children)
		}
	}
	walk(nc.Items)
	return grants
}

// HasPageAccess reports whether the page is present in the grant set.
func (g Grants) HasPageAccess(pageID string) bool {
	_, ok := g[pageID]
	return ok
}

// HasActionAccess reports whether the action is granted on the page.
func (g Grants) HasActionAccess(pageID, actionID string) bool {
	for _, a := range g[pageID] {
		if a == actionID {
			return true
		}
	}
	return false
}
