package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/printops/mps-console/internal/domain"
)

func devicesConfig() *domain.NavigationConfig {
	return &domain.NavigationConfig{
		Role: domain.RoleCustomerAdmin,
		Name: "customer default",
		Items: []domain.NavItem{
			{
				PageID:    "dashboard",
				Label:     "Dashboard",
				Href:      "/dashboard/customer",
				ActionIDs: []string{"view"},
			},
			{
				PageID:    "devices",
				Label:     "Devices",
				Href:      "/devices",
				ActionIDs: []string{"view", "export"},
				Children: []domain.NavItem{
					{
						PageID:    "devices.alerts",
						Label:     "Alerts",
						ActionIDs: []string{"view", "acknowledge"},
					},
				},
			},
		},
	}
}

func TestNavigationConfig_Flatten(t *testing.T) {
	grants := devicesConfig().Flatten()

	assert.ElementsMatch(t, []string{"view"}, grants["dashboard"])
	assert.ElementsMatch(t, []string{"view", "export"}, grants["devices"])
	assert.ElementsMatch(t, []string{"view", "acknowledge"}, grants["devices.alerts"])
}

func TestGrants_PageAndActionAccess(t *testing.T) {
	grants := devicesConfig().Flatten()

	tests := []struct {
		name     string
		pageID   string
		actionID string
		want     bool
	}{
		{"granted_action", "devices", "view", true},
		{"granted_nested_action", "devices.alerts", "acknowledge", true},
		{"missing_action_on_known_page", "devices", "delete", false},
		{"unknown_page", "billing", "view", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, grants.HasActionAccess(tt.pageID, tt.actionID))
		})
	}

	assert.True(t, grants.HasPageAccess("devices"))
	assert.False(t, grants.HasPageAccess("billing"))
}

func TestGrants_EmptyDeniesEverything(t *testing.T) {
	var grants domain.Grants

	assert.False(t, grants.HasPageAccess("devices"))
	assert.False(t, grants.HasActionAccess("devices", "view"))
}
