package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/printops/mps-console/pkg/validator"
)

type policyForm struct {
	Name   string `json:"name" validate:"required,min=2"`
	Effect string `json:"effect" validate:"required,effect"`
	Role   string `json:"role" validate:"omitempty,role"`
}

func TestValidate(t *testing.T) {
	v := validator.NewValidator()

	tests := []struct {
		name   string
		form   policyForm
		wantIn string
	}{
		{"valid", policyForm{Name: "allow view", Effect: "ALLOW"}, ""},
		{"valid_with_role", policyForm{Name: "x1", Effect: "DENY", Role: "SystemAdmin"}, ""},
		{"missing_name", policyForm{Effect: "ALLOW"}, "name is required"},
		{"name_too_short", policyForm{Name: "x", Effect: "ALLOW"}, "name must be at least 2 characters"},
		{"bad_effect", policyForm{Name: "ok", Effect: "MAYBE"}, "effect must be ALLOW or DENY"},
		{"bad_role", policyForm{Name: "ok", Effect: "ALLOW", Role: "Root"}, "role must be a known role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.form)
			if tt.wantIn == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantIn)
		})
	}
}
