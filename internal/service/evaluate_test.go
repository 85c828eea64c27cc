package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/service"
)

func allowViewPolicy() *domain.Policy {
	return &domain.Policy{
		Name:    "allow view",
		Effect:  domain.EffectAllow,
		Actions: []string{"devices:view"},
	}
}

func TestEvaluate_ImplicitDeny(t *testing.T) {
	decision := service.Evaluate(nil, service.EvaluationInput{Action: "devices:view"})

	assert.Equal(t, domain.EffectDeny, decision.Effect)
	assert.True(t, decision.Default)
	assert.Empty(t, decision.Matched)
}

func TestEvaluate_AllowMatches(t *testing.T) {
	decision := service.Evaluate([]*domain.Policy{allowViewPolicy()}, service.EvaluationInput{
		Action: "devices:view",
	})

	assert.Equal(t, domain.EffectAllow, decision.Effect)
	assert.False(t, decision.Default)
	assert.Equal(t, []string{"allow view"}, decision.Matched)
}

func TestEvaluate_DenyOverridesAllow(t *testing.T) {
	deny := &domain.Policy{
		Name:    "deny view",
		Effect:  domain.EffectDeny,
		Actions: []string{"devices:view"},
	}

	// Order must not matter
	for _, policies := range [][]*domain.Policy{
		{allowViewPolicy(), deny},
		{deny, allowViewPolicy()},
	} {
		decision := service.Evaluate(policies, service.EvaluationInput{Action: "devices:view"})
		assert.Equal(t, domain.EffectDeny, decision.Effect)
		assert.False(t, decision.Default)
		assert.Contains(t, decision.Matched, "deny view")
	}
}

func TestEvaluate_ActionMustMatch(t *testing.T) {
	decision := service.Evaluate([]*domain.Policy{allowViewPolicy()}, service.EvaluationInput{
		Action: "devices:delete",
	})

	assert.Equal(t, domain.EffectDeny, decision.Effect)
	assert.True(t, decision.Default)
}

func TestEvaluate_SubjectMatcher(t *testing.T) {
	policy := allowViewPolicy()
	policy.Subject = domain.Matcher{
		Type:       "user",
		Attributes: map[string]string{"role": "CustomerAdmin"},
	}

	matched := service.Evaluate([]*domain.Policy{policy}, service.EvaluationInput{
		Action:  "devices:view",
		Subject: map[string]interface{}{"role": "CustomerAdmin"},
	})
	assert.Equal(t, domain.EffectAllow, matched.Effect)

	mismatched := service.Evaluate([]*domain.Policy{policy}, service.EvaluationInput{
		Action:  "devices:view",
		Subject: map[string]interface{}{"role": "User"},
	})
	assert.Equal(t, domain.EffectDeny, mismatched.Effect)
	assert.True(t, mismatched.Default)
}

func TestEvaluate_ConditionLeaves(t *testing.T) {
	tests := []struct {
		name      string
		condition domain.Condition
		input     service.EvaluationInput
		want      bool
	}{
		{
			"string_equals",
			domain.Condition{Field: "model", DataType: domain.DataTypeString, Operator: "equals", Value: "X500"},
			service.EvaluationInput{Resource: map[string]interface{}{"model": "X500"}},
			true,
		},
		{
			"string_contains",
			domain.Condition{Field: "model", DataType: domain.DataTypeString, Operator: "contains", Value: "50"},
			service.EvaluationInput{Resource: map[string]interface{}{"model": "X500"}},
			true,
		},
		{
			"string_in",
			domain.Condition{Field: "model", DataType: domain.DataTypeString, Operator: "in", Value: []interface{}{"X500", "X700"}},
			service.EvaluationInput{Resource: map[string]interface{}{"model": "X700"}},
			true,
		},
		{
			"number_gt",
			domain.Condition{Field: "page_count", DataType: domain.DataTypeNumber, Operator: "gt", Value: 1000},
			service.EvaluationInput{Resource: map[string]interface{}{"page_count": 2000}},
			true,
		},
		{
			"number_gt_false",
			domain.Condition{Field: "page_count", DataType: domain.DataTypeNumber, Operator: "gt", Value: 1000},
			service.EvaluationInput{Resource: map[string]interface{}{"page_count": 500}},
			false,
		},
		{
			"number_between",
			domain.Condition{Field: "page_count", DataType: domain.DataTypeNumber, Operator: "between", Value: []interface{}{100, 1000}},
			service.EvaluationInput{Resource: map[string]interface{}{"page_count": 500}},
			true,
		},
		{
			"boolean_eq",
			domain.Condition{Field: "subject.is_default_customer", DataType: domain.DataTypeBoolean, Operator: "eq", Value: true},
			service.EvaluationInput{Subject: map[string]interface{}{"is_default_customer": true}},
			true,
		},
		{
			"array_contains",
			domain.Condition{Field: "tags", DataType: domain.DataTypeArrayString, Operator: "contains", Value: "color"},
			service.EvaluationInput{Resource: map[string]interface{}{"tags": []interface{}{"mono", "color"}}},
			true,
		},
		{
			"datetime_before",
			domain.Condition{Field: "installed_at", DataType: domain.DataTypeDatetime, Operator: "before", Value: "2026-01-01T00:00:00Z"},
			service.EvaluationInput{Resource: map[string]interface{}{"installed_at": "2025-06-15T12:00:00Z"}},
			true,
		},
		{
			"missing_attribute",
			domain.Condition{Field: "model", DataType: domain.DataTypeString, Operator: "equals", Value: "X500"},
			service.EvaluationInput{Resource: map[string]interface{}{}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := allowViewPolicy()
			policy.Conditions = &tt.condition

			tt.input.Action = "devices:view"
			decision := service.Evaluate([]*domain.Policy{policy}, tt.input)

			if tt.want {
				assert.Equal(t, domain.EffectAllow, decision.Effect)
			} else {
				assert.Equal(t, domain.EffectDeny, decision.Effect)
				assert.True(t, decision.Default)
			}
		})
	}
}

func TestEvaluate_GateSemantics(t *testing.T) {
	leafModel := domain.Condition{Field: "model", DataType: domain.DataTypeString, Operator: "equals", Value: "X500"}
	leafCount := domain.Condition{Field: "page_count", DataType: domain.DataTypeNumber, Operator: "gt", Value: 1000}

	input := service.EvaluationInput{
		Action:   "devices:view",
		Resource: map[string]interface{}{"model": "X500", "page_count": 10},
	}

	andPolicy := allowViewPolicy()
	andPolicy.Conditions = &domain.Condition{Gate: domain.GateAnd, Conditions: []domain.Condition{leafModel, leafCount}}
	assert.Equal(t, domain.EffectDeny, service.Evaluate([]*domain.Policy{andPolicy}, input).Effect)

	orPolicy := allowViewPolicy()
	orPolicy.Conditions = &domain.Condition{Gate: domain.GateOr, Conditions: []domain.Condition{leafModel, leafCount}}
	assert.Equal(t, domain.EffectAllow, service.Evaluate([]*domain.Policy{orPolicy}, input).Effect)
}
