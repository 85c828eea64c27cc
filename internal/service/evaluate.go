package service

import (
	"strings"
	"time"

	"github.com/printops/mps-console/internal/domain"
)

// EvaluationInput is one concrete (subject, action, resource) triple
// for preview evaluation.
type EvaluationInput struct {
	Subject  map[string]interface{}
	Action   string
	Resource map[string]interface{}
}

// Decision is the preview verdict. This simulation exists for the
// policy assistant's test scenarios only; the authoritative decision
// is made server-side in the MPS backend per request.
type Decision struct {
	Effect  domain.Effect `json:"effect"`
	Matched []string      `json:"matched_policies,omitempty"`
	Default bool          `json:"default"` // no policy matched, implicit deny
}

// Evaluate applies the policies to the input. When both an ALLOW and a
// DENY policy match, DENY wins. No match means implicit deny.
func Evaluate(policies []*domain.Policy, input EvaluationInput) Decision {
	decision := Decision{Effect: domain.EffectDeny, Default: true}
	allowed := false

	for _, policy := range policies {
		if !policy.HasAction(input.Action) {
			continue
		}
		if !matcherMatches(policy.Subject, input.Subject) {
			continue
		}
		if !matcherMatches(policy.Resource, input.Resource) {
			continue
		}
		if policy.Conditions != nil && !conditionMatches(*policy.Conditions, input) {
			continue
		}

		decision.Matched = append(decision.Matched, policy.Name)
		decision.Default = false

		if policy.Effect == domain.EffectDeny {
			// DENY overrides ALLOW regardless of order.
			decision.Effect = domain.EffectDeny
			return decision
		}
		allowed = true
	}

	if allowed {
		decision.Effect = domain.EffectAllow
	}
	return decision
}

// matcherMatches checks attribute equality. An empty matcher matches
// everything.
func matcherMatches(m domain.Matcher, attrs map[string]interface{}) bool {
	for key, want := range m.Attributes {
		got, ok := attrs[key]
		if !ok {
			return false
		}
		s, ok := got.(string)
		if !ok || s != want {
			return false
		}
	}
	return true
}

func conditionMatches(node domain.Condition, input EvaluationInput) bool {
	if node.IsGate() {
		if node.Gate == domain.GateOr {
			for _, child := range node.Conditions {
				if conditionMatches(child, input) {
					return true
				}
			}
			return false
		}
		// $and (and anything unknown, which validation rejects upfront)
		for _, child := range node.Conditions {
			if !conditionMatches(child, input) {
				return false
			}
		}
		return true
	}

	return leafMatches(node, input)
}

func leafMatches(leaf domain.Condition, input EvaluationInput) bool {
	value, ok := attributeValue(leaf.Field, input)
	if !ok {
		return false
	}

	switch leaf.DataType {
	case domain.DataTypeString:
		return stringMatches(leaf, value)
	case domain.DataTypeNumber:
		return numberMatches(leaf, value)
	case domain.DataTypeBoolean:
		want, wok := leaf.Value.(bool)
		got, gok := value.(bool)
		return wok && gok && want == got
	case domain.DataTypeArrayString:
		return arrayStringMatches(leaf, value)
	case domain.DataTypeDatetime:
		return datetimeMatches(leaf, value)
	}
	return false
}

// attributeValue resolves "subject.x" against the subject attributes
// and everything else against the resource attributes.
func attributeValue(field string, input EvaluationInput) (interface{}, bool) {
	const subjectPrefix = "subject."
	if strings.HasPrefix(field, subjectPrefix) {
		v, ok := input.Subject[strings.TrimPrefix(field, subjectPrefix)]
		return v, ok
	}
	v, ok := input.Resource[field]
	return v, ok
}

func stringMatches(leaf domain.Condition, value interface{}) bool {
	got, ok := value.(string)
	if !ok {
		return false
	}

	switch leaf.Operator {
	case "equals":
		want, ok := leaf.Value.(string)
		return ok && got == want
	case "contains":
		want, ok := leaf.Value.(string)
		return ok && want != "" && strings.Contains(got, want)
	case "in":
		return valueInList(got, leaf.Value)
	}
	return false
}

func numberMatches(leaf domain.Condition, value interface{}) bool {
	got, ok := toFloat(value)
	if !ok {
		return false
	}

	switch leaf.Operator {
	case "eq":
		want, ok := toFloat(leaf.Value)
		return ok && got == want
	case "gt":
		want, ok := toFloat(leaf.Value)
		return ok && got > want
	case "lt":
		want, ok := toFloat(leaf.Value)
		return ok && got < want
	case "between":
		low, high, ok := toRange(leaf.Value)
		return ok && got >= low && got <= high
	}
	return false
}

func arrayStringMatches(leaf domain.Condition, value interface{}) bool {
	items, ok := toStringSlice(value)
	if !ok {
		return false
	}

	switch leaf.Operator {
	case "contains":
		want, ok := leaf.Value.(string)
		if !ok {
			return false
		}
		for _, item := range items {
			if item == want {
				return true
			}
		}
		return false
	case "in":
		// At least one element present in the wanted list.
		for _, item := range items {
			if valueInList(item, leaf.Value) {
				return true
			}
		}
		return false
	}
	return false
}

func datetimeMatches(leaf domain.Condition, value interface{}) bool {
	got, ok := toTime(value)
	if !ok {
		return false
	}

	switch leaf.Operator {
	case "before":
		want, ok := toTime(leaf.Value)
		return ok && got.Before(want)
	case "after":
		want, ok := toTime(leaf.Value)
		return ok && got.After(want)
	case "between":
		bounds, ok := leaf.Value.([]interface{})
		if !ok || len(bounds) != 2 {
			return false
		}
		low, lok := toTime(bounds[0])
		high, hok := toTime(bounds[1])
		return lok && hok && !got.Before(low) && !got.After(high)
	}
	return false
}

func valueInList(got string, list interface{}) bool {
	items, ok := toStringSlice(list)
	if !ok {
		return false
	}
	for _, item := range items {
		if item == got {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toRange(v interface{}) (float64, float64, bool) {
	bounds, ok := v.([]interface{})
	if !ok || len(bounds) != 2 {
		return 0, 0, false
	}
	low, lok := toFloat(bounds[0])
	high, hok := toFloat(bounds[1])
	return low, high, lok && hok
}

func toStringSlice(v interface{}) ([]string, bool) {
	switch items := v.(type) {
	case []string:
		return items, true
	case []interface{}:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
