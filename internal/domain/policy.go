package domain

import (
	"time"

	"github.com/google/uuid"
)

// Effect is the outcome a policy produces when it matches.
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// Valid reports whether the effect is ALLOW or DENY.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// Opposite returns the inverse effect.
func (e Effect) Opposite() Effect {
	if e == EffectAllow {
		return EffectDeny
	}
	return EffectAllow
}

// Gate operators for condition groups.
const (
	GateAnd = "$and"
	GateOr  = "$or"
)

// Condition is one node of a policy's condition tree. A node is either
// a gate (Gate set, Conditions non-empty) or a leaf (Field/Operator set).
// Leaves reference subject or resource attributes declared in the
// condition-field catalog.
type Condition struct {
	Gate       string      `json:"gate,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`

	Field    string      `json:"field,omitempty"`
	DataType DataType    `json:"data_type,omitempty"`
	Operator string      `json:"operator,omitempty"`
	Value    interface{} `json:"value,omitempty"`
}

// IsGate reports whether the node combines sub-conditions.
func (c Condition) IsGate() bool {
	return c.Gate != ""
}

// Matcher selects subjects or resources by attribute equality.
type Matcher struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Policy is a rule combining subject/resource matchers, a condition
// tree, an effect and the set of actions it governs. Policies are
// authored here; authoritative evaluation happens server-side in the
// MPS backend. When both an ALLOW and a DENY policy match the same
// (subject, action, resource) triple, DENY wins.
type Policy struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"` // nil = global
	Name       string     `json:"name" db:"name"`
	Effect     Effect     `json:"effect" db:"effect"`
	Actions    []string   `json:"actions" db:"-"`
	Subject    Matcher    `json:"subject" db:"-"`
	Resource   Matcher    `json:"resource" db:"-"`
	Conditions *Condition `json:"conditions,omitempty" db:"-"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// HasAction reports whether the policy governs the given action.
func (p *Policy) HasAction(action string) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// OverlapsActions returns the actions governed by both policies.
func (p *Policy) OverlapsActions(other *Policy) []string {
	var overlap []string
	for _, a := range p.Actions {
		if other.HasAction(a) {
			overlap = append(overlap, a)
		}
	}
	return overlap
}

// SameScope reports whether two policies can apply to the same customer:
// equal customer ids, or at least one of them global.
func (p *Policy) SameScope(other *Policy) bool {
	if p.CustomerID == nil || other.CustomerID == nil {
		return true
	}
	return *p.CustomerID == *other.CustomerID
}
