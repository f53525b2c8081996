package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operator enumerates the comparison operators a segment rule may use.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNeq         Operator = "neq"
	OpGt          Operator = "gt"
	OpLt          Operator = "lt"
	OpGte         Operator = "gte"
	OpLte         Operator = "lte"
	OpBetween     Operator = "between"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
)

// KnownOperator reports whether op is one of the supported operators.
// Unknown operators are rejected at creation and evaluate to false at match
// time, never as an error.
func KnownOperator(op Operator) bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte, OpBetween, OpContains, OpNotContains:
		return true
	}
	return false
}

// MatchMode combines the rules of a criteria block.
type MatchMode string

const (
	MatchAll MatchMode = "all" // logical AND
	MatchAny MatchMode = "any" // logical OR
)

// RuleValue is the typed scalar (or [min,max] pair for between) a rule
// compares against. Exactly one representation is meaningful per operator;
// the evaluator treats shape mismatches as non-matching.
type RuleValue struct {
	Number *float64  `json:"number,omitempty"`
	Text   *string   `json:"text,omitempty"`
	Bool   *bool     `json:"bool,omitempty"`
	Range  []float64 `json:"range,omitempty"` // [min, max], inclusive
}

// NumberValue builds a numeric rule value.
func NumberValue(n float64) RuleValue { return RuleValue{Number: &n} }

// TextValue builds a string rule value.
func TextValue(s string) RuleValue { return RuleValue{Text: &s} }

// BoolValue builds a boolean rule value.
func BoolValue(b bool) RuleValue { return RuleValue{Bool: &b} }

// RangeValue builds an inclusive [min,max] rule value for between.
func RangeValue(min, max float64) RuleValue { return RuleValue{Range: []float64{min, max}} }

// SegmentRule is one typed comparison against one customer field.
type SegmentRule struct {
	Field    string    `json:"field"`
	Operator Operator  `json:"operator"`
	Value    RuleValue `json:"value"`
}

// SegmentCriteria combines rules with all/any semantics. Criteria with zero
// rules must never match; Validate rejects them at creation time.
type SegmentCriteria struct {
	Match MatchMode     `json:"match"`
	Rules []SegmentRule `json:"rules"`
}

// Validate checks structural soundness of the criteria. It does not verify
// that field names resolve; unresolvable fields simply never match.
func (c SegmentCriteria) Validate() error {
	if c.Match != MatchAll && c.Match != MatchAny {
		return fmt.Errorf("invalid match mode %q", c.Match)
	}
	if len(c.Rules) == 0 {
		return fmt.Errorf("criteria requires at least one rule")
	}
	for i, r := range c.Rules {
		if r.Field == "" {
			return fmt.Errorf("rule %d: field is required", i)
		}
		if !KnownOperator(r.Operator) {
			return fmt.Errorf("rule %d: unknown operator %q", i, r.Operator)
		}
		if r.Operator == OpBetween && len(r.Value.Range) != 2 {
			return fmt.Errorf("rule %d: between requires a [min,max] range", i)
		}
	}
	return nil
}

// SegmentType distinguishes the seeded system catalog from user segments.
type SegmentType string

const (
	SegmentSystem SegmentType = "system"
	SegmentCustom SegmentType = "custom"
)

// AutoAction is a follow-up action configured to fire when a customer enters
// a segment. The engine stores and surfaces these; firing them reuses the
// automation action pipeline.
type AutoAction struct {
	ActionType ActionType `json:"action_type"`
	TemplateID string     `json:"template_id,omitempty"`
	CouponID   string     `json:"coupon_id,omitempty"`
}

// SegmentDefinition is a named declarative filter over a profile's customer
// population. System segments are seeded once per profile and cannot be
// deleted or have their criteria edited; custom segments are fully
// owner-mutable.
type SegmentDefinition struct {
	ID          string          `json:"id" db:"id"`
	ProfileID   string          `json:"profile_id" db:"profile_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Type        SegmentType     `json:"type" db:"type"`
	Criteria    SegmentCriteria `json:"criteria" db:"criteria"`
	Color       string          `json:"color" db:"color"`
	Icon        string          `json:"icon" db:"icon"`
	AutoActions []AutoAction    `json:"auto_actions" db:"auto_actions"`

	// CustomerCount is a cache, recomputed on demand by the registry.
	CustomerCount int  `json:"customer_count" db:"customer_count"`
	IsActive      bool `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CriteriaJSON returns the criteria serialized for storage.
func (s SegmentDefinition) CriteriaJSON() ([]byte, error) {
	return json.Marshal(s.Criteria)
}
