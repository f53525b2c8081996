package rules

import (
	"strings"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// Evaluate applies one rule's operator to a resolved field value.
//
// It never panics and never errors: any type mismatch, malformed range, or
// unrecognized operator evaluates to false. The one exception is
// not_contains, which is vacuously true for absent fields and
// non-containable types ("the field does not contain X" holds when there is
// nothing to contain X).
func Evaluate(v Value, rule domain.SegmentRule) bool {
	switch rule.Operator {
	case domain.OpEq:
		return valuesEqual(v, rule.Value)
	case domain.OpNeq:
		if v.Kind == KindAbsent {
			return false
		}
		return !valuesEqual(v, rule.Value)

	case domain.OpGt:
		n, ok := numericPair(v, rule.Value)
		return ok && v.Num > n
	case domain.OpLt:
		n, ok := numericPair(v, rule.Value)
		return ok && v.Num < n
	case domain.OpGte:
		n, ok := numericPair(v, rule.Value)
		return ok && v.Num >= n
	case domain.OpLte:
		n, ok := numericPair(v, rule.Value)
		return ok && v.Num <= n

	case domain.OpBetween:
		if v.Kind != KindNumber || len(rule.Value.Range) != 2 {
			return false
		}
		return v.Num >= rule.Value.Range[0] && v.Num <= rule.Value.Range[1]

	case domain.OpContains:
		return contains(v, rule.Value)
	case domain.OpNotContains:
		return !contains(v, rule.Value)
	}
	return false
}

// valuesEqual is strict equality on the field's native type. Mismatched
// shapes compare unequal; absent fields equal nothing.
func valuesEqual(v Value, rv domain.RuleValue) bool {
	switch v.Kind {
	case KindNumber:
		return rv.Number != nil && v.Num == *rv.Number
	case KindString:
		return rv.Text != nil && v.Str == *rv.Text
	case KindBool:
		return rv.Bool != nil && v.Bool == *rv.Bool
	}
	return false
}

// numericPair extracts the rule's numeric operand when both sides are
// numeric.
func numericPair(v Value, rv domain.RuleValue) (float64, bool) {
	if v.Kind != KindNumber || rv.Number == nil {
		return 0, false
	}
	return *rv.Number, true
}

// contains is a case-insensitive substring check: directly on string
// fields, and over string elements for list fields. Any other field type
// (number, bool, absent) does not contain anything.
func contains(v Value, rv domain.RuleValue) bool {
	if rv.Text == nil {
		return false
	}
	needle := strings.ToLower(*rv.Text)
	switch v.Kind {
	case KindString:
		return strings.Contains(strings.ToLower(v.Str), needle)
	case KindStringList:
		for _, elem := range v.List {
			if strings.Contains(strings.ToLower(elem), needle) {
				return true
			}
		}
	}
	return false
}
