package rules

import (
	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// Matches decides segment membership for one customer against one criteria
// block. Criteria with zero rules never match, regardless of match mode.
// match=all short-circuits on the first false rule; match=any on the first
// true one.
func Matches(c domain.Customer, cf domain.ComputedFields, crit domain.SegmentCriteria, extras domain.CustomerExtras) bool {
	if len(crit.Rules) == 0 {
		return false
	}

	for _, rule := range crit.Rules {
		hit := Evaluate(Resolve(FieldKey(rule.Field), c, cf, extras), rule)
		switch crit.Match {
		case domain.MatchAny:
			if hit {
				return true
			}
		default: // MatchAll, and the safe default for anything else
			if !hit {
				return false
			}
		}
	}
	return crit.Match != domain.MatchAny
}
