package segments

import (
	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// systemCatalog is the fixed set of segments seeded once per profile.
// Criteria lean on the computed lifecycle flags so the thresholds live in
// one place (internal/metrics) instead of being duplicated per segment.
func systemCatalog() []domain.SegmentDefinition {
	all := func(rules ...domain.SegmentRule) domain.SegmentCriteria {
		return domain.SegmentCriteria{Match: domain.MatchAll, Rules: rules}
	}
	flag := func(field string) domain.SegmentRule {
		return domain.SegmentRule{Field: field, Operator: domain.OpEq, Value: domain.BoolValue(true)}
	}

	return []domain.SegmentDefinition{
		{
			Name:        "New Customers",
			Description: "First seen within the last 30 days",
			Criteria:    all(flag("is_new")),
			Color:       "#22c55e",
			Icon:        "sparkles",
		},
		{
			Name:        "Regulars",
			Description: "Active customers with repeat bookings",
			Criteria: all(
				domain.SegmentRule{Field: "total_bookings", Operator: domain.OpGte, Value: domain.NumberValue(2)},
				flag("is_active"),
			),
			Color: "#3b82f6",
			Icon:  "repeat",
		},
		{
			Name:        "VIP",
			Description: "Top customers by bookings or referrals",
			Criteria:    all(flag("is_vip")),
			Color:       "#eab308",
			Icon:        "crown",
		},
		{
			Name:        "At Risk",
			Description: "Repeat customers drifting away (45-90 days quiet)",
			Criteria:    all(flag("is_at_risk")),
			Color:       "#f97316",
			Icon:        "alert-triangle",
		},
		{
			Name:        "Churned",
			Description: "Previously booked, no visit in over 90 days",
			Criteria:    all(flag("is_churned")),
			Color:       "#ef4444",
			Icon:        "user-x",
		},
		{
			Name:        "Referrers",
			Description: "Customers who brought in referrals",
			Criteria:    all(flag("has_referrals")),
			Color:       "#a855f7",
			Icon:        "share-2",
		},
		{
			Name:        "Subscribers",
			Description: "Joined through a subscription signup",
			Criteria:    all(flag("is_subscriber")),
			Color:       "#14b8a6",
			Icon:        "mail",
		},
		{
			Name:        "LINE Linked",
			Description: "Customers reachable over LINE",
			Criteria:    all(flag("has_line")),
			Color:       "#06c755",
			Icon:        "message-circle",
		},
	}
}
