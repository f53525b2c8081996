// Package rules implements segment rule evaluation: a typed field catalog,
// a single-comparison evaluator, and the all/any criteria matcher.
//
// Field lookup is a closed enum resolved through one switch, not a dynamic
// key→value map, so every reachable field has a declared type and the
// evaluator dispatches on (operator, value kind) pairs instead of runtime
// type sniffing.
package rules

import (
	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// FieldKey identifies one addressable field in the merged customer view:
// raw record fields, computed fields, and extras-derived booleans.
type FieldKey string

const (
	// Raw customer fields
	FieldName          FieldKey = "name"
	FieldEmail         FieldKey = "email"
	FieldPhone         FieldKey = "phone"
	FieldLineUserID    FieldKey = "line_user_id"
	FieldSource        FieldKey = "source"
	FieldTotalBookings FieldKey = "total_bookings"
	FieldTotalMessages FieldKey = "total_messages"
	FieldTags          FieldKey = "tags"

	// Computed fields
	FieldDaysSinceFirstVisit FieldKey = "days_since_first_visit"
	FieldDaysSinceLastVisit  FieldKey = "days_since_last_visit"
	FieldIsNew               FieldKey = "is_new"
	FieldIsActive            FieldKey = "is_active"
	FieldIsAtRisk            FieldKey = "is_at_risk"
	FieldIsChurned           FieldKey = "is_churned"
	FieldIsVIP               FieldKey = "is_vip"
	FieldIsSubscriber        FieldKey = "is_subscriber"
	FieldHasEmail            FieldKey = "has_email"
	FieldHasPhone            FieldKey = "has_phone"
	FieldHasLine             FieldKey = "has_line"
	FieldContactRichness     FieldKey = "contact_richness"
	FieldEngagementScore     FieldKey = "engagement_score"

	// Extras-derived
	FieldHasReferrals FieldKey = "has_referrals"
	FieldHasStamps    FieldKey = "has_stamps"
)

// ValueKind tags the variant carried by a Value.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindNumber
	KindString
	KindBool
	KindStringList
)

// Value is the typed result of resolving a field against one customer.
// Absent values never match any operator except not_contains, which is
// vacuously true on absence.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Bool bool
	List []string
}

// Absent is the zero Value.
var Absent = Value{Kind: KindAbsent}

// Num wraps a numeric field value.
func Num(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Str wraps a string field value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Bl wraps a boolean field value.
func Bl(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// List wraps a string-list field value.
func List(l []string) Value { return Value{Kind: KindStringList, List: l} }

// Resolve maps a field key to its typed value for one customer. Unknown
// keys resolve to Absent, which the evaluator treats as non-matching.
func Resolve(key FieldKey, c domain.Customer, cf domain.ComputedFields, extras domain.CustomerExtras) Value {
	switch key {
	case FieldName:
		return Str(c.Name)
	case FieldEmail:
		return Str(c.Email)
	case FieldPhone:
		return Str(c.Phone)
	case FieldLineUserID:
		return Str(c.LineUserID)
	case FieldSource:
		return Str(string(c.Source))
	case FieldTotalBookings:
		return Num(float64(c.TotalBookings))
	case FieldTotalMessages:
		return Num(float64(c.TotalMessages))
	case FieldTags:
		return List(c.Tags)

	case FieldDaysSinceFirstVisit:
		return Num(float64(cf.DaysSinceFirstVisit))
	case FieldDaysSinceLastVisit:
		return Num(float64(cf.DaysSinceLastVisit))
	case FieldIsNew:
		return Bl(cf.IsNew)
	case FieldIsActive:
		return Bl(cf.IsActive)
	case FieldIsAtRisk:
		return Bl(cf.IsAtRisk)
	case FieldIsChurned:
		return Bl(cf.IsChurned)
	case FieldIsVIP:
		return Bl(cf.IsVIP)
	case FieldIsSubscriber:
		return Bl(cf.IsSubscriber)
	case FieldHasEmail:
		return Bl(cf.HasEmail)
	case FieldHasPhone:
		return Bl(cf.HasPhone)
	case FieldHasLine:
		return Bl(cf.HasLine)
	case FieldContactRichness:
		return Num(float64(cf.ContactRichness))
	case FieldEngagementScore:
		return Num(float64(cf.EngagementScore))

	case FieldHasReferrals:
		return Bl(extras.HasReferrals)
	case FieldHasStamps:
		return Bl(extras.HasStamps)
	}
	return Absent
}

// KnownField reports whether key resolves to a declared field.
func KnownField(key FieldKey) bool {
	return Resolve(key, domain.Customer{}, domain.ComputedFields{}, domain.CustomerExtras{}).Kind != KindAbsent
}
