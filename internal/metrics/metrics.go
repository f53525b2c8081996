// Package metrics derives behavioral fields from raw customer records.
//
// Everything here is a pure function of its inputs and the supplied clock:
// no I/O, no side effects. Callers pass "now" explicitly so reads are
// reproducible and tests are deterministic.
package metrics

import (
	"math"
	"strings"
	"time"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

const (
	newCustomerWindowDays = 30
	activeWindowDays      = 60
	atRiskLowerDays       = 45
	atRiskUpperDays       = 90
	churnedAfterDays      = 90

	vipBookingThreshold      = 10
	vipReferralBookingFloor  = 5
	recencyScoreMax          = 40.0
	recencyHorizonDays       = 90.0
	frequencyScorePerBooking = 3
	frequencyBookingCap      = 10
)

// Compute derives the full set of computed fields for one customer.
//
// Day deltas use floor division on millisecond differences, so a visit
// 23 hours ago counts as day 0. A last_seen_at in the future (clock skew)
// yields a negative day count; the recency component is capped at its
// 40-point maximum and the final score clamped to [0,100], so skewed
// clocks can never push the score out of range.
func Compute(c domain.Customer, extras domain.CustomerExtras, now time.Time) domain.ComputedFields {
	f := domain.ComputedFields{
		DaysSinceFirstVisit: daysBetween(c.FirstSeenAt, now),
		DaysSinceLastVisit:  daysBetween(c.LastSeenAt, now),

		HasEmail: c.HasEmail(),
		HasPhone: c.HasPhone(),
		HasLine:  c.HasLine(),

		IsSubscriber: strings.Contains(string(c.Source), "subscriber"),
	}

	f.IsNew = f.DaysSinceFirstVisit <= newCustomerWindowDays
	f.IsActive = f.DaysSinceLastVisit <= activeWindowDays
	f.IsAtRisk = c.TotalBookings >= 2 &&
		f.DaysSinceLastVisit >= atRiskLowerDays && f.DaysSinceLastVisit <= atRiskUpperDays
	f.IsChurned = c.TotalBookings >= 1 && f.DaysSinceLastVisit > churnedAfterDays
	f.IsVIP = c.TotalBookings >= vipBookingThreshold ||
		(c.TotalBookings >= vipReferralBookingFloor && extras.HasReferrals)

	for _, has := range []bool{f.HasEmail, f.HasPhone, f.HasLine} {
		if has {
			f.ContactRichness++
		}
	}

	f.EngagementScore = engagementScore(c, extras, f.DaysSinceLastVisit)
	return f
}

// engagementScore blends recency, frequency, and contact-channel depth into
// a 0-100 composite.
func engagementScore(c domain.Customer, extras domain.CustomerExtras, daysSinceLastVisit int) int {
	recency := recencyScoreMax - (float64(daysSinceLastVisit)/recencyHorizonDays)*recencyScoreMax
	if recency < 0 {
		recency = 0
	}
	if recency > recencyScoreMax {
		recency = recencyScoreMax
	}

	bookings := c.TotalBookings
	if bookings > frequencyBookingCap {
		bookings = frequencyBookingCap
	}
	frequency := float64(bookings * frequencyScorePerBooking)

	depth := 0.0
	if c.HasEmail() {
		depth += 10
	}
	if c.HasLine() {
		depth += 10
	}
	if c.HasPhone() {
		depth += 5
	}
	if extras.HasStamps {
		depth += 5
	}

	score := math.Round(recency + frequency + depth)
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return int(score)
}

// daysBetween returns floor((now-t) in milliseconds / 86_400_000). Negative
// when t is after now.
func daysBetween(t, now time.Time) int {
	ms := now.Sub(t).Milliseconds()
	return int(math.Floor(float64(ms) / 86_400_000))
}
