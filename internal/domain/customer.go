package domain

import "time"

// CustomerSource records how a customer first entered the system.
type CustomerSource string

const (
	SourceManual     CustomerSource = "manual"
	SourceContact    CustomerSource = "contact"
	SourceBooking    CustomerSource = "booking"
	SourceSubscriber CustomerSource = "subscriber"
	SourceReferral   CustomerSource = "referral"
	SourceLine       CustomerSource = "line"
)

// Customer is a single CRM record owned by a profile. It is created on the
// first contact, booking, subscription, or LINE follow, and mutated on every
// subsequent touch. Empty contact fields mean the channel is absent.
type Customer struct {
	ID         string         `json:"id" db:"id"`
	ProfileID  string         `json:"profile_id" db:"profile_id"`
	Name       string         `json:"name" db:"name"`
	Email      string         `json:"email" db:"email"`
	Phone      string         `json:"phone" db:"phone"`
	LineUserID string         `json:"line_user_id" db:"line_user_id"`
	Source     CustomerSource `json:"source" db:"source"`

	TotalBookings int `json:"total_bookings" db:"total_bookings"`
	TotalMessages int `json:"total_messages" db:"total_messages"`

	FirstSeenAt time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at" db:"last_seen_at"`
	Birthday    *time.Time `json:"birthday,omitempty" db:"birthday"`

	Tags []string `json:"tags" db:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasEmail reports whether the customer is reachable by email.
func (c Customer) HasEmail() bool { return c.Email != "" }

// HasPhone reports whether the customer has a phone number on file.
func (c Customer) HasPhone() bool { return c.Phone != "" }

// HasLine reports whether the customer has a linked LINE account.
func (c Customer) HasLine() bool { return c.LineUserID != "" }

// CustomerExtras carries side-table derived booleans that are not stored on
// the customer record itself. They are bulk-fetched per profile and passed
// alongside the customer wherever computed fields or rule matching need them.
type CustomerExtras struct {
	HasReferrals bool `json:"has_referrals"`
	HasStamps    bool `json:"has_stamps"`
}

// ComputedFields are behavioral metrics derived from a Customer plus its
// extras at read time. They are recomputed on every read against a supplied
// "now" and never persisted.
type ComputedFields struct {
	DaysSinceFirstVisit int `json:"days_since_first_visit"`
	DaysSinceLastVisit  int `json:"days_since_last_visit"`

	IsNew        bool `json:"is_new"`
	IsActive     bool `json:"is_active"`
	IsAtRisk     bool `json:"is_at_risk"`
	IsChurned    bool `json:"is_churned"`
	IsVIP        bool `json:"is_vip"`
	IsSubscriber bool `json:"is_subscriber"`

	HasEmail        bool `json:"has_email"`
	HasPhone        bool `json:"has_phone"`
	HasLine         bool `json:"has_line"`
	ContactRichness int  `json:"contact_richness"`

	EngagementScore int `json:"engagement_score"`
}

// Profile is the business page that owns customers, segments, and automation
// rules. Only the fields the engine needs for rendering are carried here.
type Profile struct {
	ID           string `json:"id" db:"id"`
	BusinessName string `json:"business_name" db:"business_name"`
	ReplyEmail   string `json:"reply_email" db:"reply_email"`
}
