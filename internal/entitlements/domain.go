package entitlements

import "time"

// Entitlement is the (user, course-or-null, access, expiry) record gating
// both course subscriptions and administrator platform access.
//
// A row with a nil CourseID is a self-entitlement: its holder is an
// Administrator and Access=true lifts the course-count and curator
// restrictions. A row with CourseID set is a course subscription held by a
// Learner or Curator.
type Entitlement struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	CourseID  *int64     `json:"course_id,omitempty"`
	Access    bool       `json:"access"`
	DateStart time.Time  `json:"date_start"`
	DateEnd   *time.Time `json:"date_end,omitempty"`
}

// Expired reports whether the entitlement has an end date in the past.
// A nil DateEnd means unlimited validity.
func (e Entitlement) Expired(now time.Time) bool {
	if e.DateEnd == nil {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return e.DateEnd.Before(today)
}

// Delegation is a curator → administrator visibility edge.
type Delegation struct {
	UserID    int64     `json:"user_id"`
	LeadID    int64     `json:"lead_id"`
	CreatedAt time.Time `json:"created_at"`
}
