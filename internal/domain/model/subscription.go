package model

import (
	"time"
)

// PremiumSubscription grants unlimited downloads to one user while approved
// and not expired.
type PremiumSubscription struct {
	ID         string // UUID
	UserID     string
	Approved   bool
	ExpiresAt  *time.Time // nil means indefinite
	ApprovedBy *string
	ApprovedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ActiveAt evaluates access at the given instant. Expiry is never swept; it
// is only ever observed here.
func (s *PremiumSubscription) ActiveAt(now time.Time) bool {
	if s == nil || !s.Approved {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// ExtendFrom returns the new expiry when a paid period is added at now.
// Unexpired subscriptions extend from their current expiry.
func (s *PremiumSubscription) ExtendFrom(now time.Time, period time.Duration) time.Time {
	start := now
	if s != nil && s.Approved && s.ExpiresAt != nil && s.ExpiresAt.After(now) {
		start = *s.ExpiresAt
	}
	return start.Add(period)
}
