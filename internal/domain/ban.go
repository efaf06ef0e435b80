package domain

import "time"

// Ban suppresses authentication for a principal. A nil expiry is permanent;
// a past expiry leaves the ban inert but does not delete it.
type Ban struct {
	ID          string
	PrincipalID string
	Reason      string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// ActiveAt reports whether the ban suppresses logins at the given instant.
func (b *Ban) ActiveAt(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}
