package domain

import "time"

// Session is the server-side state of an authenticated principal. It is
// mutable only through the command pipeline and is destroyed on logout or
// expiry. Cursors holds at most one in-progress search per kind.
type Session struct {
	ID          string
	PrincipalID string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Cursors     map[SearchKind]*SearchCursor
}

// Expired reports whether the session is past its expiry. Lookups treat an
// expired session as absent.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Cursor returns the in-progress search of the given kind, if any.
func (s *Session) Cursor(kind SearchKind) (*SearchCursor, bool) {
	c, ok := s.Cursors[kind]
	return c, ok
}

// SetCursor installs a cursor, replacing any prior cursor of the same kind.
func (s *Session) SetCursor(kind SearchKind, c *SearchCursor) {
	if s.Cursors == nil {
		s.Cursors = make(map[SearchKind]*SearchCursor, 1)
	}
	s.Cursors[kind] = c
}
