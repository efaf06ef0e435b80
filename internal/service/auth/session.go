package auth

import (
	"context"
	"errors"
	"log/slog"

	"idstore/internal/domain"
)

// SessionService resolves and destroys sessions. Expiry is checked lazily on
// lookup; the sweep exists to bound table growth, not for correctness.
type SessionService struct {
	store  domain.Store
	clock  domain.Clock
	logger *slog.Logger
}

// NewSessionService creates a session service.
func NewSessionService(store domain.Store, clock domain.Clock, logger *slog.Logger) *SessionService {
	return &SessionService{store: store, clock: clock, logger: logger.With("component", "sessions")}
}

// Resolve loads a live session inside the given transaction. A missing or
// expired session yields NotAuthenticated.
func Resolve(ctx context.Context, tx domain.Tx, clock domain.Clock, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrNotAuthenticated()
	}
	s, err := tx.Sessions().Get(ctx, sessionID)
	if err != nil {
		var failure *domain.Failure
		if errors.As(err, &failure) && failure.Code == domain.CodeNonexistent {
			return nil, domain.ErrNotAuthenticated()
		}
		return nil, err
	}
	if s.Expired(clock.Now()) {
		return nil, domain.ErrNotAuthenticated()
	}
	return s, nil
}

// SweepExpired deletes sessions past their expiry. Run on a schedule.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	n, err := tx.Sessions().DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, domain.ErrStorage(err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "swept expired sessions", "count", n)
	}
	return n, nil
}
