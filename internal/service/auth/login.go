// Package auth implements the login state machine and session lifecycle.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"idstore/internal/credential"
	"idstore/internal/domain"
	"idstore/internal/events"
	"idstore/internal/ratelimit"
)

// LoginService authenticates principals. Each attempt runs to completion and
// produces either an active session or a classified failure.
type LoginService struct {
	store      domain.Store
	creds      *credential.Service
	limiter    *ratelimit.Limiter
	sink       events.Sink
	clock      domain.Clock
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewLoginService wires the login state machine.
func NewLoginService(
	store domain.Store,
	creds *credential.Service,
	limiter *ratelimit.Limiter,
	sink events.Sink,
	clock domain.Clock,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *LoginService {
	return &LoginService{
		store:      store,
		creds:      creds,
		limiter:    limiter,
		sink:       sink,
		clock:      clock,
		sessionTTL: sessionTTL,
		logger:     logger.With("component", "auth"),
	}
}

// LoginRequest carries one authentication attempt.
type LoginRequest struct {
	Host      string
	UserAgent string
	RequestID string
	Kind      domain.Kind
	Name      string
	Password  string
	Metadata  map[string]string
}

// LoggedIn is the successful outcome: the principal (credential redacted)
// and its fresh session.
type LoggedIn struct {
	Principal *domain.Principal
	Session   *domain.Session
}

// Login runs the attempt state machine:
// rate limit, lookup, ban check, credential verify, session creation.
//
// A nonexistent account fails with the same AuthenticationFailed code as a
// wrong password and emits no event, so callers cannot enumerate accounts.
// Any other storage error propagates unchanged.
func (s *LoginService) Login(ctx context.Context, req LoginRequest) (*LoggedIn, error) {
	// The rate limit gates the attempt before any principal lookup.
	if !s.limiter.Allow(req.Host) {
		s.sink.Emit(ctx, domain.AuditEvent{
			Type:  domain.EventRateLimitExceeded,
			Owner: req.Name,
			Data:  map[string]string{"host": req.Host, "name": req.Name},
		})
		return nil, domain.ErrRateLimitExceeded(req.Host)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	principal, err := tx.Principals().GetByName(ctx, req.Kind, req.Name)
	if err != nil {
		var failure *domain.Failure
		if errors.As(err, &failure) && failure.Code == domain.CodeNonexistent {
			return nil, domain.ErrAuthenticationFailed()
		}
		return nil, err
	}

	ban, err := s.activeBan(ctx, tx, principal.ID)
	if err != nil {
		return nil, err
	}
	if ban != nil {
		return nil, domain.ErrBanned(ban.Reason)
	}

	if !s.creds.Verify(principal.Credential, req.Password) {
		s.sink.Emit(ctx, domain.AuditEvent{
			Type:  domain.EventAuthFailed,
			Owner: principal.ID,
			Data:  map[string]string{"host": req.Host, "principal_id": principal.ID},
		})
		return nil, domain.ErrAuthenticationFailed()
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:          domain.NewID(),
		PrincipalID: principal.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}
	if err := tx.Sessions().Create(ctx, session); err != nil {
		return nil, err
	}
	if err := tx.LoginHistory().Insert(ctx, &domain.LoginRecord{
		ID:          domain.NewID(),
		PrincipalID: principal.ID,
		Host:        req.Host,
		UserAgent:   req.UserAgent,
		Metadata:    req.Metadata,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.ErrStorage(err)
	}

	s.sink.Emit(ctx, domain.AuditEvent{
		Type:  domain.EventLoggedIn,
		Owner: principal.ID,
		Data:  map[string]string{"host": req.Host, "session_id": session.ID},
	})
	s.logger.InfoContext(ctx, "login",
		"principal", principal.Name, "kind", principal.Kind,
		"host", req.Host, "request_id", req.RequestID)

	return &LoggedIn{Principal: principal.Redacted(), Session: session}, nil
}

// activeBan returns the most recently created active ban, or nil. A failed
// ban lookup is a storage fault and surfaces as one; it never denies the
// login on the caller's behalf.
func (s *LoginService) activeBan(ctx context.Context, tx domain.Tx, principalID string) (*domain.Ban, error) {
	bans, err := tx.Bans().ListForPrincipal(ctx, principalID)
	if err != nil {
		s.logger.WarnContext(ctx, "ban lookup failed", "principal_id", principalID, "error", err)
		return nil, err
	}
	now := s.clock.Now()
	for i := range bans {
		if bans[i].ActiveAt(now) {
			return &bans[i], nil
		}
	}
	return nil, nil
}
