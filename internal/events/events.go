// Package events delivers structured security events to configured sinks.
// Emission is fire-and-forget: a failing sink never fails the operation
// that produced the event.
package events

import (
	"context"
	"log/slog"

	"idstore/internal/domain"
)

// Sink accepts structured security and audit events.
type Sink interface {
	Emit(ctx context.Context, e domain.AuditEvent)
}

// SlogSink logs every event through a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink writing to the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With("component", "events")}
}

func (s *SlogSink) Emit(ctx context.Context, e domain.AuditEvent) {
	attrs := []any{"type", e.Type, "owner", e.Owner}
	for k, v := range e.Data {
		attrs = append(attrs, k, v)
	}
	s.logger.InfoContext(ctx, "security event", attrs...)
}

// RepoSink appends every event to the audit store.
type RepoSink struct {
	repo   domain.AuditRepository
	clock  domain.Clock
	logger *slog.Logger
}

// NewRepoSink creates a sink persisting events through the audit repository.
func NewRepoSink(repo domain.AuditRepository, clock domain.Clock, logger *slog.Logger) *RepoSink {
	return &RepoSink{repo: repo, clock: clock, logger: logger.With("component", "events")}
}

func (s *RepoSink) Emit(ctx context.Context, e domain.AuditEvent) {
	if e.ID == "" {
		e.ID = domain.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock.Now()
	}
	if err := s.repo.Insert(ctx, &e); err != nil {
		s.logger.WarnContext(ctx, "drop audit event", "type", e.Type, "error", err)
	}
}

// Multi fans an event out to every sink.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, e domain.AuditEvent) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}

// Recorder is an in-memory sink for tests.
type Recorder struct {
	Events []domain.AuditEvent
}

func (r *Recorder) Emit(_ context.Context, e domain.AuditEvent) {
	r.Events = append(r.Events, e)
}
