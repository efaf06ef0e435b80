// Package command binds each inbound command to one authorization check,
// one transactional database interaction, and one typed response.
package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"idstore/internal/credential"
	"idstore/internal/domain"
	"idstore/internal/events"
	"idstore/internal/policy"
	"idstore/internal/service/auth"
)

// Context is the per-request scratch state threaded through a handler: the
// open transaction, the acting principal and session, a request id, and the
// attempt's "now". It is created per request and discarded with the response.
type Context struct {
	Tx        domain.Tx
	Actor     *domain.Principal
	Session   *domain.Session
	RequestID string
	Now       time.Time
	Creds     *credential.Service

	pending []domain.AuditEvent
}

// Emit queues an audit event. Queued events are delivered only after the
// transaction commits.
func (c *Context) Emit(e domain.AuditEvent) {
	c.pending = append(c.pending, e)
}

// Command is one member of the closed command set. The type parameter ties
// each command to exactly one response type.
type Command[R any] interface {
	// Action translates the command into the security action the policy
	// engine evaluates. A nil action means the command needs a session but
	// no permission (for example Logout).
	Action(actor *domain.Principal) policy.Action

	// Run executes the handler against the open transaction. Handlers read
	// and write only through the Context.
	Run(ctx context.Context, cc *Context) (R, error)
}

// Pipeline is the single entry point for executing commands.
type Pipeline struct {
	store  domain.Store
	creds  *credential.Service
	sink   events.Sink
	clock  domain.Clock
	logger *slog.Logger
}

// NewPipeline wires the command executor.
func NewPipeline(store domain.Store, creds *credential.Service, sink events.Sink, clock domain.Clock, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		creds:  creds,
		sink:   sink,
		clock:  clock,
		logger: logger.With("component", "pipeline"),
	}
}

// redactable lets the pipeline strip secret material from any response that
// embeds principals before it crosses the boundary.
type redactable interface {
	redact()
}

// Execute runs one command for an authenticated session: resolve the
// session, check policy, run the handler in a transaction, commit, redact.
func Execute[R any](ctx context.Context, p *Pipeline, sessionID, requestID string, cmd Command[R]) (R, error) {
	var zero R

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return zero, err
	}
	defer func() { _ = tx.Rollback() }()

	session, err := auth.Resolve(ctx, tx, p.clock, sessionID)
	if err != nil {
		return zero, err
	}
	actor, err := tx.Principals().GetByID(ctx, session.PrincipalID)
	if err != nil {
		// A session whose principal vanished is no longer authenticated.
		var failure *domain.Failure
		if errors.As(err, &failure) && failure.Code == domain.CodeNonexistent {
			return zero, domain.ErrNotAuthenticated()
		}
		return zero, err
	}

	if action := cmd.Action(actor); action != nil {
		if d := policy.Check(action); !d.Permitted {
			p.logger.InfoContext(ctx, "command denied",
				"actor", actor.Name, "request_id", requestID, "rule", d.Message)
			return zero, d.Failure()
		}
	}

	cc := &Context{
		Tx:        tx,
		Actor:     actor,
		Session:   session,
		RequestID: requestID,
		Now:       p.clock.Now(),
		Creds:     p.creds,
	}
	resp, err := cmd.Run(ctx, cc)
	if err != nil {
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, domain.ErrStorage(err)
	}

	for _, e := range cc.pending {
		p.sink.Emit(ctx, e)
	}

	if r, ok := any(&resp).(redactable); ok {
		r.redact()
	}
	return resp, nil
}
