package command_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idstore/internal/command"
	"idstore/internal/credential"
	internaldb "idstore/internal/db"
	"idstore/internal/db/repository"
	"idstore/internal/domain"
	"idstore/internal/events"
	"idstore/internal/permission"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *repository.Store
	creds *credential.Service
	rec   *events.Recorder
	pipe  *command.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := internaldb.OpenTestSQLite(t)
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: repository.NewStore(db),
		creds: credential.NewService(1000),
		rec:   &events.Recorder{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.pipe = command.NewPipeline(f.store, f.creds, f.rec, domain.FixedClock{Instant: testNow}, logger)
	return f
}

func (f *fixture) seedPrincipal(kind domain.Kind, name string, ps ...permission.Permission) *domain.Principal {
	f.t.Helper()
	c, err := f.creds.Hash("password-" + name)
	require.NoError(f.t, err)
	p := &domain.Principal{
		ID:          domain.NewID(),
		Kind:        kind,
		Name:        name,
		DisplayName: "Principal " + name,
		Emails:      []string{name + "@example.com"},
		Credential:  c,
		Permissions: permission.NewSet(ps...),
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	tx, err := f.store.Begin(f.ctx)
	require.NoError(f.t, err)
	require.NoError(f.t, tx.Principals().Create(f.ctx, p))
	require.NoError(f.t, tx.Commit())
	return p
}

func (f *fixture) seedSession(principalID string) *domain.Session {
	f.t.Helper()
	s := &domain.Session{
		ID:          domain.NewID(),
		PrincipalID: principalID,
		CreatedAt:   testNow,
		ExpiresAt:   testNow.Add(time.Hour),
	}
	tx, err := f.store.Begin(f.ctx)
	require.NoError(f.t, err)
	require.NoError(f.t, tx.Sessions().Create(f.ctx, s))
	require.NoError(f.t, tx.Commit())
	return s
}

// seedActor provisions an admin with the given permissions plus a live
// session, the common starting point of pipeline tests.
func (f *fixture) seedActor(name string, ps ...permission.Permission) (*domain.Principal, *domain.Session) {
	f.t.Helper()
	p := f.seedPrincipal(domain.KindAdmin, name, ps...)
	return p, f.seedSession(p.ID)
}

func failureOf(t *testing.T, err error) *domain.Failure {
	t.Helper()
	require.Error(t, err)
	f, ok := err.(*domain.Failure)
	require.True(t, ok, "expected *domain.Failure, got %T", err)
	return f
}

func TestExecute_NoSession(t *testing.T) {
	f := newFixture(t)

	_, err := command.Execute(f.ctx, f.pipe, "", "req-1", command.UserGet{ID: "x"})
	assert.Equal(t, domain.CodeNotAuthenticated, failureOf(t, err).Code)
}

func TestExecute_UnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := command.Execute(f.ctx, f.pipe, domain.NewID(), "req-1", command.UserGet{ID: "x"})
	assert.Equal(t, domain.CodeNotAuthenticated, failureOf(t, err).Code)
}

func TestExecute_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	actor := f.seedPrincipal(domain.KindAdmin, "root", permission.UserRead)
	stale := &domain.Session{
		ID:          domain.NewID(),
		PrincipalID: actor.ID,
		CreatedAt:   testNow.Add(-2 * time.Hour),
		ExpiresAt:   testNow.Add(-time.Hour),
	}
	tx, err := f.store.Begin(f.ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Sessions().Create(f.ctx, stale))
	require.NoError(t, tx.Commit())

	_, err = command.Execute(f.ctx, f.pipe, stale.ID, "req-1", command.UserGet{ID: "x"})
	assert.Equal(t, domain.CodeNotAuthenticated, failureOf(t, err).Code)
}

func TestExecute_DeniedWithoutPermission(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("powerless")

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.AdminCreate{
		Name:     "newadmin",
		Password: "secret",
	})
	failure := failureOf(t, err)
	assert.Equal(t, domain.CodeDenied, failure.Code)
	assert.Equal(t, "Creating admins requires the ADMIN_CREATE permission.", failure.Message)
	assert.Empty(t, f.rec.Events, "denied commands emit nothing")
}

func TestExecute_AdminCreateBoundedByCreatorClosure(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("creator", permission.AdminCreate)

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.AdminCreate{
		Name:        "overreach",
		Password:    "secret",
		Permissions: permission.NewSet(permission.AdminCreate, permission.AdminWrite),
	})
	failure := failureOf(t, err)
	assert.Equal(t, domain.CodeDenied, failure.Code)
	assert.Equal(t,
		"The current admin cannot grant the following permissions: [ADMIN_WRITE]",
		failure.Message)

	// The denied create left no principal behind.
	tx, err := f.store.Begin(f.ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	_, err = tx.Principals().GetByName(f.ctx, domain.KindAdmin, "overreach")
	assert.Equal(t, domain.CodeNonexistent, failureOf(t, err).Code)
}

func TestExecute_AdminCreateWithinClosure(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("creator", permission.AdminCreate, permission.AdminWrite)

	// ADMIN_WRITE implies ADMIN_WRITE_SELF, so requesting the self variant
	// stays inside the creator's closure.
	resp, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.AdminCreate{
		Name:        "junior",
		Emails:      []string{"junior@example.com"},
		Password:    "secret",
		Permissions: permission.NewSet(permission.AdminWriteSelf),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindAdmin, resp.Principal.Kind)
	assert.True(t, resp.Principal.Permissions.Implies(permission.AdminWriteSelf))
}

func TestExecute_ResponseRedacted(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("root", permission.UserCreate)

	resp, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.UserCreate{
		Name:     "alice",
		Emails:   []string{"alice@example.com"},
		Password: "hunter2",
	})
	require.NoError(t, err)
	assert.True(t, resp.Principal.Credential.Redacted())
	assert.Empty(t, resp.Principal.Credential.Hash)

	// The stored row keeps the real credential.
	tx, err := f.store.Begin(f.ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	stored, err := tx.Principals().GetByID(f.ctx, resp.Principal.ID)
	require.NoError(t, err)
	assert.False(t, stored.Credential.Redacted())
	assert.True(t, f.creds.Verify(stored.Credential, "hunter2"))
}

func TestExecute_EventsEmittedAfterCommit(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("root", permission.UserCreate)

	resp, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.UserCreate{
		Name:     "bob",
		Emails:   []string{"bob@example.com"},
		Password: "secret",
	})
	require.NoError(t, err)
	require.Len(t, f.rec.Events, 1)
	assert.Equal(t, domain.EventPrincipalCreated, f.rec.Events[0].Type)
	assert.Equal(t, resp.Principal.ID, f.rec.Events[0].Owner)
}

func TestExecute_FailedCommandEmitsNothing(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("root", permission.UserRead)

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.UserGet{ID: domain.NewID()})
	assert.Equal(t, domain.CodeNonexistent, failureOf(t, err).Code)
	assert.Empty(t, f.rec.Events)
}

func TestExecute_ValidationRollsBack(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("root", permission.UserCreate)

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.UserCreate{
		Name:     "Not A Valid Name",
		Password: "secret",
	})
	assert.Equal(t, domain.CodeValidation, failureOf(t, err).Code)
	assert.Empty(t, f.rec.Events)
}

func TestExecute_SelfReadException(t *testing.T) {
	f := newFixture(t)
	actor, sess := f.seedActor("selfish", permission.AdminReadSelf)
	other := f.seedPrincipal(domain.KindAdmin, "other")

	resp, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.AdminGet{ID: actor.ID})
	require.NoError(t, err)
	assert.Equal(t, actor.ID, resp.Principal.ID)

	_, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-2", command.AdminGet{ID: other.ID})
	failure := failureOf(t, err)
	assert.Equal(t, domain.CodeDenied, failure.Code)
	assert.Equal(t, "Reading admins requires the ADMIN_READ permission.", failure.Message)
}

func TestExecute_PermissionGrantAndRevoke(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("granter", permission.AdminWrite, permission.UserRead)
	target := f.seedPrincipal(domain.KindAdmin, "target")

	resp, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.PermissionGrant{
		TargetID:   target.ID,
		Permission: permission.UserRead,
	})
	require.NoError(t, err)
	assert.True(t, resp.Principal.Permissions.Implies(permission.UserRead))

	// Granting a permission the actor's closure does not cover is refused.
	_, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-2", command.PermissionGrant{
		TargetID:   target.ID,
		Permission: permission.AuditRead,
	})
	failure := failureOf(t, err)
	assert.Equal(t, domain.CodeDenied, failure.Code)
	assert.Equal(t,
		"The current admin cannot grant the following permissions: [AUDIT_READ]",
		failure.Message)

	resp, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-3", command.PermissionRevoke{
		TargetID:   target.ID,
		Permission: permission.UserRead,
	})
	require.NoError(t, err)
	assert.False(t, resp.Principal.Permissions.Implies(permission.UserRead))
}

func TestExecute_BanLifecycle(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("enforcer", permission.UserWrite)
	victim := f.seedPrincipal(domain.KindUser, "victim")

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.BanCreate{
		PrincipalID: victim.ID,
	})
	assert.Equal(t, domain.CodeValidation, failureOf(t, err).Code)

	resp, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-2", command.BanCreate{
		PrincipalID: victim.ID,
		Reason:      "abuse",
	})
	require.NoError(t, err)
	assert.Equal(t, "abuse", resp.Ban.Reason)
	assert.Nil(t, resp.Ban.ExpiresAt)

	_, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-3", command.BanDelete{BanID: resp.Ban.ID})
	require.NoError(t, err)
}

func TestExecute_LogoutDestroysSession(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("leaver")

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.Logout{})
	require.NoError(t, err)

	// The destroyed session no longer authenticates.
	_, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-2", command.Logout{})
	assert.Equal(t, domain.CodeNotAuthenticated, failureOf(t, err).Code)
}
