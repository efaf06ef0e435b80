package command_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idstore/internal/command"
	"idstore/internal/domain"
	"idstore/internal/permission"
)

func (f *fixture) seedUsers(n int) {
	f.t.Helper()
	for i := 0; i < n; i++ {
		f.seedPrincipal(domain.KindUser, fmt.Sprintf("user-%02d", i))
	}
}

func namesOf(items []domain.Principal) []string {
	names := make([]string, len(items))
	for i, p := range items {
		names[i] = p.Name
	}
	return names
}

func TestSearch_BeginClampsPageSize(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)
	f.seedUsers(3)

	resp, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchUsersByNameBegin{
		Query: domain.SearchQuery{PageSize: 5000},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page.PageIndex)
	assert.Equal(t, 1, resp.Page.PageCount)
	assert.Len(t, resp.Page.Items, 3)

	// The clamped size, not the requested one, is persisted in the cursor.
	tx, err := f.store.Begin(f.ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	stored, err := tx.Sessions().Get(f.ctx, sess.ID)
	require.NoError(t, err)
	cursor, ok := stored.Cursor(domain.SearchUsersByName)
	require.True(t, ok)
	assert.Equal(t, domain.MaxPageSize, cursor.Query.PageSize)
}

func TestSearch_BeginDefaultsPageSize(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)
	f.seedUsers(2)

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchUsersByNameBegin{})
	require.NoError(t, err)

	tx, err := f.store.Begin(f.ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	stored, err := tx.Sessions().Get(f.ctx, sess.ID)
	require.NoError(t, err)
	cursor, ok := stored.Cursor(domain.SearchUsersByName)
	require.True(t, ok)
	assert.Equal(t, domain.DefaultPageSize, cursor.Query.PageSize)
}

func TestSearch_Pagination(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)
	f.seedUsers(7)

	page, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchUsersByNameBegin{
		Query: domain.SearchQuery{PageSize: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page.PageIndex)
	assert.Equal(t, 3, page.Page.PageCount)
	assert.Equal(t, []string{"user-00", "user-01", "user-02"}, namesOf(page.Page.Items))

	page, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-2", command.SearchUsersByNameNext{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page.PageIndex)
	assert.Equal(t, 3, page.Page.Offset)
	assert.Equal(t, []string{"user-03", "user-04", "user-05"}, namesOf(page.Page.Items))

	page, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-3", command.SearchUsersByNameNext{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page.PageIndex)
	assert.Equal(t, []string{"user-06"}, namesOf(page.Page.Items))

	// Advancing past the last page re-serves the last page.
	page, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-4", command.SearchUsersByNameNext{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page.PageIndex)
	assert.Equal(t, []string{"user-06"}, namesOf(page.Page.Items))

	page, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-5", command.SearchUsersByNamePrevious{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page.PageIndex)

	page, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-6", command.SearchUsersByNamePrevious{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page.PageIndex)

	// Stepping before the first page re-serves the first page.
	page, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-7", command.SearchUsersByNamePrevious{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page.PageIndex)
	assert.Equal(t, []string{"user-00", "user-01", "user-02"}, namesOf(page.Page.Items))
}

func TestSearch_NextWithoutBegin(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchUsersByNameNext{})
	failure := failureOf(t, err)
	assert.Equal(t, domain.CodeNoSuchCursor, failure.Code)
}

func TestSearch_BeginReplacesCursor(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)
	f.seedUsers(7)

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchUsersByNameBegin{
		Query: domain.SearchQuery{PageSize: 3},
	})
	require.NoError(t, err)
	_, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-2", command.SearchUsersByNameNext{})
	require.NoError(t, err)

	page, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-3", command.SearchUsersByNameBegin{
		Query: domain.SearchQuery{PageSize: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page.PageIndex)
	assert.Equal(t, 2, page.Page.PageCount)
	assert.Len(t, page.Page.Items, 5)
}

func TestSearch_CursorsIndependentPerKind(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead, permission.AdminRead)
	f.seedUsers(5)
	f.seedPrincipal(domain.KindAdmin, "aux-admin")

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchUsersByNameBegin{
		Query: domain.SearchQuery{PageSize: 2},
	})
	require.NoError(t, err)
	_, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-2", command.SearchUsersByNameNext{})
	require.NoError(t, err)

	admins, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-3", command.SearchAdminsBegin{})
	require.NoError(t, err)
	assert.Equal(t, 1, admins.Page.PageIndex)

	// Beginning the admin search left the user cursor on page 2.
	users, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-4", command.SearchUsersByNameNext{})
	require.NoError(t, err)
	assert.Equal(t, 3, users.Page.PageIndex)
}

func TestSearch_ByNameFilterAndOrder(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)
	f.seedPrincipal(domain.KindUser, "alpha")
	f.seedPrincipal(domain.KindUser, "beta")
	f.seedPrincipal(domain.KindUser, "beta-two")

	page, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchUsersByNameBegin{
		Query: domain.SearchQuery{Filter: "beta", Descending: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta-two", "beta"}, namesOf(page.Page.Items))
}

func TestSearch_ByEmail(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)
	f.seedPrincipal(domain.KindUser, "carol")
	f.seedPrincipal(domain.KindUser, "dave")

	page, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchUsersByEmailBegin{
		Query: domain.SearchQuery{Filter: "carol@"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, namesOf(page.Page.Items))
}

func TestSearch_AdminsRequiresAdminRead(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchAdminsBegin{})
	failure := failureOf(t, err)
	assert.Equal(t, domain.CodeDenied, failure.Code)
	assert.Equal(t, "Reading admins requires the ADMIN_READ permission.", failure.Message)
}

func TestSearch_ResultsRedacted(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)
	f.seedUsers(2)

	page, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchUsersByNameBegin{})
	require.NoError(t, err)
	require.NotEmpty(t, page.Page.Items)
	for _, p := range page.Page.Items {
		assert.True(t, p.Credential.Redacted())
	}
}

func TestSearch_AuditEvents(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("auditor", permission.AuditRead)

	tx, err := f.store.Begin(f.ctx)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, tx.Audit().Insert(f.ctx, &domain.AuditEvent{
			ID:        domain.NewID(),
			Type:      domain.EventLoggedIn,
			Owner:     fmt.Sprintf("principal-%d", i),
			CreatedAt: testNow,
		}))
	}
	require.NoError(t, tx.Commit())

	page, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchAuditEventsBegin{
		Query: domain.SearchQuery{PageSize: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page.PageCount)
	assert.Len(t, page.Page.Items, 3)

	page, err = command.Execute(f.ctx, f.pipe, sess.ID, "req-2", command.SearchAuditEventsNext{})
	require.NoError(t, err)
	assert.Len(t, page.Page.Items, 1)
}

func TestSearch_AuditRequiresAuditRead(t *testing.T) {
	f := newFixture(t)
	_, sess := f.seedActor("reader", permission.UserRead)

	_, err := command.Execute(f.ctx, f.pipe, sess.ID, "req-1", command.SearchAuditEventsBegin{})
	failure := failureOf(t, err)
	assert.Equal(t, domain.CodeDenied, failure.Code)
	assert.Equal(t, "Reading audit events requires the AUDIT_READ permission.", failure.Message)
}
