package command

import (
	"context"

	"idstore/internal/domain"
	"idstore/internal/policy"
)

// pager implements the search sub-protocol shared by every list command:
// begin clamps the page size, computes the page count, and installs a fresh
// cursor; next/previous move the stored cursor within [1, pageCount] and
// re-run the query at the new offset.
type pager[T any] struct {
	kind  domain.SearchKind
	count func(ctx context.Context, cc *Context, q domain.SearchQuery) (int64, error)
	fetch func(ctx context.Context, cc *Context, q domain.SearchQuery, offset, limit int) ([]T, error)
}

func (p pager[T]) begin(ctx context.Context, cc *Context, q domain.SearchQuery) (domain.Page[T], error) {
	q = q.Clamped()
	total, err := p.count(ctx, cc, q)
	if err != nil {
		return domain.Page[T]{}, err
	}
	cursor := domain.NewSearchCursor(q, total)
	// A new begin replaces any prior cursor of the same kind.
	cc.Session.SetCursor(p.kind, cursor)
	if err := cc.Tx.Sessions().UpdateCursors(ctx, cc.Session); err != nil {
		return domain.Page[T]{}, err
	}
	return p.pageAt(ctx, cc, cursor)
}

func (p pager[T]) move(ctx context.Context, cc *Context, delta int) (domain.Page[T], error) {
	cursor, ok := cc.Session.Cursor(p.kind)
	if !ok {
		return domain.Page[T]{}, domain.ErrNoSuchCursor(p.kind)
	}
	cursor.Advance(delta)
	if err := cc.Tx.Sessions().UpdateCursors(ctx, cc.Session); err != nil {
		return domain.Page[T]{}, err
	}
	return p.pageAt(ctx, cc, cursor)
}

func (p pager[T]) pageAt(ctx context.Context, cc *Context, cursor *domain.SearchCursor) (domain.Page[T], error) {
	items, err := p.fetch(ctx, cc, cursor.Query, cursor.Offset(), cursor.Query.PageSize)
	if err != nil {
		return domain.Page[T]{}, err
	}
	return domain.Page[T]{
		Items:     items,
		PageIndex: cursor.PageIndex,
		PageCount: cursor.PageCount,
		Offset:    cursor.Offset(),
	}, nil
}

func principalsByName(kind domain.SearchKind, pk domain.Kind) pager[domain.Principal] {
	return pager[domain.Principal]{
		kind: kind,
		count: func(ctx context.Context, cc *Context, q domain.SearchQuery) (int64, error) {
			return cc.Tx.Principals().CountByName(ctx, pk, q)
		},
		fetch: func(ctx context.Context, cc *Context, q domain.SearchQuery, offset, limit int) ([]domain.Principal, error) {
			return cc.Tx.Principals().SearchByName(ctx, pk, q, offset, limit)
		},
	}
}

func usersByEmail() pager[domain.Principal] {
	return pager[domain.Principal]{
		kind: domain.SearchUsersByEmail,
		count: func(ctx context.Context, cc *Context, q domain.SearchQuery) (int64, error) {
			return cc.Tx.Principals().CountByEmail(ctx, domain.KindUser, q)
		},
		fetch: func(ctx context.Context, cc *Context, q domain.SearchQuery, offset, limit int) ([]domain.Principal, error) {
			return cc.Tx.Principals().SearchByEmail(ctx, domain.KindUser, q, offset, limit)
		},
	}
}

func auditEvents() pager[domain.AuditEvent] {
	return pager[domain.AuditEvent]{
		kind: domain.SearchAuditEvents,
		count: func(ctx context.Context, cc *Context, q domain.SearchQuery) (int64, error) {
			return cc.Tx.Audit().Count(ctx, q)
		},
		fetch: func(ctx context.Context, cc *Context, q domain.SearchQuery, offset, limit int) ([]domain.AuditEvent, error) {
			return cc.Tx.Audit().Search(ctx, q, offset, limit)
		},
	}
}

// === users by name ===

type SearchUsersByNameBegin struct {
	Query domain.SearchQuery
}

func (SearchUsersByNameBegin) Action(actor *domain.Principal) policy.Action {
	return policy.UserRead{Actor: actor}
}

func (c SearchUsersByNameBegin) Run(ctx context.Context, cc *Context) (PrincipalPage, error) {
	pg, err := principalsByName(domain.SearchUsersByName, domain.KindUser).begin(ctx, cc, c.Query)
	return PrincipalPage{Page: pg}, err
}

type SearchUsersByNameNext struct{}

func (SearchUsersByNameNext) Action(actor *domain.Principal) policy.Action {
	return policy.UserRead{Actor: actor}
}

func (SearchUsersByNameNext) Run(ctx context.Context, cc *Context) (PrincipalPage, error) {
	pg, err := principalsByName(domain.SearchUsersByName, domain.KindUser).move(ctx, cc, 1)
	return PrincipalPage{Page: pg}, err
}

type SearchUsersByNamePrevious struct{}

func (SearchUsersByNamePrevious) Action(actor *domain.Principal) policy.Action {
	return policy.UserRead{Actor: actor}
}

func (SearchUsersByNamePrevious) Run(ctx context.Context, cc *Context) (PrincipalPage, error) {
	pg, err := principalsByName(domain.SearchUsersByName, domain.KindUser).move(ctx, cc, -1)
	return PrincipalPage{Page: pg}, err
}

// === users by email ===

type SearchUsersByEmailBegin struct {
	Query domain.SearchQuery
}

func (SearchUsersByEmailBegin) Action(actor *domain.Principal) policy.Action {
	return policy.UserRead{Actor: actor}
}

func (c SearchUsersByEmailBegin) Run(ctx context.Context, cc *Context) (PrincipalPage, error) {
	pg, err := usersByEmail().begin(ctx, cc, c.Query)
	return PrincipalPage{Page: pg}, err
}

type SearchUsersByEmailNext struct{}

func (SearchUsersByEmailNext) Action(actor *domain.Principal) policy.Action {
	return policy.UserRead{Actor: actor}
}

func (SearchUsersByEmailNext) Run(ctx context.Context, cc *Context) (PrincipalPage, error) {
	pg, err := usersByEmail().move(ctx, cc, 1)
	return PrincipalPage{Page: pg}, err
}

type SearchUsersByEmailPrevious struct{}

func (SearchUsersByEmailPrevious) Action(actor *domain.Principal) policy.Action {
	return policy.UserRead{Actor: actor}
}

func (SearchUsersByEmailPrevious) Run(ctx context.Context, cc *Context) (PrincipalPage, error) {
	pg, err := usersByEmail().move(ctx, cc, -1)
	return PrincipalPage{Page: pg}, err
}

// === admins ===

type SearchAdminsBegin struct {
	Query domain.SearchQuery
}

func (SearchAdminsBegin) Action(actor *domain.Principal) policy.Action {
	return policy.AdminRead{Actor: actor}
}

func (c SearchAdminsBegin) Run(ctx context.Context, cc *Context) (PrincipalPage, error) {
	pg, err := principalsByName(domain.SearchAdmins, domain.KindAdmin).begin(ctx, cc, c.Query)
	return PrincipalPage{Page: pg}, err
}

type SearchAdminsNext struct{}

func (SearchAdminsNext) Action(actor *domain.Principal) policy.Action {
	return policy.AdminRead{Actor: actor}
}

func (SearchAdminsNext) Run(ctx context.Context, cc *Context) (PrincipalPage, error) {
	pg, err := principalsByName(domain.SearchAdmins, domain.KindAdmin).move(ctx, cc, 1)
	return PrincipalPage{Page: pg}, err
}

type SearchAdminsPrevious struct{}

func (SearchAdminsPrevious) Action(actor *domain.Principal) policy.Action {
	return policy.AdminRead{Actor: actor}
}

func (SearchAdminsPrevious) Run(ctx context.Context, cc *Context) (PrincipalPage, error) {
	pg, err := principalsByName(domain.SearchAdmins, domain.KindAdmin).move(ctx, cc, -1)
	return PrincipalPage{Page: pg}, err
}

// === audit events ===

type SearchAuditEventsBegin struct {
	Query domain.SearchQuery
}

func (SearchAuditEventsBegin) Action(actor *domain.Principal) policy.Action {
	return policy.AuditRead{Actor: actor}
}

func (c SearchAuditEventsBegin) Run(ctx context.Context, cc *Context) (AuditPage, error) {
	pg, err := auditEvents().begin(ctx, cc, c.Query)
	return AuditPage{Page: pg}, err
}

type SearchAuditEventsNext struct{}

func (SearchAuditEventsNext) Action(actor *domain.Principal) policy.Action {
	return policy.AuditRead{Actor: actor}
}

func (SearchAuditEventsNext) Run(ctx context.Context, cc *Context) (AuditPage, error) {
	pg, err := auditEvents().move(ctx, cc, 1)
	return AuditPage{Page: pg}, err
}

type SearchAuditEventsPrevious struct{}

func (SearchAuditEventsPrevious) Action(actor *domain.Principal) policy.Action {
	return policy.AuditRead{Actor: actor}
}

func (SearchAuditEventsPrevious) Run(ctx context.Context, cc *Context) (AuditPage, error) {
	pg, err := auditEvents().move(ctx, cc, -1)
	return AuditPage{Page: pg}, err
}
