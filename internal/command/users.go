package command

import (
	"context"

	"idstore/internal/domain"
	"idstore/internal/policy"
)

// UserCreate registers a new user.
type UserCreate struct {
	Name        string
	DisplayName string
	Emails      []string
	Password    string
}

func (UserCreate) Action(actor *domain.Principal) policy.Action {
	return policy.UserCreate{Actor: actor}
}

func (c UserCreate) Run(ctx context.Context, cc *Context) (PrincipalResponse, error) {
	cred, err := cc.Creds.Hash(c.Password)
	if err != nil {
		return PrincipalResponse{}, domain.ErrStorage(err)
	}
	p := &domain.Principal{
		ID:          domain.NewID(),
		Kind:        domain.KindUser,
		Name:        c.Name,
		DisplayName: c.DisplayName,
		Emails:      c.Emails,
		Credential:  cred,
		CreatedAt:   cc.Now,
		UpdatedAt:   cc.Now,
	}
	if err := p.Validate(); err != nil {
		return PrincipalResponse{}, err
	}
	if err := cc.Tx.Principals().Create(ctx, p); err != nil {
		return PrincipalResponse{}, err
	}
	cc.Emit(domain.AuditEvent{
		Type:  domain.EventPrincipalCreated,
		Owner: p.ID,
		Data:  map[string]string{"kind": string(p.Kind), "name": p.Name, "actor": cc.Actor.ID},
	})
	return PrincipalResponse{Principal: p}, nil
}

// UserGet reads one user by id.
type UserGet struct {
	ID string
}

func (UserGet) Action(actor *domain.Principal) policy.Action {
	return policy.UserRead{Actor: actor}
}

func (c UserGet) Run(ctx context.Context, cc *Context) (PrincipalResponse, error) {
	p, err := getPrincipal(ctx, cc, c.ID, domain.KindUser)
	if err != nil {
		return PrincipalResponse{}, err
	}
	return PrincipalResponse{Principal: p}, nil
}

// UserUpdate changes a user's display name, email list, or password. Nil
// fields are left untouched.
type UserUpdate struct {
	ID          string
	DisplayName *string
	Emails      []string
	Password    *string
}

func (UserUpdate) Action(actor *domain.Principal) policy.Action {
	return policy.UserUpdate{Actor: actor}
}

func (c UserUpdate) Run(ctx context.Context, cc *Context) (PrincipalResponse, error) {
	p, err := getPrincipal(ctx, cc, c.ID, domain.KindUser)
	if err != nil {
		return PrincipalResponse{}, err
	}
	if c.DisplayName != nil {
		p.DisplayName = *c.DisplayName
	}
	if c.Emails != nil {
		p.Emails = c.Emails
	}
	if c.Password != nil {
		cred, err := cc.Creds.Hash(*c.Password)
		if err != nil {
			return PrincipalResponse{}, domain.ErrStorage(err)
		}
		p.Credential = cred
	}
	p.UpdatedAt = cc.Now
	if err := p.Validate(); err != nil {
		return PrincipalResponse{}, err
	}
	if err := cc.Tx.Principals().Update(ctx, p); err != nil {
		return PrincipalResponse{}, err
	}
	cc.Emit(domain.AuditEvent{
		Type:  domain.EventPrincipalUpdated,
		Owner: p.ID,
		Data:  map[string]string{"kind": string(p.Kind), "name": p.Name, "actor": cc.Actor.ID},
	})
	return PrincipalResponse{Principal: p}, nil
}

// UserDelete removes a user.
type UserDelete struct {
	ID string
}

func (UserDelete) Action(actor *domain.Principal) policy.Action {
	return policy.UserDelete{Actor: actor}
}

func (c UserDelete) Run(ctx context.Context, cc *Context) (Empty, error) {
	p, err := getPrincipal(ctx, cc, c.ID, domain.KindUser)
	if err != nil {
		return Empty{}, err
	}
	if err := cc.Tx.Principals().Delete(ctx, p.ID); err != nil {
		return Empty{}, err
	}
	cc.Emit(domain.AuditEvent{
		Type:  domain.EventPrincipalDeleted,
		Owner: p.ID,
		Data:  map[string]string{"kind": string(p.Kind), "name": p.Name, "actor": cc.Actor.ID},
	})
	return Empty{}, nil
}

// Logout destroys the current session. No permission is required beyond
// holding the session itself.
type Logout struct{}

func (Logout) Action(*domain.Principal) policy.Action { return nil }

func (Logout) Run(ctx context.Context, cc *Context) (Empty, error) {
	if err := cc.Tx.Sessions().Delete(ctx, cc.Session.ID); err != nil {
		return Empty{}, err
	}
	cc.Emit(domain.AuditEvent{
		Type:  domain.EventLoggedOut,
		Owner: cc.Actor.ID,
		Data:  map[string]string{"session_id": cc.Session.ID},
	})
	return Empty{}, nil
}

// getPrincipal loads a principal and verifies its kind. A principal of the
// wrong kind reports the same Nonexistent code as a missing one.
func getPrincipal(ctx context.Context, cc *Context, id string, kind domain.Kind) (*domain.Principal, error) {
	p, err := cc.Tx.Principals().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Kind != kind {
		return nil, domain.ErrNonexistent("%s %s not found", kind, id)
	}
	return p, nil
}
