package command

import (
	"context"

	"idstore/internal/domain"
	"idstore/internal/permission"
	"idstore/internal/policy"
)

// AdminCreate registers a new admin holding the requested permissions. The
// policy engine bounds the requested set by the creator's own closure.
type AdminCreate struct {
	Name        string
	DisplayName string
	Emails      []string
	Password    string
	Permissions permission.Set
}

func (c AdminCreate) Action(actor *domain.Principal) policy.Action {
	return policy.AdminCreate{Actor: actor, RequestedPermissions: c.Permissions}
}

func (c AdminCreate) Run(ctx context.Context, cc *Context) (PrincipalResponse, error) {
	cred, err := cc.Creds.Hash(c.Password)
	if err != nil {
		return PrincipalResponse{}, domain.ErrStorage(err)
	}
	p := &domain.Principal{
		ID:          domain.NewID(),
		Kind:        domain.KindAdmin,
		Name:        c.Name,
		DisplayName: c.DisplayName,
		Emails:      c.Emails,
		Credential:  cred,
		Permissions: c.Permissions,
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
		Data: map[string]string{
			"kind": string(p.Kind), "name": p.Name,
			"permissions": p.Permissions.Format(), "actor": cc.Actor.ID,
		},
	})
	return PrincipalResponse{Principal: p}, nil
}

// AdminGet reads one admin by id. Admins without ADMIN_READ may still read
// their own record with ADMIN_READ_SELF.
type AdminGet struct {
	ID string
}

func (c AdminGet) Action(actor *domain.Principal) policy.Action {
	return policy.AdminRead{Actor: actor, TargetID: c.ID}
}

func (c AdminGet) Run(ctx context.Context, cc *Context) (PrincipalResponse, error) {
	p, err := getPrincipal(ctx, cc, c.ID, domain.KindAdmin)
	if err != nil {
		return PrincipalResponse{}, err
	}
	return PrincipalResponse{Principal: p}, nil
}

// AdminUpdate changes an admin's display name, email list, or password.
type AdminUpdate struct {
	ID          string
	DisplayName *string
	Emails      []string
	Password    *string
}

func (c AdminUpdate) Action(actor *domain.Principal) policy.Action {
	return policy.AdminUpdate{Actor: actor, TargetID: c.ID}
}

func (c AdminUpdate) Run(ctx context.Context, cc *Context) (PrincipalResponse, error) {
	p, err := getPrincipal(ctx, cc, c.ID, domain.KindAdmin)
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

// AdminDelete removes an admin.
type AdminDelete struct {
	ID string
}

func (c AdminDelete) Action(actor *domain.Principal) policy.Action {
	return policy.AdminDelete{Actor: actor, TargetID: c.ID}
}

func (c AdminDelete) Run(ctx context.Context, cc *Context) (Empty, error) {
	p, err := getPrincipal(ctx, cc, c.ID, domain.KindAdmin)
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

// PermissionGrant adds a permission to an admin's explicit set.
type PermissionGrant struct {
	TargetID   string
	Permission permission.Permission
}

func (c PermissionGrant) Action(actor *domain.Principal) policy.Action {
	return policy.PermissionGrant{Actor: actor, TargetID: c.TargetID, Permission: c.Permission}
}

func (c PermissionGrant) Run(ctx context.Context, cc *Context) (PrincipalResponse, error) {
	p, err := getPrincipal(ctx, cc, c.TargetID, domain.KindAdmin)
	if err != nil {
		return PrincipalResponse{}, err
	}
	p.Permissions = p.Permissions.Plus(c.Permission)
	p.UpdatedAt = cc.Now
	if err := cc.Tx.Principals().Update(ctx, p); err != nil {
		return PrincipalResponse{}, err
	}
	cc.Emit(domain.AuditEvent{
		Type:  domain.EventPermissionGranted,
		Owner: p.ID,
		Data:  map[string]string{"permission": string(c.Permission), "actor": cc.Actor.ID},
	})
	return PrincipalResponse{Principal: p}, nil
}

// PermissionRevoke removes a permission from an admin's explicit set. The
// closure may still imply the permission through a retained base permission.
type PermissionRevoke struct {
	TargetID   string
	Permission permission.Permission
}

func (c PermissionRevoke) Action(actor *domain.Principal) policy.Action {
	return policy.PermissionRevoke{Actor: actor, TargetID: c.TargetID, Permission: c.Permission}
}

func (c PermissionRevoke) Run(ctx context.Context, cc *Context) (PrincipalResponse, error) {
	p, err := getPrincipal(ctx, cc, c.TargetID, domain.KindAdmin)
	if err != nil {
		return PrincipalResponse{}, err
	}
	p.Permissions = p.Permissions.Minus(c.Permission)
	p.UpdatedAt = cc.Now
	if err := cc.Tx.Principals().Update(ctx, p); err != nil {
		return PrincipalResponse{}, err
	}
	cc.Emit(domain.AuditEvent{
		Type:  domain.EventPermissionRevoked,
		Owner: p.ID,
		Data:  map[string]string{"permission": string(c.Permission), "actor": cc.Actor.ID},
	})
	return PrincipalResponse{Principal: p}, nil
}
