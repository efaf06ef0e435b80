// Package policy evaluates typed security actions against the permission
// model, producing Permitted or Denied with a rule-specific message.
package policy

import (
	"idstore/internal/domain"
	"idstore/internal/permission"
)

// Action describes who is trying to do what to whom. The variant set is
// closed; Check dispatches exhaustively over it.
type Action interface {
	isAction()
}

// AdminCreate requests creation of a new admin holding the given permissions.
type AdminCreate struct {
	Actor                *domain.Principal
	RequestedPermissions permission.Set
}

// AdminRead requests reading an admin record.
type AdminRead struct {
	Actor    *domain.Principal
	TargetID string
}

// AdminUpdate requests updating an admin record.
type AdminUpdate struct {
	Actor    *domain.Principal
	TargetID string
}

// AdminDelete requests deleting an admin.
type AdminDelete struct {
	Actor    *domain.Principal
	TargetID string
}

// PermissionGrant requests adding a permission to an admin.
type PermissionGrant struct {
	Actor      *domain.Principal
	TargetID   string
	Permission permission.Permission
}

// PermissionRevoke requests removing a permission from an admin.
type PermissionRevoke struct {
	Actor      *domain.Principal
	TargetID   string
	Permission permission.Permission
}

// UserCreate requests creation of a new user.
type UserCreate struct {
	Actor *domain.Principal
}

// UserRead requests reading user records.
type UserRead struct {
	Actor *domain.Principal
}

// UserUpdate requests updating a user record.
type UserUpdate struct {
	Actor *domain.Principal
}

// UserDelete requests deleting a user.
type UserDelete struct {
	Actor *domain.Principal
}

// BanWrite requests creating or deleting a ban on a user.
type BanWrite struct {
	Actor *domain.Principal
}

// AuditRead requests searching the audit log.
type AuditRead struct {
	Actor *domain.Principal
}

func (AdminCreate) isAction()      {}
func (AdminRead) isAction()        {}
func (AdminUpdate) isAction()      {}
func (AdminDelete) isAction()      {}
func (PermissionGrant) isAction()  {}
func (PermissionRevoke) isAction() {}
func (UserCreate) isAction()       {}
func (UserRead) isAction()         {}
func (UserUpdate) isAction()       {}
func (UserDelete) isAction()       {}
func (BanWrite) isAction()         {}
func (AuditRead) isAction()        {}
