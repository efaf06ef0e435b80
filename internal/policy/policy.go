package policy

import (
	"fmt"
	"strings"

	"idstore/internal/domain"
	"idstore/internal/permission"
)

// Decision is the outcome of a policy check. Denials carry a fixed message
// keyed to the rule that failed; callers use it verbatim.
type Decision struct {
	Permitted bool
	Message   string
}

// Permit is the affirmative decision.
func Permit() Decision { return Decision{Permitted: true} }

// Deny produces a denial with the given rule message.
func Deny(message string) Decision { return Decision{Message: message} }

// Failure converts a denial into a classified failure. Panics on a
// permitted decision.
func (d Decision) Failure() *domain.Failure {
	if d.Permitted {
		panic("policy: Failure called on a permitted decision")
	}
	return domain.ErrDenied(d.Message)
}

// Check evaluates a security action. The rule table, per action kind:
// resolve the required permission, accept the self variant when the target
// is the actor, and for grant/revoke/create additionally bound the action
// by the actor's own implied closure.
func Check(action Action) Decision {
	switch a := action.(type) {
	case AdminCreate:
		return checkAdminCreate(a)
	case AdminRead:
		return checkSelfOrBase(a.Actor, a.TargetID,
			permission.AdminRead, permission.AdminReadSelf,
			"Reading admins requires the ADMIN_READ permission.",
			"Reading the current admin requires the ADMIN_READ or ADMIN_READ_SELF permission.")
	case AdminUpdate:
		return checkSelfOrBase(a.Actor, a.TargetID,
			permission.AdminWrite, permission.AdminWriteSelf,
			"Updating admins requires the ADMIN_WRITE permission.",
			"Updating the current admin requires the ADMIN_WRITE or ADMIN_WRITE_SELF permission.")
	case AdminDelete:
		return requireBase(a.Actor, permission.AdminDelete,
			"Deleting admins requires the ADMIN_DELETE permission.")
	case PermissionGrant:
		return checkPermissionChange(a.Actor, a.TargetID, a.Permission,
			"Granting permissions requires the ADMIN_WRITE permission.",
			"The current admin cannot grant the following permissions: [%s]")
	case PermissionRevoke:
		return checkPermissionChange(a.Actor, a.TargetID, a.Permission,
			"Revoking permissions requires the ADMIN_WRITE permission.",
			"The current admin cannot revoke the following permissions: [%s]")
	case UserCreate:
		return requireBase(a.Actor, permission.UserCreate,
			"Creating users requires the USER_CREATE permission.")
	case UserRead:
		return requireBase(a.Actor, permission.UserRead,
			"Reading users requires the USER_READ permission.")
	case UserUpdate:
		return requireBase(a.Actor, permission.UserWrite,
			"Updating users requires the USER_WRITE permission.")
	case UserDelete:
		return requireBase(a.Actor, permission.UserDelete,
			"Deleting users requires the USER_DELETE permission.")
	case BanWrite:
		return requireBase(a.Actor, permission.UserWrite,
			"Managing bans requires the USER_WRITE permission.")
	case AuditRead:
		return requireBase(a.Actor, permission.AuditRead,
			"Reading audit events requires the AUDIT_READ permission.")
	default:
		// The variant set is closed; an unknown action is a programming error.
		panic(fmt.Sprintf("policy: unknown action type %T", action))
	}
}

func checkAdminCreate(a AdminCreate) Decision {
	if !a.Actor.Permissions.Implies(permission.AdminCreate) {
		return Deny("Creating admins requires the ADMIN_CREATE permission.")
	}
	// An admin can never create a peer with more power than itself.
	if missing := a.Actor.Permissions.Missing(a.RequestedPermissions.Explicit()); len(missing) > 0 {
		return Deny(fmt.Sprintf("The current admin cannot grant the following permissions: [%s]", joinPermissions(missing)))
	}
	return Permit()
}

func checkPermissionChange(actor *domain.Principal, targetID string, p permission.Permission, baseMsg, notHeldFmt string) Decision {
	if d := checkSelfOrBase(actor, targetID,
		permission.AdminWrite, permission.AdminWriteSelf,
		baseMsg, baseMsg); !d.Permitted {
		return d
	}
	// An admin can only grant or revoke permissions its own closure implies.
	if !actor.Permissions.Implies(p) {
		return Deny(fmt.Sprintf(notHeldFmt, string(p)))
	}
	return Permit()
}

func checkSelfOrBase(actor *domain.Principal, targetID string, base, self permission.Permission, baseMsg, selfMsg string) Decision {
	if actor.Permissions.Implies(base) {
		return Permit()
	}
	if targetID == actor.ID {
		if actor.Permissions.Implies(self) {
			return Permit()
		}
		return Deny(selfMsg)
	}
	return Deny(baseMsg)
}

func requireBase(actor *domain.Principal, p permission.Permission, msg string) Decision {
	if actor.Permissions.Implies(p) {
		return Permit()
	}
	return Deny(msg)
}

func joinPermissions(ps []permission.Permission) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
