package domain

import "time"

// Audit event types emitted by the login service and command handlers.
const (
	EventLoggedIn          = "logged-in"
	EventLoggedOut         = "logged-out"
	EventAuthFailed        = "authentication-failed"
	EventRateLimitExceeded = "rate-limit-exceeded"
	EventPrincipalCreated  = "principal-created"
	EventPrincipalUpdated  = "principal-updated"
	EventPrincipalDeleted  = "principal-deleted"
	EventPermissionGranted = "permission-granted"
	EventPermissionRevoked = "permission-revoked"
	EventBanCreated        = "ban-created"
	EventBanDeleted        = "ban-deleted"
)

// AuditEvent is an append-only fact recorded as a side effect of specific
// commands. Owner names the principal the event is about.
type AuditEvent struct {
	ID        string
	Type      string
	Owner     string
	Data      map[string]string
	CreatedAt time.Time
}

// LoginRecord is the persisted history of a successful login.
type LoginRecord struct {
	ID          string
	PrincipalID string
	Host        string
	UserAgent   string
	Metadata    map[string]string
	CreatedAt   time.Time
}
