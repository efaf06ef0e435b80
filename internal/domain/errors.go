// Package domain defines the core entities, repository ports, and the
// classified failure taxonomy of the identity store.
package domain

import "fmt"

// Blame assigns responsibility for a failure and determines the
// transport-level status class.
type Blame string

const (
	BlameClient Blame = "client"
	BlameServer Blame = "server"
)

// Code is a stable failure code.
type Code string

const (
	CodeAuthenticationFailed Code = "AuthenticationFailed"
	CodeBanned               Code = "Banned"
	CodeRateLimitExceeded    Code = "RateLimitExceeded"
	CodeDenied               Code = "Denied"
	CodeNotAuthenticated     Code = "NotAuthenticated"
	CodeNoSuchCursor         Code = "NoSuchCursor"
	CodeValidation           Code = "Validation"
	CodeNonexistent          Code = "Nonexistent"
	CodeUniqueViolation      Code = "UniqueViolation"
	CodeCredentialFormat     Code = "CredentialFormat"
	CodeStorage              Code = "Storage"
)

// Failure is a classified error: a stable code, a human message, structured
// attributes, an optional remediation hint, and a blame assignment.
type Failure struct {
	Code       Code
	Message    string
	Attributes map[string]any
	Hint       string
	Blame      Blame
}

func (f *Failure) Error() string { return fmt.Sprintf("%s: %s", f.Code, f.Message) }

// With returns a copy of f carrying an additional attribute.
func (f *Failure) With(key string, value any) *Failure {
	out := *f
	out.Attributes = make(map[string]any, len(f.Attributes)+1)
	for k, v := range f.Attributes {
		out.Attributes[k] = v
	}
	out.Attributes[key] = value
	return &out
}

// NewFailure creates a classified failure with a formatted message.
func NewFailure(code Code, blame Blame, format string, args ...any) *Failure {
	return &Failure{Code: code, Blame: blame, Message: fmt.Sprintf(format, args...)}
}

// ErrAuthenticationFailed is the uniform login failure. Nonexistent accounts
// and wrong passwords produce the same code so callers cannot probe for
// account existence.
func ErrAuthenticationFailed() *Failure {
	return NewFailure(CodeAuthenticationFailed, BlameClient, "authentication failed")
}

// ErrBanned reports a suppressed login with the ban's reason.
func ErrBanned(reason string) *Failure {
	f := NewFailure(CodeBanned, BlameClient, "this account is banned: %s", reason)
	return f.With("reason", reason)
}

// ErrRateLimitExceeded reports a throttled login attempt.
func ErrRateLimitExceeded(host string) *Failure {
	f := NewFailure(CodeRateLimitExceeded, BlameClient, "too many login attempts")
	f.Hint = "wait for the rate-limit window to elapse before retrying"
	return f.With("host", host)
}

// ErrDenied carries the exact rule-specific denial message from the policy
// engine.
func ErrDenied(message string) *Failure {
	return NewFailure(CodeDenied, BlameClient, "%s", message)
}

// ErrNotAuthenticated reports a command requiring a session sent without one.
func ErrNotAuthenticated() *Failure {
	return NewFailure(CodeNotAuthenticated, BlameClient, "this command requires an authenticated session")
}

// ErrNoSuchCursor reports a next/previous call without a matching begin.
func ErrNoSuchCursor(kind SearchKind) *Failure {
	f := NewFailure(CodeNoSuchCursor, BlameClient, "no %s search is in progress for this session", kind)
	f.Hint = "begin a search before requesting further pages"
	return f.With("kind", string(kind))
}

// ErrValidation reports invalid input.
func ErrValidation(format string, args ...any) *Failure {
	return NewFailure(CodeValidation, BlameClient, format, args...)
}

// ErrNonexistent reports a missing resource.
func ErrNonexistent(format string, args ...any) *Failure {
	return NewFailure(CodeNonexistent, BlameClient, format, args...)
}

// ErrUniqueViolation reports a duplicate resource.
func ErrUniqueViolation(format string, args ...any) *Failure {
	return NewFailure(CodeUniqueViolation, BlameClient, format, args...)
}

// ErrCredentialFormat reports corrupt stored credential material.
func ErrCredentialFormat(cause error) *Failure {
	return NewFailure(CodeCredentialFormat, BlameServer, "stored credential is corrupt: %v", cause)
}

// ErrStorage wraps an unclassified store error.
func ErrStorage(cause error) *Failure {
	return NewFailure(CodeStorage, BlameServer, "storage error: %v", cause)
}
