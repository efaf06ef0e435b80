package domain

import (
	"regexp"
	"strings"
	"time"

	"idstore/internal/credential"
	"idstore/internal/permission"
)

// Kind separates the two disjoint principal populations.
type Kind string

const (
	KindUser  Kind = "user"
	KindAdmin Kind = "admin"
)

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// Principal is a user or admin capable of authenticating. Name and the
// primary email are unique within a kind. The email list is never empty;
// the first entry is the primary address.
type Principal struct {
	ID          string
	Kind        Kind
	Name        string
	DisplayName string
	Emails      []string
	Credential  credential.Credential
	Permissions permission.Set // admins only; empty for users
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PrimaryEmail returns the first email address.
func (p *Principal) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}

// Redacted returns a copy of p with the credential's secret material
// stripped. Anything crossing the response boundary goes through this.
func (p *Principal) Redacted() *Principal {
	out := *p
	out.Credential = p.Credential.Redact()
	out.Emails = append([]string(nil), p.Emails...)
	return &out
}

// Validate checks the structural invariants of a principal.
func (p *Principal) Validate() error {
	if p.Kind != KindUser && p.Kind != KindAdmin {
		return ErrValidation("principal kind must be %q or %q", KindUser, KindAdmin)
	}
	if !nameRe.MatchString(p.Name) {
		return ErrValidation("principal name %q is invalid: lowercase letters, digits, '.', '_' and '-', max 64 characters", p.Name)
	}
	if len(p.Emails) == 0 {
		return ErrValidation("a principal requires at least one email address")
	}
	for _, e := range p.Emails {
		if !strings.Contains(e, "@") || strings.HasPrefix(e, "@") || strings.HasSuffix(e, "@") {
			return ErrValidation("email address %q is invalid", e)
		}
	}
	if p.Kind == KindUser && p.Permissions.Len() != 0 {
		return ErrValidation("users cannot hold permissions")
	}
	return nil
}
