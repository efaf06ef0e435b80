package command

import "idstore/internal/domain"

// PrincipalResponse carries a single principal. The pipeline redacts the
// credential before the response leaves the boundary.
type PrincipalResponse struct {
	Principal *domain.Principal
}

func (r *PrincipalResponse) redact() {
	if r.Principal != nil {
		r.Principal = r.Principal.Redacted()
	}
}

// BanResponse carries a single ban.
type BanResponse struct {
	Ban *domain.Ban
}

// Empty is the response of commands with no payload.
type Empty struct{}

// PrincipalPage is one page of principals from a search.
type PrincipalPage struct {
	Page domain.Page[domain.Principal]
}

func (r *PrincipalPage) redact() {
	for i := range r.Page.Items {
		r.Page.Items[i] = *r.Page.Items[i].Redacted()
	}
}

// AuditPage is one page of audit events from a search.
type AuditPage struct {
	Page domain.Page[domain.AuditEvent]
}
