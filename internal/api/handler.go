// Package api exposes the identity store over HTTP. Handlers are thin: they
// decode a request, build a command, hand it to the pipeline, and render the
// typed response or the classified failure.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"idstore/internal/command"
	"idstore/internal/domain"
	"idstore/internal/middleware"
	"idstore/internal/permission"
	"idstore/internal/service/auth"
)

// Handler holds the services the HTTP surface dispatches into.
type Handler struct {
	login  *auth.LoginService
	pipe   *command.Pipeline
	tokens *middleware.TokenCodec
	logger *slog.Logger
}

// NewHandler wires the HTTP handler.
func NewHandler(login *auth.LoginService, pipe *command.Pipeline, tokens *middleware.TokenCodec, logger *slog.Logger) *Handler {
	return &Handler{
		login:  login,
		pipe:   pipe,
		tokens: tokens,
		logger: logger.With("component", "api"),
	}
}

// Routes mounts all endpoints on r. The session-token middleware must
// already be installed.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.handleUserCreate)
		r.Get("/{id}", h.handleUserGet)
		r.Patch("/{id}", h.handleUserUpdate)
		r.Delete("/{id}", h.handleUserDelete)
	})

	r.Route("/admins", func(r chi.Router) {
		r.Post("/", h.handleAdminCreate)
		r.Get("/{id}", h.handleAdminGet)
		r.Patch("/{id}", h.handleAdminUpdate)
		r.Delete("/{id}", h.handleAdminDelete)
		r.Put("/{id}/permissions/{permission}", h.handlePermissionGrant)
		r.Delete("/{id}/permissions/{permission}", h.handlePermissionRevoke)
	})

	r.Route("/bans", func(r chi.Router) {
		r.Post("/", h.handleBanCreate)
		r.Delete("/{id}", h.handleBanDelete)
	})

	r.Route("/search/{kind}", func(r chi.Router) {
		r.Post("/", h.handleSearchBegin)
		r.Post("/next", h.handleSearchMove(1))
		r.Post("/previous", h.handleSearchMove(-1))
	})
}

// --- views ---

type principalView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
	Emails      []string  `json:"emails"`
	Permissions []string  `json:"permissions,omitempty"`
	Effective   []string  `json:"effective_permissions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func principalToView(p *domain.Principal) principalView {
	v := principalView{
		ID:          p.ID,
		Kind:        string(p.Kind),
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Emails:      p.Emails,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, perm := range p.Permissions.Explicit() {
		v.Permissions = append(v.Permissions, string(perm))
	}
	for _, perm := range p.Permissions.Closure() {
		v.Effective = append(v.Effective, string(perm))
	}
	return v
}

type banView struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principal_id"`
	Reason      string     `json:"reason"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type pageView[T any] struct {
	Items     []T `json:"items"`
	PageIndex int `json:"page_index"`
	PageCount int `json:"page_count"`
	Offset    int `json:"offset"`
}

func principalPageToView(pg domain.Page[domain.Principal]) pageView[principalView] {
	out := pageView[principalView]{
		Items:     make([]principalView, 0, len(pg.Items)),
		PageIndex: pg.PageIndex,
		PageCount: pg.PageCount,
		Offset:    pg.Offset,
	}
	for i := range pg.Items {
		out.Items = append(out.Items, principalToView(&pg.Items[i]))
	}
	return out
}

type auditView struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Owner     string            `json:"owner"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func auditPageToView(pg domain.Page[domain.AuditEvent]) pageView[auditView] {
	out := pageView[auditView]{
		Items:     make([]auditView, 0, len(pg.Items)),
		PageIndex: pg.PageIndex,
		PageCount: pg.PageCount,
		Offset:    pg.Offset,
	}
	for _, e := range pg.Items {
		out.Items = append(out.Items, auditView{
			ID: e.ID, Type: e.Type, Owner: e.Owner, Data: e.Data, CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// --- auth ---

type loginRequest struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Principal principalView `json:"principal"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("malformed request body"))
		return
	}
	kind := domain.Kind(req.Kind)
	if kind == "" {
		kind = domain.KindUser
	}

	result, err := h.login.Login(r.Context(), auth.LoginRequest{
		Host:      middleware.ClientHost(r),
		UserAgent: r.UserAgent(),
		RequestID: middleware.RequestIDFromContext(r.Context()),
		Kind:      kind,
		Name:      req.Name,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, err := h.tokens.Issue(result.Session.ID, result.Session.ExpiresAt)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: result.Session.ExpiresAt,
		Principal: principalToView(result.Principal),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, err := h.execute(r, command.Logout{})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// execute runs a command with the request's session and request ids.
func (h *Handler) execute(r *http.Request, cmd command.Command[command.Empty]) (command.Empty, error) {
	return command.Execute(r.Context(), h.pipe,
		middleware.SessionIDFromContext(r.Context()),
		middleware.RequestIDFromContext(r.Context()), cmd)
}

func (h *Handler) executePrincipal(r *http.Request, cmd command.Command[command.PrincipalResponse]) (command.PrincipalResponse, error) {
	return command.Execute(r.Context(), h.pipe,
		middleware.SessionIDFromContext(r.Context()),
		middleware.RequestIDFromContext(r.Context()), cmd)
}

// --- users ---

type createPrincipalRequest struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Emails      []string `json:"emails"`
	Password    string   `json:"password"`
	Permissions []string `json:"permissions,omitempty"`
}

type updatePrincipalRequest struct {
	DisplayName *string  `json:"display_name"`
	Emails      []string `json:"emails"`
	Password    *string  `json:"password"`
}

func (h *Handler) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req createPrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("malformed request body"))
		return
	}
	resp, err := h.executePrincipal(r, command.UserCreate{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Emails:      req.Emails,
		Password:    req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, principalToView(resp.Principal))
}

func (h *Handler) handleUserGet(w http.ResponseWriter, r *http.Request) {
	resp, err := h.executePrincipal(r, command.UserGet{ID: chi.URLParam(r, "id")})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, principalToView(resp.Principal))
}

func (h *Handler) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	var req updatePrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("malformed request body"))
		return
	}
	resp, err := h.executePrincipal(r, command.UserUpdate{
		ID:          chi.URLParam(r, "id"),
		DisplayName: req.DisplayName,
		Emails:      req.Emails,
		Password:    req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, principalToView(resp.Principal))
}

func (h *Handler) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.execute(r, command.UserDelete{ID: chi.URLParam(r, "id")}); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- admins ---

func (h *Handler) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	var req createPrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("malformed request body"))
		return
	}
	perms := make([]permission.Permission, 0, len(req.Permissions))
	for _, raw := range req.Permissions {
		p, err := permission.Parse(raw)
		if err != nil {
			writeError(w, h.logger, domain.ErrValidation("%v", err))
			return
		}
		perms = append(perms, p)
	}
	resp, err := h.executePrincipal(r, command.AdminCreate{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Emails:      req.Emails,
		Password:    req.Password,
		Permissions: permission.NewSet(perms...),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, principalToView(resp.Principal))
}

func (h *Handler) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	resp, err := h.executePrincipal(r, command.AdminGet{ID: chi.URLParam(r, "id")})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, principalToView(resp.Principal))
}

func (h *Handler) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	var req updatePrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("malformed request body"))
		return
	}
	resp, err := h.executePrincipal(r, command.AdminUpdate{
		ID:          chi.URLParam(r, "id"),
		DisplayName: req.DisplayName,
		Emails:      req.Emails,
		Password:    req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, principalToView(resp.Principal))
}

func (h *Handler) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.execute(r, command.AdminDelete{ID: chi.URLParam(r, "id")}); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePermissionGrant(w http.ResponseWriter, r *http.Request) {
	p, err := permission.Parse(chi.URLParam(r, "permission"))
	if err != nil {
		writeError(w, h.logger, domain.ErrValidation("%v", err))
		return
	}
	resp, err := h.executePrincipal(r, command.PermissionGrant{
		TargetID:   chi.URLParam(r, "id"),
		Permission: p,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, principalToView(resp.Principal))
}

func (h *Handler) handlePermissionRevoke(w http.ResponseWriter, r *http.Request) {
	p, err := permission.Parse(chi.URLParam(r, "permission"))
	if err != nil {
		writeError(w, h.logger, domain.ErrValidation("%v", err))
		return
	}
	resp, err := h.executePrincipal(r, command.PermissionRevoke{
		TargetID:   chi.URLParam(r, "id"),
		Permission: p,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, principalToView(resp.Principal))
}

// --- bans ---

type createBanRequest struct {
	PrincipalID string     `json:"principal_id"`
	Reason      string     `json:"reason"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (h *Handler) handleBanCreate(w http.ResponseWriter, r *http.Request) {
	var req createBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("malformed request body"))
		return
	}
	resp, err := command.Execute(r.Context(), h.pipe,
		middleware.SessionIDFromContext(r.Context()),
		middleware.RequestIDFromContext(r.Context()),
		command.BanCreate{
			PrincipalID: req.PrincipalID,
			Reason:      req.Reason,
			ExpiresAt:   req.ExpiresAt,
		})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, banView{
		ID:          resp.Ban.ID,
		PrincipalID: resp.Ban.PrincipalID,
		Reason:      resp.Ban.Reason,
		CreatedAt:   resp.Ban.CreatedAt,
		ExpiresAt:   resp.Ban.ExpiresAt,
	})
}

func (h *Handler) handleBanDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.execute(r, command.BanDelete{BanID: chi.URLParam(r, "id")}); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- search ---

type searchRequest struct {
	After      *time.Time `json:"after"`
	Before     *time.Time `json:"before"`
	Filter     string     `json:"filter"`
	Descending bool       `json:"descending"`
	PageSize   int        `json:"page_size"`
}

func (h *Handler) handleSearchBegin(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("malformed request body"))
		return
	}
	query := domain.SearchQuery{
		After:      req.After,
		Before:     req.Before,
		Filter:     req.Filter,
		Descending: req.Descending,
		PageSize:   req.PageSize,
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	requestID := middleware.RequestIDFromContext(r.Context())

	switch domain.SearchKind(chi.URLParam(r, "kind")) {
	case domain.SearchUsersByName:
		resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID,
			command.SearchUsersByNameBegin{Query: query})
		h.renderPrincipalPage(w, resp, err)
	case domain.SearchUsersByEmail:
		resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID,
			command.SearchUsersByEmailBegin{Query: query})
		h.renderPrincipalPage(w, resp, err)
	case domain.SearchAdmins:
		resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID,
			command.SearchAdminsBegin{Query: query})
		h.renderPrincipalPage(w, resp, err)
	case domain.SearchAuditEvents:
		resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID,
			command.SearchAuditEventsBegin{Query: query})
		h.renderAuditPage(w, resp, err)
	default:
		writeError(w, h.logger, domain.ErrValidation("unknown search kind %q", chi.URLParam(r, "kind")))
	}
}

func (h *Handler) handleSearchMove(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())
		requestID := middleware.RequestIDFromContext(r.Context())

		switch kind := domain.SearchKind(chi.URLParam(r, "kind")); kind {
		case domain.SearchUsersByName:
			if delta > 0 {
				resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID, command.SearchUsersByNameNext{})
				h.renderPrincipalPage(w, resp, err)
			} else {
				resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID, command.SearchUsersByNamePrevious{})
				h.renderPrincipalPage(w, resp, err)
			}
		case domain.SearchUsersByEmail:
			if delta > 0 {
				resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID, command.SearchUsersByEmailNext{})
				h.renderPrincipalPage(w, resp, err)
			} else {
				resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID, command.SearchUsersByEmailPrevious{})
				h.renderPrincipalPage(w, resp, err)
			}
		case domain.SearchAdmins:
			if delta > 0 {
				resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID, command.SearchAdminsNext{})
				h.renderPrincipalPage(w, resp, err)
			} else {
				resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID, command.SearchAdminsPrevious{})
				h.renderPrincipalPage(w, resp, err)
			}
		case domain.SearchAuditEvents:
			if delta > 0 {
				resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID, command.SearchAuditEventsNext{})
				h.renderAuditPage(w, resp, err)
			} else {
				resp, err := command.Execute(r.Context(), h.pipe, sessionID, requestID, command.SearchAuditEventsPrevious{})
				h.renderAuditPage(w, resp, err)
			}
		default:
			writeError(w, h.logger, domain.ErrValidation("unknown search kind %q", kind))
		}
	}
}

func (h *Handler) renderPrincipalPage(w http.ResponseWriter, resp command.PrincipalPage, err error) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, principalPageToView(resp.Page))
}

func (h *Handler) renderAuditPage(w http.ResponseWriter, resp command.AuditPage, err error) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, auditPageToView(resp.Page))
}
