package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"idstore/internal/domain"
)

// httpStatusFromFailure maps failure codes to HTTP status codes.
func httpStatusFromFailure(f *domain.Failure) int {
	switch f.Code {
	case domain.CodeAuthenticationFailed, domain.CodeNotAuthenticated:
		return http.StatusUnauthorized
	case domain.CodeDenied, domain.CodeBanned:
		return http.StatusForbidden
	case domain.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case domain.CodeValidation, domain.CodeCredentialFormat:
		return http.StatusBadRequest
	case domain.CodeNonexistent:
		return http.StatusNotFound
	case domain.CodeUniqueViolation, domain.CodeNoSuchCursor:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Hint       string            `json:"hint,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// writeError renders a failure as JSON. Server-blamed failures are logged
// with their cause and reported to the client as a bare internal error, so
// storage details never reach the wire.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var failure *domain.Failure
	if !errors.As(err, &failure) {
		failure = domain.ErrStorage(err)
	}

	status := httpStatusFromFailure(failure)
	body := errorBody{
		Code:       string(failure.Code),
		Message:    failure.Message,
		Hint:       failure.Hint,
		Attributes: failure.Attributes,
	}
	if failure.Blame == domain.BlameServer {
		logger.Error("request failed", "code", failure.Code, "error", failure.Message)
		body.Message = "internal error"
		body.Hint = ""
		body.Attributes = nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
