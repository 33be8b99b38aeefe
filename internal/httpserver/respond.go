package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"topup-store/internal/auth"
	"topup-store/internal/lifecycle"
	"topup-store/internal/repo"
	"topup-store/internal/supabase"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, map[string]string{"error": errCode, "message": message})
}

func decodeJSON(r *http.Request, dest any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return &lifecycle.ValidationError{Code: "invalid_json", Message: err.Error()}
	}
	return nil
}

// classify maps an error to a status code and error code.
func classify(err error) (int, string) {
	var verr *lifecycle.ValidationError
	var apiErr *supabase.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Code
	case errors.Is(err, auth.ErrUsernameNotFound):
		return http.StatusUnauthorized, "username_not_found"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrInvalidSignUp):
		return http.StatusBadRequest, "invalid_signup"
	case errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict, "username_taken"
	case errors.Is(err, repo.ErrNotPending):
		return http.StatusConflict, "not_pending"
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repo.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, supabase.ErrUnreachable):
		return http.StatusBadGateway, "backend_unreachable"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "backend_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

// fail writes err as a JSON error, logging server-side failures.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, errCode := classify(err)
	message := err.Error()
	var verr *lifecycle.ValidationError
	if errors.As(err, &verr) {
		message = verr.Message
	}
	if code >= http.StatusInternalServerError {
		a.metrics.IncError("http")
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", errCode, "error", err)
	}
	writeError(w, code, errCode, message)
}
