package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// RoleChecker answers admin membership questions.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Authenticate validates the bearer token and stores the Principal in the
// request context. Browsers cannot set headers on websocket upgrades, so the
// token is also accepted from the access_token query parameter.
func Authenticate(v TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			p, err := v.VerifyToken(r.Context(), token)
			switch {
			case errors.Is(err, ErrInvalidToken):
				logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			case err != nil:
				logger.Error("token check failed", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusBadGateway, "backend_unreachable", "could not verify access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin rejects callers without the admin role. It must run after Authenticate.
func RequireAdmin(checker RoleChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing principal")
				return
			}
			isAdmin, err := checker.IsAdmin(r.Context(), p.UserID)
			if err != nil {
				logger.Error("role check failed", "user_id", p.UserID, "error", err)
				writeError(w, http.StatusBadGateway, "backend_error", err.Error())
				return
			}
			if !isAdmin {
				writeError(w, http.StatusForbidden, "forbidden", "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
