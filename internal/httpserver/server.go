// Package httpserver exposes the storefront over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Server owns the listener for the storefront API.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New prepares a server on addr. A non-empty basePath mounts every route
// below that prefix.
func New(addr string, handler http.Handler, logger *slog.Logger, basePath string) *Server {
	logger = logger.With("component", "http")
	base := normaliseBasePath(basePath)
	if base != "" {
		logger.Info("routes mounted below base path", "base_path", base)
	}
	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mountWithBasePath(base, handler),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("http listen %s: %w", s.srv.Addr, err)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("draining http server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// mountWithBasePath serves handler only below base, with base removed from
// the request path. "/store" matches "/store" and "/store/x" but not "/storefront".
func mountWithBasePath(base string, handler http.Handler) http.Handler {
	if base == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, ok := stripBase(r.URL.Path, base)
		if !ok {
			http.NotFound(w, r)
			return
		}
		r.URL.Path = path
		if r.URL.RawPath != "" {
			r.URL.RawPath, _ = stripBase(r.URL.RawPath, base)
		}
		handler.ServeHTTP(w, r)
	})
}

func stripBase(path, base string) (string, bool) {
	rest, found := strings.CutPrefix(path, base)
	switch {
	case !found:
		return "", false
	case rest == "":
		return "/", true
	case rest[0] != '/':
		return "", false
	}
	return rest, true
}

func normaliseBasePath(base string) string {
	base = strings.Trim(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return "/" + base
}
