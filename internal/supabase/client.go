package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"topup-store/internal/metrics"
)

// ErrUnreachable marks transport failures where Supabase never answered.
var ErrUnreachable = errors.New("supabase unreachable")

// Error is a non-2xx answer from one of the Supabase APIs.
type Error struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase %d: %s", e.StatusCode, e.Message)
}

// Config holds Supabase client configuration.
type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
	Timeout    time.Duration
}

// Client provides typed access to the Supabase Auth, Storage and REST APIs.
type Client struct {
	logger     *slog.Logger
	restURL    string
	authURL    string
	storageURL string
	anonKey    string
	serviceKey string
	http       *http.Client
	metrics    *metrics.Metrics
}

// New creates a new Supabase client.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid supabase url: %w", err)
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("supabase anon key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		logger:     logger.With("component", "supabase"),
		restURL:    base + "/rest/v1",
		authURL:    base + "/auth/v1",
		storageURL: base + "/storage/v1",
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		http:       &http.Client{Timeout: timeout},
		metrics:    m,
	}, nil
}

// privilegedKey is used for server-side calls that must bypass row level security.
func (c *Client) privilegedKey() string {
	if c.serviceKey != "" {
		return c.serviceKey
	}
	return c.anonKey
}

type request struct {
	endpoint    string // metrics label
	method      string
	url         string
	body        io.Reader
	contentType string
	bearer      string
	headers     map[string]string
}

func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	contentType := r.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "topup-store/supabase-client")
	req.Header.Set("apikey", c.anonKey)
	bearer := r.bearer
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.SupabaseRequests.WithLabelValues(r.endpoint, "error").Inc()
			c.metrics.IncError("supabase")
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, r.endpoint, err)
	}
	defer res.Body.Close()

	statusLabel := strconv.Itoa(res.StatusCode)
	if c.metrics != nil {
		c.metrics.SupabaseRequests.WithLabelValues(r.endpoint, statusLabel).Inc()
		c.metrics.SupabaseLatency.WithLabelValues(r.endpoint, statusLabel).Observe(time.Since(start).Seconds())
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 400 {
		apiErr := parseError(body, res.StatusCode)
		c.logger.Debug("supabase request failed", "endpoint", r.endpoint, "status", res.StatusCode, "error", apiErr.Message)
		return nil, apiErr
	}
	return body, nil
}

// parseError extracts code and message from the differing error shapes of
// GoTrue, Storage and PostgREST.
func parseError(body []byte, statusCode int) *Error {
	e := &Error{StatusCode: statusCode}
	if !gjson.ValidBytes(body) {
		e.Code = "unknown"
		e.Message = strings.TrimSpace(string(body))
		return e
	}
	doc := gjson.ParseBytes(body)
	for _, key := range []string{"error_code", "code", "error"} {
		if v := doc.Get(key); v.Exists() && v.Type == gjson.String && v.String() != "" {
			e.Code = v.String()
			break
		}
	}
	for _, key := range []string{"msg", "message", "error_description", "error"} {
		if v := doc.Get(key); v.Exists() && v.String() != "" {
			e.Message = v.String()
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(statusCode)
	}
	return e
}

// escapePath escapes each segment of an object path while keeping the slashes.
func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
