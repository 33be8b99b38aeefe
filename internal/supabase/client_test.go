package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup-store/internal/logging"
	"topup-store/internal/metrics"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL + "/", AnonKey: "anon", ServiceKey: "service"}, logging.Discard(), metrics.NewUnregistered("test"))
	require.NoError(t, err)
	return c
}

func TestSignInWithPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mya@example.com", body["email"])

		_, _ = io.WriteString(w, `{"access_token":"at","refresh_token":"rt","token_type":"bearer","expires_in":3600,"user":{"id":"u1","email":"mya@example.com"}}`)
	})

	s, err := c.SignInWithPassword(context.Background(), "mya@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	require.NotNil(t, s.User)
	assert.Equal(t, "u1", s.User.ID)
}

func TestSignInInvalidCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`)
	})

	_, err := c.SignInWithPassword(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.True(t, IsInvalidCredentials(err))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid_credentials", apiErr.Code)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)
}

func TestSignUpWithoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"u2","email":"new@example.com","created_at":"2025-01-01T00:00:00Z"}`)
	})

	s, err := c.SignUp(context.Background(), SignUpRequest{Email: "new@example.com", Password: "pw", Data: map[string]any{"username": "new"}})
	require.NoError(t, err)
	assert.Empty(t, s.AccessToken)
	require.NotNil(t, s.User)
	assert.Equal(t, "u2", s.User.ID)
}

func TestRPCDecodesScalar(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/get_user_email_by_username", r.URL.Path)
		assert.Equal(t, "Bearer service", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `"mya@example.com"`)
	})

	var email *string
	require.NoError(t, c.RPC(context.Background(), "get_user_email_by_username", map[string]string{"p_username": "mya"}, &email))
	require.NotNil(t, email)
	assert.Equal(t, "mya@example.com", *email)
}

func TestUploadEscapesSegments(t *testing.T) {
	var gotPath, gotType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotType = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{"Key":"receipts/u1/1.png"}`)
	})

	err := c.Upload(context.Background(), "receipts", "u1/my receipt.png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/storage/v1/object/receipts/u1/my%20receipt.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.True(t, strings.HasSuffix(c.PublicURL("receipts", "u1/1.png"), "/storage/v1/object/public/receipts/u1/1.png"))
}

func TestRemoveSendsPrefixes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"u1/1.png"}, body["prefixes"])
		_, _ = io.WriteString(w, `[]`)
	})
	require.NoError(t, c.Remove(context.Background(), "receipts", []string{"u1/1.png"}))
}

func TestListParsesFolders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"name":"u1","id":null},{"name":"1.png","id":"obj","created_at":"2025-01-01T00:00:00Z"}]`)
	})
	objs, err := c.List(context.Background(), "receipts", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.True(t, objs[0].IsFolder())
	assert.False(t, objs[1].IsFolder())
}

func TestTransportErrorIsUnreachable(t *testing.T) {
	c, err := New(Config{URL: "http://127.0.0.1:1", AnonKey: "anon"}, logging.Discard(), nil)
	require.NoError(t, err)
	_, err = c.GetUser(context.Background(), "token")
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestParseErrorNonJSON(t *testing.T) {
	e := parseError([]byte("bad gateway"), http.StatusBadGateway)
	assert.Equal(t, "unknown", e.Code)
	assert.Equal(t, "bad gateway", e.Message)
}
