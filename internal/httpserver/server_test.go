package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup-store/internal/auth"
	"topup-store/internal/cache"
	"topup-store/internal/catalog"
	"topup-store/internal/lifecycle"
	"topup-store/internal/logging"
	"topup-store/internal/metrics"
	"topup-store/internal/realtime"
	"topup-store/internal/repo"
	"topup-store/internal/supabase"
	"topup-store/migrations"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type fakeAuth struct {
	admins map[string]bool
	signIn func(identifier, password string) (*supabase.Session, error)
}

func (f *fakeAuth) SignIn(_ context.Context, identifier, password string) (*supabase.Session, error) {
	return f.signIn(identifier, password)
}

func (f *fakeAuth) SignUp(context.Context, string, string, string) (*supabase.Session, error) {
	return nil, auth.ErrInvalidSignUp
}

func (f *fakeAuth) SignOut(context.Context, string) error { return nil }

func (f *fakeAuth) IsAdmin(_ context.Context, userID string) (bool, error) {
	return f.admins[userID], nil
}

type memObjects struct{}

func (memObjects) Upload(_ context.Context, _, _ string, body io.Reader, _ string) error {
	_, err := io.Copy(io.Discard, body)
	return err
}
func (memObjects) Remove(context.Context, string, []string) error { return nil }
func (memObjects) PublicURL(bucket, path string) string {
	return "https://cdn.test/" + bucket + "/" + path
}

type testEnv struct {
	handler http.Handler
	store   *repo.SQLiteRepository
	auth    *fakeAuth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := repo.NewSQLite(ctx, filepath.Join(t.TempDir(), "api.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	sub, err := fs.Sub(migrations.Files, migrations.SQLiteDir)
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations(ctx, sub))

	m := metrics.NewUnregistered("test")
	broker := realtime.NewMemoryBroker(8, logging.Discard(), m)
	lc, err := lifecycle.NewService(lifecycle.Options{
		Store:           store,
		Objects:         memObjects{},
		Publisher:       broker,
		Logger:          logging.Discard(),
		Metrics:         m,
		MaxReceiptBytes: 1024,
	})
	require.NoError(t, err)
	t.Cleanup(lc.Wait)

	fa := &fakeAuth{
		admins: map[string]bool{"admin-1": true},
		signIn: func(string, string) (*supabase.Session, error) { return nil, auth.ErrInvalidCredentials },
	}
	h := NewRouter(Deps{
		Auth:            fa,
		Verifier:        auth.NewVerifier(testSecret),
		Lifecycle:       lc,
		Catalog:         catalog.New(store, lc, cache.NewMemory(), time.Minute, logging.Discard(), m),
		Accounts:        store,
		Health:          store,
		Realtime:        realtime.NewHandler(broker, logging.Discard(), nil),
		MaxReceiptBytes: 1024,
		Logger:          logging.Discard(),
		Metrics:         m,
	})
	return &testEnv{handler: h, store: store, auth: fa}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.Claims{
		Email: userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	return e.do(t, method, path, userID, r, "application/json")
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertDecimal(t *testing.T, want string, got any) {
	t.Helper()
	s, ok := got.(string)
	require.True(t, ok, "decimal encoded as %T", got)
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, s)
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUserRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/history/orders", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrderThenHistory(t *testing.T) {
	e := newTestEnv(t)

	rec := e.doJSON(t, http.MethodPost, "/orders", "user-1", map[string]string{
		"category_type": "mobile_th",
		"amount":        "150",
		"currency":      "THB",
		"phone_number":  "0812345678",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, "user-1", created["user_id"])

	rec = e.do(t, http.MethodGet, "/history/orders", "user-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]map[string]any](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "pending", rows[0]["display_status"])

	rec = e.do(t, http.MethodGet, "/history/orders", "user-2", nil, "")
	assert.Empty(t, decode[[]map[string]any](t, rec))
}

func TestOrderValidationErrors(t *testing.T) {
	e := newTestEnv(t)
	rec := e.doJSON(t, http.MethodPost, "/orders", "u", map[string]string{
		"category_type": "mobile_mm", "amount": "5000", "currency": "MMK",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "phone_required", errorCode(t, rec))

	rec = e.do(t, http.MethodPost, "/orders", "u", strings.NewReader(`{"amount":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", errorCode(t, rec))
}

func TestModerationFlow(t *testing.T) {
	e := newTestEnv(t)
	rec := e.doJSON(t, http.MethodPost, "/orders", "user-1", map[string]string{
		"category_type": "game", "amount": "100", "currency": "THB", "player_id": "12345",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]any](t, rec)["id"].(string)

	rec = e.do(t, http.MethodPost, "/admin/orders/"+id+"/approve", "user-1", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/history/orders/"+id+"/receipt", "user-1", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.doJSON(t, http.MethodPost, "/admin/orders/"+id+"/approve", "admin-1", map[string]string{"note": "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[map[string]any](t, rec)
	assert.Equal(t, "approved", approved["status"])
	assert.Equal(t, "admin-1", approved["processed_by"])
	assert.NotNil(t, approved["processed_at"])

	rec = e.do(t, http.MethodPost, "/admin/orders/"+id+"/reject", "admin-1", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_pending", errorCode(t, rec))

	rec = e.do(t, http.MethodPost, "/admin/orders/"+id+"/complete", "admin-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/admin/orders/6f1c2f0e-4a4b-4b8e-9c6a-3f5f2a1d9e10/approve", "admin-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/admin/orders?status=approved", "admin-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/history/orders/"+id+"/receipt?lang=en", "user-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Top-up Receipt")
	assert.Contains(t, rec.Body.String(), "Player ID: 12345")
	assert.Contains(t, rec.Body.String(), "100.00 THB")

	rec = e.do(t, http.MethodGet, "/history/orders/"+id+"/receipt", "someone-else", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartDeposit(t *testing.T, amount string, receipt []byte, contentType string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("amount", amount))
	require.NoError(t, mw.WriteField("currency", "THB"))
	if receipt != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="receipt"; filename="slip.png"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(receipt)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestDepositFlowCreditsWallet(t *testing.T) {
	e := newTestEnv(t)

	body, ct := multipartDeposit(t, "500", nil, "")
	rec := e.do(t, http.MethodPost, "/deposits", "user-9", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "receipt_required", errorCode(t, rec))

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	body, ct = multipartDeposit(t, "500", png, "application/octet-stream")
	rec = e.do(t, http.MethodPost, "/deposits", "user-9", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dep := decode[map[string]any](t, rec)
	assert.Equal(t, "pending", dep["status"])
	assert.True(t, strings.HasPrefix(dep["receipt_url"].(string), "https://cdn.test/receipts/user-9/"))

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/admin/deposits/%s/approve", dep["id"]), "admin-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/wallet", "user-9", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	wallet := decode[map[string]any](t, rec)
	assertDecimal(t, "500", wallet["wallet"].(map[string]any)["balance_thb"])
	assertDecimal(t, "47750", wallet["thb_in_mmk"])
}

func TestExchangeRateUpdate(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/exchange-rate", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assertDecimal(t, "95.50", decode[map[string]any](t, rec)["thb_to_mmk"])

	rec = e.doJSON(t, http.MethodPut, "/admin/exchange-rate", "admin-1", map[string]string{"thb_to_mmk": "96.00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/exchange-rate", "", nil, "")
	assertDecimal(t, "96", decode[map[string]any](t, rec)["thb_to_mmk"])

	rec = e.doJSON(t, http.MethodPut, "/admin/exchange-rate", "admin-1", map[string]string{"thb_to_mmk": "zero"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_rate", errorCode(t, rec))
}

func TestSignInErrorMapping(t *testing.T) {
	e := newTestEnv(t)
	cases := []struct {
		err  error
		code int
		name string
	}{
		{auth.ErrUsernameNotFound, http.StatusUnauthorized, "username_not_found"},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{fmt.Errorf("sign in: %w", supabase.ErrUnreachable), http.StatusBadGateway, "backend_unreachable"},
	}
	for _, tc := range cases {
		e.auth.signIn = func(string, string) (*supabase.Session, error) { return nil, tc.err }
		rec := e.doJSON(t, http.MethodPost, "/auth/signin", "", map[string]string{"identifier": "mya", "password": "x"})
		assert.Equal(t, tc.code, rec.Code, tc.name)
		assert.Equal(t, tc.name, errorCode(t, rec))
	}
}

func TestProfileUpdate(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.store.UpsertProfile(context.Background(), repo.Profile{ID: "u1", Username: "mya"})
	require.NoError(t, err)

	rec := e.doJSON(t, http.MethodPut, "/me", "u1", map[string]string{"language": "fr"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_language", errorCode(t, rec))

	rec = e.doJSON(t, http.MethodPut, "/me", "u1", map[string]string{"language": "my"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "my", decode[map[string]any](t, rec)["language"])

	rec = e.do(t, http.MethodGet, "/me", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, false, me["is_admin"])
	assert.Equal(t, "u1@example.com", me["email"])
}

func TestShoppingAdminAndSearch(t *testing.T) {
	e := newTestEnv(t)
	rec := e.doJSON(t, http.MethodPost, "/admin/shopping-products", "admin-1", map[string]any{
		"name_en": "Power bank", "name_my": "ပါဝါဘဏ်", "price_thb": "450",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]any](t, rec)["id"].(string)

	rec = e.do(t, http.MethodGet, "/catalog/shopping?q=power&currency=MMK", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]map[string]any](t, rec)
	require.Len(t, items, 1)
	assertDecimal(t, "42975", items[0]["price"])

	rec = e.do(t, http.MethodDelete, "/admin/shopping-products/"+id, "admin-1", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/catalog/shopping", "", nil, "")
	assert.Empty(t, decode[[]map[string]any](t, rec))

	rec = e.do(t, http.MethodPost, "/admin/reload-catalog-cache", "admin-1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	rl.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, rl.Cleanup())
}

func TestMountWithBasePath(t *testing.T) {
	h := mountWithBasePath(normaliseBasePath("store/"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.URL.Path)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/store/healthz", nil))
	assert.Equal(t, "/healthz", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storefront", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminListsEveryOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 205; i++ {
		_, err := e.store.InsertOrder(ctx, repo.Order{
			UserID:       "user-1",
			CategoryType: "game",
			Amount:       decimal.NewFromInt(int64(i + 1)),
			Currency:     repo.CurrencyTHB,
		})
		require.NoError(t, err)
	}

	rec := e.do(t, http.MethodGet, "/admin/orders?status=pending", "admin-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 205)

	rec = e.do(t, http.MethodGet, "/history/orders", "user-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 205)

	rec = e.do(t, http.MethodGet, "/admin/orders?limit=50", "admin-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 50)
}

func TestListFilterValidation(t *testing.T) {
	e := newTestEnv(t)
	cases := []struct {
		path string
		code string
	}{
		{"/admin/orders?status=shipped", "invalid_status"},
		{"/admin/deposits?status=done", "invalid_status"},
		{"/history/orders?limit=-1", "invalid_limit"},
		{"/history/deposits?limit=ten", "invalid_limit"},
	}
	for _, tc := range cases {
		rec := e.do(t, http.MethodGet, tc.path, "admin-1", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.path)
		assert.Equal(t, tc.code, errorCode(t, rec), tc.path)
	}

	rec := e.do(t, http.MethodGet, "/admin/orders?status=COMPLETED", "admin-1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderAmountScaleRejected(t *testing.T) {
	e := newTestEnv(t)
	for _, amount := range []string{"0.001", "1.005"} {
		rec := e.doJSON(t, http.MethodPost, "/orders", "user-1", map[string]string{
			"category_type": "game", "amount": amount, "currency": "THB", "player_id": "12345",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, amount)
		assert.Equal(t, "invalid_amount", errorCode(t, rec), amount)
	}
}
