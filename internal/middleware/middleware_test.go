package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nextcart/platform/internal/auth"
	"github.com/nextcart/platform/internal/domain/identity"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/storage/memory"
)

func okHandler(invoked *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if invoked != nil {
			*invoked = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	invoked := false
	h := RequireAuth()(okHandler(&invoked))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if invoked {
		t.Fatal("handler must not run for anonymous requests")
	}
	if !strings.Contains(rec.Body.String(), "authentication required") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRequireAuthPassesPrincipal(t *testing.T) {
	invoked := false
	h := RequireAuth()(okHandler(&invoked))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	ctx := WithPrincipal(req.Context(), &identity.Principal{UserID: "u1", Role: identity.RoleUser})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusOK || !invoked {
		t.Fatalf("expected handler to run, got %d invoked=%v", rec.Code, invoked)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name      string
		principal *identity.Principal
		want      int
	}{
		{"user blocked", &identity.Principal{UserID: "u1", Role: identity.RoleUser}, http.StatusForbidden},
		{"admin allowed", &identity.Principal{UserID: "a1", Role: identity.RoleAdmin}, http.StatusOK},
		{"permission override", &identity.Principal{
			UserID:      "u2",
			Role:        identity.RoleUser,
			Permissions: map[string]struct{}{"products": {}},
		}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := RequireRole(identity.RoleAdmin, "products")(okHandler(nil))
			req := httptest.NewRequest(http.MethodPost, "/api/products", nil)
			req = req.WithContext(WithPrincipal(req.Context(), tc.principal))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRateLimitWindowBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := memory.New().WithClock(func() time.Time { return now })
	h := RateLimit(store, time.Minute, 2, logging.NewNop())(okHandler(nil))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusOK {
		t.Fatalf("second request: expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected remaining 0, got %q", got)
	}

	if rec := send(); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: expected 429, got %d", rec.Code)
	}

	// A new window opens once the old one expires.
	now = now.Add(time.Minute + time.Second)
	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("after window reset: expected 200, got %d", rec.Code)
	}
}

func TestRateLimitKeysClientsSeparately(t *testing.T) {
	store := memory.New()
	h := RateLimit(store, time.Minute, 1, logging.NewNop())(okHandler(nil))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("10.0.0.1:4000"); code != http.StatusOK {
		t.Fatalf("first client: expected 200, got %d", code)
	}
	if code := send("10.0.0.2:4000"); code != http.StatusOK {
		t.Fatalf("second client must have its own bucket, got %d", code)
	}
	if code := send("10.0.0.1:4001"); code != http.StatusTooManyRequests {
		t.Fatalf("same host over limit: expected 429, got %d", code)
	}
}

type failingCounter struct{}

func (failingCounter) IncrementWindow(context.Context, string, time.Duration) (int64, error) {
	return 0, context.DeadlineExceeded
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(failingCounter{}, time.Minute, 1, logging.NewNop())(okHandler(nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("limiter store failure must not block requests, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://shop.example.com"})(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("allowed origin: expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("unexpected allow-origin header %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin: expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight: expected 200, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders()(okHandler(nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestBodyDecoderRejectsMalformedJSON(t *testing.T) {
	h := BodyDecoder(1024)(okHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBodyDecoderRejectsOversizedBody(t *testing.T) {
	h := BodyDecoder(8)(okHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(`{"email":"way-too-long@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too large") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestBodyDecoderIgnoresGET(t *testing.T) {
	invoked := false
	h := BodyDecoder(1024)(okHandler(&invoked))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	if !invoked || rec.Code != http.StatusOK {
		t.Fatalf("GET must pass through, got %d invoked=%v", rec.Code, invoked)
	}
}

func TestRecoveryConvertsPanic(t *testing.T) {
	h := Recovery(logging.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Fatal("panic detail must not leak to the client")
	}
}

func TestSessionResolverAttachesPrincipal(t *testing.T) {
	secret := []byte("test-secret")
	store := memory.New()
	token, err := auth.Issue(secret, "u1", "admin", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	sess := identity.Session{UserID: "u1", Role: identity.RoleAdmin.String(), CreatedAt: time.Now()}
	if err := store.PutSession(context.Background(), token, sess, time.Hour); err != nil {
		t.Fatalf("put session: %v", err)
	}

	var got *identity.Principal
	h := SessionResolver(store, secret, time.Hour, logging.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got == nil {
		t.Fatal("expected principal on context")
	}
	if got.UserID != "u1" || got.Role != identity.RoleAdmin {
		t.Fatalf("unexpected principal %+v", got)
	}
}

func TestSessionResolverIgnoresRevokedSession(t *testing.T) {
	secret := []byte("test-secret")
	store := memory.New()
	token, err := auth.Issue(secret, "u1", "user", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	// No session stored for the token: it was revoked at logout.

	var got *identity.Principal
	h := SessionResolver(store, secret, time.Hour, logging.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("resolver must not short-circuit, got %d", rec.Code)
	}
	if got != nil {
		t.Fatalf("expected unauthenticated request, got principal %+v", got)
	}
}
