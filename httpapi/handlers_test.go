package httpapi

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mailgate/mailgate"
	"github.com/mailgate/mailgate/cookie"
	"github.com/mailgate/mailgate/email"
	"github.com/mailgate/mailgate/identity"
	"github.com/mailgate/mailgate/jwt"
)

// syncBuffer is an io.Writer safe to read while the server goroutine
// appends to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// stack is the whole flow wired against miniredis, with OTP mail captured
// in a buffer so tests can read the code back out.
type stack struct {
	server *httptest.Server
	mail   *syncBuffer
	signer *jwt.Manager
}

func newStack(t *testing.T) *stack {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := mailgate.DefaultConfig()
	cfg.Email.From = "login@example.com"

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:  cfg.Token.AccessTTL,
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		KeyID:      "test",
		PrivateKey: priv,
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	verifier, err := jwt.NewVerifier(cfg.Token.Issuer, cfg.Token.Audience, 0, signer)
	if err != nil {
		t.Fatalf("jwt verifier: %v", err)
	}

	var mail syncBuffer
	challenges, err := mailgate.NewChallengeService(cfg, &email.WriterSender{W: &mail})
	if err != nil {
		t.Fatalf("challenge service: %v", err)
	}
	provider, err := identity.NewProvider(rdb, signer, challenges, identity.Config{
		RefreshTTL: cfg.Token.RefreshTTL,
	})
	if err != nil {
		t.Fatalf("identity provider: %v", err)
	}
	if _, err := provider.RegisterUser(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	engine, err := mailgate.New().
		WithConfig(cfg).
		WithIdentity(provider).
		WithVerifier(verifier).
		Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}
	t.Cleanup(engine.Close)

	server := httptest.NewServer(New(engine).Routes())
	t.Cleanup(server.Close)

	return &stack{server: server, mail: &mail, signer: signer}
}

func (s *stack) post(t *testing.T, path, body string, cookies []string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for _, c := range cookies {
		req.Header.Add("Cookie", c)
	}
	resp, err := s.server.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *stack) get(t *testing.T, path string, cookies []string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for _, c := range cookies {
		req.Header.Add("Cookie", c)
	}
	resp, err := s.server.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// lastMailCode reads the OTP out of the most recent captured message.
func (s *stack) lastMailCode(t *testing.T) string {
	t.Helper()
	body := s.mail.String()
	idx := strings.LastIndex(body, "\n\n")
	if idx < 0 {
		t.Fatalf("no code in captured mail: %q", body)
	}
	code := strings.TrimSpace(body[idx+2:])
	if len(code) < 6 {
		t.Fatalf("truncated code %q", code)
	}
	return code[:6]
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return out
}

func sessionCookies(resp *http.Response) []string {
	return resp.Header.Values("Set-Cookie")
}

func TestLoginFlowEndToEnd(t *testing.T) {
	s := newStack(t)

	// Start: the session token comes back, the code goes out by mail.
	resp := s.post(t, "/auth/login", `{"email":"alice@example.com"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	session := decodeJSON(t, resp)["session"]
	if session == "" {
		t.Fatal("no session in login response")
	}
	code := s.lastMailCode(t)

	// Answer: all three cookies are set.
	resp = s.post(t, "/auth/otp",
		`{"email":"alice@example.com","otp":"`+code+`","session":"`+session+`"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("otp status = %d", resp.StatusCode)
	}
	cookies := sessionCookies(resp)
	access, ok := cookie.Extract(cookies, cookie.AccessTokenName)
	if !ok || access == "" {
		t.Fatal("no access cookie after otp")
	}
	refresh, ok := cookie.Extract(cookies, cookie.RefreshTokenName)
	if !ok || refresh == "" {
		t.Fatal("no refresh cookie after otp")
	}
	expiry, ok := cookie.Extract(cookies, cookie.AccessExpiryName)
	if !ok || expiry == "" {
		t.Fatal("no expiry cookie after otp")
	}
	for _, raw := range cookies[:2] {
		if !strings.Contains(raw, "HttpOnly") || !strings.Contains(raw, "Secure") {
			t.Fatalf("token cookie missing protection attributes: %q", raw)
		}
	}
	if strings.Contains(cookies[2], "HttpOnly") {
		t.Fatalf("expiry cookie must stay script-readable: %q", cookies[2])
	}

	// Status: the guarded route resolves the email.
	resp = s.get(t, "/auth/status", []string{cookie.AccessTokenName + "=" + access})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status status = %d", resp.StatusCode)
	}
	if got := decodeJSON(t, resp)["email"]; got != "alice@example.com" {
		t.Fatalf("status email = %q", got)
	}

	// Refresh: new access and expiry cookies, refresh cookie untouched.
	resp = s.post(t, "/auth/refresh", "", []string{cookie.RefreshTokenName + "=" + refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", resp.StatusCode)
	}
	refreshed := sessionCookies(resp)
	if len(refreshed) != 2 {
		t.Fatalf("refresh set %d cookies, want 2", len(refreshed))
	}
	if _, ok := cookie.Extract(refreshed, cookie.RefreshTokenName); ok {
		t.Fatal("refresh resent the refresh cookie")
	}

	// Sign out: all three cookies cleared, refresh token dead.
	resp = s.post(t, "/auth/signout", "", []string{cookie.RefreshTokenName + "=" + refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signout status = %d", resp.StatusCode)
	}
	if cleared := sessionCookies(resp); len(cleared) != 3 {
		t.Fatalf("signout set %d cookies, want 3", len(cleared))
	}

	resp = s.post(t, "/auth/refresh", "", []string{cookie.RefreshTokenName + "=" + refresh})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after signout = %d, want 401", resp.StatusCode)
	}
}

func TestWrongCodeRetriesWithSameCode(t *testing.T) {
	s := newStack(t)

	resp := s.post(t, "/auth/login", `{"email":"alice@example.com"}`, nil)
	session := decodeJSON(t, resp)["session"]
	code := s.lastMailCode(t)
	mailBefore := s.mail.Len()

	// A wrong answer is the generic failure, and no new mail goes out.
	resp = s.post(t, "/auth/otp",
		`{"email":"alice@example.com","otp":"000000","session":"`+session+`"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong code status = %d, want 400", resp.StatusCode)
	}
	if s.mail.Len() != mailBefore {
		t.Fatal("retry sent another email")
	}

	// The original code still works against the same session.
	resp = s.post(t, "/auth/otp",
		`{"email":"alice@example.com","otp":"`+code+`","session":"`+session+`"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("correct code after retry = %d", resp.StatusCode)
	}
}

func TestLoginRejectsBadInput(t *testing.T) {
	s := newStack(t)

	for _, body := range []string{"", "{", `{"email":""}`} {
		resp := s.post(t, "/auth/login", body, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestLoginUnknownEmailIsOpaque(t *testing.T) {
	s := newStack(t)

	// Unknown address fails the same generic way as any platform error.
	resp := s.post(t, "/auth/login", `{"email":"nobody@example.com"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if got := strings.TrimSpace(string(raw)); got != "Request failed" {
		t.Fatalf("body = %q", got)
	}
}

func TestAnswerRejectsMissingFields(t *testing.T) {
	s := newStack(t)

	bodies := []string{
		`{"otp":"123456","session":"s"}`,
		`{"email":"a@b","session":"s"}`,
		`{"email":"a@b","otp":"123456"}`,
		"not json",
	}
	for _, body := range bodies {
		resp := s.post(t, "/auth/otp", body, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	s := newStack(t)

	resp := s.post(t, "/auth/refresh", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestStatusWithoutCookie(t *testing.T) {
	s := newStack(t)

	resp := s.get(t, "/auth/status", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp = s.get(t, "/auth/status", []string{cookie.AccessTokenName + "=tampered"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("tampered token status = %d, want 401", resp.StatusCode)
	}
}

func TestStatusUnknownSubject(t *testing.T) {
	s := newStack(t)

	// A validly signed token for a subject with no account maps to 404.
	token, err := s.signer.Mint("ghost-subject", "ghost@example.com", time.Now())
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	resp := s.get(t, "/auth/status", []string{cookie.AccessTokenName + "=" + token})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSignOutWithoutCookieStillClears(t *testing.T) {
	s := newStack(t)

	resp := s.post(t, "/auth/signout", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if cleared := sessionCookies(resp); len(cleared) != 3 {
		t.Fatalf("signout set %d cookies, want 3", len(cleared))
	}
}
