package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"neurocare.org/internal/auth"
	"neurocare.org/internal/store/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
	fail  bool
}

func (m *captureMailer) SendResetCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[to] = code
	return nil
}

func (m *captureMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

func (m *captureMailer) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

type apiClient struct {
	baseURL string
	client  *http.Client
	mailer  *captureMailer
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	tokens, err := auth.NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	mailer := &captureMailer{}
	svc, err := auth.NewService(memory.New(), tokens, auth.NewMemoryRevocationList(), mailer)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	api := New(ReadyProbe{}, "test", svc)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		mailer:  mailer,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) signup(name, email, password string) {
	c.t.Helper()
	resp := c.post("/v1/auth/signup", map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("unexpected signup status: %d", resp.StatusCode)
	}
}

func (c *apiClient) login(email, password string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatal("empty token issued")
	}
	return payload.Token
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func readBody(t *testing.T, r *http.Response) string {
	t.Helper()
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestSignupLoginMeFlow(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/auth/signup", map[string]any{
		"name":     "Alice",
		"email":    "Alice@Example.com",
		"password": "s3cret-pass",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body := readBody(t, resp)
	var created auth.User
	if err := json.Unmarshal([]byte(body), &created); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated user id")
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if bytes.Contains([]byte(body), []byte("password")) || bytes.Contains([]byte(body), []byte("otp")) {
		t.Fatalf("sensitive fields leaked in response: %s", body)
	}

	token := c.login("alice@example.com", "s3cret-pass")

	meResp := c.get("/v1/auth/me", bearerHeader(token))
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from me, got %d", meResp.StatusCode)
	}
	me := decode[auth.User](t, meResp)
	if me.Email != "alice@example.com" {
		t.Fatalf("unexpected current user: %q", me.Email)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	c := newTestAPI(t)
	c.signup("Alice", "alice@example.com", "s3cret-pass")

	resp := c.post("/v1/auth/signup", map[string]any{
		"name":     "Other",
		"email":    "ALICE@example.com",
		"password": "different",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["error"] != "email already registered" {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
}

func TestSignupRejectsBadInput(t *testing.T) {
	c := newTestAPI(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"email": "a@b.c", "password": "x"}},
		{"missing email", map[string]any{"name": "A", "password": "x"}},
		{"missing password", map[string]any{"name": "A", "email": "a@b.c"}},
		{"unknown field", map[string]any{"name": "A", "email": "a@b.c", "password": "x", "role": "admin"}},
	}
	for _, tc := range cases {
		resp := c.post("/v1/auth/signup", tc.body, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	c := newTestAPI(t)
	c.signup("Alice", "alice@example.com", "s3cret-pass")

	pinned := map[string]string{"X-Request-ID": "test-rid-42"}

	wrongPass := c.post("/v1/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong",
	}, pinned)
	unknownUser := c.post("/v1/auth/login", map[string]any{
		"email":    "nobody@example.com",
		"password": "wrong",
	}, pinned)

	if wrongPass.StatusCode != http.StatusUnauthorized || unknownUser.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPass.StatusCode, unknownUser.StatusCode)
	}
	b1 := readBody(t, wrongPass)
	b2 := readBody(t, unknownUser)
	if b1 != b2 {
		t.Fatalf("failure responses differ:\n%s\n%s", b1, b2)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	c := newTestAPI(t)
	c.signup("Alice", "alice@example.com", "s3cret-pass")
	token := c.login("alice@example.com", "s3cret-pass")

	resp := c.post("/v1/auth/logout", nil, bearerHeader(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d", resp.StatusCode)
	}

	meResp := c.get("/v1/auth/me", bearerHeader(token))
	if meResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", meResp.StatusCode)
	}
	payload := decode[map[string]any](t, meResp)
	if payload["error"] != "invalid or expired token" {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
}

func TestMeRejectsMalformedBearer(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/auth/me", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without header, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["error"] != "missing bearer token" {
		t.Fatalf("unexpected error: %v", payload["error"])
	}

	resp = c.get("/v1/auth/me", map[string]string{"Authorization": "Basic abc"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for basic auth, got %d", resp.StatusCode)
	}
	payload = decode[map[string]any](t, resp)
	if payload["error"] != "invalid authorization scheme" {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
}

func TestLogoutRejectsMalformedBearer(t *testing.T) {
	c := newTestAPI(t)

	cases := []struct {
		name    string
		headers map[string]string
		wantMsg string
	}{
		{"no header", nil, "missing bearer token"},
		{"empty token", map[string]string{"Authorization": "Bearer "}, "missing bearer token"},
		{"wrong scheme", map[string]string{"Authorization": "Basic abc"}, "invalid authorization scheme"},
	}
	for _, tc := range cases {
		resp := c.post("/v1/auth/logout", nil, tc.headers)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
		payload := decode[map[string]any](t, resp)
		if payload["error"] != tc.wantMsg {
			t.Fatalf("%s: unexpected error: %v", tc.name, payload["error"])
		}
	}
}

func TestPasswordResetFlow(t *testing.T) {
	c := newTestAPI(t)
	c.signup("Alice", "alice@example.com", "old-password")

	resp := c.post("/v1/auth/forgot-password", map[string]any{"email": "alice@example.com"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from forgot-password, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["message"] != forgotPasswordReply {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
	code := c.mailer.code("alice@example.com")
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	wrong := c.post("/v1/auth/reset-password", map[string]any{
		"email":        "alice@example.com",
		"otp":          "000000",
		"new_password": "new-password",
	}, nil)
	if wrong.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong code, got %d", wrong.StatusCode)
	}
	wrongPayload := decode[map[string]any](t, wrong)
	if wrongPayload["error"] != "invalid reset code" {
		t.Fatalf("unexpected error: %v", wrongPayload["error"])
	}

	ok := c.post("/v1/auth/reset-password", map[string]any{
		"email":        "alice@example.com",
		"otp":          code,
		"new_password": "new-password",
	}, nil)
	ok.Body.Close()
	if ok.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from reset, got %d", ok.StatusCode)
	}

	// Old credential no longer works, new one does.
	old := c.post("/v1/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "old-password",
	}, nil)
	old.Body.Close()
	if old.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with old password, got %d", old.StatusCode)
	}
	c.login("alice@example.com", "new-password")

	// The code is consumed with the reset.
	replay := c.post("/v1/auth/reset-password", map[string]any{
		"email":        "alice@example.com",
		"otp":          code,
		"new_password": "another-password",
	}, nil)
	if replay.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on replay, got %d", replay.StatusCode)
	}
	replayPayload := decode[map[string]any](t, replay)
	if replayPayload["error"] != "no reset code requested" {
		t.Fatalf("unexpected error: %v", replayPayload["error"])
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/auth/forgot-password", map[string]any{"email": "nobody@example.com"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["message"] != forgotPasswordReply {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
	if got := c.mailer.code("nobody@example.com"); got != "" {
		t.Fatalf("no mail should be sent for unknown email, got code %q", got)
	}
}

func TestForgotPasswordMailFailureHidden(t *testing.T) {
	c := newTestAPI(t)
	c.signup("Alice", "alice@example.com", "s3cret-pass")
	c.mailer.setFail(true)

	resp := c.post("/v1/auth/forgot-password", map[string]any{"email": "alice@example.com"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 despite mail failure, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["message"] != forgotPasswordReply {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
}

func TestAuthEndpointsRejectWrongMethod(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/auth/login", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Allow"); got != "POST" {
		t.Fatalf("unexpected Allow header: %q", got)
	}
	resp.Body.Close()

	resp = c.post("/v1/auth/me", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST me, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
