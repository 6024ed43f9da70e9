package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"krona.org/internal/account"
	"krona.org/internal/identity"
	"krona.org/internal/store/memory"
	"krona.org/internal/stream"
)

// apiClient drives a running test server through the public HTTP surface.
type apiClient struct {
	t       *testing.T
	baseURL string
	client  *http.Client
}

func newTestAPI(t *testing.T, seed ...account.Account) *apiClient {
	t.Helper()
	t.Setenv("KRONA_AUTH_SECRET", "test-secret")
	identity.ResetSecretForTests()
	t.Cleanup(identity.ResetSecretForTests)

	st := memory.New()
	st.Seed(seed...)
	events := stream.New()
	svc, err := account.NewService(st, account.WithEvents(events))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	api := New(ReadyProbe{}, "test", svc, events)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &apiClient{t: t, baseURL: srv.URL, client: srv.Client()}
}

func (c *apiClient) do(method, path, token string, body any) *http.Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *apiClient) obtainToken(uid, displayName string, systemAdmin bool) string {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/token", "", tokenRequest{
		UID:         uid,
		DisplayName: displayName,
		SystemAdmin: systemAdmin,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("token request status %d", resp.StatusCode)
	}
	return decode[tokenResponse](c.t, resp).Token
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d, want %d (body: %s)", resp.StatusCode, want, data)
	}
}

func TestHealthz(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestReadyzWithoutDB(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/readyz", "", nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestInfo(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/v1/info", "", nil)
	defer resp.Body.Close()
	body := decode[map[string]any](t, resp)
	if body["name"] != "krona-api" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestUnknownRoute(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/v1/nope", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized) // not public, auth runs first
}

func TestAuthTokenIssuance(t *testing.T) {
	c := newTestAPI(t)
	token := c.obtainToken("alice", "Alice", false)
	if token == "" {
		t.Fatal("empty token")
	}
	id, err := identity.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if id.UID != "alice" || id.DisplayName != "Alice" || id.SystemAdmin {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestAuthTokenRequiresUID(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodPost, "/v1/auth/token", "", tokenRequest{DisplayName: "nobody"})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestAuthTokenMethodNotAllowed(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/v1/auth/token", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestRequestIDHeader(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, "/healthz", "", nil)
	resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("request id not assigned")
	}

	req, _ := http.NewRequest(http.MethodGet, c.baseURL+"/healthz", nil)
	req.Header.Set("X-Request-Id", "given-id")
	resp2, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp2.Body.Close()
	if got := resp2.Header.Get("X-Request-Id"); got != "given-id" {
		t.Fatalf("request id = %q, want the caller-provided one", got)
	}
}
