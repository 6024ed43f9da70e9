package httpapi

import (
	"net/http"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("extractBearerToken(%q) = %q, %v", tc.header, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("extractBearerToken(%q) should fail", tc.header)
		}
	}
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/v1/accounts", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestProtectedRouteWithInvalidToken(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/v1/accounts", "not-a-real-token", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestPublicPathsSkipAuth(t *testing.T) {
	c := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info", "/metrics"} {
		resp := c.do(http.MethodGet, path, "", nil)
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized {
			t.Fatalf("%s should not require auth", path)
		}
	}
}

func TestIsPublicPathExactMatchOnly(t *testing.T) {
	if isPublicPath("/v1/accounts") {
		t.Fatal("/v1/accounts must not be public")
	}
	if !isPublicPath("/") {
		t.Fatal("/ is public")
	}
	if isPublicPath("/v1/auth/token2") {
		t.Fatal("prefix match leaked")
	}
}
