package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func allowOrigin(h gin.HandlerFunc, origin string) (int, string) {
	r := gin.New()
	r.Use(h)
	r.OPTIONS("/api/generations", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodOptions, "/api/generations", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code, rec.Header().Get("Access-Control-Allow-Origin")
}

func TestCORSOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	configured := []string{"https://app.illumyn.io"}
	cases := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"default vite dev server", nil, "http://localhost:5173", true},
		{"default loopback", nil, "http://127.0.0.1:3000", true},
		{"default rejects production", nil, "https://app.illumyn.io", false},
		{"configured origin", configured, "https://app.illumyn.io", true},
		{"configured replaces defaults", configured, "http://localhost:5173", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, got := allowOrigin(CORS(tc.origins), tc.origin)
			if tc.allowed && (code != http.StatusNoContent || got != tc.origin) {
				t.Fatalf("origin %s should be allowed: status=%d allow=%q", tc.origin, code, got)
			}
			if !tc.allowed && got != "" {
				t.Fatalf("origin %s should be rejected, allow=%q", tc.origin, got)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  xyz": "xyz",
		"Basic abc":   "",
		"":            "",
	}
	for header, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil)
		if header != "" {
			c.Request.Header.Set("Authorization", header)
		}
		if got := bearerToken(c); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
