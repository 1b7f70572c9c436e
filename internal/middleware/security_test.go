package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func serveWithHeaders(t *testing.T, config SecurityHeadersConfig) http.Header {
	t.Helper()

	router := gin.New()
	router.Use(SecurityHeadersMiddleware(config))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w.Header()
}

func TestSecurityHeaders_APIDefaults(t *testing.T) {
	h := serveWithHeaders(t, APISecurityHeadersConfig())

	want := map[string]string{
		"Strict-Transport-Security":    "max-age=31536000; includeSubDomains",
		"X-Frame-Options":              "DENY",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":              "no-referrer",
		"X-Content-Type-Options":       "nosniff",
		"Cross-Origin-Opener-Policy":   "same-origin",
		"Cross-Origin-Resource-Policy": "same-origin",
	}
	for name, value := range want {
		if got := h.Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
}

func TestSecurityHeaders_OptionalHeadersSuppressed(t *testing.T) {
	h := serveWithHeaders(t, SecurityHeadersConfig{})

	for _, name := range []string{
		"Strict-Transport-Security", "X-Frame-Options",
		"Content-Security-Policy", "Referrer-Policy",
	} {
		if got := h.Get(name); got != "" {
			t.Errorf("%s = %q, want unset", name, got)
		}
	}

	// The hardening headers are not configurable.
	if got := h.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}
