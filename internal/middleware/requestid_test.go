package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func serveRequestID(t *testing.T, inbound string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var stored string
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		stored = c.GetString(RequestIDKey)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(RequestIDHeader, inbound)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w, stored
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	w, stored := serveRequestID(t, "")

	echoed := w.Header().Get(RequestIDHeader)
	if echoed == "" {
		t.Fatal("no request ID echoed in response")
	}
	if stored != echoed {
		t.Errorf("context ID %q differs from response header %q", stored, echoed)
	}
	if _, err := uuid.Parse(echoed); err != nil {
		t.Errorf("generated ID %q is not a UUID: %v", echoed, err)
	}
}

func TestRequestID_InboundIDReused(t *testing.T) {
	w, stored := serveRequestID(t, "lb-abc-123")

	if stored != "lb-abc-123" {
		t.Errorf("context ID = %q, want inbound lb-abc-123", stored)
	}
	if got := w.Header().Get(RequestIDHeader); got != "lb-abc-123" {
		t.Errorf("echoed ID = %q, want inbound lb-abc-123", got)
	}
}

func TestRequestID_OversizedInboundIDReplaced(t *testing.T) {
	inbound := strings.Repeat("x", maxInboundRequestIDLength+1)
	w, stored := serveRequestID(t, inbound)

	if stored == inbound {
		t.Error("oversized inbound ID was reused")
	}
	if got := w.Header().Get(RequestIDHeader); got == inbound {
		t.Error("oversized inbound ID was echoed")
	}
	if _, err := uuid.Parse(stored); err != nil {
		t.Errorf("replacement ID %q is not a UUID: %v", stored, err)
	}
}
