package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestLocalLimiter(rpm, burst int) *LocalLimiter {
	rl := NewLocalLimiter(RateLimitConfig{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   time.Minute,
	})
	return rl
}

func TestLocalLimiter_BurstThenDeny(t *testing.T) {
	rl := newTestLocalLimiter(60, 3)
	defer rl.Stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow(ctx, "client"); !ok {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if ok, _ := rl.Allow(ctx, "client"); ok {
		t.Fatal("request beyond burst allowed")
	}
}

func TestLocalLimiter_KeysIndependent(t *testing.T) {
	rl := newTestLocalLimiter(60, 1)
	defer rl.Stop()

	ctx := context.Background()
	if ok, _ := rl.Allow(ctx, "a"); !ok {
		t.Fatal("first request for key a denied")
	}
	if ok, _ := rl.Allow(ctx, "a"); ok {
		t.Fatal("second request for key a allowed beyond burst")
	}
	if ok, _ := rl.Allow(ctx, "b"); !ok {
		t.Fatal("key b starved by key a's budget")
	}
}

func TestLocalLimiter_Refills(t *testing.T) {
	// 6000 rpm = 100 tokens/s, so a drained bucket refills within a few ms.
	rl := newTestLocalLimiter(6000, 1)
	defer rl.Stop()

	ctx := context.Background()
	rl.Allow(ctx, "client")
	if ok, _ := rl.Allow(ctx, "client"); ok {
		t.Fatal("bucket not drained")
	}

	time.Sleep(50 * time.Millisecond)
	if ok, _ := rl.Allow(ctx, "client"); !ok {
		t.Fatal("bucket did not refill")
	}
}

func TestRateLimitMiddleware_Responses(t *testing.T) {
	rl := newTestLocalLimiter(60, 2)
	defer rl.Stop()

	router := gin.New()
	router.GET("/", RateLimitMiddleware(rl), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := do()
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}
	if first.Header().Get("X-RateLimit-Limit") != "60" {
		t.Errorf("X-RateLimit-Limit = %q, want 60", first.Header().Get("X-RateLimit-Limit"))
	}

	do()
	third := do()
	if third.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", third.Code)
	}
	if third.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", third.Header().Get("Retry-After"))
	}
}

func TestRateLimitKey_Priority(t *testing.T) {
	newCtx := func() (*gin.Context, *httptest.ResponseRecorder) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.RemoteAddr = "10.0.0.1:1234"
		return c, w
	}

	c, _ := newCtx()
	c.Set("user_id", "usr_1")
	c.Set("organization_id", "org_1")
	if got := rateLimitKey(c); got != "user:usr_1" {
		t.Errorf("key = %q, want user:usr_1", got)
	}

	c, _ = newCtx()
	c.Set("organization_id", "org_1")
	if got := rateLimitKey(c); got != "org:org_1" {
		t.Errorf("key = %q, want org:org_1", got)
	}

	c, _ = newCtx()
	if got := rateLimitKey(c); got != "ip:10.0.0.1" {
		t.Errorf("key = %q, want ip:10.0.0.1", got)
	}
}
