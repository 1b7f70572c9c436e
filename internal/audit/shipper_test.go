package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/compai/comp-api/internal/config"
)

type collector struct {
	mu      sync.Mutex
	batches [][]Entry
	headers http.Header
}

func (c *collector) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batch []Entry
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.batches = append(c.batches, batch)
		c.headers = r.Header.Clone()
		c.mu.Unlock()
	}
}

func (c *collector) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func TestWebhookShipper_FlushesOnClose(t *testing.T) {
	col := &collector{}
	server := httptest.NewServer(col.handler())
	defer server.Close()

	ws := NewWebhookShipper(config.AuditWebhookConfig{
		Enabled: true,
		URL:     server.URL,
		Headers: map[string]string{"X-Audit-Token": "secret"},
	})

	for i := 0; i < 3; i++ {
		if err := ws.Ship(context.Background(), &Entry{
			Timestamp: time.Now(),
			Action:    "POST /api/v1/organizations/org_1/risks",
			ActorID:   "usr_1",
		}); err != nil {
			t.Fatalf("Ship: %v", err)
		}
	}

	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := col.total(); got != 3 {
		t.Fatalf("collector received %d entries, want 3", got)
	}
	col.mu.Lock()
	defer col.mu.Unlock()
	if col.headers.Get("X-Audit-Token") != "secret" {
		t.Error("configured header not sent")
	}
}

func TestWebhookShipper_BatchesLargeBursts(t *testing.T) {
	col := &collector{}
	server := httptest.NewServer(col.handler())
	defer server.Close()

	ws := NewWebhookShipper(config.AuditWebhookConfig{Enabled: true, URL: server.URL})

	for i := 0; i < 120; i++ {
		ws.Ship(context.Background(), &Entry{Action: "PUT /x"})
	}
	ws.Close()

	if got := col.total(); got != 120 {
		t.Fatalf("collector received %d entries, want 120", got)
	}
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.batches) < 2 {
		t.Errorf("expected batched delivery, got %d request(s)", len(col.batches))
	}
}

func TestNewShipper_DisabledReturnsNop(t *testing.T) {
	s := NewShipper(config.AuditWebhookConfig{Enabled: false, URL: "http://x"})
	if _, ok := s.(NopShipper); !ok {
		t.Fatalf("NewShipper(disabled) = %T, want NopShipper", s)
	}

	s = NewShipper(config.AuditWebhookConfig{Enabled: true})
	if _, ok := s.(NopShipper); !ok {
		t.Fatalf("NewShipper(no url) = %T, want NopShipper", s)
	}
}
