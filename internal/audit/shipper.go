// Package audit handles the audit trail for security-relevant actions:
// logins, API key management, member changes, and every write to a compliance
// record. Audit records are intentionally separate from application logs
// because they have different consumers and retention requirements —
// application logs are ephemeral debug output for on-call engineers, while
// audit records are immutable evidence consumed by auditors and security
// teams, with retention measured in years. The primary store is the
// audit_logs table; the Shipper interface additionally forwards each entry to
// an external collector (SIEM, log aggregator) so the trail survives even a
// compromise of the application database.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/compai/comp-api/internal/config"
)

// Entry is the wire form of an audit record sent to external collectors. It
// mirrors the audit_logs row.
type Entry struct {
	Timestamp      time.Time      `json:"timestamp"`
	Action         string         `json:"action"`
	ActorID        string         `json:"actor_id,omitempty"`
	ActorType      string         `json:"actor_type,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	EntityType     string         `json:"entity_type,omitempty"`
	EntityID       string         `json:"entity_id,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	StatusCode     int            `json:"status_code,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Shipper forwards audit entries to an external destination.
type Shipper interface {
	// Ship sends an audit entry to the destination
	Ship(ctx context.Context, entry *Entry) error
	// Close flushes buffered entries and releases resources
	Close() error
}

// NopShipper discards every entry. Used when no external collector is
// configured; the database trail still exists.
type NopShipper struct{}

// Ship discards the entry.
func (NopShipper) Ship(ctx context.Context, entry *Entry) error { return nil }

// Close is a no-op.
func (NopShipper) Close() error { return nil }

// NewShipper builds the shipper described by the audit configuration.
func NewShipper(cfg config.AuditWebhookConfig) Shipper {
	if !cfg.Enabled || cfg.URL == "" {
		return NopShipper{}
	}
	return NewWebhookShipper(cfg)
}

// WebhookShipper POSTs audit entries to an HTTP collector. Entries are
// buffered and flushed in batches so a burst of writes does not turn into a
// burst of outbound requests; a full buffer drops the external copy (with a
// log line) rather than blocking request handling. The database remains the
// source of truth either way.
type WebhookShipper struct {
	cfg    config.AuditWebhookConfig
	client *http.Client

	entryCh   chan *Entry
	closeCh   chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

const (
	webhookBufferSize   = 1000
	webhookBatchSize    = 50
	webhookFlushEvery   = 5 * time.Second
	webhookSendTimeout  = 10 * time.Second
)

// NewWebhookShipper creates a webhook shipper and starts its flush loop.
func NewWebhookShipper(cfg config.AuditWebhookConfig) *WebhookShipper {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = webhookSendTimeout
	}

	ws := &WebhookShipper{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		entryCh: make(chan *Entry, webhookBufferSize),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go ws.run()

	return ws
}

// Ship queues the entry for batched delivery. It never blocks the caller; a
// full queue drops the entry.
func (ws *WebhookShipper) Ship(ctx context.Context, entry *Entry) error {
	select {
	case ws.entryCh <- entry:
		return nil
	default:
		slog.Warn("audit webhook buffer full, dropping external copy", "action", entry.Action)
		return fmt.Errorf("audit webhook buffer full")
	}
}

func (ws *WebhookShipper) run() {
	defer close(ws.doneCh)

	ticker := time.NewTicker(webhookFlushEvery)
	defer ticker.Stop()

	batch := make([]*Entry, 0, webhookBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := ws.send(batch); err != nil {
			slog.Error("failed to ship audit batch", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-ws.entryCh:
			batch = append(batch, entry)
			if len(batch) >= webhookBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ws.closeCh:
			// Drain whatever is queued, then flush once.
			for {
				select {
				case entry := <-ws.entryCh:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (ws *WebhookShipper) send(batch []*Entry) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal audit batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create audit webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send audit webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("audit webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close flushes buffered entries and stops the flush loop.
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() { close(ws.closeCh) })
	<-ws.doneCh
	return nil
}
