// integration_check.go implements the IntegrationChecker background job, which
// periodically verifies that each active integration's credentials still reach
// the external provider. The outcome is written back to the integration row
// (last_check_at, last_check_status) so the API can surface broken connections
// without probing providers on the request path.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/compai/comp-api/internal/config"
	"github.com/compai/comp-api/internal/crypto"
	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
	"github.com/compai/comp-api/internal/telemetry"
)

// integrationCredentials is the decrypted shape of an integration's stored
// credentials. Endpoint is the provider URL probed by the connectivity check;
// Token, when present, is sent as a bearer credential.
type integrationCredentials struct {
	Endpoint string `json:"endpoint"`
	Token    string `json:"token,omitempty"`
}

// IntegrationChecker periodically probes active integrations and records the
// result.
type IntegrationChecker struct {
	repo     *repositories.IntegrationRepository
	cipher   *crypto.CredentialCipher
	client   *http.Client
	interval time.Duration
	stopChan chan struct{}
}

// NewIntegrationChecker creates a new IntegrationChecker. The check interval
// comes from integrations.check_interval_minutes (default 60m).
func NewIntegrationChecker(
	repo *repositories.IntegrationRepository,
	cipher *crypto.CredentialCipher,
	cfg *config.IntegrationsConfig,
) *IntegrationChecker {
	minutes := cfg.CheckIntervalMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return &IntegrationChecker{
		repo:     repo,
		cipher:   cipher,
		client:   &http.Client{Timeout: 10 * time.Second},
		interval: time.Duration(minutes) * time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background connectivity-check loop. It runs an initial
// sweep immediately, then repeats on the configured interval. The loop exits
// when ctx is cancelled or Stop() is called.
func (ic *IntegrationChecker) Start(ctx context.Context) {
	if ic.cipher == nil {
		slog.Info("integration checker disabled", "reason", "no encryption key configured")
		return
	}

	ticker := time.NewTicker(ic.interval)
	defer ticker.Stop()

	slog.Info("integration checker started", "check_interval", ic.interval)

	ic.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			ic.runSweep(ctx)
		case <-ic.stopChan:
			slog.Info("integration checker stopped")
			return
		case <-ctx.Done():
			slog.Info("integration checker context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (ic *IntegrationChecker) Stop() {
	close(ic.stopChan)
}

// runSweep checks every active integration once.
func (ic *IntegrationChecker) runSweep(ctx context.Context) {
	integrations, err := ic.repo.ListActive(ctx)
	if err != nil {
		slog.Error("integration checker: failed to list active integrations", "error", err)
		return
	}

	for _, integration := range integrations {
		status := models.IntegrationCheckOK
		if err := ic.checkOne(ctx, &integration); err != nil {
			status = models.IntegrationCheckFailed
			telemetry.IntegrationCheckFailuresTotal.WithLabelValues(integration.ID).Inc()
			slog.Warn("integration check failed",
				"integration_id", integration.ID,
				"provider", integration.Provider,
				"error", err)
		}

		if err := ic.repo.UpdateCheckResult(ctx, integration.ID, status, time.Now().UTC()); err != nil {
			slog.Error("integration checker: failed to record check result",
				"integration_id", integration.ID, "error", err)
		}
	}
}

// checkOne decrypts the integration's credentials and probes the provider
// endpoint. Any 2xx/3xx response counts as reachable; credential decryption
// or parse failures count as failed checks because the integration is unusable
// either way.
func (ic *IntegrationChecker) checkOne(ctx context.Context, integration *models.Integration) error {
	plaintext, err := ic.cipher.Open(integration.EncryptedCredentials)
	if err != nil {
		return fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var creds integrationCredentials
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		return fmt.Errorf("failed to parse credentials: %w", err)
	}
	if creds.Endpoint == "" {
		return fmt.Errorf("credentials carry no endpoint")
	}

	start := time.Now()
	defer func() {
		telemetry.IntegrationCheckDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, creds.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := ic.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return nil
}
