// api_key_expiry_notifier.go implements the APIKeyExpiryNotifier background job, which
// periodically scans for API keys approaching their expiry date and sends a warning
// email to the owning organization's owners and admins. Notification state is
// persisted in the database (expiry_notification_sent_at column) so emails are sent
// exactly once even across server restarts. The job is a no-op when
// notifications.enabled is false or when the SMTP host is not configured, so it is
// always safe to start regardless of deployment environment.
package jobs

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/compai/comp-api/internal/config"
	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
	"github.com/compai/comp-api/internal/telemetry"
)

// APIKeyExpiryNotifier periodically emails organization admins whose API keys
// are about to expire.
type APIKeyExpiryNotifier struct {
	apiKeyRepo *repositories.APIKeyRepository
	memberRepo *repositories.MemberRepository
	userRepo   *repositories.UserRepository
	cfg        *config.NotificationsConfig
	interval   time.Duration
	stopChan   chan struct{}
}

// NewAPIKeyExpiryNotifier creates a new APIKeyExpiryNotifier.
// The check interval comes from notifications.api_key_expiry_check_interval_hours
// (default 24h).
func NewAPIKeyExpiryNotifier(
	apiKeyRepo *repositories.APIKeyRepository,
	memberRepo *repositories.MemberRepository,
	userRepo *repositories.UserRepository,
	cfg *config.NotificationsConfig,
) *APIKeyExpiryNotifier {
	hours := cfg.APIKeyExpiryCheckIntervalHours
	if hours <= 0 {
		hours = 24
	}
	return &APIKeyExpiryNotifier{
		apiKeyRepo: apiKeyRepo,
		memberRepo: memberRepo,
		userRepo:   userRepo,
		cfg:        cfg,
		interval:   time.Duration(hours) * time.Hour,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the background expiry-notification loop.
// It runs an initial check immediately, then repeats on the configured interval.
// The loop exits when ctx is cancelled or Stop() is called.
func (n *APIKeyExpiryNotifier) Start(ctx context.Context) {
	if !n.cfg.Enabled {
		slog.Info("api key expiry notifier disabled", "reason", "notifications.enabled=false")
		return
	}
	if n.cfg.SMTP.Host == "" {
		slog.Info("api key expiry notifier disabled", "reason", "notifications.smtp.host not set")
		return
	}

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	slog.Info("api key expiry notifier started",
		"check_interval", n.interval,
		"warning_window_days", n.cfg.APIKeyExpiryWarningDays)

	// Run once immediately on startup
	n.runCheck(ctx)

	for {
		select {
		case <-ticker.C:
			n.runCheck(ctx)
		case <-n.stopChan:
			slog.Info("api key expiry notifier stopped")
			return
		case <-ctx.Done():
			slog.Info("api key expiry notifier context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (n *APIKeyExpiryNotifier) Stop() {
	close(n.stopChan)
}

// runCheck queries for expiring keys and sends notification emails.
func (n *APIKeyExpiryNotifier) runCheck(ctx context.Context) {
	warningDays := n.cfg.APIKeyExpiryWarningDays
	if warningDays <= 0 {
		warningDays = 7
	}

	keys, err := n.apiKeyRepo.FindExpiringKeys(ctx, time.Duration(warningDays)*24*time.Hour)
	if err != nil {
		slog.Error("api key expiry notifier: failed to query expiring keys", "error", err)
		return
	}

	if len(keys) == 0 {
		return
	}

	slog.Info("api key expiry notifier: found keys approaching expiry", "count", len(keys))

	for _, key := range keys {
		recipients := n.adminEmails(ctx, key.OrganizationID)
		if len(recipients) == 0 {
			slog.Warn("api key expiry notifier: no admin recipients for organization",
				"organization_id", key.OrganizationID, "key_id", key.ID)
			continue
		}

		if err := n.sendExpiryEmail(recipients, key.Name, *key.ExpiresAt); err != nil {
			slog.Error("api key expiry notifier: failed to send email",
				"key_id", key.ID, "error", err)
			continue
		}
		telemetry.APIKeyExpiryNotificationsSentTotal.Inc()

		if err := n.apiKeyRepo.MarkExpiryNotificationSent(ctx, key.ID, time.Now().UTC()); err != nil {
			slog.Error("api key expiry notifier: failed to mark notification sent",
				"key_id", key.ID, "error", err)
		}
	}
}

// adminEmails resolves the email addresses of the organization's active owners
// and admins. Lookup failures for individual users are logged and skipped so
// one bad row cannot suppress the whole warning.
func (n *APIKeyExpiryNotifier) adminEmails(ctx context.Context, orgID string) []string {
	members, err := n.memberRepo.ListMembers(ctx, orgID)
	if err != nil {
		slog.Error("api key expiry notifier: failed to list members",
			"organization_id", orgID, "error", err)
		return nil
	}

	var emails []string
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		if m.Role != models.RoleOwner && m.Role != models.RoleAdmin {
			continue
		}
		user, err := n.userRepo.GetByID(ctx, m.UserID)
		if err != nil {
			slog.Error("api key expiry notifier: could not retrieve user",
				"user_id", m.UserID, "error", err)
			continue
		}
		if user == nil || user.Email == "" {
			continue
		}
		emails = append(emails, user.Email)
	}
	return emails
}

// sendExpiryEmail composes and delivers a plain-text warning email via SMTP.
func (n *APIKeyExpiryNotifier) sendExpiryEmail(recipients []string, keyName string, expiresAt time.Time) error {
	daysLeft := int(time.Until(expiresAt).Hours()/24) + 1
	if daysLeft < 0 {
		daysLeft = 0
	}

	subject := fmt.Sprintf("Action Required: API key '%s' expires in %d day(s)", keyName, daysLeft)
	body := strings.Join([]string{
		"Hello,",
		"",
		fmt.Sprintf("Your organization's Comp API key '%s' will expire on %s (%d day(s) from now).",
			keyName, expiresAt.UTC().Format(time.RFC1123), daysLeft),
		"",
		"To avoid service disruption, please create a replacement key before the expiry date:",
		"  1. Sign in to Comp and open Settings → API Keys.",
		"  2. Create a new key and update the integrations that use the old one.",
		"  3. Revoke or let the old key expire.",
		"",
		"If you no longer need this key, no action is required.",
		"",
		"— Comp",
	}, "\r\n")

	smtpCfg := &n.cfg.SMTP
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		smtpCfg.From, strings.Join(recipients, ", "), subject,
	)
	msg := []byte(headers + body + "\r\n")

	addr := fmt.Sprintf("%s:%d", smtpCfg.Host, smtpCfg.Port)
	auth := smtp.PlainAuth("", smtpCfg.Username, smtpCfg.Password, smtpCfg.Host)

	if smtpCfg.UseTLS {
		return sendMailTLS(addr, smtpCfg.Host, auth, smtpCfg.From, recipients, msg)
	}
	return smtp.SendMail(addr, auth, smtpCfg.From, recipients, msg)
}

// sendMailTLS connects via implicit TLS (port 465 / SMTPS) and sends a message.
// For port 587 STARTTLS, smtp.SendMail handles the upgrade automatically; the
// dial-failure fallback routes to it so UseTLS=true always means an encrypted
// connection regardless of port.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		// Fall back to STARTTLS via the standard smtp.SendMail path (port 587 pattern)
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, addr := range to {
		if err := c.Rcpt(addr); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", addr, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
