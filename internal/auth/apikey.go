// apikey.go implements API key generation, hashing, and validation.
//
// Validation deliberately scans every active key rather than looking up by
// hash: each key carries its own salt, so the candidate's hash differs per
// row and cannot serve as an index. At the key counts a tenant realistically
// holds (tens to low hundreds) the scan is cheap, and it keeps the legacy
// unsalted rows validating without a second code path.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/telemetry"
)

// APIKeyStore is the slice of the key repository the validator needs.
type APIKeyStore interface {
	ListActive(ctx context.Context) ([]models.APIKey, error)
	UpdateLastUsed(ctx context.Context, id string, usedAt time.Time) error
}

// APIKeyValidator resolves a presented plaintext key to its owning
// organization.
type APIKeyValidator struct {
	store APIKeyStore
	now   func() time.Time
}

// NewAPIKeyValidator creates a validator backed by the given store.
func NewAPIKeyValidator(store APIKeyStore) *APIKeyValidator {
	return &APIKeyValidator{store: store, now: time.Now}
}

// HashKey computes the stored hash for a plaintext key and optional salt:
// hex(sha256(plaintext + salt)), or hex(sha256(plaintext)) when salt is nil.
// The nil-salt form exists only to keep keys issued before salting valid.
func HashKey(plaintext string, salt *string) string {
	input := plaintext
	if salt != nil {
		input += *salt
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// GenerateKey produces a new plaintext API key and its per-key salt. The
// plaintext is returned exactly once; callers must store only the hash.
func GenerateKey(prefix string) (plaintext, hash, salt string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("failed to generate api key: %w", err)
	}
	saltRaw := make([]byte, 8)
	if _, err := rand.Read(saltRaw); err != nil {
		return "", "", "", fmt.Errorf("failed to generate api key salt: %w", err)
	}

	plaintext = prefix + "_" + base64.RawURLEncoding.EncodeToString(raw)
	salt = hex.EncodeToString(saltRaw)
	hash = HashKey(plaintext, &salt)
	return plaintext, hash, salt, nil
}

// Validate resolves candidate to an organization ID, or "" when the key does
// not authenticate.
//
// Every active key is loaded and the candidate hashed against each row's
// salt; the first hash match wins. A matched key whose expiry has passed
// returns "" exactly like a non-match, so a caller cannot probe whether a key
// exists but expired. On success last_used_at is written before returning; a
// failed write is logged and treated as no-match rather than letting an
// unstamped use through. Store errors never propagate, they all collapse
// to "".
func (v *APIKeyValidator) Validate(ctx context.Context, candidate string) string {
	if candidate == "" {
		return ""
	}

	keys, err := v.store.ListActive(ctx)
	if err != nil {
		slog.Error("api key validation: failed to load active keys", "error", err)
		telemetry.APIKeyValidationsTotal.WithLabelValues("error").Inc()
		return ""
	}

	now := v.now()
	for i := range keys {
		key := &keys[i]
		computed := HashKey(candidate, key.Salt)
		if subtle.ConstantTimeCompare([]byte(computed), []byte(key.KeyHash)) != 1 {
			continue
		}

		if key.Expired(now) {
			// Same outcome as no match, on purpose.
			telemetry.APIKeyValidationsTotal.WithLabelValues("no_match").Inc()
			return ""
		}

		if err := v.store.UpdateLastUsed(ctx, key.ID, now); err != nil {
			slog.Error("api key validation: failed to update last_used_at",
				"api_key_id", key.ID,
				"organization_id", key.OrganizationID,
				"error", err)
			telemetry.APIKeyValidationsTotal.WithLabelValues("error").Inc()
			return ""
		}

		telemetry.APIKeyValidationsTotal.WithLabelValues("matched").Inc()
		return key.OrganizationID
	}

	telemetry.APIKeyValidationsTotal.WithLabelValues("no_match").Inc()
	return ""
}
