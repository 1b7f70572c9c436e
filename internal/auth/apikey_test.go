package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/compai/comp-api/internal/db/models"
)

type fakeKeyStore struct {
	keys    []models.APIKey
	listErr error

	updateErr error
	updated   []string
}

func (s *fakeKeyStore) ListActive(ctx context.Context) ([]models.APIKey, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.keys, nil
}

func (s *fakeKeyStore) UpdateLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, id)
	return nil
}

func strptr(s string) *string { return &s }

func saltedKey(id, org, plaintext, salt string) models.APIKey {
	return models.APIKey{
		ID:             id,
		OrganizationID: org,
		KeyHash:        HashKey(plaintext, &salt),
		Salt:           strptr(salt),
		IsActive:       true,
	}
}

func TestValidate_SaltedMatch(t *testing.T) {
	store := &fakeKeyStore{keys: []models.APIKey{
		saltedKey("key-1", "org-1", "sk_live_abc", "s1"),
	}}
	v := NewAPIKeyValidator(store)

	if got := v.Validate(context.Background(), "sk_live_abc"); got != "org-1" {
		t.Fatalf("Validate = %q, want org-1", got)
	}
	if len(store.updated) != 1 || store.updated[0] != "key-1" {
		t.Errorf("last_used_at updated for %v, want [key-1]", store.updated)
	}
}

func TestValidate_LegacyUnsaltedMatch(t *testing.T) {
	store := &fakeKeyStore{keys: []models.APIKey{
		{
			ID:             "key-legacy",
			OrganizationID: "org-2",
			KeyHash:        HashKey("old-key", nil),
			Salt:           nil,
			IsActive:       true,
		},
	}}
	v := NewAPIKeyValidator(store)

	if got := v.Validate(context.Background(), "old-key"); got != "org-2" {
		t.Fatalf("Validate = %q, want org-2", got)
	}
}

func TestValidate_EmptyCandidate(t *testing.T) {
	store := &fakeKeyStore{keys: []models.APIKey{
		saltedKey("key-1", "org-1", "", "s1"),
	}}
	v := NewAPIKeyValidator(store)

	if got := v.Validate(context.Background(), ""); got != "" {
		t.Fatalf("Validate(\"\") = %q, want \"\"", got)
	}
	if len(store.updated) != 0 {
		t.Error("empty candidate must not touch the store")
	}
}

func TestValidate_NoMatch(t *testing.T) {
	store := &fakeKeyStore{keys: []models.APIKey{
		saltedKey("key-1", "org-1", "sk_live_abc", "s1"),
	}}
	v := NewAPIKeyValidator(store)

	if got := v.Validate(context.Background(), "sk_live_wrong"); got != "" {
		t.Fatalf("Validate = %q, want \"\"", got)
	}
}

func TestValidate_ExpiredKeyIndistinguishableFromNoMatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	expired := saltedKey("key-1", "org-1", "sk_live_abc", "s1")
	expired.ExpiresAt = &past

	store := &fakeKeyStore{keys: []models.APIKey{expired}}
	v := NewAPIKeyValidator(store)
	v.now = func() time.Time { return now }

	if got := v.Validate(context.Background(), "sk_live_abc"); got != "" {
		t.Fatalf("expired key authenticated as %q", got)
	}
	if len(store.updated) != 0 {
		t.Error("expired key must not update last_used_at")
	}
}

func TestValidate_FutureExpiryStillValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	key := saltedKey("key-1", "org-1", "sk_live_abc", "s1")
	key.ExpiresAt = &future

	store := &fakeKeyStore{keys: []models.APIKey{key}}
	v := NewAPIKeyValidator(store)
	v.now = func() time.Time { return now }

	if got := v.Validate(context.Background(), "sk_live_abc"); got != "org-1" {
		t.Fatalf("Validate = %q, want org-1", got)
	}
}

func TestValidate_FirstMatchWins(t *testing.T) {
	store := &fakeKeyStore{keys: []models.APIKey{
		saltedKey("key-a", "org-a", "dup", "s1"),
		saltedKey("key-b", "org-b", "dup", "s2"),
	}}
	v := NewAPIKeyValidator(store)

	if got := v.Validate(context.Background(), "dup"); got != "org-a" {
		t.Fatalf("Validate = %q, want org-a (first match)", got)
	}
	if len(store.updated) != 1 || store.updated[0] != "key-a" {
		t.Errorf("updated %v, want [key-a]", store.updated)
	}
}

func TestValidate_StoreErrorsFailClosed(t *testing.T) {
	t.Run("list error", func(t *testing.T) {
		store := &fakeKeyStore{listErr: errors.New("connection refused")}
		v := NewAPIKeyValidator(store)
		if got := v.Validate(context.Background(), "sk_live_abc"); got != "" {
			t.Fatalf("Validate = %q, want \"\" on list error", got)
		}
	})

	t.Run("last_used_at write error", func(t *testing.T) {
		store := &fakeKeyStore{
			keys:      []models.APIKey{saltedKey("key-1", "org-1", "sk_live_abc", "s1")},
			updateErr: errors.New("write timeout"),
		}
		v := NewAPIKeyValidator(store)
		if got := v.Validate(context.Background(), "sk_live_abc"); got != "" {
			t.Fatalf("Validate = %q, want \"\" when the timestamp write fails", got)
		}
	})
}

func TestGenerateKey(t *testing.T) {
	plaintext, hash, salt, err := GenerateKey("comp")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if len(plaintext) < 20 {
		t.Errorf("plaintext %q suspiciously short", plaintext)
	}
	if plaintext[:5] != "comp_" {
		t.Errorf("plaintext %q missing prefix", plaintext)
	}
	if HashKey(plaintext, &salt) != hash {
		t.Error("returned hash does not match HashKey(plaintext, salt)")
	}

	other, _, _, err := GenerateKey("comp")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if other == plaintext {
		t.Error("two generated keys are identical")
	}
}

func TestHashKey_SaltChangesHash(t *testing.T) {
	s1, s2 := "s1", "s2"
	if HashKey("k", &s1) == HashKey("k", &s2) {
		t.Error("different salts produced the same hash")
	}
	if HashKey("k", &s1) == HashKey("k", nil) {
		t.Error("salted and unsalted hashes collide")
	}
}
