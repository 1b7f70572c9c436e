package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// jwksServer serves a mutable key set and counts fetches.
type jwksServer struct {
	*httptest.Server
	fetches atomic.Int64
	doc     atomic.Value // JWKSDocument
}

func newJWKSServer(t *testing.T, doc JWKSDocument) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	s.doc.Store(doc)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fetches.Add(1)
		json.NewEncoder(w).Encode(s.doc.Load())
	}))
	t.Cleanup(s.Close)
	return s
}

func testKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	return key, keyID(&key.PublicKey)
}

func docFor(key *rsa.PrivateKey) JWKSDocument {
	issuer := &Issuer{key: key, kid: keyID(&key.PublicKey)}
	return issuer.JWKS()
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestJWKSCache_ServesFromCacheWithinTTL(t *testing.T) {
	key, kid := testKeyPair(t)
	server := newJWKSServer(t, docFor(key))
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	cache := NewJWKSCache(WithJWKSClock(clock.now))

	for i := 0; i < 3; i++ {
		if _, err := cache.GetKey(context.Background(), server.URL, kid, false); err != nil {
			t.Fatalf("GetKey #%d: %v", i, err)
		}
		clock.advance(10 * time.Second)
	}

	if n := server.fetches.Load(); n != 1 {
		t.Errorf("server fetched %d times within TTL, want 1", n)
	}
}

func TestJWKSCache_RefetchesAfterTTL(t *testing.T) {
	key, kid := testKeyPair(t)
	server := newJWKSServer(t, docFor(key))
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	cache := NewJWKSCache(WithJWKSClock(clock.now))

	if _, err := cache.GetKey(context.Background(), server.URL, kid, false); err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	clock.advance(61 * time.Second)
	if _, err := cache.GetKey(context.Background(), server.URL, kid, false); err != nil {
		t.Fatalf("GetKey after TTL: %v", err)
	}

	if n := server.fetches.Load(); n != 2 {
		t.Errorf("server fetched %d times across TTL expiry, want 2", n)
	}
}

func TestJWKSCache_UnknownKidRefetchesOncePerCooldown(t *testing.T) {
	key, _ := testKeyPair(t)
	server := newJWKSServer(t, docFor(key))
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	cache := NewJWKSCache(WithJWKSClock(clock.now))

	// Warm the cache with the published key set.
	if _, err := cache.GetKey(context.Background(), server.URL, keyID(&key.PublicKey), false); err != nil {
		t.Fatalf("warm GetKey: %v", err)
	}

	// Unknown kid triggers one refetch once the cooldown allows it; further
	// lookups inside the cooldown stay local.
	for i := 0; i < 5; i++ {
		clock.advance(3 * time.Second)
		_, err := cache.GetKey(context.Background(), server.URL, "ghost-kid", false)
		if !errors.Is(err, ErrJWKSNoMatchingKey) {
			t.Fatalf("GetKey(ghost-kid) error = %v, want ErrJWKSNoMatchingKey", err)
		}
	}

	if n := server.fetches.Load(); n != 2 {
		t.Errorf("server fetched %d times, want 2 (warm + one cooldown-limited refetch)", n)
	}
}

func TestJWKSCache_ForceBypassesCacheAndCooldown(t *testing.T) {
	oldKey, oldKid := testKeyPair(t)
	newKey, newKid := testKeyPair(t)
	server := newJWKSServer(t, docFor(oldKey))
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	cache := NewJWKSCache(WithJWKSClock(clock.now))

	if _, err := cache.GetKey(context.Background(), server.URL, oldKid, false); err != nil {
		t.Fatalf("warm GetKey: %v", err)
	}

	// Rotate server-side. The cached entry is fresh and the cooldown has not
	// passed, so only force can see the new key.
	server.doc.Store(docFor(newKey))

	if _, err := cache.GetKey(context.Background(), server.URL, newKid, false); !errors.Is(err, ErrJWKSNoMatchingKey) {
		t.Fatalf("unforced GetKey(new kid) error = %v, want ErrJWKSNoMatchingKey", err)
	}
	if _, err := cache.GetKey(context.Background(), server.URL, newKid, true); err != nil {
		t.Fatalf("forced GetKey(new kid): %v", err)
	}
}

func TestJWKSCache_FetchFailureReturnsFetchError(t *testing.T) {
	server := newJWKSServer(t, JWKSDocument{})
	url := server.URL
	server.Close()

	cache := NewJWKSCache()
	_, err := cache.GetKey(context.Background(), url, "kid", false)
	if !errors.Is(err, ErrJWKSFetch) {
		t.Fatalf("GetKey error = %v, want ErrJWKSFetch", err)
	}
}

func TestJWKSCache_ExpiredEntryNotServedWhenProviderDown(t *testing.T) {
	key, kid := testKeyPair(t)
	server := newJWKSServer(t, docFor(key))
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	cache := NewJWKSCache(WithJWKSClock(clock.now))

	if _, err := cache.GetKey(context.Background(), server.URL, kid, false); err != nil {
		t.Fatalf("warm GetKey: %v", err)
	}

	url := server.URL
	server.Close()
	clock.advance(2 * time.Minute)

	// TTL has passed and the provider is down. The cached key may have been
	// rotated out in the meantime, so the lookup must fail as unreachable
	// rather than keep verifying tokens against it.
	if _, err := cache.GetKey(context.Background(), url, kid, false); !errors.Is(err, ErrJWKSFetch) {
		t.Fatalf("GetKey with provider down = %v, want ErrJWKSFetch", err)
	}
}

func TestJWKSCache_Non200Response(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := NewJWKSCache()
	if _, err := cache.GetKey(context.Background(), server.URL, "kid", false); !errors.Is(err, ErrJWKSFetch) {
		t.Fatalf("GetKey error = %v, want ErrJWKSFetch", err)
	}
}
