// jwks.go implements a small time-based cache of remote JSON Web Key Sets.
//
// Entries are keyed by JWKS URL. A cached entry is served until its TTL
// passes; after that the next lookup refetches. A cooldown between fetch
// attempts stops a flood of requests carrying unknown kids from hammering the
// identity provider. Concurrent requests may race to refetch an expired
// entry; the fetch is idempotent so the worst case is a redundant HTTP call.
package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/compai/comp-api/internal/telemetry"
)

// ErrJWKSNoMatchingKey indicates the key set holds no key for the token's
// kid. Callers detect it with errors.Is, or by the "no matching key" message
// substring when the error has been flattened to text along the way.
var ErrJWKSNoMatchingKey = errors.New("no matching key found in JWKS")

// ErrJWKSFetch wraps transport failures reaching the JWKS endpoint so callers
// can distinguish "identity provider down" from "bad token".
var ErrJWKSFetch = errors.New("failed to fetch JWKS")

const (
	defaultJWKSTTL      = 60 * time.Second
	defaultJWKSCooldown = 10 * time.Second
	maxJWKSResponse     = 1 << 20 // 1 MiB
)

type jwksEntry struct {
	keys      map[string]any // kid -> *rsa.PublicKey or *ecdsa.PublicKey
	fetchedAt time.Time
}

// JWKSCache fetches and caches remote key sets.
type JWKSCache struct {
	mu          sync.Mutex
	entries     map[string]*jwksEntry
	lastAttempt map[string]time.Time

	ttl      time.Duration
	cooldown time.Duration
	client   *http.Client
	now      func() time.Time
}

// JWKSCacheOption customizes a JWKSCache.
type JWKSCacheOption func(*JWKSCache)

// WithJWKSTTL overrides the cache TTL. A zero TTL disables caching entirely.
func WithJWKSTTL(ttl time.Duration) JWKSCacheOption {
	return func(c *JWKSCache) { c.ttl = ttl }
}

// WithJWKSCooldown overrides the minimum interval between fetch attempts.
func WithJWKSCooldown(d time.Duration) JWKSCacheOption {
	return func(c *JWKSCache) { c.cooldown = d }
}

// WithJWKSHTTPClient overrides the HTTP client used to fetch key sets.
func WithJWKSHTTPClient(client *http.Client) JWKSCacheOption {
	return func(c *JWKSCache) { c.client = client }
}

// WithJWKSClock overrides the time source. Tests use this to step through TTL
// expiry without sleeping.
func WithJWKSClock(now func() time.Time) JWKSCacheOption {
	return func(c *JWKSCache) { c.now = now }
}

// NewJWKSCache creates a cache with a 60 second TTL and a 10 second fetch
// cooldown.
func NewJWKSCache(opts ...JWKSCacheOption) *JWKSCache {
	c := &JWKSCache{
		entries:     make(map[string]*jwksEntry),
		lastAttempt: make(map[string]time.Time),
		ttl:         defaultJWKSTTL,
		cooldown:    defaultJWKSCooldown,
		client:      &http.Client{Timeout: 10 * time.Second},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetKey returns the public key with the given kid from the key set at
// jwksURL. With force set, the cached entry and the fetch cooldown are both
// bypassed; this is the key-rotation recovery path and should be used at most
// once per request.
//
// When the cached entry lacks the kid, one refetch is attempted (subject to
// the cooldown) before giving up, so a freshly rotated key is picked up
// without waiting out the TTL.
func (c *JWKSCache) GetKey(ctx context.Context, jwksURL, kid string, force bool) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry := c.entries[jwksURL]

	if !force && entry != nil && now.Sub(entry.fetchedAt) < c.ttl {
		if key, ok := entry.keys[kid]; ok {
			return key, nil
		}
		// Cached set lacks this kid. Refetch unless we tried too recently.
		if now.Sub(c.lastAttempt[jwksURL]) < c.cooldown {
			return nil, ErrJWKSNoMatchingKey
		}
	}

	trigger := "expiry"
	if force {
		trigger = "forced"
	}

	// An expired entry is never served. A key the issuer may have rotated out
	// must not keep verifying tokens, so a failed refresh surfaces as a fetch
	// error and callers report the provider as unreachable.
	c.lastAttempt[jwksURL] = now
	keys, err := c.fetch(ctx, jwksURL)
	if err != nil {
		return nil, err
	}
	telemetry.JWKSRefreshesTotal.WithLabelValues(trigger).Inc()

	c.entries[jwksURL] = &jwksEntry{keys: keys, fetchedAt: now}
	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, ErrJWKSNoMatchingKey
}

func (c *JWKSCache) fetch(ctx context.Context, jwksURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetch, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrJWKSFetch, resp.StatusCode, jwksURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponse))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetch, err)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JWKS document: %v", ErrJWKSFetch, err)
	}

	keys := make(map[string]any, len(doc.Keys))
	for _, k := range doc.Keys {
		pub, err := k.publicKey()
		if err != nil {
			// Skip unusable keys rather than failing the whole set.
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`

	// RSA
	N string `json:"n"`
	E string `json:"e"`

	// EC
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

func (k jwk) publicKey() (any, error) {
	switch k.Kty {
	case "RSA":
		return k.rsaPublicKey()
	case "EC":
		return k.ecPublicKey()
	default:
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid RSA exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

func (k jwk) ecPublicKey() (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", k.Crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("invalid EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("invalid EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
