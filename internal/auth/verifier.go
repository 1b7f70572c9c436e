// verifier.go implements bearer token verification against the remote JWKS.
//
// The service is its own identity provider, so a token's issuer and audience
// are both required to equal the configured issuer URL, and the key set lives
// at <issuerURL>/api/auth/jwks.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// MsgTokenMissingID distinguishes a structurally valid token that carries no
// user identity from a signature failure.
const MsgTokenMissingID = "Token does not identify a user"

// Claims is the verified identity extracted from a bearer token.
type Claims struct {
	UserID string
	Email  string // optional; empty when the token carries no email claim
}

type tokenClaims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by this service.
type Verifier struct {
	issuerURL string
	cache     *JWKSCache
}

// NewVerifier creates a verifier for tokens issued by issuerURL. An empty
// issuerURL is tolerated at construction so the server can start with a
// warning; every Verify call then fails with a configuration error.
func NewVerifier(issuerURL string, cache *JWKSCache) *Verifier {
	return &Verifier{issuerURL: strings.TrimSuffix(issuerURL, "/"), cache: cache}
}

// JWKSURL returns the key-set endpoint derived from the issuer URL.
func (v *Verifier) JWKSURL() string {
	return v.issuerURL + "/api/auth/jwks"
}

// Verify checks the token's signature and claims and returns the embedded
// identity.
//
// A "no matching key" failure gets exactly one retry with a forced key-set
// refresh: after a signing-key rotation, tokens signed with the new key fail
// against the cached set until its TTL passes, and the forced refetch closes
// that window. Every other failure propagates immediately. All returned
// errors are *Error values carrying an HTTP-safe message.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if v.issuerURL == "" {
		slog.Error("jwt verification attempted without a configured issuer URL")
		return nil, ErrConfiguration()
	}

	claims, err := v.verifyOnce(ctx, token, false)
	if err == nil {
		return claims, nil
	}

	var fetchFailed bool
	if errors.Is(err, ErrJWKSFetch) {
		fetchFailed = true
	}

	if isNoMatchingKey(err) {
		claims, err = v.verifyOnce(ctx, token, true)
		if err == nil {
			return claims, nil
		}
		if errors.Is(err, ErrJWKSFetch) {
			fetchFailed = true
		}
	}

	if fetchFailed {
		slog.Error("jwt verification: identity provider unreachable",
			"jwks_url", v.JWKSURL(),
			"error", err)
		return nil, ErrIdPUnreachable(err)
	}

	var authErr *Error
	if errors.As(err, &authErr) {
		return nil, authErr
	}

	slog.Warn("jwt verification failed", "error", err)
	return nil, ErrInvalidToken(err)
}

func (v *Verifier) verifyOnce(ctx context.Context, token string, force bool) (*Claims, error) {
	parsed := &tokenClaims{}

	keyfunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.cache.GetKey(ctx, v.JWKSURL(), kid, force)
	}

	_, err := jwt.ParseWithClaims(token, parsed, keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithIssuer(v.issuerURL),
		jwt.WithAudience(v.issuerURL),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	if parsed.ID == "" {
		return nil, &Error{Kind: KindCredentialInvalid, Message: MsgTokenMissingID}
	}

	return &Claims{UserID: parsed.ID, Email: parsed.Email}, nil
}

// isNoMatchingKey reports whether err is the kid-miss failure that warrants a
// forced key-set refresh. The sentinel check covers errors from our own
// cache; the substring check covers the same condition after it has been
// flattened into message text by an intermediate layer.
func isNoMatchingKey(err error) bool {
	if errors.Is(err, ErrJWKSNoMatchingKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "no matching key")
}
