// issuer.go implements the token-issuing half of the same-process identity
// provider. The API signs its own access tokens with an RS256 key and
// publishes the public half at /api/auth/jwks, which is the endpoint the
// verifier consumes.
package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWKSDocument is the JSON shape served at the JWKS endpoint.
type JWKSDocument struct {
	Keys []JWKSKey `json:"keys"`
}

// JWKSKey is a single RSA public key in JWK form.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Issuer signs access tokens and publishes the corresponding key set.
type Issuer struct {
	issuerURL string
	key       *rsa.PrivateKey
	kid       string
	ttl       time.Duration
	now       func() time.Time
}

// NewIssuer creates an issuer signing with the given key. Tokens carry
// issuer and audience both equal to issuerURL, matching what the verifier
// requires.
func NewIssuer(issuerURL string, key *rsa.PrivateKey, ttl time.Duration) *Issuer {
	return &Issuer{
		issuerURL: strings.TrimSuffix(issuerURL, "/"),
		key:       key,
		kid:       keyID(&key.PublicKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// LoadSigningKey reads an RSA private key from a PEM file. When path is empty
// a fresh 2048-bit key is generated; tokens signed with it stop verifying
// after a restart, which is acceptable for development but not production.
func LoadSigningKey(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		return rsa.GenerateKey(rand.Reader, 2048)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("signing key %s is not PEM encoded", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key %s is not an RSA key", path)
	}
	return key, nil
}

// IssueToken signs an access token for the user. The id claim is the one the
// verifier treats as mandatory; email rides along when known.
func (i *Issuer) IssueToken(userID, email string) (string, error) {
	now := i.now()

	claims := tokenClaims{
		ID:    userID,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuerURL,
			Audience:  jwt.ClaimStrings{i.issuerURL},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.kid

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// JWKS returns the public key set for the verifier side.
func (i *Issuer) JWKS() JWKSDocument {
	pub := &i.key.PublicKey
	return JWKSDocument{
		Keys: []JWKSKey{{
			Kty: "RSA",
			Kid: i.kid,
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
}

// keyID derives a stable identifier from the public key so rotated keys get
// distinct kids without any bookkeeping.
func keyID(pub *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		// MarshalPKIXPublicKey cannot fail for a well-formed RSA key.
		return "unknown"
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:8])
}
