package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/auth"
	"github.com/compai/comp-api/internal/db/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// guardKeyStore backs a real APIKeyValidator so the API-key path is exercised
// end to end, hashing included.
type guardKeyStore struct {
	keys []models.APIKey
}

func (s *guardKeyStore) ListActive(ctx context.Context) ([]models.APIKey, error) {
	return s.keys, nil
}

func (s *guardKeyStore) UpdateLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	return nil
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
	calls  int
}

func (v *fakeVerifier) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

type fakeAccess struct {
	allowed map[string]bool // "userID/orgID" -> allowed
}

func (a *fakeAccess) HasAccess(ctx context.Context, userID, orgID string) bool {
	return a.allowed[userID+"/"+orgID]
}

func testDeps() GuardDeps {
	salt := "s1"
	store := &guardKeyStore{keys: []models.APIKey{{
		ID:             "key-1",
		OrganizationID: "org_1",
		KeyHash:        auth.HashKey("sk_live_abc", &salt),
		Salt:           &salt,
		IsActive:       true,
	}}}

	return GuardDeps{
		APIKeys:  auth.NewAPIKeyValidator(store),
		Verifier: &fakeVerifier{claims: &auth.Claims{UserID: "usr_1", Email: "u@example.com"}},
		Access:   &fakeAccess{allowed: map[string]bool{"usr_1/org_1": true}},
	}
}

// serve runs one request through the guard and a handler that echoes the
// attached identity.
func serve(t *testing.T, guard gin.HandlerFunc, headers map[string]string) (*httptest.ResponseRecorder, *auth.Identity) {
	t.Helper()

	var captured *auth.Identity
	router := gin.New()
	router.GET("/protected", guard, func(c *gin.Context) {
		if id, ok := Identity(c); ok {
			captured = &id
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w, captured
}

func bodyMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body %q is not JSON: %v", w.Body.String(), err)
	}
	return body.Message
}

func TestHybridAuth_NoHeaders(t *testing.T) {
	w, id := serve(t, HybridAuth(testDeps()), nil)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if msg := bodyMessage(t, w); msg != auth.MsgAuthRequired {
		t.Errorf("message = %q, want %q", msg, auth.MsgAuthRequired)
	}
	if id != nil {
		t.Error("identity attached on rejected request")
	}
}

func TestHybridAuth_APIKeySuccess(t *testing.T) {
	w, id := serve(t, HybridAuth(testDeps()), map[string]string{
		HeaderAPIKey: "sk_live_abc",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if id == nil {
		t.Fatal("no identity attached")
	}
	if id.OrganizationID != "org_1" {
		t.Errorf("OrganizationID = %q, want org_1", id.OrganizationID)
	}
	if id.AuthType != auth.AuthTypeAPIKey || !id.IsAPIKey {
		t.Errorf("identity = %+v, want api-key auth type", id)
	}
	if id.UserID != "" || id.UserEmail != "" {
		t.Errorf("api-key identity carries user fields: %+v", id)
	}
}

func TestHybridAuth_APIKeyWhitespaceTrimmed(t *testing.T) {
	w, _ := serve(t, HybridAuth(testDeps()), map[string]string{
		HeaderAPIKey: "  sk_live_abc  ",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for padded key", w.Code)
	}
}

func TestHybridAuth_InvalidAPIKey(t *testing.T) {
	w, _ := serve(t, HybridAuth(testDeps()), map[string]string{
		HeaderAPIKey: "sk_live_wrong",
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if msg := bodyMessage(t, w); msg != auth.MsgInvalidAPIKey {
		t.Errorf("message = %q, want %q", msg, auth.MsgInvalidAPIKey)
	}
}

func TestHybridAuth_APIKeyTakesPrecedenceOverBearer(t *testing.T) {
	deps := testDeps()
	verifier := deps.Verifier.(*fakeVerifier)

	w, id := serve(t, HybridAuth(deps), map[string]string{
		HeaderAPIKey:       "sk_live_abc",
		"Authorization":    "Bearer some.valid.jwt",
		HeaderOrganization: "org_1",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !id.IsAPIKey {
		t.Error("guard took the JWT path despite an API-key header")
	}
	if verifier.calls != 0 {
		t.Errorf("verifier called %d times; API-key path must be exclusive", verifier.calls)
	}
}

func TestHybridAuth_InvalidAPIKeyNotRescuedByValidJWT(t *testing.T) {
	// Precedence is absolute: a bad API key rejects even when a valid bearer
	// token is also present.
	deps := testDeps()
	w, _ := serve(t, HybridAuth(deps), map[string]string{
		HeaderAPIKey:       "sk_live_wrong",
		"Authorization":    "Bearer some.valid.jwt",
		HeaderOrganization: "org_1",
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if deps.Verifier.(*fakeVerifier).calls != 0 {
		t.Error("verifier consulted after API-key failure")
	}
}

func TestHybridAuth_JWTSuccess(t *testing.T) {
	w, id := serve(t, HybridAuth(testDeps()), map[string]string{
		"Authorization":    "Bearer some.valid.jwt",
		HeaderOrganization: "org_1",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	want := auth.Identity{
		OrganizationID: "org_1",
		UserID:         "usr_1",
		UserEmail:      "u@example.com",
		AuthType:       auth.AuthTypeJWT,
	}
	if *id != want {
		t.Errorf("identity = %+v, want %+v", *id, want)
	}
}

func TestHybridAuth_JWTRequiresOrgHeader(t *testing.T) {
	w, _ := serve(t, HybridAuth(testDeps()), map[string]string{
		"Authorization": "Bearer some.valid.jwt",
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if msg := bodyMessage(t, w); msg != auth.MsgOrgHeaderRequired {
		t.Errorf("message = %q, want %q", msg, auth.MsgOrgHeaderRequired)
	}
}

func TestHybridAuth_NoMembership(t *testing.T) {
	w, _ := serve(t, HybridAuth(testDeps()), map[string]string{
		"Authorization":    "Bearer some.valid.jwt",
		HeaderOrganization: "org_9",
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	// The message names the organization so the operator can see what was
	// asked for.
	if msg := bodyMessage(t, w); !strings.Contains(msg, "org_9") {
		t.Errorf("message %q does not name org_9", msg)
	}
}

func TestHybridAuth_VerifierFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     *auth.Error
		wantMsg string
	}{
		{"invalid token", auth.ErrInvalidToken(nil), auth.MsgInvalidToken},
		{"idp unreachable", auth.ErrIdPUnreachable(nil), auth.MsgIdPUnreachable},
		{"not configured", auth.ErrConfiguration(), auth.MsgConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.Verifier = &fakeVerifier{err: tt.err}

			w, _ := serve(t, HybridAuth(deps), map[string]string{
				"Authorization":    "Bearer some.jwt",
				HeaderOrganization: "org_1",
			})

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if msg := bodyMessage(t, w); msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestHybridAuth_MalformedAuthorizationHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"lowercase scheme", "bearer some.jwt"},
		{"no space", "Bearersome.jwt"},
		{"empty token", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := serve(t, HybridAuth(testDeps()), map[string]string{
				"Authorization": tt.value,
			})
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if msg := bodyMessage(t, w); msg != auth.MsgAuthRequired {
				t.Errorf("message = %q, want %q", msg, auth.MsgAuthRequired)
			}
		})
	}
}

func TestJWTAuth_OrgHeaderOptional(t *testing.T) {
	w, id := serve(t, JWTAuth(testDeps()), map[string]string{
		"Authorization": "Bearer some.valid.jwt",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 without org header", w.Code)
	}
	if id.UserID != "usr_1" || id.OrganizationID != "" {
		t.Errorf("identity = %+v, want usr_1 with no org scope", id)
	}
}

func TestJWTAuth_OpportunisticMembershipCheck(t *testing.T) {
	t.Run("member", func(t *testing.T) {
		w, id := serve(t, JWTAuth(testDeps()), map[string]string{
			"Authorization":    "Bearer some.valid.jwt",
			HeaderOrganization: "org_1",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if id.OrganizationID != "org_1" {
			t.Errorf("OrganizationID = %q, want org_1", id.OrganizationID)
		}
	})

	t.Run("non-member rejected when org supplied", func(t *testing.T) {
		w, _ := serve(t, JWTAuth(testDeps()), map[string]string{
			"Authorization":    "Bearer some.valid.jwt",
			HeaderOrganization: "org_9",
		})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}

func TestJWTAuth_IgnoresAPIKeyHeader(t *testing.T) {
	// The JWT-only guard accepts no API keys; a key without a bearer token is
	// the same as no credential.
	w, _ := serve(t, JWTAuth(testDeps()), map[string]string{
		HeaderAPIKey: "sk_live_abc",
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if msg := bodyMessage(t, w); msg != auth.MsgAuthRequired {
		t.Errorf("message = %q, want %q", msg, auth.MsgAuthRequired)
	}
}
