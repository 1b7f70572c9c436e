package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compai/comp-api/internal/config"
	"github.com/compai/comp-api/internal/db/repositories"
)

const sampleOrgID = "cccccccc-0000-0000-0000-000000000001"

var apiKeyCols = []string{
	"id", "organization_id", "name", "key_hash", "salt", "is_active",
	"expires_at", "last_used_at", "expiry_notification_sent_at", "created_at",
}

func newAPIKeyRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	h := NewAPIKeyHandlers(&config.APIKeyConfig{Enabled: true, Prefix: "comp_"}, repositories.NewAPIKeyRepository(sqlxDB))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("organization_id", sampleOrgID)
	})
	r.GET("/apikeys", h.ListAPIKeysHandler())
	r.POST("/apikeys", h.CreateAPIKeyHandler())
	r.DELETE("/apikeys/:id", h.RevokeAPIKeyHandler())

	return mock, r
}

func TestListAPIKeys_NeverReturnsHash(t *testing.T) {
	mock, r := newAPIKeyRouter(t)

	salt := "somesalt"
	mock.ExpectQuery(`SELECT.*FROM api_keys.*WHERE organization_id`).
		WithArgs(sampleOrgID).
		WillReturnRows(sqlmock.NewRows(apiKeyCols).AddRow(
			"key_1", sampleOrgID, "ci pipeline", "deadbeef", &salt, true,
			nil, nil, nil, time.Now(),
		))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/apikeys", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "deadbeef")
	assert.NotContains(t, w.Body.String(), "somesalt")
}

func TestCreateAPIKey_ReturnsPlaintextOnce(t *testing.T) {
	mock, r := newAPIKeyRouter(t)

	mock.ExpectExec(`INSERT INTO api_keys`).
		WithArgs(sqlmock.AnyArg(), sampleOrgID, "ci pipeline", sqlmock.AnyArg(),
			sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"name":"ci pipeline","expiresInDays":30}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/apikeys", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	plaintext, ok := resp["key"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(plaintext, "comp_"))

	// The serialized record never exposes the hash or salt.
	record, ok := resp["api_key"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, record, "keyHash")
	assert.NotContains(t, record, "salt")
	assert.Equal(t, true, record["isActive"])
}

func TestCreateAPIKey_RejectsNonPositiveExpiry(t *testing.T) {
	_, r := newAPIKeyRouter(t)

	body := `{"name":"ci pipeline","expiresInDays":0}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/apikeys", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRevokeAPIKey_Success(t *testing.T) {
	mock, r := newAPIKeyRouter(t)

	mock.ExpectExec(`UPDATE api_keys SET is_active = FALSE`).
		WithArgs("key_1", sampleOrgID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/apikeys/key_1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRevokeAPIKey_NotFound(t *testing.T) {
	mock, r := newAPIKeyRouter(t)

	mock.ExpectExec(`UPDATE api_keys SET is_active = FALSE`).
		WithArgs("missing", sampleOrgID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/apikeys/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
