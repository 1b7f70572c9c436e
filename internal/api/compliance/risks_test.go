package compliance

import (
	"database/sql"
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

	"github.com/compai/comp-api/internal/db/repositories"
)

// ---- constants & shared test data -------------------------------------------

const (
	sampleOrgID  = "cccccccc-0000-0000-0000-000000000001"
	sampleRiskID = "aaaaaaaa-0000-0000-0000-000000000001"
)

var riskCols = []string{
	"id", "organization_id", "title", "description", "category", "status",
	"likelihood", "impact", "owner_id", "created_at", "updated_at",
}

func sampleRiskRow(likelihood, impact int) *sqlmock.Rows {
	return sqlmock.NewRows(riskCols).AddRow(
		sampleRiskID, sampleOrgID, "Unpatched VPN appliance", "Edge device two releases behind",
		"infrastructure", "open", likelihood, impact, nil, time.Now(), time.Now(),
	)
}

// ---- router helper ----------------------------------------------------------

// newRouter builds a router with the risk routes mounted behind a stub that
// injects the organization scope the way the authentication guard does.
func newRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	h := NewRiskHandlers(repositories.NewRiskRepository(sqlxDB))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("organization_id", sampleOrgID)
	})
	r.GET("/risks", h.ListRisksHandler())
	r.GET("/risks/:id", h.GetRiskHandler())
	r.POST("/risks", h.CreateRiskHandler())
	r.PUT("/risks/:id", h.UpdateRiskHandler())
	r.DELETE("/risks/:id", h.DeleteRiskHandler())

	return mock, r
}

// ---- ListRisks --------------------------------------------------------------

func TestListRisks_Success(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectQuery(`SELECT.*FROM risks.*WHERE organization_id`).
		WithArgs(sampleOrgID).
		WillReturnRows(sampleRiskRow(4, 5))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/risks", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	risks, ok := resp["risks"].([]interface{})
	require.True(t, ok)
	assert.Len(t, risks, 1)
}

func TestListRisks_DBError(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectQuery(`SELECT.*FROM risks.*WHERE organization_id`).
		WithArgs(sampleOrgID).
		WillReturnError(sql.ErrConnDone)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/risks", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ---- GetRisk ----------------------------------------------------------------

func TestGetRisk_IncludesDerivedScore(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectQuery(`SELECT.*FROM risks.*WHERE id`).
		WithArgs(sampleRiskID, sampleOrgID).
		WillReturnRows(sampleRiskRow(4, 5))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/risks/"+sampleRiskID, nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 20, resp["score"])
}

func TestGetRisk_NotFound(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectQuery(`SELECT.*FROM risks.*WHERE id`).
		WithArgs("missing", sampleOrgID).
		WillReturnError(sql.ErrNoRows)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/risks/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---- CreateRisk -------------------------------------------------------------

func TestCreateRisk_Success(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectExec(`INSERT INTO risks`).
		WithArgs(sqlmock.AnyArg(), sampleOrgID, "Shadow IT SaaS", "", "vendor",
			"open", 3, 2, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"title":"Shadow IT SaaS","category":"vendor","likelihood":3,"impact":2}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/risks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	risk, ok := resp["risk"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "open", risk["status"])
	assert.NotEmpty(t, risk["id"])
}

func TestCreateRisk_ScoreOutOfRange(t *testing.T) {
	_, r := newRouter(t)

	body := `{"title":"Bad score","likelihood":6,"impact":2}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/risks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRisk_MissingTitle(t *testing.T) {
	_, r := newRouter(t)

	body := `{"likelihood":3,"impact":2}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/risks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---- UpdateRisk -------------------------------------------------------------

func TestUpdateRisk_PartialUpdate(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectQuery(`SELECT.*FROM risks.*WHERE id`).
		WithArgs(sampleRiskID, sampleOrgID).
		WillReturnRows(sampleRiskRow(4, 5))

	// Only status changes; the other columns keep their loaded values.
	mock.ExpectExec(`UPDATE risks`).
		WithArgs(sampleRiskID, sampleOrgID, "Unpatched VPN appliance",
			"Edge device two releases behind", "infrastructure", "mitigated", 4, 5, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"status":"mitigated"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/risks/"+sampleRiskID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	risk, ok := resp["risk"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "mitigated", risk["status"])
}

func TestUpdateRisk_InvalidStatus(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectQuery(`SELECT.*FROM risks.*WHERE id`).
		WithArgs(sampleRiskID, sampleOrgID).
		WillReturnRows(sampleRiskRow(4, 5))

	body := `{"status":"paused"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/risks/"+sampleRiskID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateRisk_NotFound(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectQuery(`SELECT.*FROM risks.*WHERE id`).
		WithArgs("missing", sampleOrgID).
		WillReturnError(sql.ErrNoRows)

	body := `{"status":"closed"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/risks/missing", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---- DeleteRisk -------------------------------------------------------------

func TestDeleteRisk_Success(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectExec(`DELETE FROM risks`).
		WithArgs(sampleRiskID, sampleOrgID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/risks/"+sampleRiskID, nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteRisk_NotFound(t *testing.T) {
	mock, r := newRouter(t)

	mock.ExpectExec(`DELETE FROM risks`).
		WithArgs("missing", sampleOrgID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/risks/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
