package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/audit"
	"github.com/compai/comp-api/internal/auth"
	"github.com/compai/comp-api/internal/config"
	"github.com/compai/comp-api/internal/db/models"
)

type recordingAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (r *recordingAuditRepo) Insert(ctx context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

type recordingShipper struct {
	mu      sync.Mutex
	shipped []*audit.Entry
}

func (s *recordingShipper) Ship(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipped = append(s.shipped, entry)
	return nil
}

func (s *recordingShipper) Close() error { return nil }

func auditRouter(repo *recordingAuditRepo, shipper audit.Shipper, cfg config.AuditConfig, id *auth.Identity, status int) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if id != nil {
			c.Set(IdentityKey, *id)
		}
	})
	router.Use(AuditMiddleware(repo, shipper, cfg))
	handler := func(c *gin.Context) { c.Status(status) }
	router.POST("/api/v1/organizations/:orgId/risks", handler)
	router.PUT("/api/v1/organizations/:orgId/risks/:id", handler)
	router.GET("/api/v1/organizations/:orgId/risks", handler)
	return router
}

func TestAuditMiddleware_RecordsWrites(t *testing.T) {
	repo := &recordingAuditRepo{}
	shipper := &recordingShipper{}
	id := &auth.Identity{OrganizationID: "org_1", UserID: "usr_1", AuthType: auth.AuthTypeJWT}

	router := auditRouter(repo, shipper, config.AuditConfig{}, id, http.StatusOK)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/organizations/org_1/risks/risk_7", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if len(repo.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Action != "PUT /api/v1/organizations/org_1/risks/risk_7" {
		t.Errorf("action = %q", entry.Action)
	}
	if entry.ActorID != "usr_1" || entry.ActorType != models.ActorTypeUser {
		t.Errorf("actor = %s/%s, want usr_1/user", entry.ActorID, entry.ActorType)
	}
	if entry.OrganizationID == nil || *entry.OrganizationID != "org_1" {
		t.Errorf("organization = %v, want org_1", entry.OrganizationID)
	}
	if entry.EntityType != models.EntityTypeRisk || entry.EntityID != "risk_7" {
		t.Errorf("entity = %s/%s, want risk/risk_7", entry.EntityType, entry.EntityID)
	}

	if len(shipper.shipped) != 1 {
		t.Fatalf("shipped %d entries, want 1", len(shipper.shipped))
	}
	if shipper.shipped[0].OrganizationID != "org_1" {
		t.Errorf("shipped organization = %q", shipper.shipped[0].OrganizationID)
	}
}

func TestAuditMiddleware_SkipsReadsByDefault(t *testing.T) {
	repo := &recordingAuditRepo{}
	router := auditRouter(repo, nil, config.AuditConfig{}, nil, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/organizations/org_1/risks", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if len(repo.entries) != 0 {
		t.Fatalf("recorded %d entries for a GET, want 0", len(repo.entries))
	}
}

func TestAuditMiddleware_LogReadOperations(t *testing.T) {
	repo := &recordingAuditRepo{}
	router := auditRouter(repo, nil, config.AuditConfig{LogReadOperations: true}, nil, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/organizations/org_1/risks", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if len(repo.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(repo.entries))
	}
}

func TestAuditMiddleware_FailedRequests(t *testing.T) {
	t.Run("skipped by default", func(t *testing.T) {
		repo := &recordingAuditRepo{}
		router := auditRouter(repo, nil, config.AuditConfig{}, nil, http.StatusBadRequest)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/organizations/org_1/risks", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)

		if len(repo.entries) != 0 {
			t.Fatalf("recorded %d failed entries, want 0", len(repo.entries))
		}
	})

	t.Run("recorded when configured", func(t *testing.T) {
		repo := &recordingAuditRepo{}
		router := auditRouter(repo, nil, config.AuditConfig{LogFailedRequests: true}, nil, http.StatusBadRequest)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/organizations/org_1/risks", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)

		if len(repo.entries) != 1 {
			t.Fatalf("recorded %d entries, want 1", len(repo.entries))
		}
	})
}

func TestAuditMiddleware_APIKeyActor(t *testing.T) {
	repo := &recordingAuditRepo{}
	id := &auth.Identity{OrganizationID: "org_1", AuthType: auth.AuthTypeAPIKey, IsAPIKey: true}
	router := auditRouter(repo, nil, config.AuditConfig{}, id, http.StatusCreated)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/organizations/org_1/risks", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if len(repo.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.ActorType != models.ActorTypeAPIKey || entry.ActorID != "org_1" {
		t.Errorf("actor = %s/%s, want api_key/org_1", entry.ActorType, entry.ActorID)
	}
}
