package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/auth"
	"github.com/compai/comp-api/internal/db/models"
)

type fakeMemberGetter struct {
	member *models.Member
	err    error
}

func (f *fakeMemberGetter) GetMember(ctx context.Context, orgID, userID string) (*models.Member, error) {
	return f.member, f.err
}

func serveRBAC(t *testing.T, store MemberGetter, id *auth.Identity, roles ...string) *httptest.ResponseRecorder {
	t.Helper()

	router := gin.New()
	router.GET("/",
		func(c *gin.Context) {
			if id != nil {
				c.Set(IdentityKey, *id)
			}
		},
		RequireRole(store, roles...),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestRequireRole(t *testing.T) {
	jwtIdentity := &auth.Identity{
		OrganizationID: "org_1",
		UserID:         "usr_1",
		AuthType:       auth.AuthTypeJWT,
	}

	tests := []struct {
		name  string
		store *fakeMemberGetter
		id    *auth.Identity
		roles []string
		want  int
	}{
		{
			name:  "allowed role",
			store: &fakeMemberGetter{member: &models.Member{Role: models.RoleAdmin, IsActive: true}},
			id:    jwtIdentity,
			roles: ManagerRoles(),
			want:  http.StatusOK,
		},
		{
			name:  "role not in allow list",
			store: &fakeMemberGetter{member: &models.Member{Role: models.RoleAuditor, IsActive: true}},
			id:    jwtIdentity,
			roles: WriterRoles(),
			want:  http.StatusForbidden,
		},
		{
			name:  "deactivated member",
			store: &fakeMemberGetter{member: &models.Member{Role: models.RoleOwner, IsActive: false}},
			id:    jwtIdentity,
			roles: ManagerRoles(),
			want:  http.StatusForbidden,
		},
		{
			name:  "no membership row",
			store: &fakeMemberGetter{},
			id:    jwtIdentity,
			roles: ReaderRoles(),
			want:  http.StatusForbidden,
		},
		{
			name:  "store error fails closed",
			store: &fakeMemberGetter{err: errors.New("timeout")},
			id:    jwtIdentity,
			roles: ManagerRoles(),
			want:  http.StatusForbidden,
		},
		{
			name:  "api key bypasses role check",
			store: &fakeMemberGetter{},
			id:    &auth.Identity{OrganizationID: "org_1", AuthType: auth.AuthTypeAPIKey, IsAPIKey: true},
			roles: ManagerRoles(),
			want:  http.StatusOK,
		},
		{
			name:  "no identity",
			store: &fakeMemberGetter{},
			id:    nil,
			roles: ManagerRoles(),
			want:  http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serveRBAC(t, tt.store, tt.id, tt.roles...); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
