package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fixedRole string

func (r fixedRole) Role() string { return string(r) }

func serve(src RoleSource) int {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/categories", RequireAdmin(src), func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/categories", nil))
	return w.Code
}

func TestRequireAdmin_AdminPasses(t *testing.T) {
	for _, role := range []string{RoleAdmin, "admin"} {
		if code := serve(fixedRole(role)); code != http.StatusCreated {
			t.Fatalf("role %q: expected 201, got %d", role, code)
		}
	}
}

func TestRequireAdmin_UserDenied(t *testing.T) {
	if code := serve(fixedRole(RoleUser)); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAdmin_NoRoleClaimDefersToUpstream(t *testing.T) {
	if code := serve(fixedRole("")); code != http.StatusCreated {
		t.Fatalf("empty role: expected 201, got %d", code)
	}
	if code := serve(nil); code != http.StatusCreated {
		t.Fatalf("nil source: expected 201, got %d", code)
	}
}
