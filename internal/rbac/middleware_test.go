package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

func TestNormalizePermissionsPreservesCase(t *testing.T) {
	got := normalizePermissions([]string{" Reports.View ", "", "reports.view", "Reports.View"})
	// Trimmed and de-duplicated, but never lower-cased: Resolve compares
	// names exactly, so "Reports.View" and "reports.view" are distinct.
	assert.ElementsMatch(t, []string{"Reports.View", "reports.view"}, got)
}

func TestRequireAnyMatchesCaseSensitively(t *testing.T) {
	repo := newMockRepository()
	repo.grants[42] = []RoleGrant{{RoleName: "staff"}}
	repo.rolePerms["staff"] = []string{"Reports.View"}

	mw := Middleware{Service: NewService(repo, nil)}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "sess", "secret", time.Hour, false)

	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.NoError(t, err)
	sess.BindGuard("staff", "42")

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	do := func(required string) int {
		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
		rec := httptest.NewRecorder()
		mw.RequireAny(required)(okHandler).ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("Reports.View"), "exact name must match")
	assert.Equal(t, http.StatusForbidden, do("reports.view"), "casing is part of the name")
}
