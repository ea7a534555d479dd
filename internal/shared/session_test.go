package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
	_ "github.com/AceBNeato/sdmdweb-sub001/testing"
)

func newManager(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func loadSession(t *testing.T, manager *shared.SessionManager, cookie string) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: manager.CookieName(), Value: cookie})
	}
	sess, err := manager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func TestGuardBindingExclusive(t *testing.T) {
	manager := newManager(t)
	sess := loadSession(t, manager, "")

	sess.BindGuard("staff", "7")
	sess.BindGuard("admin", "9")

	if _, ok := sess.GuardPrincipal("staff"); ok {
		t.Fatalf("binding a second guard must clear the first")
	}
	guard, id, ok := sess.BoundPrincipal()
	if !ok || guard != "admin" || id != "9" {
		t.Fatalf("expected admin/9, got %q/%q ok=%v", guard, id, ok)
	}
}

func TestBoundPrincipalFailsClosed(t *testing.T) {
	manager := newManager(t)
	sess := loadSession(t, manager, "")

	if _, _, ok := sess.BoundPrincipal(); ok {
		t.Fatalf("empty session must report no binding")
	}

	sess.BindGuard("staff", "")
	if _, _, ok := sess.BoundPrincipal(); ok {
		t.Fatalf("empty principal id must report no binding")
	}
}

func TestClearGuardLeavesValues(t *testing.T) {
	manager := newManager(t)
	sess := loadSession(t, manager, "")

	sess.Set("theme", "dark")
	sess.BindGuard("staff", "7")
	sess.ClearGuard("staff")

	if _, ok := sess.GuardPrincipal("staff"); ok {
		t.Fatalf("guard should be cleared")
	}
	if sess.Get("theme") != "dark" {
		t.Fatalf("clearing a guard must not drop unrelated session values")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	manager := newManager(t)
	sess := loadSession(t, manager, "")
	sess.BindGuard("technician", "11")
	sess.Set("theme", "dark")

	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := manager.Commit(context.Background(), res, req, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reloaded := loadSession(t, manager, sess.ID)
	guard, id, ok := reloaded.BoundPrincipal()
	if !ok || guard != "technician" || id != "11" {
		t.Fatalf("binding must survive the round trip, got %q/%q ok=%v", guard, id, ok)
	}
	if reloaded.Get("theme") != "dark" {
		t.Fatalf("values must survive the round trip")
	}
}

func TestRotateInvalidatesOldID(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	sess := loadSession(t, manager, "")
	sess.BindGuard("staff", "7")

	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := manager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	oldID := sess.ID

	if err := manager.Rotate(ctx, sess); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if sess.ID == oldID {
		t.Fatalf("rotate must change the session identifier")
	}

	// The old identifier no longer resolves to any stored state.
	stale := loadSession(t, manager, oldID)
	if _, _, ok := stale.BoundPrincipal(); ok {
		t.Fatalf("old session id must be dead after rotation")
	}

	// The binding survives under the new identifier once committed.
	res = httptest.NewRecorder()
	if err := manager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit rotated: %v", err)
	}
	fresh := loadSession(t, manager, sess.ID)
	guard, id, ok := fresh.BoundPrincipal()
	if !ok || guard != "staff" || id != "7" {
		t.Fatalf("binding must follow the rotated session")
	}
}
