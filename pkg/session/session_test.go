package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/vendhub/vendhub/pkg/authz"
)

func TestNew(t *testing.T) {
	sess := New(10, 1, time.Hour)
	if sess.ID == "" {
		t.Error("Expected a generated session ID")
	}
	if sess.UserID != 10 || sess.TenantID != 1 {
		t.Errorf("Unexpected identity: %d/%d", sess.UserID, sess.TenantID)
	}
	if sess.Expired(time.Now().UTC()) {
		t.Error("Fresh session must not be expired")
	}
	if !sess.Expired(time.Now().UTC().Add(2 * time.Hour)) {
		t.Error("Session must expire after its TTL")
	}
}

func TestNew_ZeroTTLUsesDefault(t *testing.T) {
	sess := New(10, 1, 0)
	lifetime := sess.ExpiresAt.Sub(sess.CreatedAt)
	if lifetime != DefaultTTL {
		t.Errorf("Expected default TTL %v, got %v", DefaultTTL, lifetime)
	}
}

func TestSession_SessionState(t *testing.T) {
	sess := New(10, 1, time.Hour)

	userID, tenantID := sess.Identity()
	if userID != 10 || tenantID != 1 {
		t.Errorf("Unexpected identity: %d/%d", userID, tenantID)
	}

	if sess.Snapshot() != nil {
		t.Error("Expected no snapshot on a fresh session")
	}

	snap := &authz.Context{UserID: 10, TenantID: 1, RoleKeys: []string{"editor"}}
	sess.SetSnapshot(snap)
	if sess.Snapshot() != snap {
		t.Error("Expected the snapshot to round-trip")
	}

	sess.SetToken("tok")
	if sess.Token() != "tok" {
		t.Error("Expected the token to round-trip")
	}

	sess.ClearSnapshot()
	if sess.Snapshot() != nil {
		t.Error("Expected the snapshot to be cleared")
	}
}

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := New(10, 1, time.Hour)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.UserID != 10 {
		t.Fatalf("Unexpected session: %+v", got)
	}

	// Stores hand out copies: mutating the returned session must not leak
	// back without a Save.
	got.UserID = 99
	again, _ := store.Get(ctx, sess.ID)
	if again.UserID != 10 {
		t.Error("Expected stored session to be isolated from returned copies")
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := store.Get(ctx, sess.ID); got != nil {
		t.Error("Expected nil after delete")
	}
}

func TestMemoryStore_MissingSessionIsNilNil(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Expected no error for a missing session, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil session, got %+v", got)
	}
}

func TestMemoryStore_ExpiredSessionDropped(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := New(10, 1, time.Hour)
	sess.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	store.Save(ctx, sess)

	got, err := store.Get(ctx, sess.ID)
	if err != nil || got != nil {
		t.Errorf("Expected expired session to read as missing, got %+v, %v", got, err)
	}
	if store.Len() != 0 {
		t.Error("Expected expired session to be removed lazily")
	}
}

func TestMemoryStore_PurgeExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	live := New(10, 1, time.Hour)
	store.Save(ctx, live)

	for i := 0; i < 3; i++ {
		dead := New(int64(20+i), 1, time.Hour)
		dead.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		store.Save(ctx, dead)
	}

	purged, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 3 {
		t.Errorf("Expected 3 purged, got %d", purged)
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 surviving session, got %d", store.Len())
	}
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_SaveGetDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	sess := New(10, 1, time.Hour)
	sess.SetSnapshot(&authz.Context{
		UserID:      10,
		TenantID:    1,
		RoleKeys:    []string{"editor"},
		Permissions: []string{"edit_posts"},
		ResourcePermissions: map[string]authz.ResourceFlags{
			"posts": {CanEditOwn: true},
		},
	})

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected the session back")
	}
	if got.Authz == nil || !got.Authz.ResourcePermissions["posts"].CanEditOwn {
		t.Errorf("Snapshot did not survive the round trip: %+v", got.Authz)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := store.Get(ctx, sess.ID); got != nil {
		t.Error("Expected nil after delete")
	}
}

func TestRedisStore_MissingSessionIsNilNil(t *testing.T) {
	store, _ := newTestRedisStore(t)
	got, err := store.Get(context.Background(), "nope")
	if err != nil || got != nil {
		t.Errorf("Expected nil, nil for a missing session, got %+v, %v", got, err)
	}
}

func TestRedisStore_CorruptEntryDropped(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	mr.Set("session:bad", "not json")

	got, err := store.Get(ctx, "bad")
	if err != nil || got != nil {
		t.Errorf("Expected corrupt entry to read as missing, got %+v, %v", got, err)
	}
	if mr.Exists("session:bad") {
		t.Error("Expected corrupt entry to be deleted")
	}
}

func TestRedisStore_TTLMatchesLifetime(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	sess := New(10, 1, time.Hour)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ttl := mr.TTL(sessionKey(sess.ID))
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("Expected TTL within the session lifetime, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if got, _ := store.Get(ctx, sess.ID); got != nil {
		t.Error("Expected the session to be evicted after its TTL")
	}
}
