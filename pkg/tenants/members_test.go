package tenants

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vendhub/vendhub/pkg/audit"
	"github.com/vendhub/vendhub/pkg/observability"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key_name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE tenant_users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(tenant_id, user_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

// recordingCache captures invalidation patterns.
type recordingCache struct {
	patterns []string
}

func (c *recordingCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (c *recordingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
}
func (c *recordingCache) DeletePattern(ctx context.Context, pattern string) int {
	c.patterns = append(c.patterns, pattern)
	return 1
}

// recordingAudit captures emitted admin events.
type recordingAudit struct {
	audit.NopLogger
	events []audit.EventType
}

func (a *recordingAudit) LogAdminAction(ctx context.Context, eventType audit.EventType, adminUserID, tenantID *int64, targetUserID *int64, message string) error {
	a.events = append(a.events, eventType)
	return nil
}

func newTestService(t *testing.T, db *sql.DB) (*Service, *recordingCache, *recordingAudit) {
	t.Helper()
	c := &recordingCache{}
	a := &recordingAudit{}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewService(db, c, a, logger), c, a
}

func seedRole(t *testing.T, db *sql.DB, keyName string) int64 {
	t.Helper()
	result, err := db.Exec("INSERT INTO roles (key_name) VALUES ($1)", keyName)
	if err != nil {
		t.Fatalf("Failed to insert role: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

func TestService_AddAndGetMember(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	svc, c, a := newTestService(t, db)

	actor := int64(1)
	if err := svc.AddMember(ctx, 1, 10, roleID, &actor); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	member, err := svc.GetMember(ctx, 1, 10)
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if member.RoleKey != "editor" || !member.IsActive {
		t.Errorf("Unexpected member: %+v", member)
	}

	if len(c.patterns) != 1 || c.patterns[0] != "authz:1:*:10" {
		t.Errorf("Expected one user invalidation, got %v", c.patterns)
	}
	if len(a.events) != 1 || a.events[0] != audit.EventTypeMemberAdd {
		t.Errorf("Expected member add audit event, got %v", a.events)
	}
}

func TestService_AddMemberTwiceConflicts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	svc, _, _ := newTestService(t, db)

	if err := svc.AddMember(ctx, 1, 10, roleID, nil); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := svc.AddMember(ctx, 1, 10, roleID, nil); err == nil {
		t.Error("Expected an error for a duplicate membership")
	}
}

func TestService_ListMembers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	editorID := seedRole(t, db, "editor")
	viewerID := seedRole(t, db, "viewer")
	svc, _, _ := newTestService(t, db)

	svc.AddMember(ctx, 1, 10, editorID, nil)
	svc.AddMember(ctx, 1, 11, viewerID, nil)
	svc.AddMember(ctx, 2, 12, viewerID, nil)

	members, err := svc.ListMembers(ctx, 1)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(members))
	}
}

func TestService_UpdateMemberRole(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	editorID := seedRole(t, db, "editor")
	adminID := seedRole(t, db, "admin")
	svc, c, a := newTestService(t, db)

	svc.AddMember(ctx, 1, 10, editorID, nil)
	c.patterns = nil
	a.events = nil

	if err := svc.UpdateMemberRole(ctx, 1, 10, adminID, nil); err != nil {
		t.Fatalf("UpdateMemberRole failed: %v", err)
	}

	member, _ := svc.GetMember(ctx, 1, 10)
	if member.RoleKey != "admin" {
		t.Errorf("Expected role admin, got %q", member.RoleKey)
	}
	if len(c.patterns) != 1 {
		t.Errorf("Expected cache invalidation on role change, got %v", c.patterns)
	}
	if len(a.events) != 1 || a.events[0] != audit.EventTypeMemberRoleChange {
		t.Errorf("Expected role change audit event, got %v", a.events)
	}

	if err := svc.UpdateMemberRole(ctx, 1, 99, adminID, nil); err == nil {
		t.Error("Expected an error for an unknown member")
	}
}

func TestService_DeactivateMember(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	svc, c, a := newTestService(t, db)

	svc.AddMember(ctx, 1, 10, roleID, nil)
	c.patterns = nil
	a.events = nil

	if err := svc.DeactivateMember(ctx, 1, 10, nil); err != nil {
		t.Fatalf("DeactivateMember failed: %v", err)
	}

	member, _ := svc.GetMember(ctx, 1, 10)
	if member.IsActive {
		t.Error("Expected member to be inactive")
	}
	if len(c.patterns) != 1 {
		t.Errorf("Expected cache invalidation on deactivation, got %v", c.patterns)
	}
	if len(a.events) != 1 || a.events[0] != audit.EventTypeMemberDeactivate {
		t.Errorf("Expected deactivate audit event, got %v", a.events)
	}
}

func TestService_RemoveMember(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	svc, c, a := newTestService(t, db)

	svc.AddMember(ctx, 1, 10, roleID, nil)
	c.patterns = nil
	a.events = nil

	if err := svc.RemoveMember(ctx, 1, 10, nil); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if _, err := svc.GetMember(ctx, 1, 10); err == nil {
		t.Error("Expected the membership to be gone")
	}
	if len(a.events) != 1 || a.events[0] != audit.EventTypeMemberRemove {
		t.Errorf("Expected remove audit event, got %v", a.events)
	}
	if len(c.patterns) != 1 {
		t.Errorf("Expected cache invalidation on removal, got %v", c.patterns)
	}

	if err := svc.RemoveMember(ctx, 1, 10, nil); err == nil {
		t.Error("Expected an error removing a missing member")
	}
}
