package authz

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vendhub/vendhub/pkg/cache"
	"github.com/vendhub/vendhub/pkg/observability"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Create minimal tables for testing
	_, err = db.Exec(`
		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key_name TEXT NOT NULL UNIQUE,
			display_name TEXT
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

		CREATE TABLE permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key_name TEXT NOT NULL,
			tenant_id INTEGER
		);

		CREATE TABLE role_permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			role_id INTEGER NOT NULL,
			permission_id INTEGER NOT NULL,
			tenant_id INTEGER NOT NULL
		);

		CREATE TABLE resource_permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			resource_type TEXT NOT NULL,
			role_id INTEGER,
			tenant_id INTEGER,
			can_view_all INTEGER,
			can_view_own INTEGER,
			can_view_tenant INTEGER,
			can_create INTEGER,
			can_edit_all INTEGER,
			can_edit_own INTEGER,
			can_delete_all INTEGER,
			can_delete_own INTEGER
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestResolvers(t *testing.T, db *sql.DB) *Resolvers {
	t.Helper()
	return NewResolvers(NewSQLStore(db), cache.NewNopCache(), time.Minute, testLogger())
}

func seedRole(t *testing.T, db *sql.DB, keyName string) int64 {
	t.Helper()
	result, err := db.Exec("INSERT INTO roles (key_name, display_name) VALUES ($1, $2)", keyName, keyName)
	if err != nil {
		t.Fatalf("Failed to insert role: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

func seedMembership(t *testing.T, db *sql.DB, tenantID, userID, roleID int64, active bool) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO tenant_users (tenant_id, user_id, role_id, is_active) VALUES ($1, $2, $3, $4)",
		tenantID, userID, roleID, active,
	)
	if err != nil {
		t.Fatalf("Failed to insert membership: %v", err)
	}
}

// seedRule inserts one resource-permission row. The flags map holds only the
// flags the rule sets; everything else stays NULL.
func seedRule(t *testing.T, db *sql.DB, resourceType string, roleID, tenantID *int64, flags map[string]bool) {
	t.Helper()

	columns := []string{
		"can_view_all", "can_view_own", "can_view_tenant", "can_create",
		"can_edit_all", "can_edit_own", "can_delete_all", "can_delete_own",
	}
	args := []interface{}{resourceType, roleID, tenantID}
	for _, col := range columns {
		if v, ok := flags[col]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}

	_, err := db.Exec(`
		INSERT INTO resource_permissions (
			resource_type, role_id, tenant_id,
			can_view_all, can_view_own, can_view_tenant, can_create,
			can_edit_all, can_edit_own, can_delete_all, can_delete_own
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, args...)
	if err != nil {
		t.Fatalf("Failed to insert resource rule: %v", err)
	}
}

func seedPermission(t *testing.T, db *sql.DB, keyName string, tenantID *int64) int64 {
	t.Helper()
	result, err := db.Exec("INSERT INTO permissions (key_name, tenant_id) VALUES ($1, $2)", keyName, tenantID)
	if err != nil {
		t.Fatalf("Failed to insert permission: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

func grantPermission(t *testing.T, db *sql.DB, roleID, permissionID, tenantID int64) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO role_permissions (role_id, permission_id, tenant_id) VALUES ($1, $2, $3)",
		roleID, permissionID, tenantID,
	)
	if err != nil {
		t.Fatalf("Failed to grant permission: %v", err)
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestRoleResolver_ActiveMembership(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	seedMembership(t, db, 1, 10, roleID, true)

	resolvers := newTestResolvers(t, db)

	info := resolvers.Roles.Resolve(ctx, 10, 1)
	if info.RoleID == nil || *info.RoleID != roleID {
		t.Fatalf("Expected role ID %d, got %v", roleID, info.RoleID)
	}
	if info.RoleKey != "editor" {
		t.Errorf("Expected role key editor, got %q", info.RoleKey)
	}
}

func TestRoleResolver_InactiveMembershipIgnored(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	seedMembership(t, db, 1, 10, roleID, false)

	resolvers := newTestResolvers(t, db)

	info := resolvers.Roles.Resolve(ctx, 10, 1)
	if info.RoleID != nil || info.RoleKey != "" {
		t.Errorf("Expected zero role for inactive membership, got %+v", info)
	}
}

func TestRoleResolver_StoreErrorDegradesToNoRole(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	resolvers := newTestResolvers(t, db)
	db.Close()

	info := resolvers.Roles.Resolve(ctx, 10, 1)
	if info.RoleID != nil || info.RoleKey != "" {
		t.Errorf("Expected zero role on store failure, got %+v", info)
	}
}

func TestPermissionSetResolver_RoleGrants(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	seedMembership(t, db, 1, 10, roleID, true)
	permID := seedPermission(t, db, "edit_posts", int64Ptr(1))
	grantPermission(t, db, roleID, permID, 1)
	// A grant in another tenant must not leak in.
	otherID := seedPermission(t, db, "manage_billing", int64Ptr(2))
	grantPermission(t, db, roleID, otherID, 2)

	resolvers := newTestResolvers(t, db)

	keys := resolvers.Permissions.Resolve(ctx, 10, 1)
	if len(keys) != 1 || keys[0] != "edit_posts" {
		t.Errorf("Expected [edit_posts], got %v", keys)
	}
}

func TestPermissionSetResolver_SuperAdminGetsFullCatalog(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, RoleSuperAdmin)
	seedMembership(t, db, 1, 10, roleID, true)
	seedPermission(t, db, "edit_posts", int64Ptr(1))
	seedPermission(t, db, "manage_users", nil)
	seedPermission(t, db, "other_tenant_only", int64Ptr(2))

	resolvers := newTestResolvers(t, db)

	keys := resolvers.Permissions.Resolve(ctx, 10, 1)
	if len(keys) != 2 {
		t.Fatalf("Expected catalog of 2 keys, got %v", keys)
	}
	if keys[0] != "edit_posts" || keys[1] != "manage_users" {
		t.Errorf("Unexpected catalog: %v", keys)
	}
}

func TestPermissionSetResolver_NoRoleIsEmptyNotNil(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	resolvers := newTestResolvers(t, db)

	keys := resolvers.Permissions.Resolve(ctx, 99, 1)
	if keys == nil {
		t.Fatal("Expected empty slice, got nil")
	}
	if len(keys) != 0 {
		t.Errorf("Expected no permissions, got %v", keys)
	}
}

func TestResourcePermissionResolver_SparseOverride(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	seedMembership(t, db, 1, 10, roleID, true)

	// Global level grants view-own; the tenant level adds create without
	// mentioning the view flags.
	seedRule(t, db, "posts", nil, nil, map[string]bool{"can_view_own": true})
	seedRule(t, db, "posts", nil, int64Ptr(1), map[string]bool{"can_create": true})

	resolvers := newTestResolvers(t, db)

	flags := resolvers.Resources.Resolve(ctx, 10, "posts", 1)
	if !flags.CanViewOwn {
		t.Error("Expected can_view_own inherited from the global level")
	}
	if !flags.CanCreate {
		t.Error("Expected can_create from the tenant level")
	}
	if flags.CanViewAll || flags.CanEditAll || flags.CanDeleteAll {
		t.Errorf("Unset flags must stay false, got %+v", flags)
	}
}

func TestResourcePermissionResolver_MoreSpecificLevelWins(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	seedMembership(t, db, 1, 10, roleID, true)

	seedRule(t, db, "posts", nil, nil, map[string]bool{"can_view_own": true, "can_edit_own": true})
	// The role+tenant level explicitly revokes view-own.
	seedRule(t, db, "posts", &roleID, int64Ptr(1), map[string]bool{"can_view_own": false})

	resolvers := newTestResolvers(t, db)

	flags := resolvers.Resources.Resolve(ctx, 10, "posts", 1)
	if flags.CanViewOwn {
		t.Error("Expected role+tenant revocation to override the global grant")
	}
	if !flags.CanEditOwn {
		t.Error("Expected untouched can_edit_own to survive from the global level")
	}
}

func TestResourcePermissionResolver_TenantZeroOnlyGlobalApplies(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedRule(t, db, "posts", nil, nil, map[string]bool{"can_view_own": true})
	// Tenant-scoped grants must not apply without a tenant context.
	seedRule(t, db, "posts", nil, int64Ptr(1), map[string]bool{"can_create": true})

	resolvers := newTestResolvers(t, db)

	flags := resolvers.Resources.Resolve(ctx, 10, "posts", 0)
	if !flags.CanViewOwn {
		t.Error("Expected the global level to apply without tenant context")
	}
	if flags.CanCreate {
		t.Error("Tenant-level grant must not apply when tenant ID is zero")
	}
}

func TestResourcePermissionResolver_SuperAdminShortCircuit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, RoleSuperAdmin)
	seedMembership(t, db, 1, 10, roleID, true)
	// Restrictive rules exist but must never be consulted.
	seedRule(t, db, "posts", &roleID, int64Ptr(1), map[string]bool{"can_view_all": false, "can_delete_all": false})

	resolvers := newTestResolvers(t, db)

	flags := resolvers.Resources.Resolve(ctx, 10, "posts", 1)
	if flags != AllTrueFlags() {
		t.Errorf("Expected all-true for super admin, got %+v", flags)
	}
}

func TestResourcePermissionResolver_NoRoleSkipsRoleLevels(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")

	seedRule(t, db, "posts", nil, nil, map[string]bool{"can_view_own": true})
	seedRule(t, db, "posts", &roleID, int64Ptr(1), map[string]bool{"can_edit_all": true})
	seedRule(t, db, "posts", nil, int64Ptr(1), map[string]bool{"can_create": true})

	resolvers := newTestResolvers(t, db)

	// User 99 has no membership: the role-scoped levels never apply, the
	// global and tenant-global ones still do.
	flags := resolvers.Resources.Resolve(ctx, 99, "posts", 1)
	if !flags.CanViewOwn || !flags.CanCreate {
		t.Errorf("Expected global and tenant-global grants, got %+v", flags)
	}
	if flags.CanEditAll {
		t.Error("Role-scoped grant must not apply without a role")
	}
}

// Role content_manager, a global view-tenant grant plus a tenant-global
// create grant, combine into exactly those two flags.
func TestResourcePermissionResolver_TenantLevelCombination(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "content_manager")
	seedMembership(t, db, 7, 42, roleID, true)

	seedRule(t, db, "products", nil, nil, map[string]bool{"can_view_tenant": true})
	seedRule(t, db, "products", nil, int64Ptr(7), map[string]bool{"can_create": true})

	resolvers := newTestResolvers(t, db)

	flags := resolvers.Resources.Resolve(ctx, 42, "products", 7)
	want := ResourceFlags{CanViewTenant: true, CanCreate: true}
	if flags != want {
		t.Errorf("Expected %+v, got %+v", want, flags)
	}
}

func TestResolveResourcePermissions_Stateless(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	seedMembership(t, db, 1, 10, roleID, true)
	seedRule(t, db, "posts", &roleID, int64Ptr(1), map[string]bool{"can_edit_own": true})

	flags := ResolveResourcePermissions(ctx, NewSQLStore(db), 10, "posts", 1)
	if !flags.CanEditOwn {
		t.Errorf("Expected can_edit_own, got %+v", flags)
	}
}

// Caching must be transparent: a resolution served from Redis answers the
// same as one served from the store, and a cache outage degrades to a miss.
func TestResolvers_CacheTransparency(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	roleID := seedRole(t, db, "editor")
	seedMembership(t, db, 1, 10, roleID, true)
	seedRule(t, db, "posts", &roleID, int64Ptr(1), map[string]bool{"can_view_own": true})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	redisCache := cache.NewRedisCacheFromClient(client, testLogger())

	cached := NewResolvers(NewSQLStore(db), redisCache, time.Minute, testLogger())
	uncached := newTestResolvers(t, db)

	first := cached.Resources.Resolve(ctx, 10, "posts", 1)
	second := cached.Resources.Resolve(ctx, 10, "posts", 1)
	direct := uncached.Resources.Resolve(ctx, 10, "posts", 1)

	if first != direct || second != direct {
		t.Errorf("Cached answers diverge: first=%+v second=%+v direct=%+v", first, second, direct)
	}

	if len(mr.Keys()) == 0 {
		t.Error("Expected resolution to be written through to the cache")
	}

	// With the cache down, resolution still answers from the store.
	mr.Close()
	degraded := cached.Resources.Resolve(ctx, 10, "posts", 1)
	if degraded != direct {
		t.Errorf("Expected store answer on cache outage, got %+v", degraded)
	}
}

func TestRoleResolver_FailedLookupNotCached(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	redisCache := cache.NewRedisCacheFromClient(client, testLogger())

	resolvers := NewResolvers(NewSQLStore(db), redisCache, time.Minute, testLogger())
	db.Close()

	info := resolvers.Roles.Resolve(ctx, 10, 1)
	if info.RoleID != nil {
		t.Fatalf("Expected degraded zero role, got %+v", info)
	}
	if len(mr.Keys()) != 0 {
		t.Error("Degraded defaults must not be written to the cache")
	}
}
