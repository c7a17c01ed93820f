package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Store is the relational read interface the resolvers depend on. A concrete
// adapter is injected at startup; resolvers never probe for its presence.
type Store interface {
	// UserRole returns the active membership role for (userID, tenantID).
	// A missing or inactive membership yields a zero RoleInfo, not an error.
	UserRole(ctx context.Context, userID, tenantID int64) (RoleInfo, error)

	// RolePermissions returns the distinct coarse permission key-names
	// granted to (roleID, tenantID).
	RolePermissions(ctx context.Context, roleID, tenantID int64) ([]string, error)

	// AllPermissionKeys returns every permission key-name registered for a
	// tenant. Used for the super-admin expansion.
	AllPermissionKeys(ctx context.Context, tenantID int64) ([]string, error)

	// ResourceRules returns the rules for one specificity level of a
	// resource type. A nil roleID or tenantID matches rows where that
	// column is NULL.
	ResourceRules(ctx context.Context, resourceType string, roleID, tenantID *int64) ([]Rule, error)

	// ResourceTypes returns the distinct resource types that have rules
	// visible inside a tenant (tenant-scoped or global).
	ResourceTypes(ctx context.Context, tenantID int64) ([]string, error)
}

// SQLStore implements Store over database/sql. Production runs lib/pq; tests
// run the same queries against sqlite.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store over an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const ruleColumns = `id, resource_type, role_id, tenant_id,
	       can_view_all, can_view_own, can_view_tenant, can_create,
	       can_edit_all, can_edit_own, can_delete_all, can_delete_own`

// UserRole looks up the active membership row joined to the role catalog.
func (s *SQLStore) UserRole(ctx context.Context, userID, tenantID int64) (RoleInfo, error) {
	query := `
		SELECT tu.role_id, r.key_name
		FROM tenant_users tu
		JOIN roles r ON r.id = tu.role_id
		WHERE tu.user_id = $1 AND tu.tenant_id = $2 AND tu.is_active = TRUE
		LIMIT 1
	`

	var roleID int64
	var keyName string
	err := s.db.QueryRowContext(ctx, query, userID, tenantID).Scan(&roleID, &keyName)
	if err == sql.ErrNoRows {
		return RoleInfo{}, nil
	}
	if err != nil {
		return RoleInfo{}, fmt.Errorf("failed to resolve user role: %w", err)
	}

	return RoleInfo{RoleID: &roleID, RoleKey: keyName}, nil
}

// RolePermissions returns the coarse grants for a role inside a tenant.
func (s *SQLStore) RolePermissions(ctx context.Context, roleID, tenantID int64) ([]string, error) {
	query := `
		SELECT DISTINCT p.key_name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND rp.tenant_id = $2
		ORDER BY p.key_name
	`

	rows, err := s.db.QueryContext(ctx, query, roleID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role permissions: %w", err)
	}
	defer rows.Close()

	return scanKeyNames(rows)
}

// AllPermissionKeys returns the tenant's full permission catalog.
func (s *SQLStore) AllPermissionKeys(ctx context.Context, tenantID int64) ([]string, error) {
	query := `
		SELECT DISTINCT key_name
		FROM permissions
		WHERE tenant_id = $1 OR tenant_id IS NULL
		ORDER BY key_name
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query permission catalog: %w", err)
	}
	defer rows.Close()

	return scanKeyNames(rows)
}

// ResourceRules fetches one specificity level. The WHERE clause is built
// per-call because NULL role/tenant columns must match with IS NULL, not =.
func (s *SQLStore) ResourceRules(ctx context.Context, resourceType string, roleID, tenantID *int64) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM resource_permissions WHERE resource_type = $1`
	args := []interface{}{resourceType}
	next := 2

	if roleID == nil {
		query += ` AND role_id IS NULL`
	} else {
		query += fmt.Sprintf(` AND role_id = $%d`, next)
		args = append(args, *roleID)
		next++
	}

	if tenantID == nil {
		query += ` AND tenant_id IS NULL`
	} else {
		query += fmt.Sprintf(` AND tenant_id = $%d`, next)
		args = append(args, *tenantID)
	}

	// Deterministic application order when a level holds multiple rows.
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		err := rows.Scan(
			&r.ID,
			&r.ResourceType,
			&r.RoleID,
			&r.TenantID,
			&r.CanViewAll,
			&r.CanViewOwn,
			&r.CanViewTenant,
			&r.CanCreate,
			&r.CanEditAll,
			&r.CanEditOwn,
			&r.CanDeleteAll,
			&r.CanDeleteOwn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource rule: %w", err)
		}
		rules = append(rules, r)
	}

	return rules, rows.Err()
}

// ResourceTypes lists every resource type with rules visible in the tenant.
func (s *SQLStore) ResourceTypes(ctx context.Context, tenantID int64) ([]string, error) {
	query := `
		SELECT DISTINCT resource_type
		FROM resource_permissions
		WHERE tenant_id = $1 OR tenant_id IS NULL
		ORDER BY resource_type
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource types: %w", err)
	}
	defer rows.Close()

	return scanKeyNames(rows)
}

func scanKeyNames(rows *sql.Rows) ([]string, error) {
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan key name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
