package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the authorization tables if they do not exist. Schema is
// PostgreSQL; tests build their own sqlite equivalent.
func Migrate(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS roles (
		id BIGSERIAL PRIMARY KEY,
		key_name VARCHAR(100) NOT NULL UNIQUE,
		display_name VARCHAR(255),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS tenant_users (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		role_id BIGINT NOT NULL REFERENCES roles(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE (tenant_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS permissions (
		id BIGSERIAL PRIMARY KEY,
		key_name VARCHAR(100) NOT NULL,
		tenant_id BIGINT,
		description TEXT,
		UNIQUE (key_name, tenant_id)
	);

	CREATE TABLE IF NOT EXISTS role_permissions (
		id BIGSERIAL PRIMARY KEY,
		role_id BIGINT NOT NULL REFERENCES roles(id),
		tenant_id BIGINT NOT NULL,
		permission_id BIGINT NOT NULL REFERENCES permissions(id),
		UNIQUE (role_id, tenant_id, permission_id)
	);

	CREATE TABLE IF NOT EXISTS resource_permissions (
		id BIGSERIAL PRIMARY KEY,
		resource_type VARCHAR(100) NOT NULL,
		role_id BIGINT,
		tenant_id BIGINT,
		can_view_all BOOLEAN,
		can_view_own BOOLEAN,
		can_view_tenant BOOLEAN,
		can_create BOOLEAN,
		can_edit_all BOOLEAN,
		can_edit_own BOOLEAN,
		can_delete_all BOOLEAN,
		can_delete_own BOOLEAN,
		UNIQUE (resource_type, role_id, tenant_id)
	);

	CREATE INDEX IF NOT EXISTS idx_tenant_users_lookup ON tenant_users(user_id, tenant_id);
	CREATE INDEX IF NOT EXISTS idx_role_permissions_lookup ON role_permissions(role_id, tenant_id);
	CREATE INDEX IF NOT EXISTS idx_resource_permissions_type ON resource_permissions(resource_type);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate authorization schema: %w", err)
	}
	return nil
}
