package authz

import (
	"database/sql"
)

// RoleSuperAdmin is the role key that bypasses all rule lookups.
const RoleSuperAdmin = "super_admin"

// Resource permission actions accepted by Gate.Allows and the enforcement
// middleware. Unknown action strings resolve to denied.
const (
	ActionViewAll    = "view_all"
	ActionViewOwn    = "view_own"
	ActionViewTenant = "view_tenant"
	ActionCreate     = "create"
	ActionEditAll    = "edit_all"
	ActionEditOwn    = "edit_own"
	ActionDeleteAll  = "delete_all"
	ActionDeleteOwn  = "delete_own"
)

// ResourceFlags is the effective CRUD-scope verdict for one resource type.
type ResourceFlags struct {
	CanViewAll    bool `json:"can_view_all"`
	CanViewOwn    bool `json:"can_view_own"`
	CanViewTenant bool `json:"can_view_tenant"`
	CanCreate     bool `json:"can_create"`
	CanEditAll    bool `json:"can_edit_all"`
	CanEditOwn    bool `json:"can_edit_own"`
	CanDeleteAll  bool `json:"can_delete_all"`
	CanDeleteOwn  bool `json:"can_delete_own"`
}

// AllTrueFlags returns the unconditional super-admin verdict.
func AllTrueFlags() ResourceFlags {
	return ResourceFlags{
		CanViewAll:    true,
		CanViewOwn:    true,
		CanViewTenant: true,
		CanCreate:     true,
		CanEditAll:    true,
		CanEditOwn:    true,
		CanDeleteAll:  true,
		CanDeleteOwn:  true,
	}
}

// Any reports whether at least one flag is granted.
func (f ResourceFlags) Any() bool {
	return f.CanViewAll || f.CanViewOwn || f.CanViewTenant || f.CanCreate ||
		f.CanEditAll || f.CanEditOwn || f.CanDeleteAll || f.CanDeleteOwn
}

// Rule is one stored resource-permission row. Each flag is tri-state: a NULL
// column means the row has no opinion about that flag at its level.
type Rule struct {
	ID            int64
	ResourceType  string
	RoleID        sql.NullInt64
	TenantID      sql.NullInt64
	CanViewAll    sql.NullBool
	CanViewOwn    sql.NullBool
	CanViewTenant sql.NullBool
	CanCreate     sql.NullBool
	CanEditAll    sql.NullBool
	CanEditOwn    sql.NullBool
	CanDeleteAll  sql.NullBool
	CanDeleteOwn  sql.NullBool
}

// Apply overwrites only the flags the rule explicitly sets. Omitted flags
// keep the value inherited from less specific levels.
func (r Rule) Apply(f *ResourceFlags) {
	if r.CanViewAll.Valid {
		f.CanViewAll = r.CanViewAll.Bool
	}
	if r.CanViewOwn.Valid {
		f.CanViewOwn = r.CanViewOwn.Bool
	}
	if r.CanViewTenant.Valid {
		f.CanViewTenant = r.CanViewTenant.Bool
	}
	if r.CanCreate.Valid {
		f.CanCreate = r.CanCreate.Bool
	}
	if r.CanEditAll.Valid {
		f.CanEditAll = r.CanEditAll.Bool
	}
	if r.CanEditOwn.Valid {
		f.CanEditOwn = r.CanEditOwn.Bool
	}
	if r.CanDeleteAll.Valid {
		f.CanDeleteAll = r.CanDeleteAll.Bool
	}
	if r.CanDeleteOwn.Valid {
		f.CanDeleteOwn = r.CanDeleteOwn.Bool
	}
}

// RoleInfo is the result of resolving a user's active membership in a tenant.
// Both fields are zero when no active membership exists.
type RoleInfo struct {
	RoleID  *int64 `json:"role_id"`
	RoleKey string `json:"role_key"`
}

// IsSuperAdmin reports whether the resolved role is the super-admin role.
func (r RoleInfo) IsSuperAdmin() bool {
	return r.RoleKey == RoleSuperAdmin
}

// Context is the session-scoped authorization snapshot. It is built once per
// session lifetime and treated as immutable for the duration of a request.
type Context struct {
	UserID              int64                    `json:"user_id"`
	TenantID            int64                    `json:"tenant_id"`
	RoleKeys            []string                 `json:"role_keys"`
	Permissions         []string                 `json:"permissions"`
	ResourcePermissions map[string]ResourceFlags `json:"resource_permissions"`
	IsSuperAdmin        bool                     `json:"is_super_admin"`
	CSRFToken           string                   `json:"csrf_token"`
}

// Empty reports whether the snapshot has never been populated. A loaded
// context always has non-nil maps and slices, even for a guest.
func (c *Context) Empty() bool {
	return c == nil || (c.RoleKeys == nil && c.Permissions == nil && c.ResourcePermissions == nil)
}

// IsGuest reports whether the context belongs to an unauthenticated caller.
func (c *Context) IsGuest() bool {
	return c == nil || c.UserID == 0
}
