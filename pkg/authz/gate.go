package authz

import (
	"context"
)

// Gate is the predicate API over a resolved Context. Every method is a pure
// boolean with no side effects: unknown resource types, unknown actions and
// missing state all answer false, never an error. A super admin answers true
// everywhere.
type Gate struct {
	authz    *Context
	resolver *ResourcePermissionResolver
}

// NewGate creates a gate over a resolved context. A nil context behaves as a
// guest with no permissions.
func NewGate(authzCtx *Context) *Gate {
	if authzCtx == nil {
		authzCtx = guestContext(0, "")
	}
	return &Gate{authz: authzCtx}
}

// WithResolver lets the gate resolve resource types absent from the session
// snapshot live. Without it, an absent type is all-false.
func (g *Gate) WithResolver(r *ResourcePermissionResolver) *Gate {
	g.resolver = r
	return g
}

// Context returns the read-only authorization context backing the gate.
func (g *Gate) Context() *Context {
	return g.authz
}

// IsSuperAdmin reports whether the current role bypasses all checks.
func (g *Gate) IsSuperAdmin() bool {
	return g.authz.IsSuperAdmin
}

// HasRole reports whether the resolved role matches the given key.
func (g *Gate) HasRole(key string) bool {
	if g.IsSuperAdmin() && key == RoleSuperAdmin {
		return true
	}
	for _, k := range g.authz.RoleKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Can reports whether the coarse permission key is granted.
func (g *Gate) Can(permissionKey string) bool {
	if g.IsSuperAdmin() {
		return true
	}
	for _, k := range g.authz.Permissions {
		if k == permissionKey {
			return true
		}
	}
	return false
}

// CanAny reports whether at least one of the keys is granted.
func (g *Gate) CanAny(permissionKeys ...string) bool {
	for _, key := range permissionKeys {
		if g.Can(key) {
			return true
		}
	}
	return false
}

// CanAll reports whether every key is granted.
func (g *Gate) CanAll(permissionKeys ...string) bool {
	for _, key := range permissionKeys {
		if !g.Can(key) {
			return false
		}
	}
	return true
}

// Flags returns the effective CRUD-scope flags for a resource type. Types
// absent from the snapshot are resolved live when a resolver is wired,
// otherwise they answer all-false.
func (g *Gate) Flags(ctx context.Context, resourceType string) ResourceFlags {
	if g.IsSuperAdmin() {
		return AllTrueFlags()
	}
	if flags, ok := g.authz.ResourcePermissions[resourceType]; ok {
		return flags
	}
	if g.resolver != nil {
		return g.resolver.Resolve(ctx, g.authz.UserID, resourceType, g.authz.TenantID)
	}
	return ResourceFlags{}
}

func (g *Gate) CanViewAll(ctx context.Context, resourceType string) bool {
	return g.Flags(ctx, resourceType).CanViewAll
}

func (g *Gate) CanViewOwn(ctx context.Context, resourceType string) bool {
	return g.Flags(ctx, resourceType).CanViewOwn
}

func (g *Gate) CanViewTenant(ctx context.Context, resourceType string) bool {
	return g.Flags(ctx, resourceType).CanViewTenant
}

func (g *Gate) CanCreate(ctx context.Context, resourceType string) bool {
	return g.Flags(ctx, resourceType).CanCreate
}

func (g *Gate) CanEditAll(ctx context.Context, resourceType string) bool {
	return g.Flags(ctx, resourceType).CanEditAll
}

func (g *Gate) CanEditOwn(ctx context.Context, resourceType string) bool {
	return g.Flags(ctx, resourceType).CanEditOwn
}

func (g *Gate) CanDeleteAll(ctx context.Context, resourceType string) bool {
	return g.Flags(ctx, resourceType).CanDeleteAll
}

func (g *Gate) CanDeleteOwn(ctx context.Context, resourceType string) bool {
	return g.Flags(ctx, resourceType).CanDeleteOwn
}

// HasAnyResourcePermission reports whether any flag is granted for the type.
func (g *Gate) HasAnyResourcePermission(ctx context.Context, resourceType string) bool {
	return g.Flags(ctx, resourceType).Any()
}

// CanViewResource combines the view flags with ownership and tenant checks
// for one concrete record.
func (g *Gate) CanViewResource(ctx context.Context, resourceType string, ownerID, resourceTenantID int64) bool {
	if g.IsSuperAdmin() {
		return true
	}
	flags := g.Flags(ctx, resourceType)
	if flags.CanViewAll {
		return true
	}
	if flags.CanViewOwn && ownerID == g.authz.UserID {
		return true
	}
	if flags.CanViewTenant && resourceTenantID == g.authz.TenantID {
		return true
	}
	return false
}

// CanEditResource reports whether one concrete record may be edited. Edit has
// no tenant branch: all or own only.
func (g *Gate) CanEditResource(ctx context.Context, resourceType string, ownerID int64) bool {
	if g.IsSuperAdmin() {
		return true
	}
	flags := g.Flags(ctx, resourceType)
	return flags.CanEditAll || (flags.CanEditOwn && ownerID == g.authz.UserID)
}

// CanDeleteResource reports whether one concrete record may be deleted.
func (g *Gate) CanDeleteResource(ctx context.Context, resourceType string, ownerID int64) bool {
	if g.IsSuperAdmin() {
		return true
	}
	flags := g.Flags(ctx, resourceType)
	return flags.CanDeleteAll || (flags.CanDeleteOwn && ownerID == g.authz.UserID)
}

// Allows maps an action string onto one flag. Unknown actions are denied.
func (g *Gate) Allows(ctx context.Context, resourceType, action string) bool {
	flags := g.Flags(ctx, resourceType)
	switch action {
	case ActionViewAll:
		return flags.CanViewAll
	case ActionViewOwn:
		return flags.CanViewOwn
	case ActionViewTenant:
		return flags.CanViewTenant
	case ActionCreate:
		return flags.CanCreate
	case ActionEditAll:
		return flags.CanEditAll
	case ActionEditOwn:
		return flags.CanEditOwn
	case ActionDeleteAll:
		return flags.CanDeleteAll
	case ActionDeleteOwn:
		return flags.CanDeleteOwn
	default:
		return false
	}
}
