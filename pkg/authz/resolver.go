package authz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vendhub/vendhub/pkg/cache"
	"github.com/vendhub/vendhub/pkg/observability"
)

// Resolvers bundles the three resolvers sharing one store and cache.
type Resolvers struct {
	Roles       *RoleResolver
	Permissions *PermissionSetResolver
	Resources   *ResourcePermissionResolver
}

// NewResolvers wires the resolver chain. The cache may be a NopCache; TTL
// zero falls back to the default.
func NewResolvers(store Store, c cache.Cache, ttl time.Duration, logger *observability.Logger) *Resolvers {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	roles := &RoleResolver{store: store, cache: c, ttl: ttl, logger: logger}
	return &Resolvers{
		Roles:       roles,
		Permissions: &PermissionSetResolver{store: store, roles: roles, cache: c, ttl: ttl, logger: logger},
		Resources:   &ResourcePermissionResolver{store: store, roles: roles, cache: c, ttl: ttl, logger: logger},
	}
}

// WithMetrics enables resolution and degradation counters on all resolvers.
func (r *Resolvers) WithMetrics(m *observability.Metrics) *Resolvers {
	r.Roles.metrics = m
	r.Permissions.metrics = m
	r.Resources.metrics = m
	return r
}

// RoleResolver looks up a user's active role within one tenant.
type RoleResolver struct {
	store   Store
	cache   cache.Cache
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Resolve returns the active membership role for (userID, tenantID). A
// missing or inactive membership, and any store failure, both yield the zero
// RoleInfo: authorization degrades to "no permissions", it never errors.
func (r *RoleResolver) Resolve(ctx context.Context, userID, tenantID int64) RoleInfo {
	key := cache.Key(tenantID, cache.KindRoles, userID)
	if data, ok := r.cache.Get(ctx, key); ok {
		var info RoleInfo
		if err := json.Unmarshal(data, &info); err == nil {
			return info
		}
	}

	if r.metrics != nil {
		r.metrics.AuthzResolutionsTotal.WithLabelValues(cache.KindRoles).Inc()
	}

	info, err := r.store.UserRole(ctx, userID, tenantID)
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":   userID,
			"tenant_id": tenantID,
		}).Warn("role lookup failed, degrading to no role")
		if r.metrics != nil {
			r.metrics.AuthzStoreErrorsTotal.WithLabelValues(cache.KindRoles).Inc()
		}
		return RoleInfo{}
	}

	if data, err := json.Marshal(info); err == nil {
		r.cache.Set(ctx, key, data, r.ttl)
	}
	return info
}

// PermissionSetResolver resolves the flat set of coarse permission key-names
// granted to a user's role inside a tenant.
type PermissionSetResolver struct {
	store   Store
	roles   *RoleResolver
	cache   cache.Cache
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Resolve returns the coarse permission key-names for (userID, tenantID).
// A super admin receives the tenant's full catalog; no role yields an empty
// set, as does any store failure.
func (p *PermissionSetResolver) Resolve(ctx context.Context, userID, tenantID int64) []string {
	key := cache.Key(tenantID, cache.KindPermissions, userID)
	if data, ok := p.cache.Get(ctx, key); ok {
		var keys []string
		if err := json.Unmarshal(data, &keys); err == nil {
			return keys
		}
	}

	if p.metrics != nil {
		p.metrics.AuthzResolutionsTotal.WithLabelValues(cache.KindPermissions).Inc()
	}

	role := p.roles.Resolve(ctx, userID, tenantID)

	var keys []string
	var err error
	switch {
	case role.IsSuperAdmin():
		keys, err = p.store.AllPermissionKeys(ctx, tenantID)
	case role.RoleID != nil:
		keys, err = p.store.RolePermissions(ctx, *role.RoleID, tenantID)
	default:
		keys = []string{}
	}

	if err != nil {
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":   userID,
			"tenant_id": tenantID,
		}).Warn("permission lookup failed, degrading to empty set")
		if p.metrics != nil {
			p.metrics.AuthzStoreErrorsTotal.WithLabelValues(cache.KindPermissions).Inc()
		}
		return []string{}
	}
	if keys == nil {
		keys = []string{}
	}

	if data, err := json.Marshal(keys); err == nil {
		p.cache.Set(ctx, key, data, p.ttl)
	}
	return keys
}

// ResourcePermissionResolver merges resource-permission rules through the
// four specificity levels into one effective flag set.
type ResourcePermissionResolver struct {
	store   Store
	roles   *RoleResolver
	cache   cache.Cache
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Resolve computes the effective CRUD-scope flags for one resource type.
//
// The merge order is fixed and load-bearing: global, then role-global, then
// tenant-global, then role+tenant. Each level overwrites only the flags its
// rules explicitly set. With no tenant context only the global level applies.
// A super admin short-circuits to all-true before any rule lookup, so no
// synthetic rule data ever reaches the cache.
func (r *ResourcePermissionResolver) Resolve(ctx context.Context, userID int64, resourceType string, tenantID int64) ResourceFlags {
	role := r.roles.Resolve(ctx, userID, tenantID)
	if role.IsSuperAdmin() {
		return AllTrueFlags()
	}

	key := cache.Key(tenantID, cache.ResourceKind(resourceType), userID)
	if data, ok := r.cache.Get(ctx, key); ok {
		var flags ResourceFlags
		if err := json.Unmarshal(data, &flags); err == nil {
			return flags
		}
	}

	if r.metrics != nil {
		r.metrics.AuthzResolutionsTotal.WithLabelValues("resource-permissions").Inc()
	}

	var effective ResourceFlags

	r.applyLevel(ctx, &effective, resourceType, nil, nil)

	if tenantID == 0 {
		return effective
	}

	if role.RoleID != nil {
		r.applyLevel(ctx, &effective, resourceType, role.RoleID, nil)
	}
	r.applyLevel(ctx, &effective, resourceType, nil, &tenantID)
	if role.RoleID != nil {
		r.applyLevel(ctx, &effective, resourceType, role.RoleID, &tenantID)
	}

	if data, err := json.Marshal(effective); err == nil {
		r.cache.Set(ctx, key, data, r.ttl)
	}
	return effective
}

// applyLevel fetches one specificity level and applies its rules. A lookup
// failure is "no rules at this level": the flags accumulated so far stand.
func (r *ResourcePermissionResolver) applyLevel(ctx context.Context, effective *ResourceFlags, resourceType string, roleID, tenantID *int64) {
	rules, err := r.store.ResourceRules(ctx, resourceType, roleID, tenantID)
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"resource_type": resourceType,
		}).Warn("resource rule lookup failed, keeping accumulated flags")
		if r.metrics != nil {
			r.metrics.AuthzStoreErrorsTotal.WithLabelValues("resource-permissions").Inc()
		}
		return
	}
	for _, rule := range rules {
		rule.Apply(effective)
	}
}

// ResolveResourcePermissions is the stateless variant for batch and
// administrative callers. It runs a fresh resolver chain with no cache and no
// session involvement.
func ResolveResourcePermissions(ctx context.Context, store Store, userID int64, resourceType string, tenantID int64) ResourceFlags {
	resolvers := NewResolvers(store, cache.NewNopCache(), 0, observability.FromContext(ctx))
	return resolvers.Resources.Resolve(ctx, userID, resourceType, tenantID)
}
