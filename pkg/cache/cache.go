// Package cache provides the best-effort permission cache. The cache is an
// optimization only: adapters swallow every backend error so a failure is
// indistinguishable from a miss, and resolution always falls through to the
// store. Answers must be identical with the cache disabled.
package cache

import (
	"context"
	"fmt"
	"time"
)

// DefaultTTL is applied when no TTL is configured.
const DefaultTTL = 1800 * time.Second

// Resolution kinds used in cache keys.
const (
	KindRoles       = "roles"
	KindPermissions = "permissions"
)

// Cache is the permission cache port. Implementations never surface errors:
// a failed Get is a miss, a failed Set or DeletePattern is a logged no-op.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// DeletePattern removes every key matching a glob pattern and returns
	// how many were removed.
	DeletePattern(ctx context.Context, pattern string) int
}

// ResourceKind returns the resolution kind for one resource type's flags.
func ResourceKind(resourceType string) string {
	return "resource-permissions:" + resourceType
}

// Key builds a cache key namespaced by tenant, resolution kind and user, so
// invalidation can target one tenant's keyspace without touching others.
func Key(tenantID int64, kind string, userID int64) string {
	return fmt.Sprintf("authz:%d:%s:%d", tenantID, kind, userID)
}

// TenantPattern matches every key in one tenant's keyspace.
func TenantPattern(tenantID int64) string {
	return fmt.Sprintf("authz:%d:*", tenantID)
}

// UserPattern matches every key for one user inside one tenant.
func UserPattern(tenantID, userID int64) string {
	return fmt.Sprintf("authz:%d:*:%d", tenantID, userID)
}
