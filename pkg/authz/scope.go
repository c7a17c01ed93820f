package authz

import (
	"context"
	"fmt"
)

// ownershipColumns maps resource types to the column that identifies a row's
// owner in list queries. Types not listed fall back to created_by.
var ownershipColumns = map[string]string{
	"tenants":  "owner_user_id",
	"users":    "id",
	"orders":   "user_id",
	"products": "created_by",
}

const defaultOwnershipColumn = "created_by"

// OwnershipColumn returns the owner column for a resource type.
func OwnershipColumn(resourceType string) string {
	if col, ok := ownershipColumns[resourceType]; ok {
		return col
	}
	return defaultOwnershipColumn
}

// ListFilter is a SQL WHERE fragment plus its arguments, restricting a list
// query to the rows the caller's view flags allow.
type ListFilter struct {
	Where string
	Args  []interface{}
}

// ListFilter builds the row filter for listing a resource type. Placeholders
// are numbered from startArg so the fragment can be appended to an existing
// query. With view-all (or super admin) the filter matches everything; with
// no view grant it matches nothing.
func (g *Gate) ListFilter(ctx context.Context, resourceType string, startArg int) ListFilter {
	if g.IsSuperAdmin() {
		return ListFilter{Where: "1 = 1"}
	}

	flags := g.Flags(ctx, resourceType)
	if flags.CanViewAll {
		return ListFilter{Where: "1 = 1"}
	}

	var clauses []string
	var args []interface{}

	if flags.CanViewOwn {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", OwnershipColumn(resourceType), startArg+len(args)))
		args = append(args, g.authz.UserID)
	}
	if flags.CanViewTenant {
		clauses = append(clauses, fmt.Sprintf("tenant_id = $%d", startArg+len(args)))
		args = append(args, g.authz.TenantID)
	}

	if len(clauses) == 0 {
		return ListFilter{Where: "1 = 0"}
	}

	where := clauses[0]
	for _, clause := range clauses[1:] {
		where += " OR " + clause
	}
	if len(clauses) > 1 {
		where = "(" + where + ")"
	}
	return ListFilter{Where: where, Args: args}
}
