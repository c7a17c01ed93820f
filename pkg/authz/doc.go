// Package authz resolves a user's effective permissions inside one tenant.
//
// Resolution combines two layers:
//
//   - coarse permission key-names granted to the user's role (e.g. "posts.edit")
//   - per-resource-type CRUD-scope flags merged through four specificity
//     levels: global < role-global < tenant-global < role+tenant
//
// The merge is a sparse override: a rule only changes the flags it explicitly
// sets, omitted flags inherit from less specific levels. Every resolver
// degrades to the least-privileged answer on store failure instead of
// returning an error, so callers always get a usable verdict.
package authz
