// Package middleware provides the HTTP enforcement layer: request ID
// propagation, session loading with lazy authorization resolution, and the
// terminating guards (login, role, permission, resource action).
//
// Guards are the only place where an authorization check produces an HTTP
// error. Everything below them (gate predicates, resolvers) returns plain
// booleans and leaves the response to the caller.
package middleware
