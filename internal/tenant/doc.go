// Package tenant carries the tenant scope for multi-tenant request
// handling.
//
// The bridge serves several backend tenants from one process. Inbound
// broker messages and operation callbacks arrive without a natural
// tenant scope, so the Executor re-binds the tenant to the context
// before any backend interaction. Downstream code reads the scope with
// FromContext instead of threading tenant ids through every signature.
package tenant
