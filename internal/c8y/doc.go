// Package c8y is the client for the device-management backend's REST and
// notification APIs.
//
// The backend exposes inventory, identity, events, measurements, device
// control and tenant options over JSON/HTTP, plus a websocket stream for
// live operation notifications. There is no official Go SDK, so the
// client is hand-rolled on net/http with gorilla/websocket for the
// stream.
//
// One Client serves all tenants: requests carry the service credentials
// registered for the tenant they are scoped to, and every method takes
// the tenant id explicitly. Higher layers bind the tenant once per unit
// of work instead of threading it through each call site.
//
// Errors map to sentinels (ErrNotFound, ErrUnauthorized,
// ErrRequestFailed) so callers can branch with errors.Is without parsing
// status codes.
package c8y
