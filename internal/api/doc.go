// Package api provides the HTTP admin API for the bridge.
//
// It exposes read-only operational endpoints: per-tenant connection
// status and the audit trail of connection and operation activity.
// All endpoints under /api/v1 require a bearer token signed with the
// configured secret; /health is open for liveness probes.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
