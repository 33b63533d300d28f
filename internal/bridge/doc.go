// Package bridge is the connection lifecycle and message/command
// bridging core.
//
// It connects each attached tenant to the upstream telemetry broker and
// the downstream device-management backend:
//
//   - Resolver obtains upstream credentials from the tenant's option
//     store, retrying at a fixed 60 s cadence while the configuration is
//     incomplete.
//   - Manager owns the per-tenant connection state machine: dial, two
//     consumers (telemetry then event), and fixed 5 s reconnects. Every
//     trigger funnels into one attemptConnect entry point, and a
//     tenant's retry timer is always cancelled before a new one is
//     armed, so at most one pending retry exists per tenant.
//   - Inbound turns each broker message into an idempotent device
//     upsert, a hierarchy repair against the bridge agent, and a typed
//     event record. Failures drop the message.
//   - Dispatcher converts pending backend operations into broker
//     commands (one-way by default, request/response on demand) and
//     reconciles the outcome into the operation status.
//   - Bootstrapper sequences tenant attach: credentials, agent identity,
//     live operation listener, connect, pending sweep.
//
// All backend access runs through the tenant executor, which binds the
// acting tenant to the context; the Backend surface refuses calls made
// outside that scope. This is the boundary between broker I/O goroutines
// and "acts as tenant X".
package bridge
