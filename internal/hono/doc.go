// Package hono implements the application-side client for the upstream
// telemetry broker.
//
// One Client represents one tenant's authenticated connection to the
// broker's messaging endpoint. On top of the raw transport it provides:
//
//   - Telemetry and event consumers that parse the device id out of the
//     message address and deliver typed Messages to a handler.
//   - One-way command delivery with asynchronous completion.
//   - Request/response commands correlated by request id, with per-command
//     timeout and exactly-once completion callbacks.
//
// The client performs no reconnection of its own. Connection loss is
// reported through the callback given to Connect, and the connection
// manager dials a fresh client with freshly resolved credentials.
//
// Inbound addresses follow the broker's <kind>/<tenant>/<device> layout;
// commands use command/<tenant>/<device>/req/<req-id>/<name> with
// responses on command/<tenant>/<device>/res/<req-id>/<status>. A one-way
// command leaves the request-id segment empty.
package hono
