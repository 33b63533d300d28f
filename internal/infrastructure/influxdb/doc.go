// Package influxdb provides the optional local telemetry mirror.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched metric writing and health monitoring. The mirror is
// strictly best-effort: the backend holds the authoritative copy of every
// message, and a down or disabled InfluxDB never affects the bridge's
// message pipeline.
//
// # Purpose
//
// Time-series storage for:
//   - Numeric fields of inbound telemetry, tagged by tenant and device
//   - Tenant connection state transitions
//   - Operation dispatch outcomes and latencies
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // mirror unavailable; continue without it
//	}
//	defer client.Close()
//
//	client.WriteTelemetry("t100", "dev-42", map[string]any{"temp": 21.5})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are surfaced via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
