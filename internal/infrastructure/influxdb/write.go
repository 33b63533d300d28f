package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetry mirrors one inbound telemetry message's numeric fields.
//
// Only numeric values from the structured payload are written; the
// authoritative copy always goes to the backend, so partial mirroring is
// acceptable. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - tenantID: The tenant the message arrived for
//   - deviceID: Device identifier as reported by the broker
//   - fields: Structured payload values; non-numeric entries are skipped
func (c *Client) WriteTelemetry(tenantID, deviceID string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}

	numeric := make(map[string]interface{})
	for k, v := range fields {
		switch val := v.(type) {
		case float64:
			numeric[k] = val
		case int:
			numeric[k] = float64(val)
		case int64:
			numeric[k] = float64(val)
		}
	}
	if len(numeric) == 0 {
		return
	}

	point := write.NewPoint(
		"telemetry",
		map[string]string{
			"tenant_id": tenantID,
			"device_id": deviceID,
		},
		numeric,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionState records a tenant connection state transition.
//
// Used to chart connection stability per tenant over time.
//
// Parameters:
//   - tenantID: The tenant whose connection changed
//   - state: The new state name (e.g. "connected", "retrying")
func (c *Client) WriteConnectionState(tenantID, state string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection_state",
		map[string]string{
			"tenant_id": tenantID,
		},
		map[string]interface{}{
			"state": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteOperationResult records the outcome of one dispatched operation.
//
// Parameters:
//   - tenantID: The tenant the operation belonged to
//   - deviceID: Target device identifier
//   - command: The command name that was delivered
//   - success: Whether the operation completed successfully
//   - duration: Time from pickup to terminal status
func (c *Client) WriteOperationResult(tenantID, deviceID, command string, success bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"operations",
		map[string]string{
			"tenant_id": tenantID,
			"device_id": deviceID,
			"command":   command,
		},
		map[string]interface{}{
			"success":     success,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
