package hono

import (
	"encoding/json"
	"strings"
)

// Message kinds as they arrive from the broker.
const (
	KindTelemetry = "telemetry"
	KindEvent     = "event"
)

// Message is one inbound telemetry or event message from a device.
//
// DeviceID is extracted from the topic the message arrived on. Payload is
// the raw bytes as published by the device; Structured lazily parses it
// as JSON.
type Message struct {
	Kind        string
	TenantID    string
	DeviceID    string
	ContentType string
	Payload     []byte
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Payload)
}

// Structured parses the payload as a JSON object.
//
// Returns:
//   - map[string]any: The decoded object
//   - bool: false if the payload is not a JSON object
func (m Message) Structured() (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal(m.Payload, &out); err != nil {
		return nil, false
	}
	return out, true
}

// parseTopic splits an inbound topic of the form
// <kind>/<tenant>/<device> into its parts. The device segment may itself
// contain slashes for gateway-mapped devices; everything after the tenant
// is treated as the device id.
func parseTopic(topic string) (kind, tenant, device string, ok bool) {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// sniffContentType guesses the content type from the payload when the
// device did not declare one. JSON objects and arrays are recognised;
// everything else is treated as opaque text.
func sniffContentType(payload []byte) string {
	trimmed := strings.TrimLeft(string(payload), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "application/json"
	}
	return "text/plain"
}
