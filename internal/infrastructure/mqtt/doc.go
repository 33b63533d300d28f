// Package mqtt provides the broker transport for the upstream connection.
//
// It wraps the Eclipse Paho MQTT client with validation, panic recovery in
// message handlers, and explicit connection-loss notification. One Client
// represents one tenant's broker connection; the connection manager dials
// a fresh Client on every (re)connect attempt with freshly resolved
// credentials.
//
// Auto-reconnect is intentionally disabled at this layer. The bridge's
// retry discipline (fixed interval, at most one pending retry timer per
// tenant) is enforced by the connection manager, which would be undermined
// by a second, library-internal reconnect loop.
//
// # Usage
//
//	client, err := mqtt.Connect(mqtt.Config{Host: host, Port: port, ClientID: id})
//	if err != nil {
//	    return err
//	}
//	client.SetOnDisconnect(func(err error) { manager.RequestRetry(tenant, err) })
//	err = client.Subscribe("telemetry/t100/#", 1, handleTelemetry)
package mqtt
