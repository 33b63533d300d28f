package hono

import "errors"

// Sentinel errors for the upstream application client.
var (
	// ErrConnectFailed indicates the broker connection attempt failed.
	ErrConnectFailed = errors.New("hono: connection failed")

	// ErrConsumerFailed indicates a telemetry or event consumer could not
	// be established.
	ErrConsumerFailed = errors.New("hono: consumer creation failed")

	// ErrCommandFailed indicates a command could not be delivered to the
	// broker.
	ErrCommandFailed = errors.New("hono: command send failed")

	// ErrCommandRejected indicates the device answered a request/response
	// command with a non-success status.
	ErrCommandRejected = errors.New("hono: command rejected by device")

	// ErrCommandTimeout indicates no response arrived within the command
	// timeout.
	ErrCommandTimeout = errors.New("hono: command response timeout")

	// ErrClientClosed indicates the client was closed while commands were
	// still in flight.
	ErrClientClosed = errors.New("hono: client closed")
)
