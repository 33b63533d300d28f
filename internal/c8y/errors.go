package c8y

import "errors"

// Sentinel errors for backend API operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, c8y.ErrNotFound) {
//	    // Create the missing object
//	}
var (
	// ErrNoCredentials indicates no service credentials are registered for
	// the requested tenant.
	ErrNoCredentials = errors.New("c8y: no credentials for tenant")

	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("c8y: not found")

	// ErrRequestFailed indicates the backend rejected the request.
	ErrRequestFailed = errors.New("c8y: request failed")

	// ErrConflict indicates the object to create already exists.
	ErrConflict = errors.New("c8y: already exists")

	// ErrUnauthorized indicates the tenant credentials were rejected.
	ErrUnauthorized = errors.New("c8y: unauthorized")

	// ErrInvalidInput indicates a request was rejected before being sent.
	ErrInvalidInput = errors.New("c8y: invalid input")

	// ErrListenerClosed indicates the notification listener was stopped.
	ErrListenerClosed = errors.New("c8y: notification listener closed")
)
