// Package auth provides JWT access token generation and validation for
// the admin API.
//
// Tokens are signed with HMAC-SHA256 using the shared secret from the
// security configuration. There is no user store: operators mint tokens
// out of band (deployment tooling, CI) and the API validates signature,
// expiry, and role claims only.
package auth
