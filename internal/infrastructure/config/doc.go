// Package config loads and validates Hono Bridge Core configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by HONOBRIDGE_* environment variables. The hono
// section provides the per-deployment fallbacks for upstream connection
// parameters; per-tenant values maintained in tenant options take
// precedence at resolution time.
package config
