package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/honobridge/core/internal/infrastructure/config"
	"github.com/honobridge/core/internal/tenant"
)

// OptionCategory is the tenant option category holding upstream
// connection parameters.
const OptionCategory = "hono"

// Recognised option keys within the category.
const (
	optionKeyTenantID = "tenantid"
	optionKeyUsername = "username"
	optionKeyPassword = "credentials.password"
	optionKeyHost     = "host"
	optionKeyPort     = "port"
)

// IncompleteError reports which credential fields are still missing.
// Non-fatal: resolution is retried until the configuration is completed
// by the operator.
type IncompleteError struct {
	TenantID string
	Missing  []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("bridge: credentials for tenant %s incomplete, missing %s",
		e.TenantID, strings.Join(e.Missing, ", "))
}

// Resolver obtains upstream connection credentials for a tenant.
//
// Values come from the tenant's option store, with per-deployment
// defaults filling any absent key. The port is never a blocking field:
// an absent or unparsable value falls back to the default.
type Resolver struct {
	backend  Backend
	executor *tenant.Executor
	defaults config.HonoConfig
	logger   Logger
}

// NewResolver creates a credential resolver.
func NewResolver(backend Backend, executor *tenant.Executor, defaults config.HonoConfig, logger Logger) *Resolver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Resolver{backend: backend, executor: executor, defaults: defaults, logger: logger}
}

// Resolve reads the tenant's option store and assembles credentials.
//
// Returns *IncompleteError when any of upstream tenant id, host,
// username or password is still unset after applying defaults; the set
// is re-read on every call so rotation and late configuration take
// effect without a restart.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (Credentials, error) {
	var creds Credentials

	err := r.executor.Run(ctx, tenantID, func(ctx context.Context) error {
		options, err := r.backend.TenantOptions(ctx, OptionCategory)
		if err != nil {
			return fmt.Errorf("reading tenant options: %w", err)
		}

		creds = Credentials{
			TenantID: pick(options, optionKeyTenantID, r.defaults.TenantID),
			Host:     pick(options, optionKeyHost, r.defaults.Host),
			Username: pick(options, optionKeyUsername, r.defaults.Username),
			Password: pick(options, optionKeyPassword, r.defaults.Password),
			Port:     pickPort(options, r.defaults.Port),
		}

		var missing []string
		if creds.TenantID == "" {
			missing = append(missing, optionKeyTenantID)
		}
		if creds.Host == "" {
			missing = append(missing, optionKeyHost)
		}
		if creds.Username == "" {
			missing = append(missing, optionKeyUsername)
		}
		if creds.Password == "" {
			missing = append(missing, optionKeyPassword)
		}
		if len(missing) > 0 {
			return &IncompleteError{TenantID: tenantID, Missing: missing}
		}
		return nil
	})
	if err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Await polls Resolve until it yields a complete credential set.
//
// Incomplete configurations are logged per missing field and retried at
// ConfigRetryInterval with no upper bound; transient backend failures
// retry on the same cadence. The wait is a cancellable timer, not a
// sleep, so shutdown is immediate.
func (r *Resolver) Await(ctx context.Context, tenantID string, clock Clock) (Credentials, error) {
	for {
		creds, err := r.Resolve(ctx, tenantID)
		if err == nil {
			return creds, nil
		}

		var incomplete *IncompleteError
		if errors.As(err, &incomplete) {
			for _, field := range incomplete.Missing {
				r.logger.Warn("tenant credential field not configured",
					"tenant_id", tenantID, "field", field, "category", OptionCategory)
			}
		} else {
			r.logger.Error("credential resolution failed",
				"tenant_id", tenantID, "error", err)
		}

		select {
		case <-ctx.Done():
			return Credentials{}, fmt.Errorf("%w: %w", ErrShuttingDown, ctx.Err())
		case <-clock.After(ConfigRetryInterval):
		}
	}
}

// pick returns the option value for key, or fallback when absent or
// empty.
func pick(options map[string]string, key, fallback string) string {
	if v, ok := options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// pickPort parses the port option, falling back first to the
// per-deployment default and then to the protocol default.
func pickPort(options map[string]string, fallback int) int {
	if v, ok := options[optionKeyPort]; ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			return port
		}
	}
	if fallback > 0 {
		return fallback
	}
	return config.DefaultHonoPort
}
