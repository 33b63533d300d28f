// Hono Bridge Core - telemetry and command bridge
//
// This is the main entry point for the bridge. It connects a multi-tenant
// upstream telemetry broker to a downstream device-management backend:
// inbound telemetry and events become backend events under auto-registered
// devices, and backend operations flow back upstream as device commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/honobridge/core/migrations"

	"github.com/honobridge/core/internal/api"
	"github.com/honobridge/core/internal/audit"
	"github.com/honobridge/core/internal/bridge"
	"github.com/honobridge/core/internal/c8y"
	"github.com/honobridge/core/internal/infrastructure/config"
	"github.com/honobridge/core/internal/infrastructure/database"
	"github.com/honobridge/core/internal/infrastructure/influxdb"
	"github.com/honobridge/core/internal/infrastructure/logging"
	"github.com/honobridge/core/internal/tenant"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,cyclop // linear startup sequence: each step wires one component
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hono Bridge Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the audit database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Connect to InfluxDB (optional telemetry mirror)
	var mirror bridge.Mirror
	if cfg.InfluxDB.Enabled {
		influxClient, connectErr := influxdb.Connect(cfg.InfluxDB)
		if connectErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connectErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		mirror = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Downstream backend client with per-tenant credentials
	c8yClient, err := c8y.New(cfg.Cumulocity.BaseURL, time.Duration(cfg.Cumulocity.Timeout)*time.Second)
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}
	for _, tc := range cfg.Cumulocity.Tenants {
		if regErr := c8yClient.RegisterTenant(c8y.Credentials{
			Tenant:   tc.TenantID,
			Username: tc.Username,
			Password: tc.Password,
		}); regErr != nil {
			return fmt.Errorf("registering tenant %s: %w", tc.TenantID, regErr)
		}
	}
	if len(c8yClient.Tenants()) == 0 {
		return fmt.Errorf("no tenants configured")
	}
	log.Info("backend client ready",
		"base_url", cfg.Cumulocity.BaseURL,
		"tenants", len(c8yClient.Tenants()),
	)

	// The executor scopes every backend call to a registered tenant.
	registered := make(map[string]bool)
	for _, id := range c8yClient.Tenants() {
		registered[id] = true
	}
	executor := tenant.NewExecutor(func(tenantID string) bool {
		return registered[tenantID]
	})

	// Bridge core wiring
	backend := bridge.NewBackend(c8yClient)
	agents := bridge.NewAgentRegistry(backend, cfg.Agent.Name, cfg.Agent.ExternalID)
	resolver := bridge.NewResolver(backend, executor, cfg.Hono, log)

	inbound, err := bridge.NewInbound(bridge.InboundDeps{
		Backend:  backend,
		Executor: executor,
		Agents:   agents,
		Logger:   log,
		Mirror:   mirror,
	})
	if err != nil {
		return fmt.Errorf("creating inbound pipeline: %w", err)
	}

	auditor := bridge.NewAuditor(auditRepo, log)
	manager, err := bridge.NewManager(bridge.ManagerDeps{
		Broker:   bridge.NewBroker(cfg.MQTT, log),
		Resolver: resolver,
		Inbound:  inbound,
		Logger:   log,
		Auditor:  auditor,
		Mirror:   mirror,
	})
	if err != nil {
		return fmt.Errorf("creating connection manager: %w", err)
	}

	dispatcher, err := bridge.NewDispatcher(bridge.DispatcherDeps{
		Backend:  backend,
		Executor: executor,
		Agents:   agents,
		Conns:    manager,
		Logger:   log,
		Auditor:  auditor,
		Mirror:   mirror,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	bootstrapper, err := bridge.NewBootstrapper(bridge.BootstrapperDeps{
		Resolver:   resolver,
		Executor:   executor,
		Agents:     agents,
		Manager:    manager,
		Dispatcher: dispatcher,
		Listeners:  operationListenerFactory(c8yClient, cfg.Agent.Name),
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating bootstrapper: %w", err)
	}
	defer func() {
		log.Info("detaching tenants")
		if closeErr := bootstrapper.Close(); closeErr != nil {
			log.Error("error detaching tenants", "error", closeErr)
		}
	}()

	// Attach every configured tenant. Attach blocks until the tenant's
	// broker configuration is complete, so each runs in its own goroutine.
	var attaching sync.WaitGroup
	for _, id := range c8yClient.Tenants() {
		attaching.Add(1)
		go func(tenantID string) {
			defer attaching.Done()
			attachErr := bootstrapper.AttachTenant(ctx, tenantID)
			switch {
			case attachErr == nil:
			case errors.Is(attachErr, bridge.ErrShuttingDown):
				log.Info("tenant attach cancelled by shutdown", "tenant_id", tenantID)
			default:
				log.Error("tenant attach failed", "tenant_id", tenantID, "error", attachErr)
			}
		}(id)
	}

	// Admin API
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Status:   manager,
		Audit:    auditRepo,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	attaching.Wait()

	log.Info("Hono Bridge Core stopped")
	return nil
}

// operationListenerFactory builds per-tenant notification listeners on
// the backend's real-time stream. The subscriber name is stable across
// restarts so the backend resumes the same subscription.
func operationListenerFactory(client *c8y.Client, agentName string) bridge.ListenerFactory {
	return func(tenantID string, handler func(op c8y.Operation)) (bridge.Listener, error) {
		return c8y.NewOperationListener(client, tenantID, agentName, handler)
	}
}

// getConfigPath returns the configuration file path.
// Uses HONOBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HONOBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
