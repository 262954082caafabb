// acs-core - Makerspace Access Control Core
//
// This is the main entry point for the access-control core service. It
// manages a fleet of equipment-gating card readers:
//   - Pairing and per-cycle key derivation
//   - Reader state commands and liveness tracking
//   - Telemetry ingest with InfluxDB recording
//   - Operator REST API with live WebSocket updates
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/openfab-labs/acs-core/migrations"

	"github.com/openfab-labs/acs-core/internal/api"
	"github.com/openfab-labs/acs-core/internal/audit"
	"github.com/openfab-labs/acs-core/internal/control"
	"github.com/openfab-labs/acs-core/internal/infrastructure/config"
	"github.com/openfab-labs/acs-core/internal/infrastructure/database"
	"github.com/openfab-labs/acs-core/internal/infrastructure/influxdb"
	"github.com/openfab-labs/acs-core/internal/infrastructure/logging"
	"github.com/openfab-labs/acs-core/internal/keys"
	"github.com/openfab-labs/acs-core/internal/liveness"
	"github.com/openfab-labs/acs-core/internal/pairing"
	"github.com/openfab-labs/acs-core/internal/reader"
	"github.com/openfab-labs/acs-core/internal/settings"
	"github.com/openfab-labs/acs-core/internal/telemetry"
	"github.com/openfab-labs/acs-core/internal/transport"
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
func run(ctx context.Context) error { //nolint:gocognit // linear wiring sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting acs-core",
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

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	readerRepo := reader.NewSQLiteRepository(db.DB)
	settingsRepo := settings.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Key deriver for pairing certificates
	deriver, err := keys.NewDeriver(cfg.Pairing.SharedSecret)
	if err != nil {
		return fmt.Errorf("initialising key deriver: %w", err)
	}

	// Connect to MQTT broker (device transport)
	mqttClient, err := transport.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional telemetry sink)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Domain services
	monitor := liveness.New(cfg.GetOfflineAfter(), cfg.GetStaleAfter())
	pairSvc := pairing.NewService(readerRepo, deriver, settingsRepo, auditRepo, log, cfg.Pairing.ServiceEndpoint)
	controller := control.NewController(readerRepo, monitor, mqttClient, auditRepo, log)

	// WebSocket hub, created here so the telemetry ingestor can broadcast
	// through it. The API server adopts it instead of creating its own.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Telemetry ingest: device reports -> store, metrics, live updates.
	// A nil interface check inside the ingestor skips missing sinks, so
	// only assign the Influx client when it actually exists.
	var metrics telemetry.MetricsRecorder
	if influxClient != nil {
		metrics = influxClient
	}
	ingestor := telemetry.NewIngestor(readerRepo, metrics, hub, log)

	// No rules engine ships with the core; until one is attached every
	// swipe is answered with a denial so readers don't hang locked-open.
	ingestor.SetAccessControl(nil, mqttClient)

	if subErr := mqttClient.SubscribeReports(ingestor.HandleReport); subErr != nil {
		return fmt.Errorf("subscribing to reader reports: %w", subErr)
	}
	log.Info("subscribed to reader reports")

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Readers:     readerRepo,
		Pairing:     pairSvc,
		Control:     controller,
		Monitor:     monitor,
		Settings:    settingsRepo,
		Audit:       auditRepo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("acs-core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ACS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ACS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *transport.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
