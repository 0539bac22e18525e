// Sunseeker Core - robotic mower state sync engine
//
// This is the main entry point for the Sunseeker Core daemon. It logs
// into the vendor cloud, seeds device state over HTTP, subscribes to
// the vendor MQTT broker for push updates, and serves the merged state
// and rendered map artifacts over a local HTTP/WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/sunseeker-core/migrations"

	"github.com/nerrad567/sunseeker-core/internal/api"
	"github.com/nerrad567/sunseeker-core/internal/cloud"
	"github.com/nerrad567/sunseeker-core/internal/device"
	"github.com/nerrad567/sunseeker-core/internal/engine"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/config"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/database"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/logging"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/tsdb"
	"github.com/nerrad567/sunseeker-core/internal/mapimage"
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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Sunseeker Core",
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

	history := device.NewSQLiteHistoryRepository(db.DB)

	// Connect to InfluxDB (optional)
	var influxClient *tsdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = tsdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Create the cloud client and sync layer
	cloudClient, err := cloud.New(cfg.Cloud)
	if err != nil {
		return fmt.Errorf("creating cloud client: %w", err)
	}
	defer cloudClient.Close()
	cloudClient.SetLogger(log)
	cloudClient.SetAuthRefreshDelay(time.Duration(cfg.Sync.AuthRefreshDelay) * time.Second)

	syn := cloud.NewSync(cloudClient, cfg.Sync, cfg.Map)
	syn.SetLogger(log)

	// Create the merge engine and bind it to the sync layer
	eng := engine.New(device.NewStore(), mapimage.NewRenderer(cfg.Map.PixelsPerUnit), syn, cfg.Sync)
	defer eng.Close()
	eng.SetLogger(log)
	eng.SetHistory(history)
	if influxClient != nil {
		eng.SetTelemetry(influxClient)
	}
	syn.Bind(eng)

	// Log in and seed device state over HTTP
	if err := syn.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrapping devices: %w", err)
	}
	log.Info("devices seeded", "devices", len(eng.Snapshots()))

	// Connect to the vendor MQTT broker for push updates
	creds, err := syn.MQTTCredentials(ctx)
	if err != nil {
		return fmt.Errorf("resolving MQTT credentials: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, creds)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected", "host", creds.Host, "port", creds.Port)

	topic := syn.PushTopic()
	if err := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), eng.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to push topic: %w", err)
	}
	log.Info("subscribed to push topic", "topic", topic)

	// Start the HTTP/WebSocket API server
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Engine:  eng,
		History: history,
		Version: version,
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
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Start the periodic device poll and history pruning
	go pollLoop(ctx, cfg.Sync, eng, syn, log)
	go pruneLoop(ctx, history, log)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT
	// 3. Engine / cloud client
	// 4. InfluxDB (if enabled)
	// 5. Database

	log.Info("Sunseeker Core stopped")
	return nil
}

// pollLoop re-polls every device on the configured cadence. Push
// messages carry most state changes; the poll picks up anything the
// broker dropped.
func pollLoop(ctx context.Context, cfg config.SyncConfig, eng *engine.Engine, syn *cloud.Sync, log *logging.Logger) {
	interval := time.Duration(cfg.PollInterval) * time.Second
	if interval <= 0 {
		log.Info("periodic device poll disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, d := range eng.Snapshots() {
				syn.RequestDeviceRefresh(d.Serial)
			}
		}
	}
}

// History rows older than historyRetention are pruned once per
// pruneInterval.
const (
	historyRetention = 30 * 24 * time.Hour
	pruneInterval    = 24 * time.Hour
)

// pruneLoop deletes aged state transitions on a daily cadence.
func pruneLoop(ctx context.Context, history *device.SQLiteHistoryRepository, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := history.Prune(ctx, historyRetention)
			if err != nil {
				log.Warn("history prune failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("history pruned", "rows", n)
			}
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses SUNSEEKER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SUNSEEKER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - apiServer: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *tsdb.Client, apiServer *api.Server) error {
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

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
