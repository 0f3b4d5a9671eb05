// Gray Logic Access - Pairing, Credential and Notification Service
//
// This is the main entry point for the Gray Logic Access service, the
// auth edge of a Gray Logic installation:
//   - PIN-based device pairing for wall panels and tablets
//   - Long-lived client credentials with area-scoped authorization
//   - Admin users with short-lived access / rotating refresh tokens
//   - Targeted realtime notification fan-out over WebSocket
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-access/migrations"

	"github.com/nerrad567/gray-logic-access/internal/api"
	"github.com/nerrad567/gray-logic-access/internal/area"
	"github.com/nerrad567/gray-logic-access/internal/audit"
	"github.com/nerrad567/gray-logic-access/internal/auth"
	"github.com/nerrad567/gray-logic-access/internal/client"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-access/internal/notify"
	"github.com/nerrad567/gray-logic-access/internal/pairing"
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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Access",
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
	db, err := database.Open(ctx, database.Config{
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

	// Seed the initial admin account on a fresh database. The generated
	// password is logged once and never stored in plaintext.
	userRepo := auth.NewUserRepository(db.DB)
	refreshRepo := auth.NewRefreshTokenRepository(db.DB)
	seedPassword, err := auth.SeedAdmin(ctx, userRepo, log.Logger)
	if err != nil {
		return fmt.Errorf("seeding admin user: %w", err)
	}
	if seedPassword != "" {
		log.Warn("initial admin account created; change this password immediately",
			"username", "admin",
			"password", seedPassword,
		)
	}

	// Client store and credential pipeline
	clientStore := client.NewSQLiteStore(db.DB)
	tokens, err := client.NewTokenService(client.TokenServiceOptions{
		Store:         clientStore,
		Secret:        cfg.Security.JWT.Secret,
		TTL:           cfg.Credentials.GetTTL(),
		SweepInterval: cfg.Credentials.GetSweepInterval(),
		Logger:        log.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	gate, err := auth.NewGate(cfg.Security.JWT.Secret, tokens, log.Logger)
	if err != nil {
		return fmt.Errorf("creating auth gate: %w", err)
	}

	// Realtime notification registry
	registry := notify.NewRegistry(notify.Options{
		Source:     clientStore,
		CloseGrace: time.Duration(cfg.WebSocket.CloseGraceMS) * time.Millisecond,
		Logger:     log.Logger,
	})

	// Pairing state machine
	pairingMgr, err := pairing.NewManager(pairing.ManagerOptions{
		Repo:             pairing.NewSQLiteRepository(db.DB),
		Clients:          clientStore,
		Tokens:           tokens,
		Notifier:         registry,
		SessionTTL:       cfg.Pairing.GetSessionTTL(),
		CompletionWindow: cfg.Pairing.GetCompletionWindow(),
		SweepInterval:    cfg.Pairing.GetSweepInterval(),
		Logger:           log.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating pairing manager: %w", err)
	}

	// Connect to MQTT broker (optional - the service is fully functional
	// without it, minus the area mirror and presence publishing)
	var mqttClient *mqtt.Client
	var areaMirror *area.Mirror
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		// Mirror area definitions published by the core controller so
		// admin clients can browse assignable areas.
		areaMirror, err = area.NewMirror(area.MirrorOptions{
			Notifier: registry,
			Logger:   log.Logger,
		})
		if err != nil {
			return fmt.Errorf("creating area mirror: %w", err)
		}
		if startErr := areaMirror.Start(ctx, mqttClient); startErr != nil {
			return fmt.Errorf("starting area mirror: %w", startErr)
		}
		log.Info("area mirror subscribed")
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
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

	// Background sweeps: expired pairing sessions and expired credentials
	go pairingMgr.Run(ctx)
	go tokens.Run(ctx)

	// HTTP API and WebSocket server
	apiServer, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		Logger:        log,
		DB:            db.DB,
		Gate:          gate,
		Users:         userRepo,
		RefreshTokens: refreshRepo,
		Pairing:       pairingMgr,
		Clients:       clientStore,
		Tokens:        tokens,
		Registry:      registry,
		Areas:         areaMirror,
		AuditRepo:     audit.NewSQLiteRepository(db.DB),
		MQTT:          mqttClient,
		Influx:        influxClient,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"tls", cfg.API.TLS.Enabled,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server (drains in-flight requests and the audit channel)
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Gray Logic Access stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GLACCESS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GLACCESS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
