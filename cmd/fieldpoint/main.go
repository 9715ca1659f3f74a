// FieldPoint Core - Device Polling and Publication Engine
//
// FieldPoint polls points on remote field devices over pluggable drivers,
// deduplicates shared connections, caches last-known values, and publishes
// fresh data over MQTT and WebSocket. An HTTP API carries on-demand point
// commands and override management.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldpoint/fieldpoint-core/internal/api"
	"github.com/fieldpoint/fieldpoint-core/internal/dispatch"
	"github.com/fieldpoint/fieldpoint-core/internal/drivers/sim"
	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/database"
	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/influxdb"
	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/logging"
	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/mqtt"
	"github.com/fieldpoint/fieldpoint-core/internal/override"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
	"github.com/fieldpoint/fieldpoint-core/internal/poll"
	"github.com/fieldpoint/fieldpoint-core/internal/publish"
	"github.com/fieldpoint/fieldpoint-core/internal/remote"
	"github.com/fieldpoint/fieldpoint-core/migrations"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting FieldPoint Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// Database and migrations back the override store.
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

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Device and point inventory.
	deviceConfigs, err := config.LoadDevices(cfg.DevicesDir)
	if err != nil {
		return fmt.Errorf("loading device configs: %w", err)
	}

	registry, err := point.NewRegistry(point.Defaults{
		PollingInterval:       cfg.DefaultPollingInterval(),
		StaleMultiplier:       cfg.Polling.StaleMultiplier,
		AllowDuplicateRemotes: cfg.Polling.AllowDuplicateRemotes,
		PublishAll:            cfg.Publish.All,
		AllPublishInterval:    cfg.DefaultAllPublishInterval(),
	}, deviceConfigs)
	if err != nil {
		return fmt.Errorf("building point registry: %w", err)
	}
	log.Info("point registry built",
		"devices", len(registry.Devices()),
		"points", registry.Len(),
	)

	// Drivers and remote grouping.
	simDriver := sim.New()
	simDriver.Seed(registry)

	drivers := map[string]remote.Driver{
		sim.DriverType: simDriver,
	}
	groups, err := remote.BuildGroups(registry, drivers, cfg.Polling.Breaker)
	if err != nil {
		return fmt.Errorf("grouping remotes: %w", err)
	}
	log.Info("remote groups built", "groups", groups.Len())

	cache := point.NewCache(registry.Points())

	// MQTT transport for outbound publications.
	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// InfluxDB poll history (optional).
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Override manager with persisted patterns.
	overrides := override.NewManager(override.NewSQLStore(db), registry)
	if err := overrides.Load(ctx); err != nil {
		return fmt.Errorf("loading overrides: %w", err)
	}
	if patterns := overrides.Patterns(); len(patterns) > 0 {
		log.Info("override patterns restored", "patterns", patterns)
	}

	// Poll pipeline: scheduler feeds publisher and recorder.
	scheduler := poll.New(poll.Config{
		TickInterval:  cfg.MinimumPollingInterval(),
		MaxConcurrent: cfg.Polling.MaxConcurrentPolls,
	}, groups, cache)
	scheduler.SetLogger(log.With("component", "poll"))

	publisher := publish.New(registry, cache)
	publisher.SetLogger(log.With("component", "publish"))
	publisher.AddSink(mqttClient)
	scheduler.OnCompletion(publisher.HandleCompletion)

	if influxClient != nil {
		recorder := poll.NewRecorder(registry, influxClient)
		scheduler.OnCompletion(recorder.HandleCompletion)
	}

	dispatcher := dispatch.New(registry, cache, groups, overrides)
	dispatcher.SetLogger(log.With("component", "dispatch"))

	// API server.
	health := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		health["influxdb"] = influxClient
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.API.WebSocket,
		Logger:     log.With("component", "api"),
		Registry:   registry,
		Cache:      cache,
		Groups:     groups,
		Dispatcher: dispatcher,
		Overrides:  overrides,
		Rounds:     publisher,
		Health:     health,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Publications also stream to WebSocket clients.
	publisher.AddSink(server.Hub())

	go scheduler.Run(ctx)
	go publisher.Run(ctx)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, polling started")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("FieldPoint Core stopped")
	return nil
}

// getConfigPath returns the config file path, honouring FIELDPOINT_CONFIG.
func getConfigPath() string {
	if path := os.Getenv("FIELDPOINT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections after startup.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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
