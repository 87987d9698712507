package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/hc2-sync/internal/api"
	"github.com/nerrad567/hc2-sync/internal/history"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/config"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/database"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/influxdb"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/logging"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/hc2-sync/internal/relay"
	"github.com/nerrad567/hc2-sync/migrations"
)

func (a *app) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		GroupID: "daemon",
		Short:   "Run the sync daemon with history, relays and the HTTP API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(false)
			if err != nil {
				return err
			}
			return a.runDaemon(cmd.Context(), cfg)
		},
	}
}

// runDaemon starts every component and blocks until ctx is cancelled.
// Components are torn down in reverse start order.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - cfg: Validated configuration
//
// Returns:
//   - error: nil on clean shutdown, or the first startup failure
func (a *app) runDaemon(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting hc2sync",
		"version", version,
		"commit", commit,
		"build_date", date,
		"controller", fmt.Sprintf("%s:%d", cfg.Controller.Host, cfg.Controller.Port),
	)

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

	repo := history.NewSQLiteRepository(db.DB)

	client := a.newClient(cfg, log.With("component", "hc2"))
	defer func() {
		log.Info("disconnecting from controller")
		client.Disconnect()
		client.Close()
	}()

	// The engine keeps retrying in the background; a cold controller only
	// delays the first directory.
	if _, err := client.Devices(ctx); err != nil {
		log.Warn("initial directory load failed", "error", err)
	} else {
		log.Info("directory loaded", "devices", client.Directory().DeviceCount())
	}

	mqttClient, err := connectMQTT(cfg, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient, err := connectInfluxDB(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
	hub.SetStatusSource(client.Status())
	go hub.Run(ctx)

	sinks := relay.Sinks{History: repo, Hub: hub}
	if mqttClient != nil {
		sinks.MQTT = mqttClient
	}
	if influxClient != nil {
		sinks.Metrics = influxClient
	}

	rl := relay.New(client, sinks, relay.Config{Retention: cfg.HistoryRetention()})
	rl.SetLogger(log.With("component", "relay"))
	if err := rl.Start(ctx); err != nil {
		return fmt.Errorf("starting relay: %w", err)
	}
	if mqttClient != nil {
		log.Info("MQTT subscriptions active", "topics", mqttClient.Subscriptions())
	}
	defer func() {
		log.Info("stopping relay", "dropped", rl.Dropped())
		rl.Stop()
	}()

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.With("component", "api"),
			Client:  client,
			History: repo,
			DB:      db,
			Hub:     hub,
			Version: version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		srv, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// connectMQTT connects when MQTT is enabled and returns nil otherwise.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil, nil
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic_prefix", client.Topics().Prefix,
	)
	return client, nil
}

// connectInfluxDB connects when InfluxDB is enabled and returns nil
// otherwise.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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
