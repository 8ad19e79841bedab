// Portao is the gate-controller bridge.
//
// It relays commands from the web panel to the gate controller over HTTP
// and pushes the status the controller reports to every connected browser.
// SQLite history, an MQTT mirror and InfluxDB metrics are optional and
// enabled in configs/config.yaml.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/portaoweb/portao-core/internal/api"
	"github.com/portaoweb/portao-core/internal/gate"
	"github.com/portaoweb/portao-core/internal/infrastructure/config"
	"github.com/portaoweb/portao-core/internal/infrastructure/database"
	"github.com/portaoweb/portao-core/internal/infrastructure/influxdb"
	"github.com/portaoweb/portao-core/internal/infrastructure/logging"
	"github.com/portaoweb/portao-core/internal/infrastructure/mqtt"
	"github.com/portaoweb/portao-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is read when PORTAO_CONFIG is unset and the file exists.
	defaultConfigPath = "configs/config.yaml"

	// historyPruneInterval is how often old status history rows are deleted.
	historyPruneInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the bridge together and blocks until ctx is cancelled or the
// HTTP server fails.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting portao",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath == "" {
		log.Info("no configuration file, using defaults")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	relay := gate.NewRelay(gate.RelayConfig{
		Address: cfg.Device.Address,
		Scheme:  cfg.Device.Scheme,
		Timeout: cfg.Device.Timeout,
	}, log)
	broadcaster := gate.NewBroadcaster(log)
	log.Info("gate relay configured",
		"device", cfg.Device.Address,
		"timeout", cfg.Device.Timeout,
	)

	// Status history (optional)
	var db *database.DB
	var history *gate.SQLiteHistoryRepository
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		history = gate.NewSQLiteHistoryRepository(db.DB)
		broadcaster.AddSink("history", gate.HistorySink{Repo: history})
	} else {
		log.Info("status history disabled")
	}

	// MQTT mirror (optional)
	var mqttClient *mqtt.Client
	var mirror *mqtt.StatusMirror
	if cfg.MQTT.Enabled {
		mqttClient = connectMQTT(cfg.MQTT, log)
	} else {
		log.Info("MQTT disabled")
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mirror = mqtt.NewStatusMirror(mqttClient, mqttClient.Topics(), log)
		broadcaster.AddSink("mqtt", mirror)
	}

	// InfluxDB metrics (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient = connectInfluxDB(cfg.InfluxDB, log)
	} else {
		log.Info("InfluxDB disabled")
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		relay.SetObserver(influxClient)
		broadcaster.AddSink("influxdb", influxClient)
	}

	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Relay:       relay,
		Broadcaster: broadcaster,
		MQTT:        mqttClient,
		DB:          db,
		PanelDir:    cfg.Panel.Dir,
		Version:     version,
	}
	if history != nil {
		deps.History = history
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.SubscribeReports(ctx, broadcaster); err != nil {
			log.Warn("MQTT status reports unavailable", "error", err)
		} else {
			log.Info("listening for MQTT status reports", "topic", mqttClient.Topics().StatusReport())
		}
	}

	if err := healthCheck(ctx, server, db, mqttClient, influxClient, log); err != nil {
		server.Close() //nolint:errcheck // start-up already failed
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Serve)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, cleaning up")
		return server.Close()
	})
	if mirror != nil {
		g.Go(func() error {
			return mirror.Run(gctx)
		})
	}
	if history != nil && cfg.Database.HistoryRetention > 0 {
		g.Go(func() error {
			return pruneHistory(gctx, history, cfg.Database.HistoryRetention, historyPruneInterval, log)
		})
	}

	log.Info("initialisation complete",
		"address", server.Addr(),
		"auth", cfg.AuthEnabled(),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("portao stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// PORTAO_CONFIG wins; otherwise the default path is used if it exists, and
// "" (built-in defaults) if it does not.
func getConfigPath() string {
	if path := os.Getenv("PORTAO_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// healthCheck verifies the API server and the database. The optional
// integrations only log a warning: the bridge works without them.
func healthCheck(ctx context.Context, server *api.Server, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) error {
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			log.Warn("MQTT health check failed", "error", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			log.Warn("InfluxDB health check failed", "error", err)
		}
	}

	return nil
}

// openDatabase opens SQLite and applies the embedded migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	log.Info("database ready", "path", cfg.Path)
	return db, nil
}

// connectMQTT returns nil when the broker cannot be reached; the bridge
// keeps running on HTTP alone.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) *mqtt.Client {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		log.Warn("MQTT unavailable, continuing without it",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"error", err,
		)
		return nil
	}

	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"topic_prefix", client.Topics().Prefix(),
	)
	return client
}

// connectInfluxDB returns nil when the server cannot be reached.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(cfg)
	if err != nil {
		log.Warn("InfluxDB unavailable, continuing without it", "url", cfg.URL, "error", err)
		return nil
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})

	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}

// pruneHistory deletes history rows older than retention, once at start
// and then every interval, until ctx is cancelled.
func pruneHistory(ctx context.Context, repo gate.HistoryRepository, retention, interval time.Duration, log *logging.Logger) error {
	prune := func() {
		removed, err := repo.PruneHistory(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("pruning status history failed", "error", err)
			}
			return
		}
		if removed > 0 {
			log.Info("status history pruned", "removed", removed, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prune()
		}
	}
}
