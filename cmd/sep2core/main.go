// SEP2 Core - IEEE 2030.5 subscription notification service.
//
// This is the main entry point. It opens the store, builds the notification
// pipeline (change trigger, check task, transmit task) on the configured task
// queue and serves the HTTP API that receives change reports.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/sep2-core/migrations"

	"github.com/nerrad567/sep2-core/internal/api"
	"github.com/nerrad567/sep2-core/internal/audit"
	"github.com/nerrad567/sep2-core/internal/infrastructure/config"
	"github.com/nerrad567/sep2-core/internal/infrastructure/database"
	"github.com/nerrad567/sep2-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/sep2-core/internal/infrastructure/logging"
	"github.com/nerrad567/sep2-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/sep2-core/internal/notification"
	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/sep2"
	"github.com/nerrad567/sep2-core/internal/subscription"
	"github.com/nerrad567/sep2-core/internal/taskqueue"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting SEP2 Core",
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
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	subs := subscription.NewSQLiteRepository(db.DB)
	deliveries := audit.NewSQLiteRepository(db.DB)
	notifyLog := log.Component("notification")
	recorders := notification.Recorders{audit.NewRecorder(deliveries, notifyLog)}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		recorders = append(recorders, notification.NewMetricsRecorder(influxClient))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// A nil broker leaves the trigger disabled.
	var broker taskqueue.Broker
	if cfg.Notification.Enabled {
		// Build the queue, register handlers, then start consuming, so no
		// task is received before its handler exists.
		dispatcher := taskqueue.NewDispatcher()
		tb, brokerErr := newTaskBroker(cfg, dispatcher, log)
		if brokerErr != nil {
			return brokerErr
		}
		defer tb.close()
		broker = tb.Broker

		checker := notification.NewChecker(
			resource.NewSQLiteRepository(db.DB),
			subs,
			sep2.NewMapper(),
			broker,
			notification.CheckerConfig{
				MaxPageSize:       cfg.Notification.MaxPageSize,
				LookupConcurrency: cfg.Notification.LookupConcurrency,
			},
			notifyLog,
		)
		transmitter := notification.NewTransmitter(&http.Client{}, broker, notification.TransmitterConfig{
			Retry:    notification.RetryPolicy{Delays: cfg.Notification.RetryDelays},
			Timeout:  cfg.Notification.TransmitTimeout,
			Recorder: recorders,
		}, notifyLog)
		notification.Register(dispatcher, checker, transmitter)

		if startErr := tb.start(ctx); startErr != nil {
			return startErr
		}
		log.Info("notifications enabled",
			"queue", cfg.Notification.Queue,
			"tasks", dispatcher.Names(),
		)
	} else {
		log.Info("notifications disabled")
	}

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		Logger:        log.Component("api"),
		Trigger:       notification.NewTrigger(broker, notifyLog),
		Subscriptions: subs,
		Deliveries:    deliveries,
		Database:      db,
		Version:       version,
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

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse: API server, broker, InfluxDB, database.
	return nil
}

// taskBroker is a task queue that has been built but not started.
type taskBroker struct {
	taskqueue.Broker
	start func(ctx context.Context) error
	close func()
}

// newTaskBroker builds the configured task broker without starting it.
//
// Received tasks are passed to dispatcher, so every handler should be
// registered on it before start is called. The MQTT connection is opened
// here so Enqueue works as soon as the broker exists.
//
// Parameters:
//   - cfg: Application configuration
//   - dispatcher: Routes received tasks to their handlers
//   - log: Parent logger; the broker logs as component "taskqueue"
//
// Returns:
//   - *taskBroker: Broker with start and close funcs
//   - error: If the MQTT connection fails
func newTaskBroker(cfg *config.Config, dispatcher *taskqueue.Dispatcher, log *logging.Logger) (*taskBroker, error) {
	log = log.Component("taskqueue")
	switch cfg.Notification.Queue {
	case config.QueueMQTT:
		topics := mqtt.Topics{
			Prefix: cfg.Notification.TopicPrefix,
			Group:  cfg.Notification.ConsumerGroup,
		}
		client, err := mqtt.Connect(cfg.MQTT, topics)
		if err != nil {
			return nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log)
		client.SetOnConnect(func() { log.Info("MQTT reconnected") })
		client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		broker := taskqueue.NewMQTTBroker(client, topics, taskqueue.MQTTOptions{
			QoS:     byte(cfg.MQTT.QoS), //nolint:gosec // Validated to 0-2 by config
			Workers: cfg.Notification.Workers,
			Logger:  log,
		})
		closeAll := func() {
			log.Info("stopping MQTT task queue")
			if err := broker.Close(); err != nil {
				log.Error("error closing task queue", "error", err)
			}
			if err := client.Close(); err != nil {
				log.Error("error closing MQTT", "error", err)
			}
		}
		return &taskBroker{
			Broker: broker,
			start: func(ctx context.Context) error {
				if err := broker.Start(ctx, dispatcher.Dispatch); err != nil {
					return fmt.Errorf("starting MQTT task queue: %w", err)
				}
				log.Info("MQTT task queue started",
					"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
					"topics", topics.SharedTasks(),
				)
				return nil
			},
			close: closeAll,
		}, nil

	default:
		broker := taskqueue.NewMemoryBroker(dispatcher.Dispatch, taskqueue.MemoryOptions{
			Workers: cfg.Notification.Workers,
			Logger:  log,
		})
		return &taskBroker{
			Broker: broker,
			start: func(ctx context.Context) error {
				broker.Start(ctx)
				log.Info("memory task queue started", "workers", cfg.Notification.Workers)
				return nil
			},
			close: func() {
				log.Info("stopping memory task queue")
				if err := broker.Close(); err != nil {
					log.Error("error closing task queue", "error", err)
				}
			},
		}, nil
	}
}

// getConfigPath returns the configuration file path.
// Uses SEP2_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SEP2_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
