// Fieldline Core - MQTT value resolution engine
//
// Fieldline combines live sensor readings, user setpoints, and optimizer
// schedules into a single actuator value per control group, published over
// MQTT only when it changes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/fieldline-io/fieldline-core/migrations"

	"github.com/fieldline-io/fieldline-core/internal/configstore"
	"github.com/fieldline-io/fieldline-core/internal/dispatch"
	"github.com/fieldline-io/fieldline-core/internal/infrastructure/config"
	"github.com/fieldline-io/fieldline-core/internal/infrastructure/database"
	"github.com/fieldline-io/fieldline-core/internal/infrastructure/logging"
	"github.com/fieldline-io/fieldline-core/internal/infrastructure/mqtt"
	"github.com/fieldline-io/fieldline-core/internal/resolver"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// snapshotTimeout bounds a single snapshot store write.
const snapshotTimeout = 10 * time.Second

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
	log.Info("starting Fieldline Core",
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

	// Connect to the MQTT broker.
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Create the controller and wire it to the broker. The adapter needs
	// the controller back-reference to route subscriptions into its inbox.
	bus := &busAdapter{client: mqttClient, qos: byte(cfg.MQTT.QoS)}
	controller := resolver.NewController(
		cfg.Controller.ConfigTopic,
		cfg.Controller.InboxSize,
		bus,
		log,
	)
	bus.controller = controller

	// Open the snapshot store (optional) and seed the controller from the
	// last known configuration so it resubscribes before the broker
	// re-delivers the config message.
	if cfg.Store.Enabled {
		db, openErr := database.Open(database.Config{
			Path:        cfg.Store.Path,
			WALMode:     cfg.Store.WALMode,
			BusyTimeout: cfg.Store.BusyTimeout,
		})
		if openErr != nil {
			return fmt.Errorf("opening snapshot store: %w", openErr)
		}
		defer func() {
			log.Info("closing snapshot store")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing snapshot store", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("migrating snapshot store: %w", migrateErr)
		}

		store := configstore.New(db)
		if seedErr := seedFromSnapshot(ctx, controller, store, log); seedErr != nil {
			return seedErr
		}
		controller.SetSnapshotter(&snapshotAdapter{store: store})
		log.Info("snapshot store ready", "path", cfg.Store.Path)
	}

	// Run the message loop under supervision so a poisoned message does
	// not take the whole process down.
	supervisor, err := dispatch.NewSupervisor(dispatch.SupervisorConfig{
		Name: "resolver-loop",
		New: func() *dispatch.RunOnce {
			task, taskErr := dispatch.NewRunOnce(dispatch.Config{
				Name:   "resolver-loop",
				Target: controller.Run,
			})
			if taskErr != nil {
				return nil
			}
			task.SetLogger(log)
			return task
		},
		RestartOnFailure:   true,
		RestartDelay:       cfg.RestartDelay(),
		MaxRestartAttempts: cfg.Controller.Restart.MaxAttempts,
		OnRestart: func(attempt int) {
			log.Warn("restarting resolver loop", "attempt", attempt)
		},
	})
	if err != nil {
		return fmt.Errorf("creating supervisor: %w", err)
	}
	supervisor.SetLogger(log)

	if err := supervisor.Start(ctx); err != nil {
		return fmt.Errorf("starting resolver loop: %w", err)
	}
	defer func() {
		log.Info("stopping resolver loop")
		supervisor.Stop()
	}()

	// Periodic heartbeat (optional).
	if interval := cfg.HeartbeatInterval(); interval > 0 {
		heartbeat, hbErr := startHeartbeat(cfg, mqttClient, interval, log)
		if hbErr != nil {
			return hbErr
		}
		defer heartbeat.Terminate()
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path, honouring the
// FIELDLINE_CONFIG environment variable.
func getConfigPath() string {
	if path := os.Getenv("FIELDLINE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// seedFromSnapshot applies the stored configuration, if any, so datapoint
// subscriptions are live before the broker delivers anything.
func seedFromSnapshot(ctx context.Context, controller *resolver.Controller, store *configstore.Store, log *logging.Logger) error {
	groups, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading configuration snapshot: %w", err)
	}
	if len(groups) == 0 {
		log.Info("no configuration snapshot, waiting for config message")
		return nil
	}

	if err := controller.ApplyConfig(groups); err != nil {
		// A snapshot that fails validation is stale or corrupt; the
		// next config message replaces it.
		log.Warn("configuration snapshot rejected", "error", err)
		return nil
	}
	log.Info("configuration restored from snapshot", "groups", len(groups))
	return nil
}

// startHeartbeat publishes a periodic status message.
func startHeartbeat(cfg *config.Config, client *mqtt.Client, interval time.Duration, log *logging.Logger) (*dispatch.RunAtInterval, error) {
	topics := mqtt.Topics{}
	heartbeat, err := dispatch.NewRunAtInterval(dispatch.Config{
		Name: "heartbeat",
		Target: func(ctx context.Context) error {
			payload, marshalErr := json.Marshal(map[string]any{
				"service":   cfg.Service.ID,
				"status":    "online",
				"timestamp": time.Now().UnixMilli(),
			})
			if marshalErr != nil {
				return marshalErr
			}
			if pubErr := client.Publish(topics.SystemHeartbeat(), payload, byte(cfg.MQTT.QoS), false); pubErr != nil {
				// Transient broker loss; the next tick retries.
				log.Warn("heartbeat publish failed", "error", pubErr)
			}
			return nil
		},
	}, interval)
	if err != nil {
		return nil, fmt.Errorf("creating heartbeat: %w", err)
	}
	heartbeat.SetLogger(log)

	if err := heartbeat.Start(); err != nil {
		return nil, fmt.Errorf("starting heartbeat: %w", err)
	}
	log.Info("heartbeat started", "interval", interval)
	return heartbeat, nil
}

// busAdapter adapts the infrastructure MQTT client to the resolver's Bus
// interface, fixing QoS from configuration and routing every subscription
// into the controller inbox.
type busAdapter struct {
	client     *mqtt.Client
	qos        byte
	controller *resolver.Controller
}

func (a *busAdapter) Subscribe(topic string) error {
	return a.client.Subscribe(topic, a.qos, func(t string, payload []byte) error {
		a.controller.Enqueue(t, payload)
		return nil
	})
}

func (a *busAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

func (a *busAdapter) Publish(topic string, payload []byte) error {
	return a.client.Publish(topic, payload, a.qos, false)
}

// snapshotAdapter bridges the controller's context-free Snapshotter hook
// onto the store's context API.
type snapshotAdapter struct {
	store *configstore.Store
}

func (a *snapshotAdapter) Save(groups []resolver.ControlGroup) error {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	return a.store.Save(ctx, groups)
}
