package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Fieldline Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Controller ControllerConfig `yaml:"controller"`
	Store      StoreConfig      `yaml:"store"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServiceConfig identifies this Fieldline Core instance.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// ControllerConfig contains settings for the value resolution controller.
type ControllerConfig struct {
	// ConfigTopic is the topic that delivers control group definitions.
	ConfigTopic string `yaml:"config_topic"`

	// InboxSize is the buffer size of the inbound message channel.
	// Messages beyond this buffer block the MQTT callback goroutine.
	InboxSize int `yaml:"inbox_size"`

	// Restart governs how the supervisor restarts the message loop
	// after a message-level failure.
	Restart RestartConfig `yaml:"restart"`
}

// RestartConfig contains supervisor restart settings for the message loop.
type RestartConfig struct {
	// DelaySeconds is the pause before restarting a failed loop.
	DelaySeconds int `yaml:"delay_seconds"`

	// MaxAttempts limits restart attempts. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`
}

// StoreConfig contains settings for the SQLite configuration snapshot store.
type StoreConfig struct {
	// Enabled turns on the snapshot store. When disabled, the controller
	// waits for the broker to deliver the retained config message instead.
	Enabled bool `yaml:"enabled"`

	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HeartbeatConfig contains settings for the periodic status publisher.
type HeartbeatConfig struct {
	// IntervalSeconds between status publishes. 0 disables the heartbeat.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FIELDLINE_SECTION_KEY
// For example: FIELDLINE_MQTT_HOST, FIELDLINE_STORE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "fieldline-001",
			Name: "Fieldline Core",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fieldline-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Controller: ControllerConfig{
			ConfigTopic: "fieldline/config",
			InboxSize:   256,
			Restart: RestartConfig{
				DelaySeconds: 5,
				MaxAttempts:  0,
			},
		},
		Store: StoreConfig{
			Enabled:     false,
			Path:        "./data/fieldline.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Heartbeat: HeartbeatConfig{
			IntervalSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FIELDLINE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIELDLINE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FIELDLINE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("FIELDLINE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("FIELDLINE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FIELDLINE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("FIELDLINE_CONFIG_TOPIC"); v != "" {
		cfg.Controller.ConfigTopic = v
	}
	if v := os.Getenv("FIELDLINE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Controller.ConfigTopic == "" {
		errs = append(errs, "controller.config_topic is required")
	}
	if c.Controller.InboxSize < 1 {
		errs = append(errs, "controller.inbox_size must be at least 1")
	}
	if c.Controller.Restart.DelaySeconds < 0 {
		errs = append(errs, "controller.restart.delay_seconds must not be negative")
	}

	if c.Store.Enabled && c.Store.Path == "" {
		errs = append(errs, "store.path is required when store.enabled is true")
	}

	if c.Heartbeat.IntervalSeconds < 0 {
		errs = append(errs, "heartbeat.interval_seconds must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RestartDelay returns the message loop restart delay as a Duration.
func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Controller.Restart.DelaySeconds) * time.Second
}

// HeartbeatInterval returns the heartbeat interval as a Duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat.IntervalSeconds) * time.Second
}
