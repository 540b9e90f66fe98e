package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Queue kinds accepted by NotificationConfig.Queue.
const (
	QueueMemory = "memory"
	QueueMQTT   = "mqtt"
)

// Config is the root configuration structure for SEP2 Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Notification NotificationConfig `yaml:"notification"`
}

// ServerConfig identifies this deployment.
type ServerConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// NotificationConfig controls subscription notification dispatch.
type NotificationConfig struct {
	// Enabled gates whether change triggers schedule any notification work.
	Enabled bool `yaml:"enabled"`

	// MaxPageSize caps the number of entities sent in one notification,
	// regardless of what a subscription asks for.
	MaxPageSize int `yaml:"max_page_size"`

	// TransmitTimeout bounds a single outbound delivery attempt.
	TransmitTimeout time.Duration `yaml:"transmit_timeout"`

	// RetryDelays is the backoff table indexed by attempt number.
	// Once the attempt number runs off the end of the table, delivery is abandoned.
	RetryDelays []time.Duration `yaml:"retry_delays"`

	// Workers is the number of concurrent task handlers in the memory queue.
	Workers int `yaml:"workers"`

	// LookupConcurrency bounds concurrent subscription lookups inside one check.
	LookupConcurrency int `yaml:"lookup_concurrency"`

	// Queue selects the task broker: "memory" or "mqtt".
	Queue string `yaml:"queue"`

	// TopicPrefix is the MQTT topic root used when Queue is "mqtt".
	TopicPrefix string `yaml:"topic_prefix"`

	// ConsumerGroup names the MQTT shared subscription the task queue
	// consumes through, so each task runs in one process of the group.
	// Empty subscribes every process to every task.
	ConsumerGroup string `yaml:"consumer_group"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SEP2_SECTION_KEY
// For example: SEP2_DATABASE_PATH, SEP2_NOTIFICATION_QUEUE
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
		Server: ServerConfig{
			ID:       "sep2-001",
			Name:     "SEP2 Core",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/sep2.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sep2-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Notification: NotificationConfig{
			Enabled:         true,
			MaxPageSize:     100,
			TransmitTimeout: 30 * time.Second,
			RetryDelays: []time.Duration{
				10 * time.Second,
				time.Minute,
				5 * time.Minute,
				20 * time.Minute,
				time.Hour,
			},
			Workers:           4,
			LookupConcurrency: 4,
			Queue:             QueueMemory,
			TopicPrefix:       "sep2",
			ConsumerGroup:     "sep2-core",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SEP2_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SEP2_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SEP2_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SEP2_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SEP2_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("SEP2_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SEP2_NOTIFICATION_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Notification.Enabled = enabled
		}
	}
	if v := os.Getenv("SEP2_NOTIFICATION_QUEUE"); v != "" {
		cfg.Notification.Queue = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.ID == "" {
		errs = append(errs, "server.id is required")
	}
	if c.Server.Timezone != "" {
		if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("server.timezone %q is not a known location", c.Server.Timezone))
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	errs = append(errs, c.Notification.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate returns every problem found in the notification section.
func (n NotificationConfig) validate() []string {
	var errs []string

	if n.MaxPageSize < 1 {
		errs = append(errs, "notification.max_page_size must be at least 1")
	}
	if n.TransmitTimeout <= 0 {
		errs = append(errs, "notification.transmit_timeout must be positive")
	}
	if len(n.RetryDelays) == 0 {
		errs = append(errs, "notification.retry_delays must contain at least one delay")
	}
	for i := 1; i < len(n.RetryDelays); i++ {
		if n.RetryDelays[i] < n.RetryDelays[i-1] {
			errs = append(errs, "notification.retry_delays must be non-decreasing")
			break
		}
	}
	if n.Workers < 1 {
		errs = append(errs, "notification.workers must be at least 1")
	}
	if n.LookupConcurrency < 1 {
		errs = append(errs, "notification.lookup_concurrency must be at least 1")
	}
	switch n.Queue {
	case QueueMemory:
	case QueueMQTT:
		if n.TopicPrefix == "" {
			errs = append(errs, "notification.topic_prefix is required for the mqtt queue")
		}
		if strings.ContainsAny(n.ConsumerGroup, "/+#") {
			errs = append(errs, "notification.consumer_group must not contain '/', '+' or '#'")
		}
	default:
		errs = append(errs, fmt.Sprintf("notification.queue %q must be %q or %q", n.Queue, QueueMemory, QueueMQTT))
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
