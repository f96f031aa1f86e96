package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // timezone must resolve on hosts without zoneinfo

	"gopkg.in/yaml.v3"

	"github.com/hivewatch/hivewatch/pkg/logging"
	"github.com/hivewatch/hivewatch/pkg/store"
	"github.com/hivewatch/hivewatch/updater/internal/schedule"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultCollection   = "ruches"
	DefaultSchedule     = "every 1 minutes"
	DefaultTimezone     = "Europe/Paris"
	DefaultWriteTimeout = 30 * time.Second
	DefaultMetricsPort  = 9102
	DefaultCooldown     = 15 * time.Minute
	DefaultTopicPrefix  = "hives"
)

// Config is the top-level configuration for hivewatch-updater.
type Config struct {
	Updater UpdaterConfig  `yaml:"updater"`
	Store   store.Config   `yaml:"store"`
	Log     logging.Config `yaml:"log"`
}

// UpdaterConfig holds the tick settings.
type UpdaterConfig struct {
	// Collection is the document collection holding one document per hive.
	Collection string `yaml:"collection"`

	// Schedule is "every N seconds|minutes|hours" or a Go duration ("30s").
	Schedule string `yaml:"schedule"`

	// Timezone is the IANA zone tick boundaries are aligned in.
	Timezone string `yaml:"timezone"`

	// Seed seeds the simulator. Zero means a time-based seed.
	Seed int64 `yaml:"seed"`

	// WriteTimeout bounds one whole tick, fetch and writes included.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	Metrics MetricsConfig `yaml:"metrics"`
	Alerts  AlertsConfig  `yaml:"alerts"`
}

// Interval returns the parsed schedule. Only valid after Load.
func (u UpdaterConfig) Interval() time.Duration {
	d, _ := schedule.Parse(u.Schedule)
	return d
}

// Location returns the loaded time zone, falling back to UTC.
func (u UpdaterConfig) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	// Port serves /metrics. Zero disables the listener.
	Port int `yaml:"port"`

	// Textfile, when set, receives the registry in text format after every
	// tick (node_exporter textfile collector).
	Textfile string `yaml:"textfile"`
}

// AlertsConfig holds notification targets for hives entering or leaving
// alert.
type AlertsConfig struct {
	// Cooldown suppresses re-firing an identical reason set for this long.
	Cooldown time.Duration `yaml:"cooldown"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// MQTTConfig configures alert publication to an MQTT broker. Disabled when
// Broker is empty.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`

	// TopicPrefix yields topics of the form <prefix>/<hive id>/alert.
	TopicPrefix string `yaml:"topic_prefix"`

	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`

	QoS byte `yaml:"qos"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return defaults()
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Updater: UpdaterConfig{
			Collection:   DefaultCollection,
			Schedule:     DefaultSchedule,
			Timezone:     DefaultTimezone,
			WriteTimeout: DefaultWriteTimeout,
			Metrics:      MetricsConfig{Port: DefaultMetricsPort},
			Alerts: AlertsConfig{
				Cooldown: DefaultCooldown,
				MQTT:     MQTTConfig{TopicPrefix: DefaultTopicPrefix, QoS: 1},
			},
		},
		Store: store.DefaultConfig(),
		Log:   logging.DefaultConfig(),
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	u := cfg.Updater
	if u.Collection == "" {
		return fmt.Errorf("updater.collection is required")
	}
	if _, err := schedule.Parse(u.Schedule); err != nil {
		return fmt.Errorf("updater.schedule: %w", err)
	}
	if _, err := time.LoadLocation(u.Timezone); err != nil {
		return fmt.Errorf("updater.timezone: %w", err)
	}
	if u.WriteTimeout <= 0 {
		return fmt.Errorf("updater.write_timeout must be positive")
	}
	if u.Metrics.Port < 0 || u.Metrics.Port > 65535 {
		return fmt.Errorf("updater.metrics.port %d out of range", u.Metrics.Port)
	}
	if u.Alerts.Cooldown < 0 {
		return fmt.Errorf("updater.alerts.cooldown must not be negative")
	}
	for i, wh := range u.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("updater.alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("updater.alerts.webhooks[%d]: url_env is required", i)
		}
	}
	if m := u.Alerts.MQTT; m.Enabled() {
		if m.QoS > 2 {
			return fmt.Errorf("updater.alerts.mqtt.qos must be 0, 1 or 2")
		}
		if m.TopicPrefix == "" {
			return fmt.Errorf("updater.alerts.mqtt.topic_prefix is required")
		}
	}
	if err := cfg.Store.Validate(); err != nil {
		return err
	}
	return cfg.Log.Validate()
}
