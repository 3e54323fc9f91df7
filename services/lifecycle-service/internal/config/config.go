// Package config loads service configuration from a single YAML file
// specified by the AGRILINK_CONFIG environment variable or the
// --config flag. No fallbacks or automatic discovery; a missing file
// means defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "AGRILINK_CONFIG"

// Duration wraps time.Duration so YAML values can use the usual
// "5m"/"30s" notation.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listen_addr"`

	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Collection CollectionConfig `yaml:"collection"`
}

type PostgresConfig struct {
	// DSN is the connection string. Empty selects the in-memory store,
	// which is only suitable for local development.
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	// Addr enables the Redis product cache and rate limiter when set.
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

type KafkaConfig struct {
	// Brokers enables the event feed when non-empty.
	Brokers            []string `yaml:"brokers"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	ChangesTopic       string   `yaml:"changes_topic"`
}

type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

type CollectionConfig struct {
	// ScanInterval controls how often the reminder scanner looks for
	// products due for collection.
	ScanInterval Duration `yaml:"scan_interval"`
}

// Default returns the local-development configuration.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		Redis: RedisConfig{
			CacheTTL: Duration(5 * time.Minute),
		},
		Kafka: KafkaConfig{
			NotificationsTopic: "notifications",
			ChangesTopic:       "entity-changes",
		},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   Duration(time.Minute),
		},
		Collection: CollectionConfig{
			ScanInterval: Duration(5 * time.Minute),
		},
	}
}

// Load reads the config file at path, or from EnvVar when path is
// empty. An empty path with no environment variable set returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
