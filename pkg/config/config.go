// Package config loads and validates qgjoin configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// join parameters and for every optional integration (Postgres, Kafka,
// Redis, metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Join     JoinConfig     `yaml:"join"`
	Output   OutputConfig   `yaml:"output"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// JoinConfig holds the q-gram and driver parameters.
type JoinConfig struct {
	Q         int    `yaml:"q"`
	Boundary  string `yaml:"boundary"`
	Unknown   string `yaml:"unknown"`
	Workers   int    `yaml:"workers"`
	BatchSize int    `yaml:"batchSize"`
	Limit     int    `yaml:"limit"`
}

// OutputConfig selects where match records go. Format is one of "tsv",
// "postgres" or "kafka"; several may be combined with commas.
type OutputConfig struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters and the statements
// used to read references/queries and the table that receives matches.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ReferenceQuery  string        `yaml:"referenceQuery"`
	QueryQuery      string        `yaml:"queryQuery"`
	MatchTable      string        `yaml:"matchTable"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics names the query input and match output topics.
type KafkaTopics struct {
	Queries string `yaml:"queries"`
	Matches string `yaml:"matches"`
}

// RedisConfig holds Redis connection and result-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage,
				"parsing config file %s: %v", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Join: JoinConfig{
			Q:         5,
			Boundary:  "inclusive",
			Unknown:   "reject",
			Workers:   1,
			BatchSize: 512,
		},
		Output: OutputConfig{
			Format: "tsv",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "qgjoin",
			User:            "qgjoin",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			MatchTable:      "qgram_matches",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "qgjoin",
			Topics: KafkaTopics{
				Queries: "qgjoin.queries",
				Matches: "qgjoin.matches",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// Validate checks the join parameters and output formats.
func (c *Config) Validate() error {
	j := c.Join
	switch {
	case j.Q < 1:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "q must be >= 1, got %d", j.Q)
	case j.Workers < 1:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "workers must be >= 1, got %d", j.Workers)
	case j.BatchSize < 1:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "batchSize must be >= 1, got %d", j.BatchSize)
	case j.Limit < 0:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "limit must be >= 0, got %d", j.Limit)
	}
	switch strings.ToLower(strings.TrimSpace(j.Boundary)) {
	case "", "inclusive", "legacy":
	default:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "unknown q-gram boundary %q", j.Boundary)
	}
	switch strings.ToLower(strings.TrimSpace(j.Unknown)) {
	case "", "reject", "skip", "sentinel":
	default:
		return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "unknown character policy %q", j.Unknown)
	}
	for _, f := range c.Output.Formats() {
		switch f {
		case "tsv", "postgres", "kafka":
		default:
			return apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "unknown output format %q", f)
		}
	}
	return nil
}

// Formats splits Format on commas.
func (o OutputConfig) Formats() []string {
	var out []string
	for _, f := range strings.Split(o.Format, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// applyEnvOverrides reads QG_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QG_Q"); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			cfg.Join.Q = q
		}
	}
	if v := os.Getenv("QG_BOUNDARY"); v != "" {
		cfg.Join.Boundary = v
	}
	if v := os.Getenv("QG_UNKNOWN"); v != "" {
		cfg.Join.Unknown = v
	}
	if v := os.Getenv("QG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Join.Workers = n
		}
	}
	if v := os.Getenv("QG_OUTPUT_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv("QG_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("QG_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("QG_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("QG_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("QG_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("QG_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("QG_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("QG_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QG_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QG_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
