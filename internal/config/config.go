package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logger   LoggerConfig   `yaml:"logger"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Sync     SyncConfig     `yaml:"sync"`
	Batch    BatchConfig    `yaml:"batch"`
	Advisory AdvisoryConfig `yaml:"advisory"`
}

type ServerConfig struct {
	AppEnv         string        `yaml:"app_env"`
	HTTPAddr       string        `yaml:"http_addr"`
	GRPCAddr       string        `yaml:"grpc_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LoggerConfig struct {
	Level             string `yaml:"level"`
	Encoding          string `yaml:"encoding"`
	DisableCaller     bool   `yaml:"disable_caller"`
	DisableStacktrace bool   `yaml:"disable_stacktrace"`
}

type StorageConfig struct {
	Backend         string        `yaml:"backend"` // sqlite, mysql or memory
	SQLitePath      string        `yaml:"sqlite_path"`
	MySQLDSN        string        `yaml:"mysql_dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SyncConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	PageSize     int           `yaml:"page_size"`
}

type BatchConfig struct {
	Policy string `yaml:"policy"` // stop or continue
}

type AdvisoryConfig struct {
	Threshold int `yaml:"threshold"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:         "dev",
			HTTPAddr:       ":8080",
			GRPCAddr:       ":50051",
			RequestTimeout: 5 * time.Second,
		},
		Logger: LoggerConfig{
			Level:             "info",
			Encoding:          "json",
			DisableStacktrace: true,
		},
		Storage: StorageConfig{
			Backend:         "sqlite",
			SQLitePath:      "inventory.db",
			MySQLDSN:        "root:root@tcp(localhost:3306)/inventory?parseTime=true&loc=UTC",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "inventory.changes",
		},
		Sync: SyncConfig{
			PollInterval: 60 * time.Second,
			PageSize:     200,
		},
		Batch: BatchConfig{
			Policy: "stop",
		},
		Advisory: AdvisoryConfig{
			Threshold: 15,
		},
	}
}

// Load layers defaults, the optional YAML file at path, a .env file and the
// process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	_ = godotenv.Load() // .env is optional
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "mysql", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Batch.Policy {
	case "stop", "continue":
	default:
		return fmt.Errorf("unknown batch policy %q", c.Batch.Policy)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled without brokers")
	}
	return nil
}

func applyEnv(c *Config) {
	c.Server.AppEnv = getEnv("APP_ENV", c.Server.AppEnv)
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.Server.RequestTimeout)

	c.Logger.Level = getEnv("LOGGER_LEVEL", c.Logger.Level)
	c.Logger.Encoding = getEnv("LOGGER_ENCODING", c.Logger.Encoding)
	c.Logger.DisableCaller = getEnvBool("LOGGER_DISABLE_CALLER", c.Logger.DisableCaller)
	c.Logger.DisableStacktrace = getEnvBool("LOGGER_DISABLE_STACKTRACE", c.Logger.DisableStacktrace)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.MySQLDSN = getEnv("MYSQL_DSN", c.Storage.MySQLDSN)
	c.Storage.MaxOpenConns = getEnvInt("MYSQL_MAX_OPEN_CONNS", c.Storage.MaxOpenConns)
	c.Storage.MaxIdleConns = getEnvInt("MYSQL_MAX_IDLE_CONNS", c.Storage.MaxIdleConns)
	c.Storage.ConnMaxLifetime = getEnvDuration("MYSQL_CONN_MAX_LIFETIME", c.Storage.ConnMaxLifetime)

	c.Redis.Enabled = getEnvBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.Kafka.Enabled = getEnvBool("KAFKA_ENABLED", c.Kafka.Enabled)
	c.Kafka.Brokers = getEnvSlice("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.Sync.PollInterval = getEnvDuration("SYNC_POLL_INTERVAL", c.Sync.PollInterval)
	c.Sync.PageSize = getEnvInt("SYNC_PAGE_SIZE", c.Sync.PageSize)

	c.Batch.Policy = getEnv("BATCH_POLICY", c.Batch.Policy)
	c.Advisory.Threshold = getEnvInt("ADVISORY_THRESHOLD", c.Advisory.Threshold)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
