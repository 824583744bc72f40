package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "lancenter/backend/libs/config"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config defines terminals-service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"TERMINALS_HTTP_PORT"`
	} `yaml:"http"`
	Storage struct {
		Driver string `yaml:"driver" env:"TERMINALS_STORAGE"`
	} `yaml:"storage"`
	Database struct {
		DSN          string `yaml:"dsn" env:"TERMINALS_POSTGRES_DSN"`
		MaxOpenConns int    `yaml:"maxOpenConns" env:"TERMINALS_POSTGRES_MAX_OPEN"`
		Migrate      bool   `yaml:"migrate" env:"TERMINALS_POSTGRES_MIGRATE"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		Channel  string `yaml:"channel" env:"REDIS_CHANNEL"`
	} `yaml:"redis"`
	JWT struct {
		Secret string `yaml:"secret" env:"JWT_SECRET"`
	} `yaml:"jwt"`
	WebSocket struct {
		PingInterval  time.Duration `yaml:"pingInterval" env:"WS_PING_INTERVAL"`
		WriteTimeout  time.Duration `yaml:"writeTimeout" env:"WS_WRITE_TIMEOUT"`
		ReadTimeout   time.Duration `yaml:"readTimeout" env:"WS_READ_TIMEOUT"`
		CommandRate   float64       `yaml:"commandRate" env:"WS_COMMAND_RATE"`
		CommandBurst  int           `yaml:"commandBurst" env:"WS_COMMAND_BURST"`
		BroadcastWait time.Duration `yaml:"broadcastTimeout" env:"WS_BROADCAST_TIMEOUT"`
	} `yaml:"websocket"`
	Pricing struct {
		AddTimePolicy string `yaml:"addTimePolicy" env:"PRICING_ADD_TIME_POLICY"`
	} `yaml:"pricing"`
	Zones struct {
		CacheTTL time.Duration `yaml:"cacheTTL" env:"ZONES_CACHE_TTL"`
	} `yaml:"zones"`
	OperationTimeoutSeconds int `yaml:"operationTimeoutSeconds" env:"OPERATION_TIMEOUT_SECONDS"`
}

// Load uses shared config loader and validates required fields.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Storage.Driver = StoragePostgres
	cfg.Database.Migrate = true
	cfg.Redis.Channel = "terminals:changed"
	cfg.WebSocket.PingInterval = 30 * time.Second
	cfg.WebSocket.WriteTimeout = 10 * time.Second
	cfg.WebSocket.ReadTimeout = 60 * time.Second
	cfg.WebSocket.CommandRate = 20
	cfg.WebSocket.CommandBurst = 40
	cfg.WebSocket.BroadcastWait = 5 * time.Second
	cfg.Pricing.AddTimePolicy = "cumulative"
	cfg.Zones.CacheTTL = time.Minute
	cfg.OperationTimeoutSeconds = 5
	return cfg
}

// Validate checks required fields.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StoragePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database DSN is required for postgres storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret is required")
	}
	switch c.Pricing.AddTimePolicy {
	case "cumulative", "recalculate":
	default:
		return fmt.Errorf("config: unknown add-time policy %q", c.Pricing.AddTimePolicy)
	}
	if c.WebSocket.CommandRate < 0 || c.WebSocket.CommandBurst < 0 {
		return errors.New("config: command rate and burst must not be negative")
	}
	return nil
}

// HTTPAddress returns :port style address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// OperationTimeout bounds every controller operation.
func (c *Config) OperationTimeout() time.Duration {
	if c.OperationTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.OperationTimeoutSeconds) * time.Second
}

// RedisEnabled reports whether cross-instance fan-out is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}
