// Package config loads the orchestrator configuration from defaults,
// OPSFLOW_ environment variables and command line overrides.
package config

import (
	"time"

	"github.com/petrijr/opsflow/pkg/api"
)

// Config is the full process configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Store     StoreConfig     `koanf:"store"`
	Bus       BusConfig       `koanf:"bus"`
	Engine    EngineConfig    `koanf:"engine"`
	Inventory InventoryConfig `koanf:"inventory"`
	Log       LogConfig       `koanf:"log"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr"             validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
}

// StoreConfig selects the workflow store backend.
//
// DSN meaning depends on the driver: a redis URL or host:port, a sqlite file
// path, a postgres connection string or a mongodb URI. It is ignored by the
// memory driver.
type StoreConfig struct {
	Driver     string        `koanf:"driver"     validate:"oneof=memory redis sqlite postgres mongo"`
	DSN        string        `koanf:"dsn"        validate:"required_unless=Driver memory"`
	Prefix     string        `koanf:"prefix"`
	Database   string        `koanf:"database"`
	Collection string        `koanf:"collection"`
	CacheSize  int           `koanf:"cache_size" validate:"min=0"`
	CacheTTL   time.Duration `koanf:"cache_ttl"  validate:"min=0"`
}

// BusConfig selects the transport carrying inbound events and notifications.
type BusConfig struct {
	Driver        string        `koanf:"driver"         validate:"oneof=memory redis"`
	RedisAddr     string        `koanf:"redis_addr"     validate:"required_if=Driver redis"`
	Prefix        string        `koanf:"prefix"`
	Buffer        int           `koanf:"buffer"         validate:"min=1"`
	EventsTopic   string        `koanf:"events_topic"   validate:"required"`
	UpdatesTopic  string        `koanf:"updates_topic"  validate:"required"`
	NotifyTimeout time.Duration `koanf:"notify_timeout" validate:"min=0"`
}

type EngineConfig struct {
	MaxRetries  int           `koanf:"max_retries"  validate:"min=0"`
	BackoffUnit time.Duration `koanf:"backoff_unit" validate:"min=0"`
	MaxBackoff  time.Duration `koanf:"max_backoff"  validate:"min=0"`
	MaxSteps    int           `koanf:"max_steps"    validate:"min=0"`
	Retention   time.Duration `koanf:"retention"    validate:"min=0"`
}

type InventoryConfig struct {
	Threshold     int           `koanf:"threshold"      validate:"min=0"`
	RestockAmount int           `koanf:"restock_amount" validate:"min=0"`
	RestockDelay  time.Duration `koanf:"restock_delay"  validate:"min=0"`
	DefaultLevel  int           `koanf:"default_level"  validate:"min=0"`
}

type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error"`
	JSON   bool   `koanf:"json"`
	Source bool   `koanf:"source"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:     "memory",
			Prefix:     "workflow:",
			Database:   "opsflow",
			Collection: "workflows",
			CacheSize:  256,
			CacheTTL:   5 * time.Minute,
		},
		Bus: BusConfig{
			Driver:        "memory",
			Prefix:        "opsflow:",
			Buffer:        256,
			EventsTopic:   api.TopicOrderEvents,
			UpdatesTopic:  api.TopicDashboardUpdates,
			NotifyTimeout: 2 * time.Second,
		},
		Engine: EngineConfig{
			MaxRetries:  3,
			BackoffUnit: time.Second,
			MaxSteps:    1000,
			Retention:   5 * time.Minute,
		},
		Inventory: InventoryConfig{
			Threshold:     10,
			RestockAmount: 100,
			RestockDelay:  500 * time.Millisecond,
			DefaultLevel:  50,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
