// Package config loads node configuration from a YAML file and the
// environment. Environment variables win over the file, the file wins over
// defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/driver"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/registry"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/transport"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ARSYNC_"

const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Sync      SyncConfig      `yaml:"sync" envPrefix:"SYNC_"`
	Transport TransportConfig `yaml:"transport" envPrefix:"TRANSPORT_"`
	Catalog   CatalogConfig   `yaml:"catalog" envPrefix:"CATALOG_"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	Encoding   string `yaml:"encoding" env:"ENCODING"`
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
}

type SyncConfig struct {
	// TickRate is the interval between outbound batches.
	TickRate time.Duration `yaml:"tick_rate" env:"TICK_RATE"`
	// SimulationRate is the interval between FixedUpdate passes.
	SimulationRate time.Duration `yaml:"simulation_rate" env:"SIMULATION_RATE"`
	Shards         int           `yaml:"shards" env:"SHARDS"`
	SpawnShadows   bool          `yaml:"spawn_shadows" env:"SPAWN_SHADOWS"`
	// Node is this node's ordinal. It selects the id partition, so peers in
	// one session must use distinct values.
	Node uint8 `yaml:"node" env:"NODE"`
}

type TransportConfig struct {
	Kind   string `yaml:"kind" env:"KIND"`
	Listen string `yaml:"listen" env:"LISTEN"`
	// Path is the HTTP path the websocket upgrader is mounted on.
	Path         string        `yaml:"path" env:"PATH"`
	MaxBatchSize int           `yaml:"max_batch_size" env:"MAX_BATCH_SIZE"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	CertFile     string        `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile      string        `yaml:"key_file" env:"KEY_FILE"`
}

type CatalogConfig struct {
	// Path points at a prefab catalog file. Empty means an empty catalog.
	Path string `yaml:"path" env:"PATH"`
}

func Default() Config {
	logCfg := log.DefaultConfig()
	syncCfg := driver.DefaultConfig()
	return Config{
		Log: LogConfig{
			Level:      "info",
			Encoding:   logCfg.Encoding,
			MaxSizeMB:  logCfg.MaxSizeMB,
			MaxBackups: logCfg.MaxBackups,
			MaxAgeDays: logCfg.MaxAgeDays,
		},
		Sync: SyncConfig{
			TickRate:       syncCfg.TickRate,
			SimulationRate: 20 * time.Millisecond,
			Shards:         registry.DefaultShardCount,
			SpawnShadows:   syncCfg.SpawnShadows,
		},
		Transport: TransportConfig{
			Kind:         TransportWebSocket,
			Listen:       "127.0.0.1:7400",
			Path:         "/sync",
			MaxBatchSize: transport.DefaultMaxBatchSize,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

// Load returns the defaults overlaid with the file at path (when path is not
// empty) and then with ARSYNC_ environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err = decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	switch {
	case c.Sync.TickRate <= 0:
		return fmt.Errorf("%w: sync.tick_rate must be positive", ErrInvalidConfig)
	case c.Sync.SimulationRate <= 0:
		return fmt.Errorf("%w: sync.simulation_rate must be positive", ErrInvalidConfig)
	case c.Sync.Shards <= 0:
		return fmt.Errorf("%w: sync.shards must be positive", ErrInvalidConfig)
	case c.Transport.MaxBatchSize <= 0:
		return fmt.Errorf("%w: transport.max_batch_size must be positive", ErrInvalidConfig)
	case c.Transport.Listen == "":
		return fmt.Errorf("%w: transport.listen is required", ErrInvalidConfig)
	}

	switch c.Transport.Kind {
	case TransportWebSocket:
		if c.Transport.Path == "" {
			return fmt.Errorf("%w: transport.path is required for websocket", ErrInvalidConfig)
		}
	case TransportQUIC:
		if c.Transport.CertFile == "" || c.Transport.KeyFile == "" {
			return fmt.Errorf("%w: quic needs transport.cert_file and transport.key_file", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown transport kind %q", ErrInvalidConfig, c.Transport.Kind)
	}
	return nil
}

// Logger converts the log section for log.New.
func (c LogConfig) Logger() log.Config {
	return log.Config{
		Level:      log.ParseLevel(c.Level),
		Encoding:   c.Encoding,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}

// Driver converts the sync section for driver.New.
func (c SyncConfig) Driver() driver.Config {
	return driver.Config{
		TickRate:     c.TickRate,
		SpawnShadows: c.SpawnShadows,
	}
}
