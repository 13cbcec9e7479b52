package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DebugMode enables verbose tracker and feed logging.
var DebugMode = false

const (
	SequencePolicyStrict = "strict"
	SequencePolicyLoose  = "loose"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      ServerConfig    `mapstructure:"http"`
	GRPC      ServerConfig    `mapstructure:"grpc"`
	Metrics   ServerConfig    `mapstructure:"metrics"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

type AppConfig struct {
	Debug bool `mapstructure:"debug"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type BinanceConfig struct {
	RestURL       string `mapstructure:"rest_url"`
	StreamURL     string `mapstructure:"stream_url"`
	SnapshotLimit int    `mapstructure:"snapshot_limit"`
	Permissions   string `mapstructure:"permissions"`
}

type DirectoryConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type RegistryConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type TrackerConfig struct {
	LatencyThreshold time.Duration `mapstructure:"latency_threshold"`
	SequencePolicy   string        `mapstructure:"sequence_policy"`
	MaxResyncs       int           `mapstructure:"max_resyncs"`
	ResyncBackoff    time.Duration `mapstructure:"resync_backoff"`
}

type RelayConfig struct {
	Buffer int `mapstructure:"buffer"`
}

type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
	SnapshotTTL   time.Duration `mapstructure:"snapshot_ttl"`
}

var keys = []string{
	"app.debug",
	"log.level",
	"http.addr",
	"grpc.addr",
	"metrics.addr",
	"binance.rest_url", "binance.stream_url", "binance.snapshot_limit", "binance.permissions",
	"directory.ttl",
	"registry.sweep_interval",
	"tracker.latency_threshold", "tracker.sequence_policy", "tracker.max_resyncs", "tracker.resync_backoff",
	"relay.buffer",
	"redis.addr", "redis.channel_prefix", "redis.snapshot_ttl",
}

// Load reads configuration from an optional .env file, the environment and defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on environment")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	DebugMode = cfg.App.Debug
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("metrics.addr", ":2112")

	v.SetDefault("binance.rest_url", "https://api.binance.com")
	v.SetDefault("binance.stream_url", "wss://stream.binance.com:9443/ws")
	v.SetDefault("binance.snapshot_limit", 1000)
	v.SetDefault("binance.permissions", "MARGIN")

	v.SetDefault("directory.ttl", time.Hour)
	v.SetDefault("registry.sweep_interval", time.Minute)

	v.SetDefault("tracker.latency_threshold", 150*time.Millisecond)
	v.SetDefault("tracker.sequence_policy", SequencePolicyStrict)
	v.SetDefault("tracker.max_resyncs", 10)
	v.SetDefault("tracker.resync_backoff", 100*time.Millisecond)

	v.SetDefault("relay.buffer", 1024)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel_prefix", "orderbook.")
	v.SetDefault("redis.snapshot_ttl", time.Minute)
}

func (c *Config) validate() error {
	switch c.Tracker.SequencePolicy {
	case SequencePolicyStrict, SequencePolicyLoose:
	default:
		return fmt.Errorf("unknown tracker sequence policy %q", c.Tracker.SequencePolicy)
	}
	if c.Binance.SnapshotLimit <= 0 {
		return fmt.Errorf("binance snapshot limit must be positive, got %d", c.Binance.SnapshotLimit)
	}
	if c.Registry.SweepInterval <= 0 {
		return fmt.Errorf("registry sweep interval must be positive")
	}
	if c.Relay.Buffer <= 0 {
		return fmt.Errorf("relay buffer must be positive")
	}
	return nil
}

// LogLevel resolves the configured zerolog level; debug mode always wins.
func (c *Config) LogLevel() zerolog.Level {
	if c.App.Debug {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
