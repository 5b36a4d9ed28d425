package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/blucher/blucher/internal/bridge"
	"github.com/blucher/blucher/pkg/sockpath"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Relay     RelayConfig         `mapstructure:"relay"`
	Notifier  NotifierConfig      `mapstructure:"notifier"`
	Transport TransportConfig     `mapstructure:"transport"`
	NATS      NATSConfig          `mapstructure:"nats"`
	Thrust    bridge.ThrustLimits `mapstructure:"thrust"`
	Log       LogConfig           `mapstructure:"log"`
}

// ServerConfig holds presentation API settings.
type ServerConfig struct {
	Socket string `mapstructure:"socket"`
}

// RelayConfig sizes the command relay.
type RelayConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// NotifierConfig holds periodic notification settings.
type NotifierConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Event        string        `mapstructure:"event"`
	MaxFailures  int           `mapstructure:"max_failures"`
	RestartDelay time.Duration `mapstructure:"restart_delay"`
}

// TransportConfig selects how commands leave the daemon.
type TransportConfig struct {
	Kind    string        `mapstructure:"kind"` // "log" or "nats"
	Timeout time.Duration `mapstructure:"timeout"`
}

// NATSConfig holds NATS settings, used when transport.kind is "nats".
type NATSConfig struct {
	Embedded bool   `mapstructure:"embedded"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Token    string `mapstructure:"token"`
}

// LogConfig holds log level and optional rotated log file settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

const (
	TransportLog  = "log"
	TransportNATS = "nats"
)

func newViper(cfgFile string) *viper.Viper {
	v := viper.New()

	v.SetDefault("server.socket", sockpath.DefaultSocketPath())
	v.SetDefault("relay.capacity", 1)

	v.SetDefault("notifier.interval", time.Second)
	v.SetDefault("notifier.event", "input_update")
	v.SetDefault("notifier.max_failures", 5)
	v.SetDefault("notifier.restart_delay", 2*time.Second)

	v.SetDefault("transport.kind", TransportLog)
	v.SetDefault("transport.timeout", 5*time.Second)

	v.SetDefault("nats.embedded", true)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.host", "")
	v.SetDefault("nats.port", 4222)

	defaults := bridge.DefaultThrustLimits()
	v.SetDefault("thrust.policy", string(defaults.Policy))
	v.SetDefault("thrust.min", defaults.Min)
	v.SetDefault("thrust.max", defaults.Max)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetConfigType("toml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("blucher")
		v.AddConfigPath("/etc/blucher")
		v.AddConfigPath("$HOME/.config/blucher")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BLUCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("nats.token", "BLUCHER_NATS_TOKEN")
	v.BindEnv("nats.url", "BLUCHER_NATS_URL")
	return v
}

func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadConfig reads configuration from file, env, and defaults.
func LoadConfig(cfgFile string) (Config, error) {
	v := newViper(cfgFile)

	// Config file is optional, unless one was named explicitly.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return unmarshal(v)
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	switch c.Transport.Kind {
	case TransportLog, TransportNATS:
	default:
		return fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}
	if c.Notifier.Interval <= 0 {
		return fmt.Errorf("notifier.interval must be positive, got %s", c.Notifier.Interval)
	}
	if c.Relay.Capacity < 1 {
		return fmt.Errorf("relay.capacity must be at least 1, got %d", c.Relay.Capacity)
	}
	if err := c.Thrust.Validate(); err != nil {
		return fmt.Errorf("thrust: %w", err)
	}
	return nil
}

// WatchConfig re-reads the config file on change and passes each valid
// result to onChange. It does nothing when no config file is in use.
func WatchConfig(cfgFile string, logger zerolog.Logger, onChange func(Config)) {
	v := newViper(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return
	}
	logger = logger.With().Str("component", "config").Logger()

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			logger.Error().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		logger.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
	logger.Info().Str("file", v.ConfigFileUsed()).Msg("watching config for changes")
}
