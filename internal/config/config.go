// ABOUTME: Proxy service configuration
// ABOUTME: Merges defaults, an optional config file, AUDIO_PROXY_ env vars and flags with viper
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sendspin/audio-proxy/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AUDIO_PROXY_PORT
const EnvPrefix = "AUDIO_PROXY"

// Config is the proxy service configuration
type Config struct {
	Name             string `mapstructure:"name"`
	Port             int    `mapstructure:"port"`
	BufferSizeMs     int    `mapstructure:"buffer_size_ms"`
	LatencyMs        int    `mapstructure:"latency_ms"`
	RequestTimeoutMs int    `mapstructure:"request_timeout_ms"`
	MDNS             bool   `mapstructure:"mdns"`
	TUI              bool   `mapstructure:"tui"`
	LogLevel         string `mapstructure:"log_level"`
	LogFile          string `mapstructure:"log_file"`
	Play             Play   `mapstructure:"play"`
}

// Play selects a local source to play into a bus address at startup
type Play struct {
	Address string `mapstructure:"address"`
	Source  string `mapstructure:"source"`
}

// RequestTimeout returns the remote request timeout
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// flag name to config key
var flagKeys = map[string]string{
	"name":               "name",
	"port":               "port",
	"buffer-size-ms":     "buffer_size_ms",
	"latency-ms":         "latency_ms",
	"request-timeout-ms": "request_timeout_ms",
	"mdns":               "mdns",
	"tui":                "tui",
	"log-level":          "log_level",
	"log-file":           "log_file",
	"play-address":       "play.address",
	"play-source":        "play.source",
}

func defaultName() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return hostname + "-audio-proxy"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", defaultName())
	v.SetDefault("port", 8928)
	v.SetDefault("buffer_size_ms", 20)
	v.SetDefault("latency_ms", 40)
	v.SetDefault("request_timeout_ms", 2000)
	v.SetDefault("mdns", true)
	v.SetDefault("tui", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("play.address", "")
	v.SetDefault("play.source", "")
}

// NewFlagSet defines the proxy's command line flags
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Config file (yaml, json or toml)")
	fs.String("name", "", "Service name advertised to devices")
	fs.Int("port", 0, "WebSocket listen port")
	fs.Int("buffer-size-ms", 0, "Stream buffer window in milliseconds")
	fs.Int("latency-ms", 0, "Reported stream latency in milliseconds")
	fs.Int("request-timeout-ms", 0, "Timeout for requests to bus devices")
	fs.Bool("mdns", true, "Advertise the proxy over mDNS")
	fs.Bool("tui", false, "Show the status TUI (logs go to --log-file)")
	fs.String("log-level", "", "none, error, warn, info or debug")
	fs.String("log-file", "", "Write JSON logs to this file")
	fs.String("play-address", "", "Bus address to play a local source into")
	fs.String("play-source", "", "Audio file or URL to play (empty plays a test tone)")
	return fs
}

// Load parses args and resolves the configuration. Precedence is flags,
// then environment, then config file, then defaults.
func Load(args []string) (Config, error) {
	fs := NewFlagSet("audio-proxy")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return Config{}, fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.BufferSizeMs <= 0 {
		errs = append(errs, fmt.Errorf("buffer_size_ms must be positive, got %d", c.BufferSizeMs))
	}
	if c.LatencyMs <= 0 {
		errs = append(errs, fmt.Errorf("latency_ms must be positive, got %d", c.LatencyMs))
	}
	if c.RequestTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout_ms must be positive, got %d", c.RequestTimeoutMs))
	}
	if _, _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.TUI && c.LogFile == "" {
		errs = append(errs, errors.New("tui mode needs log_file"))
	}
	if c.Play.Source != "" && c.Play.Address == "" {
		errs = append(errs, errors.New("play.source needs play.address"))
	}
	return errors.Join(errs...)
}
