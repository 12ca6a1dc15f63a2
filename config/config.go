// Package config loads buildlogs settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fastapicloud/buildlogs/cloud"
	"github.com/fastapicloud/buildlogs/logger"
	"github.com/pelletier/go-toml/v2"
)

// Environment variables consulted by Load.
const (
	EnvToken       = "FASTAPI_CLOUD_TOKEN"
	EnvBaseURL     = "FASTAPI_CLOUD_BASE_URL"
	EnvIdleTimeout = "BUILDLOGS_IDLE_TIMEOUT"
	EnvLogLevel    = "BUILDLOGS_LOG_LEVEL"
	EnvLogFormat   = "BUILDLOGS_LOG_FORMAT"
)

// Config holds all buildlogs configuration.
type Config struct {
	API    APIConfig    `toml:"api"`
	Stream StreamConfig `toml:"stream"`
	Log    LogConfig    `toml:"log"`
	UI     UIConfig     `toml:"ui"`
}

// APIConfig holds FastAPI Cloud connection settings.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// StreamConfig holds log stream transport settings.
type StreamConfig struct {
	IdleTimeout Duration `toml:"idle_timeout"`
	ChunkSize   int      `toml:"chunk_size"`
}

// LogConfig holds diagnostic logging settings. Diagnostics never go to
// stdout, which carries the build log itself.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// UIConfig holds terminal viewer settings.
type UIConfig struct {
	Wrap            bool     `toml:"wrap"`
	Follow          bool     `toml:"follow"`
	ShowLineNumbers bool     `toml:"show_line_numbers"`
	StatusInterval  Duration `toml:"status_interval"`
}

// Duration is a time.Duration written as a Go duration string in TOML,
// e.g. "90s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: cloud.DefaultBaseURL,
		},
		Stream: StreamConfig{
			IdleTimeout: Duration(cloud.DefaultIdleTimeout),
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(logger.FormatText),
		},
		UI: UIConfig{
			Wrap:            true,
			Follow:          true,
			ShowLineNumbers: true,
			StatusInterval:  Duration(5 * time.Second),
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "buildlogs", "config.toml")
}

// Load builds a Config from defaults, the TOML file at path and the
// environment as seen through getenv, in increasing precedence. An empty
// path means DefaultPath, which may be absent; an explicit path must exist.
// Load does not validate; call Validate once flags are applied.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		err := loadFile(cfg, path)
		switch {
		case err == nil:
		case !explicit && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	cfg.API.Token = getEnv(getenv, EnvToken, cfg.API.Token)
	cfg.API.BaseURL = getEnv(getenv, EnvBaseURL, cfg.API.BaseURL)
	cfg.Log.Level = getEnv(getenv, EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = getEnv(getenv, EnvLogFormat, cfg.Log.Format)

	d, err := getDurationEnv(getenv, EnvIdleTimeout, time.Duration(cfg.Stream.IdleTimeout))
	if err != nil {
		return err
	}
	cfg.Stream.IdleTimeout = Duration(d)
	return nil
}

// Validate checks that required configuration values are set and usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.Token) == "" {
		return fmt.Errorf("config: API token is required (set %s or api.token)", EnvToken)
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: base URL %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	if c.Stream.IdleTimeout < 0 {
		return fmt.Errorf("config: idle timeout must not be negative")
	}
	if c.Stream.ChunkSize < 0 {
		return fmt.Errorf("config: chunk size must not be negative")
	}
	if c.UI.StatusInterval < 0 {
		return fmt.Errorf("config: status interval must not be negative")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings and bare integers, read as
// seconds.
func getDurationEnv(getenv func(string) string, key string, defaultValue time.Duration) (time.Duration, error) {
	value := getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
