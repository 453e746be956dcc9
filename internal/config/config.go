package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	RulesSourceDB   = "db"
	RulesSourceYAML = "yaml"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Media     MediaConfig     `mapstructure:"media"`
	Radarr    ServiceConfig   `mapstructure:"radarr"`
	Sonarr    ServiceConfig   `mapstructure:"sonarr"`
	Client    ClientConfig    `mapstructure:"client"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MediaConfig describes the media tree shared with the arr services.
type MediaConfig struct {
	Root           string `mapstructure:"root"`
	ShowRootPrefix string `mapstructure:"show_root_prefix"`
	LockPath       string `mapstructure:"lock_path"`
	PUID           int    `mapstructure:"puid"`
	PGID           int    `mapstructure:"pgid"`
	FileMode       string `mapstructure:"file_mode"` // octal, "" leaves permissions alone
}

// ServiceConfig holds connection settings for Radarr or Sonarr.
type ServiceConfig struct {
	URL     string `mapstructure:"url"`
	APIPath string `mapstructure:"api_path"`
	APIKey  string `mapstructure:"api_key"`
}

// Configured reports whether both URL and API key are set.
func (c ServiceConfig) Configured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.APIKey) != ""
}

// ClientConfig tunes outbound requests to the arr services.
type ClientConfig struct {
	ThrottleMS     int `mapstructure:"throttle_ms"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// RulesConfig selects and locates the rule store.
type RulesConfig struct {
	Source       string `mapstructure:"source"` // "db" or "yaml"
	YAMLPath     string `mapstructure:"yaml_path"`
	SettingsPath string `mapstructure:"settings_path"`
	ArchiveDir   string `mapstructure:"archive_dir"`
}

// SchedulerConfig holds the periodic pass interval.
type SchedulerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "./data/plexlinker.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Media: MediaConfig{
			ShowRootPrefix: "/",
			PUID:           -1,
			PGID:           -1,
			FileMode:       "0775",
		},
		Radarr: ServiceConfig{APIPath: "/api/v3"},
		Sonarr: ServiceConfig{APIPath: "/api/v3"},
		Client: ClientConfig{
			ThrottleMS:     500,
			TimeoutSeconds: 30,
		},
		Rules: RulesConfig{
			Source:   RulesSourceDB,
			YAMLPath: "./config_files/media_collection_parsed_last_run.yaml",
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: 15,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// legacyEnv maps config keys to the environment names used by earlier
// container images. The PLEXLINKER_ form always wins.
var legacyEnv = map[string][]string{
	"media.root":                 {"MEDIA_ROOT", "DOCKER_MEDIA_PATH", "HOST_MEDIA_PATH"},
	"media.show_root_prefix":     {"SONARR_ROOT_PATH_PREFIX"},
	"media.puid":                 {"PUID"},
	"media.pgid":                 {"PGID"},
	"radarr.url":                 {"RADARR_0_URL", "RADARR_URL"},
	"radarr.api_path":            {"RADARR_0_API_PATH", "RADARR_API_PATH"},
	"radarr.api_key":             {"RADARR_0_API_KEY", "RADARR_API_KEY"},
	"sonarr.url":                 {"SONARR_0_URL", "SONARR_URL"},
	"sonarr.api_path":            {"SONARR_0_API_PATH", "SONARR_API_PATH"},
	"sonarr.api_key":             {"SONARR_0_API_KEY", "SONARR_API_KEY"},
	"scheduler.interval_minutes": {"PLEX_LINKER_SCAN_INTERVAL_MINUTES"},
	"database.path":              {"DATABASE_URL"},
	"rules.yaml_path":            {"YAML_FILE_PREVIOUS"},
	"rules.archive_dir":          {"CONFIG_ARCHIVES"},
	"logging.path":               {"LOGS"},
}

// LoadDotEnv loads variables from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.plexlinker")
	}

	v.SetEnvPrefix("PLEXLINKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("media.root", "")
	v.SetDefault("media.show_root_prefix", d.Media.ShowRootPrefix)
	v.SetDefault("media.lock_path", "")
	v.SetDefault("media.puid", d.Media.PUID)
	v.SetDefault("media.pgid", d.Media.PGID)
	v.SetDefault("media.file_mode", d.Media.FileMode)

	for _, svc := range []string{"radarr", "sonarr"} {
		v.SetDefault(svc+".url", "")
		v.SetDefault(svc+".api_path", "/api/v3")
		v.SetDefault(svc+".api_key", "")
	}

	v.SetDefault("client.throttle_ms", d.Client.ThrottleMS)
	v.SetDefault("client.timeout_seconds", d.Client.TimeoutSeconds)

	v.SetDefault("rules.source", d.Rules.Source)
	v.SetDefault("rules.yaml_path", d.Rules.YAMLPath)
	v.SetDefault("rules.settings_path", "")
	v.SetDefault("rules.archive_dir", "")

	v.SetDefault("scheduler.interval_minutes", d.Scheduler.IntervalMinutes)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

func (c *Config) normalize() {
	c.Rules.Source = strings.ToLower(strings.TrimSpace(c.Rules.Source))
	c.Database.Path = DatabasePath(c.Database.Path)
	c.Media.Root = strings.TrimSpace(c.Media.Root)
	if c.Media.ShowRootPrefix == "" {
		c.Media.ShowRootPrefix = "/"
	}
	if c.Media.LockPath == "" && c.Media.Root != "" {
		c.Media.LockPath = filepath.Join(c.Media.Root, "pid.lock")
	}
}

// DatabasePath accepts a plain file path or a sqlite URL
// ("sqlite:///data/app.db", "file:app.db") and returns the file path.
func DatabasePath(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "sqlite:///"):
		return "/" + strings.TrimPrefix(raw, "sqlite:///")
	case strings.HasPrefix(raw, "sqlite://"):
		return strings.TrimPrefix(raw, "sqlite://")
	case strings.HasPrefix(raw, "file:"):
		return strings.TrimPrefix(raw, "file:")
	}
	return raw
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	switch c.Rules.Source {
	case RulesSourceDB:
		if c.Database.Path == "" {
			return errors.New("database.path is required when rules.source is db")
		}
	case RulesSourceYAML:
		if c.Rules.YAMLPath == "" {
			return errors.New("rules.yaml_path is required when rules.source is yaml")
		}
	default:
		return fmt.Errorf("invalid rules.source %q: must be %q or %q", c.Rules.Source, RulesSourceDB, RulesSourceYAML)
	}
	if _, err := c.Media.Mode(); err != nil {
		return err
	}
	if c.Scheduler.IntervalMinutes < 0 {
		return fmt.Errorf("invalid scheduler.interval_minutes %d", c.Scheduler.IntervalMinutes)
	}
	return nil
}

// Mode parses FileMode as an octal permission.
func (c MediaConfig) Mode() (os.FileMode, error) {
	if strings.TrimSpace(c.FileMode) == "" {
		return 0, nil
	}
	m, err := strconv.ParseUint(strings.TrimSpace(c.FileMode), 8, 32)
	if err != nil || m > 0o7777 {
		return 0, fmt.Errorf("invalid media.file_mode %q", c.FileMode)
	}
	return os.FileMode(m), nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Throttle returns the delay before each arr request.
func (c ClientConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleMS) * time.Millisecond
}

// Timeout returns the per-request timeout.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the pass interval before the scheduler floor is applied.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
