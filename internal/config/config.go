package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Line      LineConfig      `yaml:"line"`
	Export    ExportConfig    `yaml:"export"`
	Auth      AuthConfig      `yaml:"auth"`
	NATS      NATSConfig      `yaml:"nats"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects the training log backend. Driver is "postgres" or "sqlite".
type StoreConfig struct {
	Driver      string         `yaml:"driver"`
	Database    DatabaseConfig `yaml:"database"`
	Path        string         `yaml:"path"`
	TimeZone    string         `yaml:"time_zone"`
	LockTimeout time.Duration  `yaml:"lock_timeout"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// LineConfig holds Messaging API credentials. The *_secret fields name Secret
// Manager secrets used when the value itself is not set.
type LineConfig struct {
	ChannelAccessToken  string `yaml:"channel_access_token"`
	ChannelSecret       string `yaml:"channel_secret"`
	AccessTokenSecret   string `yaml:"access_token_secret"`
	ChannelSecretSecret string `yaml:"channel_secret_secret"`
}

// ExportConfig selects where export artifacts are published. Backend is
// "gcs" or "local".
type ExportConfig struct {
	Backend         string `yaml:"backend"`
	FileName        string `yaml:"file_name"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
	Dir             string `yaml:"dir"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// NATSConfig enables event notifications when URL is set.
type NATSConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type SecretsConfig struct {
	ProjectID string `yaml:"project_id"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
	Funnel   bool   `yaml:"funnel"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Target returns what the store driver connects to: the Postgres DSN or the
// SQLite file path.
func (s StoreConfig) Target() string {
	if s.Driver == "postgres" {
		return s.Database.DSN()
	}
	return s.Path
}

// Location loads the configured time zone.
func (s StoreConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", s.TimeZone, err)
	}
	return loc, nil
}

// Load reads config from a YAML file, then applies defaults and environment
// variable overrides. An empty path skips the file. Env vars use the prefix
// LIFTLOG_:
//
//	LIFTLOG_SERVER_HOST, LIFTLOG_SERVER_PORT,
//	LIFTLOG_STORE_DRIVER, LIFTLOG_STORE_PATH, LIFTLOG_TIME_ZONE, LIFTLOG_LOCK_TIMEOUT,
//	LIFTLOG_DB_HOST, LIFTLOG_DB_PORT, LIFTLOG_DB_NAME,
//	LIFTLOG_DB_USER, LIFTLOG_DB_PASSWORD, LIFTLOG_DB_SSLMODE,
//	LIFTLOG_LINE_CHANNEL_ACCESS_TOKEN, LIFTLOG_LINE_CHANNEL_SECRET,
//	LIFTLOG_EXPORT_BACKEND, LIFTLOG_EXPORT_FILE_NAME, LIFTLOG_EXPORT_BUCKET,
//	LIFTLOG_EXPORT_PREFIX, LIFTLOG_EXPORT_DIR, LIFTLOG_EXPORT_PUBLIC_BASE_URL,
//	LIFTLOG_AUTH_API_KEY, LIFTLOG_NATS_URL, LIFTLOG_NATS_TOKEN,
//	LIFTLOG_GCP_PROJECT, LIFTLOG_TAILSCALE_ENABLED, LIFTLOG_TAILSCALE_FUNNEL,
//	LIFTLOG_LOG_LEVEL, LIFTLOG_LOG_FORMAT
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.Path == "" {
		cfg.Store.Path = "liftlog.db"
	}
	if cfg.Store.Database.Port == 0 {
		cfg.Store.Database.Port = 5432
	}
	if cfg.Store.TimeZone == "" {
		cfg.Store.TimeZone = "Asia/Tokyo"
	}
	if cfg.Store.LockTimeout == 0 {
		cfg.Store.LockTimeout = 30 * time.Second
	}
	if cfg.Export.Backend == "" {
		cfg.Export.Backend = "local"
	}
	if cfg.Export.FileName == "" {
		cfg.Export.FileName = "training_data.json"
	}
	if cfg.Export.Backend == "local" && cfg.Export.Dir == "" {
		cfg.Export.Dir = "exports"
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "liftlog"
	}
	if cfg.Tailscale.StateDir == "" {
		cfg.Tailscale.StateDir = "tsnet-state"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("LIFTLOG_SERVER_HOST", &cfg.Server.Host)
	setInt("LIFTLOG_SERVER_PORT", &cfg.Server.Port)

	setString("LIFTLOG_STORE_DRIVER", &cfg.Store.Driver)
	setString("LIFTLOG_STORE_PATH", &cfg.Store.Path)
	setString("LIFTLOG_TIME_ZONE", &cfg.Store.TimeZone)
	if v := os.Getenv("LIFTLOG_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.LockTimeout = d
		}
	}
	setString("LIFTLOG_DB_HOST", &cfg.Store.Database.Host)
	setInt("LIFTLOG_DB_PORT", &cfg.Store.Database.Port)
	setString("LIFTLOG_DB_NAME", &cfg.Store.Database.Name)
	setString("LIFTLOG_DB_USER", &cfg.Store.Database.User)
	setString("LIFTLOG_DB_PASSWORD", &cfg.Store.Database.Password)
	setString("LIFTLOG_DB_SSLMODE", &cfg.Store.Database.SSLMode)

	setString("LIFTLOG_LINE_CHANNEL_ACCESS_TOKEN", &cfg.Line.ChannelAccessToken)
	setString("LIFTLOG_LINE_CHANNEL_SECRET", &cfg.Line.ChannelSecret)

	setString("LIFTLOG_EXPORT_BACKEND", &cfg.Export.Backend)
	setString("LIFTLOG_EXPORT_FILE_NAME", &cfg.Export.FileName)
	setString("LIFTLOG_EXPORT_BUCKET", &cfg.Export.Bucket)
	setString("LIFTLOG_EXPORT_PREFIX", &cfg.Export.Prefix)
	setString("LIFTLOG_EXPORT_DIR", &cfg.Export.Dir)
	setString("LIFTLOG_EXPORT_PUBLIC_BASE_URL", &cfg.Export.PublicBaseURL)

	setString("LIFTLOG_AUTH_API_KEY", &cfg.Auth.APIKey)
	setString("LIFTLOG_NATS_URL", &cfg.NATS.URL)
	setString("LIFTLOG_NATS_TOKEN", &cfg.NATS.Token)
	setString("LIFTLOG_GCP_PROJECT", &cfg.Secrets.ProjectID)
	setBool("LIFTLOG_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	setBool("LIFTLOG_TAILSCALE_FUNNEL", &cfg.Tailscale.Funnel)
	setString("LIFTLOG_LOG_LEVEL", &cfg.Log.Level)
	setString("LIFTLOG_LOG_FORMAT", &cfg.Log.Format)
}

// ValidateServer checks the settings only the webhook server needs. Load
// leaves them out so the admin CLI can run with store and export settings alone.
func (c *Config) ValidateServer() error {
	if !c.Tailscale.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Line.ChannelAccessToken == "" && (c.Line.AccessTokenSecret == "" || c.Secrets.ProjectID == "") {
		return fmt.Errorf("line.channel_access_token is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.Database.Host == "" {
			return fmt.Errorf("store.database.host is required")
		}
		if c.Store.Database.Name == "" {
			return fmt.Errorf("store.database.name is required")
		}
		if c.Store.Database.User == "" {
			return fmt.Errorf("store.database.user is required")
		}
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required")
		}
	default:
		return fmt.Errorf("store.driver must be postgres or sqlite, got %q", c.Store.Driver)
	}
	if _, err := c.Store.Location(); err != nil {
		return fmt.Errorf("store.time_zone: %w", err)
	}
	if c.Store.LockTimeout < 0 {
		return fmt.Errorf("store.lock_timeout must not be negative")
	}

	switch c.Export.Backend {
	case "gcs":
		if c.Export.Bucket == "" {
			return fmt.Errorf("export.bucket is required for the gcs backend")
		}
	case "local":
		if c.Export.Dir == "" {
			return fmt.Errorf("export.dir is required for the local backend")
		}
		if c.Export.PublicBaseURL == "" {
			return fmt.Errorf("export.public_base_url is required for the local backend")
		}
	default:
		return fmt.Errorf("export.backend must be gcs or local, got %q", c.Export.Backend)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
