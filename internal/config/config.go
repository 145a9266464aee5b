package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all terminal configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	LocalDB LocalDBConfig
	Remote  RemoteConfig
	Sync    SyncConfig
}

// ServerConfig holds the local HTTP surface settings. The terminal UI is
// the only expected client, so the default bind is loopback.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"SERVER_PORT" default:"7380"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"tillsync"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// LocalDBConfig holds the on-device SQLite settings.
type LocalDBConfig struct {
	Path string `envconfig:"LOCAL_DB_PATH" default:"./data/tillsync.db"`
}

// RemoteConfig holds the authoritative store connection settings.
type RemoteConfig struct {
	Host     string `envconfig:"REMOTE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"REMOTE_DB_PORT" default:"3306"`
	Name     string `envconfig:"REMOTE_DB_NAME" default:"pos"`
	User     string `envconfig:"REMOTE_DB_USER" default:"root"`
	Password string `envconfig:"REMOTE_DB_PASS" default:""`
}

// SyncConfig holds sync engine tuning knobs.
type SyncConfig struct {
	OrdersPullLimit int           `envconfig:"SYNC_ORDERS_PULL_LIMIT" default:"50"`
	ProbeInterval   time.Duration `envconfig:"SYNC_PROBE_INTERVAL" default:"10s"`
	ProbeTimeout    time.Duration `envconfig:"SYNC_PROBE_TIMEOUT" default:"3s"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSN returns the MySQL data source name for the remote store.
func (r *RemoteConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		r.User, r.Password, r.Host, r.Port, r.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
