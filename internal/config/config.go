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

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Log     LogConfig
	Cache   CacheConfig
	AuditDB AuditDBConfig
	Audit   AuditConfig
	Backend BackendConfig
	POS     POSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"fz-pos-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	JSON  bool   `envconfig:"LOG_JSON" default:"false"`
}

// CacheConfig holds cache settings for the browse grid and the audit buffer.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"fzpos"`
}

// AuditDBConfig holds audit trail database settings.
type AuditDBConfig struct {
	Type string `envconfig:"AUDIT_DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql or mongodb
	Path string `envconfig:"AUDIT_DB_PATH" default:"./data/audit.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"AUDIT_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"AUDIT_DB_PORT" default:"5432"`
	Name     string `envconfig:"AUDIT_DB_NAME" default:"fzpos"`
	User     string `envconfig:"AUDIT_DB_USER" default:"postgres"`
	Password string `envconfig:"AUDIT_DB_PASS" default:""`
	SSLMode  string `envconfig:"AUDIT_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI string `envconfig:"AUDIT_MONGO_URI" default:"mongodb://localhost:27017"`
}

// AuditConfig holds audit buffering and retention settings.
type AuditConfig struct {
	FlushInterval   time.Duration `envconfig:"AUDIT_FLUSH_INTERVAL" default:"10s"`
	Retention       time.Duration `envconfig:"AUDIT_RETENTION" default:"720h"`
	CleanupInterval time.Duration `envconfig:"AUDIT_CLEANUP_INTERVAL" default:"1h"`
}

// BackendConfig holds settings for the admin backend REST API.
type BackendConfig struct {
	BaseURL  string        `envconfig:"BACKEND_BASE_URL" default:"http://localhost:8000/api"`
	Token    string        `envconfig:"BACKEND_TOKEN" default:""`
	Timeout  time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
	RetryMax int           `envconfig:"BACKEND_RETRY_MAX" default:"2"`
}

// POSConfig holds the point-of-sale policy constants.
type POSConfig struct {
	ScanThreshold  time.Duration `envconfig:"POS_SCAN_THRESHOLD" default:"100ms"`
	IdleTimeout    time.Duration `envconfig:"POS_IDLE_TIMEOUT" default:"150ms"`
	DedupWindow    time.Duration `envconfig:"POS_DEDUP_WINDOW" default:"1s"`
	PollInterval   time.Duration `envconfig:"POS_POLL_INTERVAL" default:"3s"`
	MinExecLength  int           `envconfig:"POS_MIN_EXEC_LENGTH" default:"2"`
	MinAutoLength  int           `envconfig:"POS_MIN_AUTO_LENGTH" default:"3"`
	MinBareLength  int           `envconfig:"POS_MIN_BARE_LENGTH" default:"4"`
	CodePrefix     string        `envconfig:"POS_CODE_PREFIX" default:"FZ-"`
	ToastTTL       time.Duration `envconfig:"POS_TOAST_TTL" default:"3s"`
	ToastLimit     int           `envconfig:"POS_TOAST_LIMIT" default:"5"`
	SessionIdleTTL time.Duration `envconfig:"POS_SESSION_IDLE_TTL" default:"12h"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (a *AuditDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		a.User, a.Password, a.Host, a.Port, a.Name, a.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (a *AuditDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		a.User, a.Password, a.Host, a.Port, a.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
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
