package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/subosito/gotenv"
)

// Backend kinds
const (
	BackendPostgres  = "postgres"
	BackendPostgREST = "postgrest"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Backend   BackendConfig
	JWT       JWTConfig
	Store     StoreConfig
	Realtime  RealtimeConfig
	Refresh   RefreshConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Timezone  *time.Location
}

type ServerConfig struct {
	Port           string
	Host           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// URL, when set, wins over the individual fields.
	URL string
}

type BackendConfig struct {
	Kind        string
	SupabaseURL string
	ServiceKey  string
}

type JWTConfig struct {
	Secret string
}

type StoreConfig struct {
	PageSize       int
	CategoryTables []string
	LocalCachePath string
	// IdleTTL drops unobserved stores not requested for this long; 0 keeps them.
	IdleTTL time.Duration
}

type RealtimeConfig struct {
	Enabled bool
	Channel string
}

type RefreshConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	// Interval between polls of watched stores; 0 disables polling.
	Interval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	MetricsPort  string
}

// Load reads the configuration from the environment. A .env file in the
// working directory, if present, fills in variables that are not already set.
func Load() (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	pageSize, err := getIntEnv("STORE_PAGE_SIZE", 250)
	if err != nil {
		return nil, err
	}
	workers, err := getIntEnv("REFRESH_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	queueSize, err := getIntEnv("REFRESH_QUEUE_SIZE", 128)
	if err != nil {
		return nil, err
	}
	refreshTimeout, err := time.ParseDuration(getEnv("REFRESH_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TIMEOUT: %w", err)
	}
	refreshInterval, err := time.ParseDuration(getEnv("REFRESH_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	idleTTL, err := time.ParseDuration(getEnv("STORE_IDLE_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_IDLE_TTL: %w", err)
	}
	tz, err := time.LoadLocation(getEnv("APP_TIMEZONE", "Asia/Manila"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Host:           getEnv("HOST", "0.0.0.0"),
			AllowedOrigins: getListEnv("ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "gastos"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			URL:      getEnv("DATABASE_URL", ""),
		},
		Backend: BackendConfig{
			Kind:        strings.ToLower(getEnv("BACKEND", BackendPostgres)),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			ServiceKey:  getEnv("SUPABASE_SERVICE_KEY", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Store: StoreConfig{
			PageSize:       pageSize,
			CategoryTables: getListEnv("CATEGORY_TABLES", []string{"categories", "category"}),
			LocalCachePath: getEnv("LOCAL_CACHE_PATH", ""),
			IdleTTL:        idleTTL,
		},
		Realtime: RealtimeConfig{
			Enabled: getBoolEnv("REALTIME_ENABLED", true),
			Channel: getEnv("REALTIME_CHANNEL", "expenses_changed"),
		},
		Refresh: RefreshConfig{
			Workers:   workers,
			QueueSize: queueSize,
			Timeout:   refreshTimeout,
			Interval:  refreshInterval,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "gastos-api"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Timezone: tz,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Store.PageSize <= 0 {
		return fmt.Errorf("STORE_PAGE_SIZE must be positive")
	}
	if c.Store.IdleTTL < 0 {
		return fmt.Errorf("STORE_IDLE_TTL must not be negative")
	}
	if len(c.Store.CategoryTables) == 0 {
		return fmt.Errorf("CATEGORY_TABLES must name at least one table")
	}

	switch c.Backend.Kind {
	case BackendPostgres:
	case BackendPostgREST:
		if c.Backend.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required when BACKEND=postgrest")
		}
		if c.Backend.ServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required when BACKEND=postgrest")
		}
	default:
		return fmt.Errorf("BACKEND must be %q or %q, got %q", BackendPostgres, BackendPostgREST, c.Backend.Kind)
	}

	if c.Refresh.Workers <= 0 {
		return fmt.Errorf("REFRESH_WORKERS must be positive")
	}
	if c.Refresh.Interval < 0 {
		return fmt.Errorf("REFRESH_INTERVAL must not be negative")
	}
	return nil
}

// HasDatabase reports whether a database connection is configured. The
// postgrest backend only needs one for realtime notifications.
func (c *Config) HasDatabase() bool {
	return c.Backend.Kind == BackendPostgres || c.Database.URL != ""
}

func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// getListEnv splits a comma-separated variable, dropping blank items.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
