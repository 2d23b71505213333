// Package config loads application configuration from environment variables,
// with an optional YAML file overlay for deployment-managed settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskhive/taskhive/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	SSO           SSOConfig           `yaml:"sso"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string        `yaml:"url"`
	MaxConns int           `yaml:"max_conns"`
	MinConns int           `yaml:"min_conns"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig holds Redis configuration (rate limiting)
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds token signing and credential settings
type AuthConfig struct {
	// JWTSecret is the HMAC signing key, loaded once and immutable for
	// the process lifetime.
	JWTSecret string `yaml:"jwt_secret"`

	AccessTokenMinutes int `yaml:"access_token_minutes"`
	RefreshTokenDays   int `yaml:"refresh_token_days"`

	// SeedAdminPassword is used by the bootstrap seeder; empty disables seeding.
	SeedAdminPassword string `yaml:"seed_admin_password"`
}

// SSOConfig holds federated login settings
type SSOConfig struct {
	GitHubClientID     string `yaml:"github_client_id"`
	GitHubClientSecret string `yaml:"github_client_secret"`

	OIDCIssuerURL    string   `yaml:"oidc_issuer_url"`
	OIDCClientID     string   `yaml:"oidc_client_id"`
	OIDCClientSecret string   `yaml:"oidc_client_secret"`
	OIDCScopes       []string `yaml:"oidc_scopes"`

	// CallbackBaseURL is this server's externally visible base URL,
	// used to build provider redirect URIs.
	CallbackBaseURL string `yaml:"callback_base_url"`

	// FrontendRedirectURL receives issued tokens as query parameters
	// after a successful federated login.
	FrontendRedirectURL string `yaml:"frontend_redirect_url"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel `yaml:"-"`
	LogLevelName   string                 `yaml:"log_level"`
	MetricsEnabled bool                   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from environment variables. When
// TASKHIVE_CONFIG_FILE points at a YAML file, its values are applied first
// and environment variables override them.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("TASKHIVE_CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.Observability.LogLevel = parseLogLevel(cfg.Observability.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			MaxConns: 25,
			MinConns: 5,
			Timeout:  5 * time.Second,
		},
		Auth: AuthConfig{
			AccessTokenMinutes: 15,
			RefreshTokenDays:   7,
		},
		Observability: ObservabilityConfig{
			LogLevelName:       "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "taskhive",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("TASKHIVE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("TASKHIVE_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("TASKHIVE_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("TASKHIVE_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("TASKHIVE_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("TASKHIVE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("TASKHIVE_HEALTH_PORT", cfg.Server.HealthPort)
	if origins := getEnv("TASKHIVE_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	cfg.Database.URL = getEnv("TASKHIVE_POSTGRES_URL", cfg.Database.URL)
	cfg.Database.MaxConns = getEnvInt("TASKHIVE_POSTGRES_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvInt("TASKHIVE_POSTGRES_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.Timeout = getEnvDuration("TASKHIVE_POSTGRES_TIMEOUT", cfg.Database.Timeout)

	cfg.Redis.URL = getEnv("TASKHIVE_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnv("TASKHIVE_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("TASKHIVE_REDIS_DB", cfg.Redis.DB)

	cfg.Auth.JWTSecret = getEnv("TASKHIVE_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTokenMinutes = getEnvInt("TASKHIVE_JWT_ACCESS_MINUTES", cfg.Auth.AccessTokenMinutes)
	cfg.Auth.RefreshTokenDays = getEnvInt("TASKHIVE_JWT_REFRESH_DAYS", cfg.Auth.RefreshTokenDays)
	cfg.Auth.SeedAdminPassword = getEnv("TASKHIVE_SEED_ADMIN_PASSWORD", cfg.Auth.SeedAdminPassword)

	cfg.SSO.GitHubClientID = getEnv("TASKHIVE_GITHUB_CLIENT_ID", cfg.SSO.GitHubClientID)
	cfg.SSO.GitHubClientSecret = getEnv("TASKHIVE_GITHUB_CLIENT_SECRET", cfg.SSO.GitHubClientSecret)
	cfg.SSO.OIDCIssuerURL = getEnv("TASKHIVE_OIDC_ISSUER_URL", cfg.SSO.OIDCIssuerURL)
	cfg.SSO.OIDCClientID = getEnv("TASKHIVE_OIDC_CLIENT_ID", cfg.SSO.OIDCClientID)
	cfg.SSO.OIDCClientSecret = getEnv("TASKHIVE_OIDC_CLIENT_SECRET", cfg.SSO.OIDCClientSecret)
	cfg.SSO.CallbackBaseURL = getEnv("TASKHIVE_SSO_CALLBACK_BASE_URL", cfg.SSO.CallbackBaseURL)
	cfg.SSO.FrontendRedirectURL = getEnv("TASKHIVE_SSO_FRONTEND_REDIRECT_URL", cfg.SSO.FrontendRedirectURL)

	cfg.Observability.LogLevelName = getEnv("TASKHIVE_LOG_LEVEL", cfg.Observability.LogLevelName)
	cfg.Observability.MetricsEnabled = getEnvBool("TASKHIVE_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("TASKHIVE_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("TASKHIVE_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("TASKHIVE_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("TASKHIVE_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("TASKHIVE_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes for HMAC-SHA256")
	}
	if c.Auth.AccessTokenMinutes <= 0 {
		return fmt.Errorf("access token lifetime must be positive")
	}
	if c.Auth.RefreshTokenDays <= 0 {
		return fmt.Errorf("refresh token lifetime must be positive")
	}

	if c.SSO.GitHubClientID != "" && c.SSO.FrontendRedirectURL == "" {
		return fmt.Errorf("frontend redirect URL is required when SSO is configured")
	}
	if c.SSO.OIDCClientID != "" && c.SSO.OIDCIssuerURL == "" {
		return fmt.Errorf("OIDC issuer URL is required when an OIDC client is configured")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
