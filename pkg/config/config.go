package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// EnvConfigFile names the optional YAML config file
const EnvConfigFile = "TASKHUB_CONFIG"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Broadcast     BroadcastConfig     `yaml:"broadcast"`
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

	// RequestTimeout is the context deadline given to every API request
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	// CookieSecure marks the refresh cookie Secure; disable only for plain-HTTP development
	CookieSecure bool `yaml:"cookie_secure"`

	// Login attempts allowed per client IP per minute, plus burst
	LoginRatePerMinute int `yaml:"login_rate_per_minute"`
	LoginRateBurst     int `yaml:"login_rate_burst"`
	// TrustedProxies are CIDRs or addresses whose X-Forwarded-For is believed
	// when keying the login limiter. Empty means the socket peer is the client.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// AuthConfig holds token, password and access rule settings
type AuthConfig struct {
	AccessSecret  string        `yaml:"access_secret"`
	RefreshSecret string        `yaml:"refresh_secret"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	Issuer        string        `yaml:"issuer"`
	BcryptCost    int           `yaml:"bcrypt_cost"`

	MinPasswordLength        int  `yaml:"min_password_length"`
	AllowRoleOnSignup        bool `yaml:"allow_role_on_signup"`
	MembersCanCreateProjects bool `yaml:"members_can_create_projects"`
}

// BroadcastConfig selects the sinks change events are delivered to. Each
// sink is enabled by setting its address.
type BroadcastConfig struct {
	Timeout time.Duration `yaml:"timeout"`

	// RedisChannel publishes on the storage redis when set
	RedisChannel string `yaml:"redis_channel"`

	NATSURL           string `yaml:"nats_url"`
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`

	WebhookURL           string  `yaml:"webhook_url"`
	WebhookSecret        string  `yaml:"webhook_secret"`
	WebhookMaxAttempts   int     `yaml:"webhook_max_attempts"`
	WebhookRatePerSecond float64 `yaml:"webhook_rate_per_second"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`
	// GaugeSchedule is the cron expression for refreshing the entity count gauges
	GaugeSchedule string `yaml:"gauge_schedule"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               "5000",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			IdleTimeout:        60 * time.Second,
			ShutdownTimeout:    30 * time.Second,
			RequestTimeout:     15 * time.Second,
			MaxBodyBytes:       1 << 20,
			AllowedOrigins:     []string{"http://localhost:3000"},
			CookieSecure:       true,
			LoginRatePerMinute: 10,
			LoginRateBurst:     5,
		},
		Storage: storage.DefaultConfig(),
		Auth: AuthConfig{
			AccessTTL:         time.Hour,
			RefreshTTL:        7 * 24 * time.Hour,
			Issuer:            "taskhub",
			BcryptCost:        10,
			MinPasswordLength: 6,
			AllowRoleOnSignup: true,
		},
		Broadcast: BroadcastConfig{
			Timeout:            5 * time.Second,
			NATSSubjectPrefix:  "taskhub.events",
			WebhookMaxAttempts: 3,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			GaugeSchedule:      "@every 1m",
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "taskhub",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig loads configuration from the file named by TASKHUB_CONFIG (if
// any) and the environment
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load builds the configuration in layers: defaults, then a .env file in the
// working directory, then the YAML file at path (optional), then TASKHUB_*
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	setString(&s.Host, "TASKHUB_HOST")
	setString(&s.Port, "TASKHUB_PORT")
	setDuration(&s.ReadTimeout, "TASKHUB_READ_TIMEOUT")
	setDuration(&s.WriteTimeout, "TASKHUB_WRITE_TIMEOUT")
	setDuration(&s.IdleTimeout, "TASKHUB_IDLE_TIMEOUT")
	setDuration(&s.ShutdownTimeout, "TASKHUB_SHUTDOWN_TIMEOUT")
	setDuration(&s.RequestTimeout, "TASKHUB_REQUEST_TIMEOUT")
	setInt64(&s.MaxBodyBytes, "TASKHUB_MAX_BODY_BYTES")
	setList(&s.AllowedOrigins, "TASKHUB_ALLOWED_ORIGINS")
	setBool(&s.CookieSecure, "TASKHUB_COOKIE_SECURE")
	setInt(&s.LoginRatePerMinute, "TASKHUB_LOGIN_RATE_PER_MINUTE")
	setInt(&s.LoginRateBurst, "TASKHUB_LOGIN_RATE_BURST")
	setList(&s.TrustedProxies, "TASKHUB_TRUSTED_PROXIES")

	st := &c.Storage
	setString(&st.Type, "TASKHUB_STORAGE_TYPE")
	setString(&st.PostgresURL, "TASKHUB_POSTGRES_URL")
	setList(&st.PostgresReplicaURLs, "TASKHUB_POSTGRES_REPLICA_URLS")
	setInt(&st.PostgresMaxConns, "TASKHUB_POSTGRES_MAX_CONNS")
	setInt(&st.PostgresMinConns, "TASKHUB_POSTGRES_MIN_CONNS")
	setDuration(&st.PostgresTimeout, "TASKHUB_POSTGRES_TIMEOUT")
	setString(&st.SQLitePath, "TASKHUB_SQLITE_PATH")
	setString(&st.RedisURL, "TASKHUB_REDIS_URL")
	setString(&st.RedisPassword, "TASKHUB_REDIS_PASSWORD")
	setInt(&st.RedisDB, "TASKHUB_REDIS_DB")
	setInt(&st.RedisMaxRetries, "TASKHUB_REDIS_MAX_RETRIES")
	setInt(&st.RedisPoolSize, "TASKHUB_REDIS_POOL_SIZE")
	setBool(&st.CacheEnabled, "TASKHUB_CACHE_ENABLED")
	setDuration(&st.UserCacheTTL, "TASKHUB_USER_CACHE_TTL")
	setInt(&st.NameCacheSize, "TASKHUB_NAME_CACHE_SIZE")
	setDuration(&st.NameCacheTTL, "TASKHUB_NAME_CACHE_TTL")

	a := &c.Auth
	setString(&a.AccessSecret, "TASKHUB_ACCESS_TOKEN_SECRET")
	setString(&a.RefreshSecret, "TASKHUB_REFRESH_TOKEN_SECRET")
	setDuration(&a.AccessTTL, "TASKHUB_ACCESS_TOKEN_TTL")
	setDuration(&a.RefreshTTL, "TASKHUB_REFRESH_TOKEN_TTL")
	setString(&a.Issuer, "TASKHUB_TOKEN_ISSUER")
	setInt(&a.BcryptCost, "TASKHUB_BCRYPT_COST")
	setInt(&a.MinPasswordLength, "TASKHUB_MIN_PASSWORD_LENGTH")
	setBool(&a.AllowRoleOnSignup, "TASKHUB_ALLOW_ROLE_ON_SIGNUP")
	setBool(&a.MembersCanCreateProjects, "TASKHUB_MEMBERS_CAN_CREATE_PROJECTS")

	b := &c.Broadcast
	setDuration(&b.Timeout, "TASKHUB_BROADCAST_TIMEOUT")
	setString(&b.RedisChannel, "TASKHUB_BROADCAST_REDIS_CHANNEL")
	setString(&b.NATSURL, "TASKHUB_NATS_URL")
	setString(&b.NATSSubjectPrefix, "TASKHUB_NATS_SUBJECT_PREFIX")
	setString(&b.WebhookURL, "TASKHUB_WEBHOOK_URL")
	setString(&b.WebhookSecret, "TASKHUB_WEBHOOK_SECRET")
	setInt(&b.WebhookMaxAttempts, "TASKHUB_WEBHOOK_MAX_ATTEMPTS")
	setFloat(&b.WebhookRatePerSecond, "TASKHUB_WEBHOOK_RATE_PER_SECOND")

	o := &c.Observability
	setString(&o.LogLevel, "TASKHUB_LOG_LEVEL")
	setBool(&o.MetricsEnabled, "TASKHUB_METRICS_ENABLED")
	setString(&o.GaugeSchedule, "TASKHUB_GAUGE_SCHEDULE")
	setBool(&o.OTelEnabled, "TASKHUB_OTEL_ENABLED")
	setString(&o.OTelEndpoint, "TASKHUB_OTEL_ENDPOINT")
	setString(&o.OTelServiceName, "TASKHUB_OTEL_SERVICE_NAME")
	setString(&o.OTelServiceVersion, "TASKHUB_OTEL_SERVICE_VERSION")
	setBool(&o.OTelInsecure, "TASKHUB_OTEL_INSECURE")
	setFloat(&o.OTelSampleRatio, "TASKHUB_OTEL_SAMPLE_RATIO")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if c.Server.LoginRatePerMinute <= 0 {
		return fmt.Errorf("login rate must be positive")
	}
	if _, err := httputil.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return err
	}

	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("access token secret is required (TASKHUB_ACCESS_TOKEN_SECRET)")
	}
	if c.Auth.RefreshSecret == "" {
		return fmt.Errorf("refresh token secret is required (TASKHUB_REFRESH_TOKEN_SECRET)")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, or sqlite)", c.Storage.Type)
	}

	if c.Broadcast.WebhookURL != "" {
		u, err := url.Parse(c.Broadcast.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook URL must be an absolute http(s) URL")
		}
	}
	if c.Broadcast.RedisChannel != "" && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis broadcast requires a redis URL")
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

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			*dst = intVal
		}
	}
}

func setInt64(dst *int64, key string) {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dst = intVal
		}
	}
}

func setFloat(dst *float64, key string) {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			*dst = duration
		}
	}
}

func setList(dst *[]string, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
