package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("TASKHUB_ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("TASKHUB_REFRESH_TOKEN_SECRET", "refresh-secret")
}

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.AccessSecret = "access-secret"
	cfg.Auth.RefreshSecret = "refresh-secret"
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	setSecrets(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.True(t, cfg.Auth.AllowRoleOnSignup)
	assert.False(t, cfg.Auth.MembersCanCreateProjects)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
}

func TestLoadEnvOverrides(t *testing.T) {
	setSecrets(t)
	t.Setenv("TASKHUB_PORT", "9000")
	t.Setenv("TASKHUB_REQUEST_TIMEOUT", "3s")
	t.Setenv("TASKHUB_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("TASKHUB_STORAGE_TYPE", "postgres")
	t.Setenv("TASKHUB_POSTGRES_URL", "postgres://localhost/taskhub")
	t.Setenv("TASKHUB_POSTGRES_REPLICA_URLS", "postgres://r1/taskhub,postgres://r2/taskhub")
	t.Setenv("TASKHUB_MEMBERS_CAN_CREATE_PROJECTS", "1")
	t.Setenv("TASKHUB_LOG_LEVEL", "debug")
	t.Setenv("TASKHUB_WEBHOOK_RATE_PER_SECOND", "2.5")
	t.Setenv("TASKHUB_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Len(t, cfg.Storage.PostgresReplicaURLs, 2)
	assert.True(t, cfg.Auth.MembersCanCreateProjects)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
	assert.Equal(t, 2.5, cfg.Broadcast.WebhookRatePerSecond)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.Server.TrustedProxies)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	setSecrets(t)
	t.Setenv("TASKHUB_REQUEST_TIMEOUT", "soon")
	t.Setenv("TASKHUB_BCRYPT_COST", "high")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7000"
  request_timeout: 5s
auth:
  access_secret: file-access
  refresh_secret: file-refresh
  allow_role_on_signup: false
storage:
  type: sqlite
  sqlite_path: /tmp/taskhub.db
broadcast:
  nats_url: nats://localhost:4222
`), 0o600))

	// env wins over the file
	t.Setenv("TASKHUB_PORT", "7001")
	t.Setenv(EnvConfigFile, path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "file-access", cfg.Auth.AccessSecret)
	assert.False(t, cfg.Auth.AllowRoleOnSignup)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "/tmp/taskhub.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "nats://localhost:4222", cfg.Broadcast.NATSURL)
	// untouched sections keep their defaults
	assert.Equal(t, time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, "taskhub.events", cfg.Broadcast.NATSSubjectPrefix)
}

func TestLoadYAMLErrors(t *testing.T) {
	setSecrets(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"missing access secret", func(c *Config) { c.Auth.AccessSecret = "" }, "access token secret is required"},
		{"missing refresh secret", func(c *Config) { c.Auth.RefreshSecret = "" }, "refresh token secret is required"},
		{"identical secrets", func(c *Config) { c.Auth.RefreshSecret = c.Auth.AccessSecret }, "must differ"},
		{"zero request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }, "request timeout"},
		{"bad bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 2 }, "bcrypt cost"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }, "invalid storage type"},
		{"postgres without url", func(c *Config) { c.Storage.Type = "postgres" }, "postgres URL is required"},
		{"sqlite without path", func(c *Config) { c.Storage.Type = "sqlite"; c.Storage.SQLitePath = "" }, "sqlite path is required"},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"lb.internal"} }, "invalid trusted proxy"},
		{"relative webhook", func(c *Config) { c.Broadcast.WebhookURL = "/hooks" }, "webhook URL"},
		{"redis broadcast without redis", func(c *Config) { c.Broadcast.RedisChannel = "events" }, "requires a redis URL"},
		{"otel without endpoint", func(c *Config) { c.Observability.OTelEnabled = true; c.Observability.OTelEndpoint = "" }, "endpoint is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSetList(t *testing.T) {
	list := []string{"keep"}
	setList(&list, "TASKHUB_TEST_LIST_UNSET")
	assert.Equal(t, []string{"keep"}, list)

	t.Setenv("TASKHUB_TEST_LIST", " a ,, b")
	setList(&list, "TASKHUB_TEST_LIST")
	assert.Equal(t, []string{"a", "b"}, list)
}
