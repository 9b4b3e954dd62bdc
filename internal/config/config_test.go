package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		envVars   map[string]string
		wantErr   string
		checkFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty file gets every default",
			yaml: ``,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DriverSQLite, cfg.Database.Driver)
				assert.Equal(t, "listings.db", cfg.Database.Path)
				assert.Equal(t, ProductionTokenURL, cfg.Ebay.TokenURL)
				assert.Equal(t, ProductionBrowseURL, cfg.Ebay.BrowseURL)
				assert.Equal(t, DefaultScope, cfg.Ebay.Scope)
				assert.Equal(t, "EBAY_US", cfg.Ebay.Marketplace)
				assert.Equal(t, 10*time.Second, cfg.Ebay.TokenTimeout)
				assert.Equal(t, 20*time.Second, cfg.Ebay.Timeout)
				assert.Equal(t, int64(5000), cfg.Ebay.RateLimit.DailyLimit)
				assert.Equal(t, "https://www.amazon.com", cfg.Scrape.BaseURL)
				assert.Equal(t, RatingPolicyZero, cfg.Scrape.RatingPolicy)
				assert.Equal(t, []string{SourceEbay}, cfg.Sources)
				assert.Equal(t, string(domain.SortPriceAsc), cfg.Sorting.DefaultMode)
				assert.Equal(t, string(domain.NullsLast), cfg.Sorting.NullPolicy)
				assert.Equal(t, time.Hour, cfg.Schedule.Interval)
				assert.Equal(t, domain.DefaultLimit, cfg.Schedule.Limit)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
				assert.False(t, cfg.Notifications.Discord.Enabled)
				assert.Equal(t, 5, cfg.Notifications.Discord.TopN)
			},
		},
		{
			name: "sandbox switch selects sandbox endpoints",
			yaml: `
ebay:
  sandbox: true
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, SandboxTokenURL, cfg.Ebay.TokenURL)
				assert.Equal(t, SandboxBrowseURL, cfg.Ebay.BrowseURL)
			},
		},
		{
			name: "explicit urls win over sandbox switch",
			yaml: `
ebay:
  sandbox: true
  token_url: http://localhost:9999/token
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "http://localhost:9999/token", cfg.Ebay.TokenURL)
				assert.Equal(t, SandboxBrowseURL, cfg.Ebay.BrowseURL)
			},
		},
		{
			name: "env var substitution",
			yaml: `
database:
  driver: postgres
  host: localhost
  name: listings
  user: lagg
  password: "${TEST_DB_PASSWORD}"
`,
			envVars: map[string]string{
				"TEST_DB_PASSWORD": "secret123",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "secret123", cfg.Database.Password)
			},
		},
		{
			name: "credentials fall back to environment",
			yaml: `
sources: [ebay]
`,
			envVars: map[string]string{
				EnvClientID:     "env-id",
				EnvClientSecret: "env-secret",
				EnvUseSandbox:   "yes",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "env-id", cfg.Ebay.ClientID)
				assert.Equal(t, "env-secret", cfg.Ebay.ClientSecret)
				assert.True(t, cfg.Ebay.Sandbox)
				assert.Equal(t, SandboxTokenURL, cfg.Ebay.TokenURL)
			},
		},
		{
			name: "postgres requires host name and user",
			yaml: `
database:
  driver: postgres
`,
			wantErr: "database.host is required",
		},
		{
			name: "unknown driver",
			yaml: `
database:
  driver: mysql
`,
			wantErr: `database.driver must be one of: postgres, sqlite (got "mysql")`,
		},
		{
			name: "unknown source",
			yaml: `
sources: [ebay, walmart]
`,
			wantErr: `unknown source "walmart"`,
		},
		{
			name: "duplicate source",
			yaml: `
sources: [amazon, Amazon]
`,
			wantErr: `"amazon" listed twice`,
		},
		{
			name: "bad rating policy",
			yaml: `
scrape:
  rating_policy: guess
`,
			wantErr: "scrape.rating_policy must be one of: zero, null",
		},
		{
			name: "bad null policy",
			yaml: `
sorting:
  null_policy: nulls_first
`,
			wantErr: "sorting.null_policy",
		},
		{
			name: "bad default sort",
			yaml: `
sorting:
  default_mode: cheapest
`,
			wantErr: "sorting.default_mode",
		},
		{
			name: "schedule needs a query",
			yaml: `
schedule:
  enabled: true
`,
			wantErr: "schedule.query is required when schedule is enabled",
		},
		{
			name: "schedule interval floor",
			yaml: `
schedule:
  enabled: true
  query: ssd
  interval: 10s
`,
			wantErr: "schedule.interval must be at least 1m",
		},
		{
			name: "bad log format",
			yaml: `
logging:
  format: xml
`,
			wantErr: "logging.format",
		},
		{
			name:    "invalid YAML",
			yaml:    `{{{not valid yaml`,
			wantErr: "parsing config YAML",
		},
		{
			name: "full config with overrides",
			yaml: `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 60s
database:
  driver: postgres
  host: db.example.com
  port: 5433
  name: listings_prod
  user: admin
  password: pass
  sslmode: require
  pool_size: 20
export:
  csv_path: /tmp/listings.csv
ebay:
  client_id: my-id
  client_secret: my-secret
  marketplace: EBAY_GB
  token_proxy_url: http://proxy.local/get-ebay-token
  rate_limit:
    per_second: 2
scrape:
  base_url: https://www.amazon.co.uk/
  rating_policy: "null"
sources: [amazon, ebay]
sorting:
  default_mode: rating-desc
  null_policy: sentinel
schedule:
  enabled: true
  interval: 30m
  query: wireless mouse
  limit: 25
  sort: "4"
logging:
  level: debug
  format: json
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DriverPostgres, cfg.Database.Driver)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, 20, cfg.Database.PoolSize)
				assert.Equal(t, "/tmp/listings.csv", cfg.Export.CSVPath)
				assert.Equal(t, "my-id", cfg.Ebay.ClientID)
				assert.Equal(t, "EBAY_GB", cfg.Ebay.Marketplace)
				assert.Equal(t, "http://proxy.local/get-ebay-token", cfg.Ebay.TokenProxyURL)
				assert.InDelta(t, 2.0, cfg.Ebay.RateLimit.PerSecond, 0.0001)
				assert.Equal(t, 1, cfg.Ebay.RateLimit.Burst)
				assert.Equal(t, "https://www.amazon.co.uk", cfg.Scrape.BaseURL)
				assert.Equal(t, RatingPolicyNull, cfg.Scrape.RatingPolicy)
				assert.True(t, cfg.HasSource(SourceAmazon))
				assert.True(t, cfg.HasSource(SourceEbay))
				assert.Equal(t, "sentinel", cfg.Sorting.NullPolicy)
				assert.Equal(t, 30*time.Minute, cfg.Schedule.Interval)
				assert.Equal(t, 25, cfg.Schedule.Limit)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name: "discord without webhook",
			yaml: `
notifications:
  discord:
    enabled: true
`,
			wantErr: "notifications.discord.webhook_url is required",
		},
		{
			name: "discord top_n out of range",
			yaml: `
notifications:
  discord:
    enabled: true
    webhook_url: https://discord.test/api/webhooks/1/abc
    top_n: 25
`,
			wantErr: "notifications.discord.top_n must be between 1 and 10",
		},
		{
			name: "discord webhook from env",
			yaml: `
notifications:
  discord:
    enabled: true
    webhook_url: ${LAGG_TEST_DISCORD_WEBHOOK}
    top_n: 3
`,
			envVars: map[string]string{"LAGG_TEST_DISCORD_WEBHOOK": "https://discord.test/api/webhooks/1/abc"},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "https://discord.test/api/webhooks/1/abc", cfg.Notifications.Discord.WebhookURL)
				assert.Equal(t, 3, cfg.Notifications.Discord.TopN)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Only parallelize tests that don't modify env vars.
			if len(tt.envVars) == 0 {
				t.Parallel()
			}

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := LoadWithEnvFile(path, "")

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_ValidationErrorIsConfigError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o644))

	_, err := LoadWithEnvFile(path, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfig))
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"LAGG_TEST_DOTENV_ID=from-dotenv\nLAGG_TEST_DOTENV_PORT=9191\n",
	), 0o644))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: ${LAGG_TEST_DOTENV_PORT}
ebay:
  client_id: ${LAGG_TEST_DOTENV_ID}
`), 0o644))

	cfg, err := LoadWithEnvFile(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Ebay.ClientID)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoad_ProcessEnvBeatsDotEnv(t *testing.T) {
	t.Setenv("LAGG_TEST_PRECEDENCE", "from-process")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LAGG_TEST_PRECEDENCE=from-file\n"), 0o644))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ebay:\n  client_id: ${LAGG_TEST_PRECEDENCE}\n"), 0o644))

	cfg, err := LoadWithEnvFile(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-process", cfg.Ebay.ClientID)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	_, err := LoadWithEnvFile(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := LoadWithEnvFile("/nonexistent/path/config.yaml", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Default("")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, []string{SourceEbay}, cfg.Sources)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "basic DSN",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				Name:     "listings",
				User:     "lagg",
				Password: "testpass",
				SSLMode:  "disable",
			},
			want: "host=localhost port=5432 dbname=listings user=lagg password=testpass sslmode=disable",
		},
		{
			name: "production DSN",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				Name:     "listings",
				User:     "admin",
				Password: "s3cret",
				SSLMode:  "require",
			},
			want: "host=db.example.com port=5433 dbname=listings user=admin password=s3cret sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
