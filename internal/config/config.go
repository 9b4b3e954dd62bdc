// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/listing-aggregator/pkg/logger"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// Environment variables read when the YAML leaves the matching field empty.
const (
	EnvClientID      = "EBAY_CLIENT_ID"
	EnvClientSecret  = "EBAY_CLIENT_SECRET"
	EnvUseSandbox    = "EBAY_USE_SANDBOX"
	EnvTokenProxyURL = "EBAY_TOKEN_PROXY_URL"
)

// DefaultEnvFile is the dotenv file consulted by Load.
const DefaultEnvFile = ".env"

// Source names accepted in the sources list.
const (
	SourceEbay   = "ebay"
	SourceAmazon = "amazon"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Scrape rating policies.
const (
	RatingPolicyZero = "zero"
	RatingPolicyNull = "null"
)

// eBay endpoints.
const (
	ProductionTokenURL  = "https://api.ebay.com/identity/v1/oauth2/token"
	ProductionBrowseURL = "https://api.ebay.com/buy/browse/v1/item_summary/search"
	SandboxTokenURL     = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	SandboxBrowseURL    = "https://api.sandbox.ebay.com/buy/browse/v1/item_summary/search"
	DefaultScope        = "https://api.ebay.com/oauth/api_scope"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Export   ExportConfig   `yaml:"export"`
	Ebay     EbayConfig     `yaml:"ebay"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Sources  []string       `yaml:"sources"`
	Sorting  SortingConfig  `yaml:"sorting"`
	Schedule ScheduleConfig `yaml:"schedule"`

	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines where listings are persisted.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, sqlite
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// ExportConfig defines the optional CSV copy of each saved result set.
type ExportConfig struct {
	CSVPath string `yaml:"csv_path"`
}

// EbayConfig defines eBay API settings.
type EbayConfig struct {
	ClientID     string          `yaml:"client_id"`
	ClientSecret string          `yaml:"client_secret"`
	Sandbox      bool            `yaml:"sandbox"`
	Scope        string          `yaml:"scope"`
	TokenURL     string          `yaml:"token_url"`
	BrowseURL    string          `yaml:"browse_url"`
	Marketplace  string          `yaml:"marketplace"`
	TokenTimeout time.Duration   `yaml:"token_timeout"`
	Timeout      time.Duration   `yaml:"timeout"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`

	// TokenProxyURL, when set, replaces the client-credentials exchange with
	// a GET against a token proxy that answers {"access_token": "..."}.
	TokenProxyURL string `yaml:"token_proxy_url"`
}

// RateLimitConfig defines eBay API rate limiting settings. Zero PerSecond
// disables the limiter.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// ScrapeConfig defines the HTML search-result source.
type ScrapeConfig struct {
	BaseURL        string        `yaml:"base_url"`
	UserAgent      string        `yaml:"user_agent"`
	AcceptLanguage string        `yaml:"accept_language"`
	Timeout        time.Duration `yaml:"timeout"`
	RatingPolicy   string        `yaml:"rating_policy"` // zero, null
}

// SortingConfig defines how results are ordered when the caller does not say.
type SortingConfig struct {
	DefaultMode string `yaml:"default_mode"`
	NullPolicy  string `yaml:"null_policy"` // nulls_last, sentinel
}

// ScheduleConfig defines the saved search the server re-runs periodically.
type ScheduleConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Query    string        `yaml:"query"`
	Limit    int           `yaml:"limit"`
	Sort     string        `yaml:"sort"`
}

// NotificationsConfig defines where scheduled search summaries are sent.
type NotificationsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	TopN       int    `yaml:"top_n"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// environment resolves variables from the process first and the dotenv file
// second, matching godotenv.Load's no-override rule without mutating the
// process environment.
type environment map[string]string

func (e environment) get(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return e[key]
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation. Variables from DefaultEnvFile are used when
// the process environment does not define them.
func Load(path string) (*Config, error) {
	return LoadWithEnvFile(path, DefaultEnvFile)
}

// LoadWithEnvFile is Load with an explicit dotenv path. An empty or missing
// envFile is ignored.
func LoadWithEnvFile(path, envFile string) (*Config, error) {
	env, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return parse(data, env)
}

// Default returns a validated configuration built only from defaults and the
// environment. Used when no config file exists.
func Default(envFile string) (*Config, error) {
	env, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	return parse(nil, env)
}

func readEnvFile(envFile string) (environment, error) {
	if envFile == "" {
		return environment{}, nil
	}
	vars, err := godotenv.Read(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		return environment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", envFile, err)
	}
	return vars, nil
}

func parse(data []byte, env environment) (*Config, error) {
	expanded := os.Expand(string(data), env.get)

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyEnvFallbacks(cfg, env)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: validating config: %w", domain.ErrConfig, err)
	}

	return cfg, nil
}

func applyEnvFallbacks(cfg *Config, env environment) {
	if cfg.Ebay.ClientID == "" {
		cfg.Ebay.ClientID = env.get(EnvClientID)
	}
	if cfg.Ebay.ClientSecret == "" {
		cfg.Ebay.ClientSecret = env.get(EnvClientSecret)
	}
	if cfg.Ebay.TokenProxyURL == "" {
		cfg.Ebay.TokenProxyURL = env.get(EnvTokenProxyURL)
	}
	if !cfg.Ebay.Sandbox {
		switch strings.ToLower(env.get(EnvUseSandbox)) {
		case "1", "true", "yes":
			cfg.Ebay.Sandbox = true
		}
	}
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyEbayDefaults(&cfg.Ebay)
	applyScrapeDefaults(&cfg.Scrape)
	applySortingDefaults(&cfg.Sorting)
	applyScheduleDefaults(&cfg.Schedule)
	if cfg.Notifications.Discord.TopN == 0 {
		cfg.Notifications.Discord.TopN = 5
	}
	applyLoggingDefaults(&cfg.Logging)

	if len(cfg.Sources) == 0 {
		cfg.Sources = []string{SourceEbay}
	}
	for i, s := range cfg.Sources {
		cfg.Sources[i] = strings.ToLower(strings.TrimSpace(s))
	}
}

// applyEbayDefaults resolves the sandbox switch into concrete endpoints once.
// Explicit URLs win over the switch.
func applyEbayDefaults(e *EbayConfig) {
	if e.TokenURL == "" {
		e.TokenURL = ProductionTokenURL
		if e.Sandbox {
			e.TokenURL = SandboxTokenURL
		}
	}
	if e.BrowseURL == "" {
		e.BrowseURL = ProductionBrowseURL
		if e.Sandbox {
			e.BrowseURL = SandboxBrowseURL
		}
	}
	if e.Scope == "" {
		e.Scope = DefaultScope
	}
	if e.Marketplace == "" {
		e.Marketplace = "EBAY_US"
	}
	if e.TokenTimeout == 0 {
		e.TokenTimeout = 10 * time.Second
	}
	if e.Timeout == 0 {
		e.Timeout = 20 * time.Second
	}
	applyRateLimitDefaults(&e.RateLimit)
}

func applyRateLimitDefaults(r *RateLimitConfig) {
	if r.PerSecond > 0 && r.Burst == 0 {
		r.Burst = 1
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 5000
	}
}

func applyScrapeDefaults(s *ScrapeConfig) {
	if s.BaseURL == "" {
		s.BaseURL = "https://www.amazon.com"
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.UserAgent == "" {
		s.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if s.AcceptLanguage == "" {
		s.AcceptLanguage = "en-US,en;q=0.9"
	}
	if s.Timeout == 0 {
		s.Timeout = 20 * time.Second
	}
	if s.RatingPolicy == "" {
		s.RatingPolicy = RatingPolicyZero
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = DriverSQLite
	}
	if d.Driver == DriverSQLite && d.Path == "" {
		d.Path = "listings.db"
	}
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applySortingDefaults(s *SortingConfig) {
	if s.DefaultMode == "" {
		s.DefaultMode = string(domain.DefaultSortMode)
	}
	if s.NullPolicy == "" {
		s.NullPolicy = string(domain.NullsLast)
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.Interval == 0 {
		s.Interval = time.Hour
	}
	if s.Limit == 0 {
		s.Limit = domain.DefaultLimit
	}
	if s.Sort == "" {
		s.Sort = string(domain.DefaultSortMode)
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if cfg.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required"))
		}
		if cfg.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required"))
		}
	case DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf(
			"database.driver must be one of: postgres, sqlite (got %q)", cfg.Database.Driver,
		))
	}

	for _, s := range cfg.Sources {
		if s != SourceEbay && s != SourceAmazon {
			errs = append(errs, fmt.Errorf("sources: unknown source %q (want ebay or amazon)", s))
		}
	}
	if dup := duplicate(cfg.Sources); dup != "" {
		errs = append(errs, fmt.Errorf("sources: %q listed twice", dup))
	}

	if cfg.Scrape.RatingPolicy != RatingPolicyZero && cfg.Scrape.RatingPolicy != RatingPolicyNull {
		errs = append(errs, fmt.Errorf(
			"scrape.rating_policy must be one of: zero, null (got %q)", cfg.Scrape.RatingPolicy,
		))
	}

	if _, err := domain.ParseSortMode(cfg.Sorting.DefaultMode); err != nil {
		errs = append(errs, fmt.Errorf("sorting.default_mode: %w", err))
	}
	if _, err := domain.ParseNullPolicy(cfg.Sorting.NullPolicy); err != nil {
		errs = append(errs, fmt.Errorf("sorting.null_policy: %w", err))
	}

	if cfg.Ebay.RateLimit.PerSecond < 0 {
		errs = append(errs, fmt.Errorf("ebay.rate_limit.per_second must not be negative"))
	}

	if cfg.Schedule.Enabled {
		if strings.TrimSpace(cfg.Schedule.Query) == "" {
			errs = append(errs, fmt.Errorf("schedule.query is required when schedule is enabled"))
		}
		if cfg.Schedule.Interval < time.Minute {
			errs = append(errs, fmt.Errorf(
				"schedule.interval must be at least 1m (got %s)", cfg.Schedule.Interval,
			))
		}
		if _, err := domain.ParseSortMode(cfg.Schedule.Sort); err != nil {
			errs = append(errs, fmt.Errorf("schedule.sort: %w", err))
		}
	}

	if d := cfg.Notifications.Discord; d.Enabled {
		if d.WebhookURL == "" {
			errs = append(errs, fmt.Errorf("notifications.discord.webhook_url is required when discord is enabled"))
		}
		if d.TopN < 1 || d.TopN > 10 {
			errs = append(errs, fmt.Errorf("notifications.discord.top_n must be between 1 and 10 (got %d)", d.TopN))
		}
	}

	if err := logger.ValidateFormat(cfg.Logging.Format); err != nil {
		errs = append(errs, fmt.Errorf("logging.format: %w", err))
	}

	return errors.Join(errs...)
}

func duplicate(names []string) string {
	seen := make([]string, 0, len(names))
	for _, n := range names {
		if slices.Contains(seen, n) {
			return n
		}
		seen = append(seen, n)
	}
	return ""
}

// HasSource reports whether name is in the enabled source list.
func (c *Config) HasSource(name string) bool {
	return slices.Contains(c.Sources, name)
}

// Addr returns the host:port the HTTP server listens on.
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}
