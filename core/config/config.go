package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Stacks      string `yaml:"stacks"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// SessionConfig controls user session persistence and expiry.
type SessionConfig struct {
	// Driver selects the session store backend: memory, file or postgres.
	Driver string `yaml:"driver" envconfig:"SESSION_DRIVER"`
	// File is the JSON snapshot path used by the file driver.
	File string `yaml:"file" envconfig:"SESSION_FILE"`
	// TTLHours is how long a configured session lives before it is wiped.
	TTLHours int `yaml:"ttl_hours" envconfig:"SESSION_TTL_HOURS"`
}

// DiscoveryConfig configures the search engine and its mirror list.
type DiscoveryConfig struct {
	// Mirrors are tried in order; the first reachable one serves the query.
	Mirrors        []string `yaml:"mirrors" envconfig:"DISCOVERY_MIRRORS"`
	TimeoutSeconds int      `yaml:"timeout_seconds" envconfig:"DISCOVERY_TIMEOUT_SECONDS"`
	MaxResults     int      `yaml:"max_results" envconfig:"DISCOVERY_MAX_RESULTS"`
	CacheSize      int      `yaml:"cache_size" envconfig:"DISCOVERY_CACHE_SIZE"`
}

// SeedrConfig configures the magnet-to-link conversion service. Email,
// Password and Token describe the bot-level service account used for
// users whose storage provider is not their own Seedr account.
type SeedrConfig struct {
	BaseURL             string `yaml:"base_url" envconfig:"SEEDR_BASE_URL"`
	Email               string `yaml:"email" envconfig:"SEEDR_EMAIL"`
	Password            string `yaml:"password" envconfig:"SEEDR_PASSWORD"`
	Token               string `yaml:"token" envconfig:"SEEDR_TOKEN"`
	PollAttempts        int    `yaml:"poll_attempts" envconfig:"SEEDR_POLL_ATTEMPTS"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds" envconfig:"SEEDR_POLL_INTERVAL_SECONDS"`
}

// DatabaseConfig holds PostgreSQL settings for the postgres session driver.
// It is declared here as a plain data section; bootstrap converts it into
// the database package's connection config.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// HealthConfig configures the liveness HTTP endpoint.
type HealthConfig struct {
	// Port for the liveness listener; 0 disables it.
	Port int `yaml:"port" envconfig:"HEALTH_PORT"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// SessionDriverMemory keeps sessions in process memory only.
	SessionDriverMemory = "memory"
	// SessionDriverFile persists sessions to a local JSON snapshot.
	SessionDriverFile = "file"
	// SessionDriverPostgres persists sessions to PostgreSQL.
	SessionDriverPostgres = "postgres"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the full bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Session   SessionConfig   `yaml:"session"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Seedr     SeedrConfig     `yaml:"seedr"`
	Health    HealthConfig    `yaml:"health"`
	Database  DatabaseConfig  `yaml:"database"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	drv := strings.ToLower(strings.TrimSpace(cfg.Session.Driver))
	if drv == "" {
		drv = SessionDriverFile
	}
	switch drv {
	case SessionDriverMemory:
	case SessionDriverFile:
		if strings.TrimSpace(cfg.Session.File) == "" {
			cfg.Session.File = "sessions.json"
		}
	case SessionDriverPostgres:
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required when session.driver is 'postgres'")
		}
	default:
		return fmt.Errorf("invalid session.driver %q; allowed: memory, file, postgres", cfg.Session.Driver)
	}
	cfg.Session.Driver = drv
	if cfg.Session.TTLHours <= 0 {
		cfg.Session.TTLHours = 8
	}

	if len(cfg.Discovery.Mirrors) == 0 {
		return fmt.Errorf("discovery.mirrors must list at least one mirror")
	}
	for i, m := range cfg.Discovery.Mirrors {
		cfg.Discovery.Mirrors[i] = strings.TrimRight(strings.TrimSpace(m), "/")
	}
	if cfg.Discovery.TimeoutSeconds <= 0 {
		cfg.Discovery.TimeoutSeconds = 10
	}
	if cfg.Discovery.MaxResults <= 0 {
		cfg.Discovery.MaxResults = 5
	}
	if cfg.Discovery.CacheSize <= 0 {
		cfg.Discovery.CacheSize = 128
	}

	if strings.TrimSpace(cfg.Seedr.BaseURL) == "" {
		cfg.Seedr.BaseURL = "https://www.seedr.cc/rest"
	}
	if cfg.Seedr.PollAttempts <= 0 {
		cfg.Seedr.PollAttempts = 8
	}
	if cfg.Seedr.PollIntervalSeconds <= 0 {
		cfg.Seedr.PollIntervalSeconds = 2
	}

	if cfg.Health.Port < 0 {
		return fmt.Errorf("health.port must be >= 0")
	}

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}
