package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the LinkedIn scraper.
// It is constructed once at startup and passed by reference into the
// session manager, proxy gateway and run orchestrator; nothing reads
// the environment after Load returns.
type Config struct {
	// LinkedIn session and credential settings
	LinkedIn LinkedInConfig `yaml:"linkedin" json:"linkedin"`

	// Proxy settings
	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`

	// Session acquisition settings
	Session SessionConfig `yaml:"session" json:"session"`

	// Scrape behaviour settings
	Scraper ScraperConfig `yaml:"scraper" json:"scraper"`

	// Record store settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Recurring schedule settings
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LinkedInConfig holds credentials and the pre-obtained cookie blob.
type LinkedInConfig struct {
	// CookiesJSON is a JSON array of exported browser cookies. When set it
	// takes precedence over credential login.
	CookiesJSON string `yaml:"cookies_json" json:"cookies_json"`
	Email       string `yaml:"email" json:"email"`
	Password    string `yaml:"password" json:"password"`
	UserAgent   string `yaml:"user_agent" json:"user_agent"`
}

// ProxyConfig holds proxy resolution inputs. URL takes precedence over the
// discrete host/port/credential fields.
type ProxyConfig struct {
	URL      string `yaml:"url" json:"url"`
	Host     string `yaml:"host" json:"host"`
	Port     string `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	// Required makes startup fail fast when no proxy resolves. Running
	// unproxied against a platform that rate-limits by IP burns the
	// residential identity of the deployment host.
	Required bool `yaml:"required" json:"required"`
	// VerifyURL is the echo endpoint used for egress verification.
	VerifyURL     string        `yaml:"verify_url" json:"verify_url"`
	VerifyTimeout time.Duration `yaml:"verify_timeout" json:"verify_timeout"`
}

// SessionConfig holds session-acquisition tuning.
type SessionConfig struct {
	CookieFile           string        `yaml:"cookie_file" json:"cookie_file"`
	WarningThresholdDays int           `yaml:"warning_threshold_days" json:"warning_threshold_days"`
	ManualLoginEnabled   bool          `yaml:"manual_login_enabled" json:"manual_login_enabled"`
	ManualLoginTimeout   time.Duration `yaml:"manual_login_timeout" json:"manual_login_timeout"`
	ManualLoginPoll      time.Duration `yaml:"manual_login_poll" json:"manual_login_poll"`
	// HeuristicMinSignals is the number of positive page signals required
	// to confirm a login without an authenticated-area URL. The exact value
	// is tuned against a live UI, so it stays configurable.
	HeuristicMinSignals int `yaml:"heuristic_min_signals" json:"heuristic_min_signals"`
}

// ScraperConfig holds per-run scrape behaviour.
type ScraperConfig struct {
	MaxPostsPerSource int           `yaml:"max_posts_per_source" json:"max_posts_per_source"`
	SourceDelay       time.Duration `yaml:"source_delay" json:"source_delay"`
	PageTimeout       time.Duration `yaml:"page_timeout" json:"page_timeout"`
	NavMaxAttempts    int           `yaml:"nav_max_attempts" json:"nav_max_attempts"`
	NavRetryDelay     time.Duration `yaml:"nav_retry_delay" json:"nav_retry_delay"`
	BodyMaxLength     int           `yaml:"body_max_length" json:"body_max_length"`
	NavPerMinute      int           `yaml:"nav_per_minute" json:"nav_per_minute"`
}

// StorageConfig selects and configures the record store backend.
type StorageConfig struct {
	// Driver is "airtable" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`

	Airtable AirtableConfig `yaml:"airtable" json:"airtable"`
	SQLite   SQLiteConfig   `yaml:"sqlite" json:"sqlite"`
}

// AirtableConfig holds Airtable REST API settings.
type AirtableConfig struct {
	APIKey       string `yaml:"api_key" json:"api_key"`
	BaseID       string `yaml:"base_id" json:"base_id"`
	PostsTable   string `yaml:"posts_table" json:"posts_table"`
	SourcesTable string `yaml:"sources_table" json:"sources_table"`
	LogTable     string `yaml:"log_table" json:"log_table"`
}

// SQLiteConfig holds the local store settings.
type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ScheduleConfig holds the recurring invocation settings.
type ScheduleConfig struct {
	// Expression is a cron expression; the default runs every 6 hours.
	Expression string `yaml:"expression" json:"expression"`
	RunOnStart bool   `yaml:"run_on_start" json:"run_on_start"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LinkedIn: LinkedInConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
		},
		Proxy: ProxyConfig{
			Required:      true,
			VerifyURL:     "https://api.ipify.org",
			VerifyTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			CookieFile:           defaultCookieFile(),
			WarningThresholdDays: 5,
			ManualLoginEnabled:   false,
			ManualLoginTimeout:   3 * time.Minute,
			ManualLoginPoll:      5 * time.Second,
			HeuristicMinSignals:  2,
		},
		Scraper: ScraperConfig{
			MaxPostsPerSource: 10,
			SourceDelay:       60 * time.Second,
			PageTimeout:       90 * time.Second,
			NavMaxAttempts:    3,
			NavRetryDelay:     5 * time.Second,
			BodyMaxLength:     1000,
			NavPerMinute:      10,
		},
		Storage: StorageConfig{
			Driver: "airtable",
			Airtable: AirtableConfig{
				PostsTable:   "LinkedIn Posts",
				SourcesTable: "Sources",
				LogTable:     "Scraper Log",
			},
			SQLite: SQLiteConfig{
				Path: "linkscraper.db",
			},
		},
		Schedule: ScheduleConfig{
			Expression: "0 */6 * * *",
			RunOnStart: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultCookieFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".linkscraper-cookies.json"
	}
	return filepath.Join(home, ".config", "linkscraper", "cookies.json")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				*dst = d
			} else if n, err := strconv.Atoi(v); err == nil && n > 0 {
				// Bare integers are seconds, matching the original deployment env.
				*dst = time.Duration(n) * time.Second
			}
		}
	}

	setString("LINKEDIN_COOKIES", &c.LinkedIn.CookiesJSON)
	setString("LINKEDIN_EMAIL", &c.LinkedIn.Email)
	setString("LINKEDIN_PASSWORD", &c.LinkedIn.Password)
	setString("LINKSCRAPER_USER_AGENT", &c.LinkedIn.UserAgent)

	setString("PROXY_URL", &c.Proxy.URL)
	setString("PROXY_HOST", &c.Proxy.Host)
	setString("PROXY_PORT", &c.Proxy.Port)
	setString("PROXY_USERNAME", &c.Proxy.Username)
	setString("PROXY_PASSWORD", &c.Proxy.Password)
	setBool("PROXY_REQUIRED", &c.Proxy.Required)
	setString("PROXY_VERIFY_URL", &c.Proxy.VerifyURL)

	setString("LINKSCRAPER_COOKIE_FILE", &c.Session.CookieFile)
	setInt("COOKIE_WARNING_DAYS", &c.Session.WarningThresholdDays)
	setBool("MANUAL_LOGIN_ENABLED", &c.Session.ManualLoginEnabled)
	setDuration("MANUAL_LOGIN_TIMEOUT", &c.Session.ManualLoginTimeout)
	setInt("HEURISTIC_MIN_SIGNALS", &c.Session.HeuristicMinSignals)

	setInt("MAX_POSTS_PER_SOURCE", &c.Scraper.MaxPostsPerSource)
	setDuration("SOURCE_DELAY", &c.Scraper.SourceDelay)
	setDuration("PAGE_TIMEOUT", &c.Scraper.PageTimeout)
	setInt("NAV_MAX_ATTEMPTS", &c.Scraper.NavMaxAttempts)

	setString("STORAGE_DRIVER", &c.Storage.Driver)
	setString("AIRTABLE_API_KEY", &c.Storage.Airtable.APIKey)
	setString("AIRTABLE_BASE_ID", &c.Storage.Airtable.BaseID)
	setString("AIRTABLE_TABLE_NAME", &c.Storage.Airtable.PostsTable)
	setString("AIRTABLE_SOURCES_TABLE", &c.Storage.Airtable.SourcesTable)
	setString("AIRTABLE_LOG_TABLE", &c.Storage.Airtable.LogTable)
	setString("SQLITE_PATH", &c.Storage.SQLite.Path)

	setString("SCRAPE_SCHEDULE", &c.Schedule.Expression)
	setBool("RUN_SCRAPER_ON_START", &c.Schedule.RunOnStart)

	setString("LINKSCRAPER_LOG_LEVEL", &c.Logging.Level)
	setString("LINKSCRAPER_LOG_FILE", &c.Logging.File)

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".linkscraper.yaml",
		".linkscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "linkscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "linkscraper", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".linkscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// HasCookies reports whether a pre-obtained cookie blob is configured.
func (c *Config) HasCookies() bool {
	return strings.TrimSpace(c.LinkedIn.CookiesJSON) != ""
}

// HasCredentials reports whether credential login is configured.
func (c *Config) HasCredentials() bool {
	return c.LinkedIn.Email != "" && c.LinkedIn.Password != ""
}

// HasProxy reports whether any proxy configuration is present.
func (c *Config) HasProxy() bool {
	return c.Proxy.URL != "" || (c.Proxy.Host != "" && c.Proxy.Port != "")
}

// Validate checks if the configuration is valid. Configuration errors are
// fatal at startup; the process must not proceed to scraping.
func (c *Config) Validate() error {
	var errs []error

	if c.Proxy.Required && !c.HasProxy() {
		errs = append(errs, errors.New("proxy is required but no proxy is configured"))
	}

	// Without cookies, credentials or manual login there is no path to a
	// session and the run can never succeed.
	if !c.HasCookies() && !c.HasCredentials() && !c.Session.ManualLoginEnabled {
		errs = append(errs, errors.New("no cookies, no credentials, and manual login disabled: no way to acquire a session"))
	}

	if c.Session.WarningThresholdDays < 0 {
		errs = append(errs, errors.New("warning threshold days cannot be negative"))
	}
	if c.Session.HeuristicMinSignals < 1 {
		errs = append(errs, errors.New("heuristic min signals must be at least 1"))
	}
	if c.Scraper.MaxPostsPerSource <= 0 {
		errs = append(errs, errors.New("max posts per source must be positive"))
	}
	if c.Scraper.PageTimeout <= 0 {
		errs = append(errs, errors.New("page timeout must be positive"))
	}
	if c.Scraper.NavMaxAttempts <= 0 {
		errs = append(errs, errors.New("nav max attempts must be positive"))
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "airtable":
		if c.Storage.Airtable.APIKey == "" || c.Storage.Airtable.BaseID == "" {
			errs = append(errs, errors.New("airtable driver requires api_key and base_id"))
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite driver requires a database path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Environment variables > .env file > Config file > Defaults
func Load(configPath string) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".linkscraper.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
