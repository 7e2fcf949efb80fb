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

// EnvPrefix is prepended to every environment variable the config reads
const EnvPrefix = "LINKREACH_"

// Config holds all configuration options for linkreach
type Config struct {
	LinkedIn  LinkedInConfig  `yaml:"linkedin" json:"linkedin"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Scraper   ScraperConfig   `yaml:"scraper" json:"scraper"`
	Engine    EngineConfig    `yaml:"engine" json:"engine"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Export    ExportConfig    `yaml:"export" json:"export"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// LinkedInConfig holds LinkedIn connection settings. SessionToken is only a
// fallback; the credential manager is the normal source of the token.
type LinkedInConfig struct {
	SessionToken   string        `yaml:"session_token" json:"session_token"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// MyName fills the {myName} template variable
	MyName string `yaml:"my_name" json:"my_name"`
}

// RateLimitConfig paces outbound requests
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
	// ActionsPerHour caps invitations and messages; 0 disables the cap
	ActionsPerHour int `yaml:"actions_per_hour" json:"actions_per_hour"`
}

// RetryConfig applies to idempotent page and profile fetches only
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// ScraperConfig holds follower scraping defaults
type ScraperConfig struct {
	Delay       time.Duration `yaml:"delay" json:"delay"`
	MaxProfiles int           `yaml:"max_profiles" json:"max_profiles"`
}

// EngineConfig holds campaign execution settings
type EngineConfig struct {
	AdvanceTimeout    time.Duration `yaml:"advance_timeout" json:"advance_timeout"`
	Workers           int           `yaml:"workers" json:"workers"`
	Schedule          string        `yaml:"schedule" json:"schedule"`
	DefaultDailyLimit int           `yaml:"default_daily_limit" json:"default_daily_limit"`
	// ActionDelay is the pause between two actions of one Advance
	ActionDelay time.Duration `yaml:"action_delay" json:"action_delay"`
	RandomDelay bool          `yaml:"random_delay" json:"random_delay"`
}

// StoreConfig locates the SQLite result store
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ExportConfig controls CSV export
type ExportConfig struct {
	// Format is "legacy" (plain comma join) or "rfc4180" (quoted fields)
	Format    string `yaml:"format" json:"format"`
	Directory string `yaml:"directory" json:"directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LinkedIn: LinkedInConfig{
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			BaseURL:        "https://www.linkedin.com",
			RequestTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
			BurstSize:         1,
			ActionsPerHour:    30,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Scraper: ScraperConfig{
			Delay:       time.Second,
			MaxProfiles: 100,
		},
		Engine: EngineConfig{
			AdvanceTimeout:    5 * time.Minute,
			Workers:           2,
			Schedule:          "@every 15m",
			DefaultDailyLimit: 50,
			ActionDelay:       5 * time.Second,
			RandomDelay:       true,
		},
		Store: StoreConfig{
			Path: filepath.Join(defaultDataDir(), "linkreach.db"),
		},
		Export: ExportConfig{
			Format:    "legacy",
			Directory: ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".linkreach")
}

// LoadFromEnv overrides values from LINKREACH_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	setDuration := func(name string, dst *time.Duration) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}

	setString("SESSION_TOKEN", &c.LinkedIn.SessionToken)
	setString("USER_AGENT", &c.LinkedIn.UserAgent)
	setString("BASE_URL", &c.LinkedIn.BaseURL)
	setString("MY_NAME", &c.LinkedIn.MyName)
	setDuration("REQUEST_TIMEOUT", &c.LinkedIn.RequestTimeout)

	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setInt("ACTIONS_PER_HOUR", &c.RateLimit.ActionsPerHour)
	setInt("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)

	setDuration("SCRAPE_DELAY", &c.Scraper.Delay)
	setInt("SCRAPE_MAX_PROFILES", &c.Scraper.MaxProfiles)

	setDuration("ADVANCE_TIMEOUT", &c.Engine.AdvanceTimeout)
	setInt("WORKERS", &c.Engine.Workers)
	setString("SCHEDULE", &c.Engine.Schedule)

	setString("STORE_PATH", &c.Store.Path)
	setString("EXPORT_FORMAT", &c.Export.Format)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	if v := os.Getenv(EnvPrefix + "LOG_PRETTY"); v != "" {
		c.Logging.Pretty = strings.EqualFold(v, "true") || v == "1"
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches the
// default locations and is not an error when nothing is found.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
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

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".linkreach.yaml",
		".linkreach.yml",
		filepath.Join(home, ".config", "linkreach", "config.yaml"),
		filepath.Join(home, ".config", "linkreach", "config.yml"),
		filepath.Join(home, ".linkreach.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// DefaultConfigPath is where `config init` writes
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".linkreach.yaml"
	}
	return filepath.Join(home, ".config", "linkreach", "config.yaml")
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.LinkedIn.BaseURL == "" {
		errs = append(errs, errors.New("linkedin base URL is required"))
	}
	if c.LinkedIn.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if c.LinkedIn.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.RateLimit.ActionsPerHour < 0 {
		errs = append(errs, errors.New("actions per hour cannot be negative"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Scraper.Delay < 0 {
		errs = append(errs, errors.New("scrape delay cannot be negative"))
	}
	if c.Scraper.MaxProfiles <= 0 {
		errs = append(errs, errors.New("scrape max profiles must be positive"))
	}

	if c.Engine.Workers <= 0 {
		errs = append(errs, errors.New("engine workers must be positive"))
	}
	if c.Engine.Workers > 10 {
		errs = append(errs, errors.New("engine workers should not exceed 10"))
	}
	if c.Engine.AdvanceTimeout <= 0 {
		errs = append(errs, errors.New("advance timeout must be positive"))
	}
	if c.Engine.DefaultDailyLimit < 1 {
		errs = append(errs, errors.New("default daily limit must be at least 1"))
	}
	if c.Engine.Schedule == "" {
		errs = append(errs, errors.New("engine schedule is required"))
	}

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store path is required"))
	}

	switch strings.ToLower(c.Export.Format) {
	case "legacy", "rfc4180":
	default:
		errs = append(errs, fmt.Errorf("invalid export format %q", c.Export.Format))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies flag values that were explicitly set
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["session-token"].(string); ok && v != "" {
		c.LinkedIn.SessionToken = v
	}
	if v, ok := flags["store"].(string); ok && v != "" {
		c.Store.Path = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Engine.Workers = v
	}
	if v, ok := flags["delay"].(time.Duration); ok && v > 0 {
		c.Scraper.Delay = v
	}
	if v, ok := flags["max-profiles"].(int); ok && v > 0 {
		c.Scraper.MaxProfiles = v
	}
}

// Load loads configuration from all sources with proper precedence:
// flags > environment > .env files > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".linkreach.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
