package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Email     EmailConfig     `mapstructure:"email"`
	Store     StoreConfig     `mapstructure:"store"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ScraperConfig holds outbound page fetching configuration
type ScraperConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	AcceptLanguage   string        `mapstructure:"accept_language"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RatePerSecond    float64       `mapstructure:"rate_per_second"`
	Burst            int           `mapstructure:"burst"`
	MaxRetries       int           `mapstructure:"max_retries"`
	DanawaSearchURL  string        `mapstructure:"danawa_search_url"`
	GmarketSearchURL string        `mapstructure:"gmarket_search_url"`
	GmarketItemURL   string        `mapstructure:"gmarket_item_url"`
}

// EmailConfig holds the sender account and recipient policy
type EmailConfig struct {
	Sender         string        `mapstructure:"sender"`
	Password       string        `mapstructure:"password"`
	SMTPHost       string        `mapstructure:"smtp_host"`
	SMTPPort       int           `mapstructure:"smtp_port"`
	Timeout        time.Duration `mapstructure:"timeout"`
	AllowedDomains []string      `mapstructure:"allowed_domains"`
	StatusAlerts   bool          `mapstructure:"status_alerts"`
}

// Configured reports whether a sender account is set
func (e EmailConfig) Configured() bool {
	return e.Sender != "" && e.Password != ""
}

// StoreConfig selects the state store backend
type StoreConfig struct {
	Type string `mapstructure:"type"` // "file", "sqlite" or "postgres"
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`
}

// SchedulerConfig holds the crawl/notify loop timings
type SchedulerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	JitterMax     time.Duration `mapstructure:"jitter_max"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout"`
	AutoRecover   bool          `mapstructure:"auto_recover"`
	BackoffLadder []int         `mapstructure:"backoff_ladder"`
}

// CacheConfig holds candidate cache configuration
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricealert/")

	// PRICEALERT_SCHEDULER_JITTER_MAX -> scheduler.jitter_max
	v.SetEnvPrefix("PRICEALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile exports KEY=VALUE lines from ./.env without overriding
// variables already set. A missing file is not an error.
func loadEnvFile() error {
	f, err := os.Open(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// setDefaults sets default configuration values.
// Every key gets a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("scraper.accept_language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	v.SetDefault("scraper.request_timeout", "15s")
	v.SetDefault("scraper.rate_per_second", 1.0)
	v.SetDefault("scraper.burst", 2)
	v.SetDefault("scraper.max_retries", 2)
	v.SetDefault("scraper.danawa_search_url", "https://search.danawa.com/dsearch.php")
	v.SetDefault("scraper.gmarket_search_url", "https://browse.gmarket.co.kr/search")
	v.SetDefault("scraper.gmarket_item_url", "https://item.gmarket.co.kr")

	v.SetDefault("email.sender", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 0)
	v.SetDefault("email.timeout", "30s")
	v.SetDefault("email.allowed_domains", []string{"gmail.com", "naver.com"})
	v.SetDefault("email.status_alerts", true)

	v.SetDefault("store.type", "file")
	v.SetDefault("store.path", "data/state.json")
	v.SetDefault("store.dsn", "")

	v.SetDefault("scheduler.poll_interval", "1s")
	v.SetDefault("scheduler.jitter_max", "20s")
	v.SetDefault("scheduler.stop_timeout", "5s")
	v.SetDefault("scheduler.auto_recover", true)
	v.SetDefault("scheduler.backoff_ladder", []int{1, 5, 15})

	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Store.Type {
	case "file", "sqlite":
		if config.Store.Path == "" {
			return fmt.Errorf("store path is required for store type %q", config.Store.Type)
		}
	case "postgres":
		if config.Store.DSN == "" {
			return fmt.Errorf("postgres DSN is required (set PRICEALERT_STORE_DSN)")
		}
	default:
		return fmt.Errorf("store type must be 'file', 'sqlite' or 'postgres', got: %s", config.Store.Type)
	}

	if config.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler poll interval must be positive, got: %s", config.Scheduler.PollInterval)
	}
	if config.Scheduler.JitterMax < 0 {
		return fmt.Errorf("scheduler jitter must not be negative, got: %s", config.Scheduler.JitterMax)
	}
	for _, step := range config.Scheduler.BackoffLadder {
		if step <= 0 {
			return fmt.Errorf("backoff ladder steps must be positive minutes, got: %v", config.Scheduler.BackoffLadder)
		}
	}

	if (config.Email.Sender == "") != (config.Email.Password == "") {
		return fmt.Errorf("email sender and password must be set together")
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}
