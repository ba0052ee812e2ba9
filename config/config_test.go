package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var configEnvVars = []string{
	"PRICEALERT_SERVER_PORT",
	"PRICEALERT_SERVER_ENVIRONMENT",
	"PRICEALERT_STORE_TYPE",
	"PRICEALERT_STORE_PATH",
	"PRICEALERT_STORE_DSN",
	"PRICEALERT_SCHEDULER_JITTER_MAX",
	"PRICEALERT_SCHEDULER_POLL_INTERVAL",
	"PRICEALERT_SCHEDULER_AUTO_RECOVER",
	"PRICEALERT_EMAIL_SENDER",
	"PRICEALERT_EMAIL_PASSWORD",
	"PRICEALERT_EMAIL_STATUS_ALERTS",
	"PRICEALERT_CACHE_TTL",
	"PRICEALERT_LOG_LEVEL",
	"PRICEALERT_LOG_FORMAT",
}

// inTempDir runs Load away from any config.yaml or .env in the package dir
func inTempDir(t *testing.T) {
	t.Helper()
	originalDir, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(originalDir) })
	os.Chdir(t.TempDir())
}

func TestLoad(t *testing.T) {
	cleanupEnv := func() {
		for _, key := range configEnvVars {
			os.Unsetenv(key)
		}
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		inTempDir(t)
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Store.Type != "file" {
			t.Errorf("Store.Type = %s, want file", cfg.Store.Type)
		}
		if cfg.Store.Path != "data/state.json" {
			t.Errorf("Store.Path = %s, want data/state.json", cfg.Store.Path)
		}
		if cfg.Scheduler.JitterMax != 20*time.Second {
			t.Errorf("Scheduler.JitterMax = %v, want 20s", cfg.Scheduler.JitterMax)
		}
		if cfg.Scheduler.PollInterval != time.Second {
			t.Errorf("Scheduler.PollInterval = %v, want 1s", cfg.Scheduler.PollInterval)
		}
		if cfg.Scheduler.StopTimeout != 5*time.Second {
			t.Errorf("Scheduler.StopTimeout = %v, want 5s", cfg.Scheduler.StopTimeout)
		}
		if !cfg.Scheduler.AutoRecover {
			t.Error("Scheduler.AutoRecover = false, want true")
		}
		if len(cfg.Scheduler.BackoffLadder) != 3 || cfg.Scheduler.BackoffLadder[2] != 15 {
			t.Errorf("Scheduler.BackoffLadder = %v, want [1 5 15]", cfg.Scheduler.BackoffLadder)
		}
		if cfg.Scraper.RequestTimeout != 15*time.Second {
			t.Errorf("Scraper.RequestTimeout = %v, want 15s", cfg.Scraper.RequestTimeout)
		}
		if len(cfg.Email.AllowedDomains) != 2 {
			t.Errorf("Email.AllowedDomains = %v, want gmail.com and naver.com", cfg.Email.AllowedDomains)
		}
		if !cfg.Email.StatusAlerts {
			t.Error("Email.StatusAlerts = false, want true")
		}
		if cfg.Email.Configured() {
			t.Error("Email.Configured() = true, want false without sender")
		}
		if cfg.Cache.TTL != time.Hour {
			t.Errorf("Cache.TTL = %v, want 1h", cfg.Cache.TTL)
		}
		if cfg.Log.Format != "text" {
			t.Errorf("Log.Format = %s, want text", cfg.Log.Format)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		cleanupEnv()
		inTempDir(t)
		os.Setenv("PRICEALERT_SERVER_PORT", "9090")
		os.Setenv("PRICEALERT_STORE_TYPE", "sqlite")
		os.Setenv("PRICEALERT_STORE_PATH", "/tmp/state.db")
		os.Setenv("PRICEALERT_SCHEDULER_JITTER_MAX", "0s")
		os.Setenv("PRICEALERT_SCHEDULER_AUTO_RECOVER", "false")
		os.Setenv("PRICEALERT_EMAIL_SENDER", "bot@gmail.com")
		os.Setenv("PRICEALERT_EMAIL_PASSWORD", "app-password")
		os.Setenv("PRICEALERT_LOG_FORMAT", "json")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Store.Type != "sqlite" || cfg.Store.Path != "/tmp/state.db" {
			t.Errorf("Store = %+v, want sqlite at /tmp/state.db", cfg.Store)
		}
		if cfg.Scheduler.JitterMax != 0 {
			t.Errorf("Scheduler.JitterMax = %v, want 0", cfg.Scheduler.JitterMax)
		}
		if cfg.Scheduler.AutoRecover {
			t.Error("Scheduler.AutoRecover = true, want false")
		}
		if !cfg.Email.Configured() {
			t.Error("Email.Configured() = false, want true")
		}
		if cfg.Log.Format != "json" {
			t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
		}
	})

	t.Run("fails validation for unknown store type", func(t *testing.T) {
		cleanupEnv()
		inTempDir(t)
		os.Setenv("PRICEALERT_STORE_TYPE", "redis")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want error for invalid store type")
		}
		if !strings.HasPrefix(err.Error(), "invalid configuration: store type") {
			t.Errorf("Load() error = %v, want store type error", err)
		}
	})

	t.Run("fails validation when postgres DSN missing", func(t *testing.T) {
		cleanupEnv()
		inTempDir(t)
		os.Setenv("PRICEALERT_STORE_TYPE", "postgres")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing DSN")
		}
	})

	t.Run("reads sender password from .env", func(t *testing.T) {
		cleanupEnv()
		inTempDir(t)
		defer cleanupEnv()

		envContent := "PRICEALERT_EMAIL_SENDER=bot@naver.com\nPRICEALERT_EMAIL_PASSWORD=\"secret\"\n"
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Email.Sender != "bot@naver.com" || cfg.Email.Password != "secret" {
			t.Errorf("Email = %s/%s, want bot@naver.com/secret", cfg.Email.Sender, cfg.Email.Password)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		inTempDir(t)

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("skips empty lines and comments", func(t *testing.T) {
		inTempDir(t)

		envContent := `
# This is a comment
   # This is also a comment

TEST_SKIP_1=value1
export TEST_SKIP_2='value2'
# TEST_COMMENTED=should_not_load
`
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}
		os.Unsetenv("TEST_SKIP_1")
		os.Unsetenv("TEST_SKIP_2")
		os.Unsetenv("TEST_COMMENTED")
		defer func() {
			os.Unsetenv("TEST_SKIP_1")
			os.Unsetenv("TEST_SKIP_2")
		}()

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_SKIP_1") != "value1" {
			t.Errorf("TEST_SKIP_1 not loaded correctly")
		}
		if os.Getenv("TEST_SKIP_2") != "value2" {
			t.Errorf("TEST_SKIP_2 = %q, want value2", os.Getenv("TEST_SKIP_2"))
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		inTempDir(t)
		os.Setenv("TEST_OVERRIDE", "existing-value")
		defer os.Unsetenv("TEST_OVERRIDE")

		if err := os.WriteFile(".env", []byte("TEST_OVERRIDE=new-value"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:     StoreConfig{Type: "file", Path: "data/state.json"},
			Scheduler: SchedulerConfig{PollInterval: time.Second, JitterMax: 20 * time.Second, BackoffLadder: []int{1, 5, 15}},
			Log:       LogConfig{Format: "text"},
		}
	}

	t.Run("validates successfully with defaults", func(t *testing.T) {
		if err := validate(valid()); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty file path", func(c *Config) { c.Store.Path = "" }},
		{"zero poll interval", func(c *Config) { c.Scheduler.PollInterval = 0 }},
		{"negative jitter", func(c *Config) { c.Scheduler.JitterMax = -time.Second }},
		{"non-positive ladder step", func(c *Config) { c.Scheduler.BackoffLadder = []int{1, 0} }},
		{"sender without password", func(c *Config) { c.Email.Sender = "bot@gmail.com" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Error("validate() error = nil, want error")
			}
		})
	}
}
