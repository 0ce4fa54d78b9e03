// Package config provides YAML-based configuration loading for TaskDesk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level TaskDesk configuration, loaded from taskdesk.yaml.
type Config struct {
	Database       DatabaseConfig `yaml:"database"`
	Log            LogConfig      `yaml:"log"`
	Notify         NotifyConfig   `yaml:"notify"`
	BootstrapUsers []UserSeed     `yaml:"bootstrap_users"`
}

// DatabaseConfig selects and locates the persistent store.
type DatabaseConfig struct {
	Driver    string `yaml:"driver"` // sqlite (default) or mysql
	Path      string `yaml:"path"`   // sqlite data file
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Name      string `yaml:"name"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	BackupDir string `yaml:"backup_dir"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// NotifyConfig controls the notification dispatcher and its sinks.
type NotifyConfig struct {
	QueueSize         int    `yaml:"queue_size"`
	MaxAttempts       int    `yaml:"max_attempts"`
	RetryDelaySec     *int   `yaml:"retry_delay_sec"` // nil means the default; 0 retries at once
	DigestCron        string `yaml:"digest_cron"`
	SlackWebhookURL   string `yaml:"slack_webhook_url"`
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
	LogOnly           bool   `yaml:"log_only"`
}

// RetryDelay returns the base delay between delivery attempts.
func (n NotifyConfig) RetryDelay() time.Duration {
	if n.RetryDelaySec == nil {
		return 0
	}
	return time.Duration(*n.RetryDelaySec) * time.Second
}

// UserSeed describes an account created by "td db init" when missing.
type UserSeed struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
	Role        string `yaml:"role"`
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
}

// Secret returns the seed's password, reading PasswordEnv when set.
func (u UserSeed) Secret() string {
	if u.PasswordEnv != "" {
		return os.Getenv(u.PasswordEnv)
	}
	return u.Password
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "taskdesk.db"
		}
		if c.Database.BackupDir == "" {
			c.Database.BackupDir = "backups"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Notify.QueueSize == 0 {
		c.Notify.QueueSize = 100
	}
	if c.Notify.MaxAttempts == 0 {
		c.Notify.MaxAttempts = 3
	}
	if c.Notify.RetryDelaySec == nil {
		delay := 5
		c.Notify.RetryDelaySec = &delay
	}
	if c.Notify.DigestCron == "" {
		c.Notify.DigestCron = "0 9 * * *"
	}
	for i := range c.BootstrapUsers {
		if c.BootstrapUsers[i].Role == "" {
			c.BootstrapUsers[i].Role = "worker"
		}
		if c.BootstrapUsers[i].Name == "" {
			c.BootstrapUsers[i].Name = c.BootstrapUsers[i].Username
		}
	}
}

// resolvePaths makes relative sqlite paths relative to the config file.
func (c *Config) resolvePaths(base string) {
	if c.Database.Driver != "sqlite" {
		return
	}
	if c.Database.Path != ":memory:" && !filepath.IsAbs(c.Database.Path) {
		c.Database.Path = filepath.Join(base, c.Database.Path)
	}
	if !filepath.IsAbs(c.Database.BackupDir) {
		c.Database.BackupDir = filepath.Join(base, c.Database.BackupDir)
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is invalid", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid (text, json)", c.Log.Format))
	}
	if c.Notify.QueueSize < 0 {
		errs = append(errs, "notify.queue_size must not be negative")
	}
	if c.Notify.MaxAttempts < 0 {
		errs = append(errs, "notify.max_attempts must not be negative")
	}
	if c.Notify.RetryDelaySec != nil && *c.Notify.RetryDelaySec < 0 {
		errs = append(errs, "notify.retry_delay_sec must not be negative")
	}
	if _, err := cron.ParseStandard(c.Notify.DigestCron); err != nil {
		errs = append(errs, fmt.Sprintf("notify.digest_cron %q: %v", c.Notify.DigestCron, err))
	}
	seen := map[string]bool{}
	for i, u := range c.BootstrapUsers {
		if u.Username == "" {
			errs = append(errs, fmt.Sprintf("bootstrap_users[%d].username is required", i))
		} else if seen[u.Username] {
			errs = append(errs, fmt.Sprintf("bootstrap_users[%d].username %q is duplicated", i, u.Username))
		}
		seen[u.Username] = true
		if u.Password == "" && u.PasswordEnv == "" {
			errs = append(errs, fmt.Sprintf("bootstrap_users[%d] needs password or password_env", i))
		}
		if u.Role != "admin" && u.Role != "worker" {
			errs = append(errs, fmt.Sprintf("bootstrap_users[%d].role %q is invalid (admin, worker)", i, u.Role))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
