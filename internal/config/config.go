// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPropertiesPath  = "/api/v1/users/{tenant}/properties?sort=name"
	defaultBookingsPath    = "/api/v1/users/{tenant}/bookings?page[size]={size}&page[number]={page}&filter[from]={from}&filter[to]={to}"
	defaultPageSize        = 100
	defaultSessionKey      = "cockpit.session"
	defaultPeriodSelector  = "#multi-calendar > div > div.card-header select option[selected]"
	defaultTriggerSelector = "#multi-calendar > div > div.card-header > div > div:last-child"
	defaultRunCooldown     = 3 * time.Second
)

type SmoobuConfig struct {
	BaseURL        string `yaml:"base_url"`
	PropertiesPath string `yaml:"properties_path"`
	BookingsPath   string `yaml:"bookings_path"`
	PageSize       int    `yaml:"page_size"`
	Cookie         string `yaml:"-"` // Loaded from environment
}

type SessionConfig struct {
	Filename string `yaml:"filename"`
	Key      string `yaml:"key"`
}

type PageConfig struct {
	PeriodSelector  string `yaml:"period_selector"`
	TriggerSelector string `yaml:"trigger_selector"`
}

// EmailConfig enables mailing reports through SES. Credentials come from the
// environment; when unset the default AWS credential chain is used.
type EmailConfig struct {
	Sender          string   `yaml:"sender"`
	Region          string   `yaml:"region"`
	Recipients      []string `yaml:"recipients"`
	AccessKeyID     string   `yaml:"-"` // Loaded from environment
	SecretAccessKey string   `yaml:"-"` // Loaded from environment
}

type Config struct {
	App struct {
		Name        string        `yaml:"name"`
		Environment string        `yaml:"environment"`
		Port        int           `yaml:"port"`
		RunCooldown time.Duration `yaml:"run_cooldown"`
	} `yaml:"app"`

	Smoobu  SmoobuConfig  `yaml:"smoobu"`
	Session SessionConfig `yaml:"session"`
	Page    PageConfig    `yaml:"page"`
	Email   EmailConfig   `yaml:"email"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.Smoobu.Cookie = strings.TrimSpace(os.Getenv("SMOOBU_COOKIE"))
	cfg.Email.AccessKeyID = os.Getenv("SES_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("SES_SECRET_ACCESS_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes yaml configuration and fills in defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "checkouts"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.RunCooldown == 0 {
		c.App.RunCooldown = defaultRunCooldown
	}
	if c.Smoobu.PropertiesPath == "" {
		c.Smoobu.PropertiesPath = defaultPropertiesPath
	}
	if c.Smoobu.BookingsPath == "" {
		c.Smoobu.BookingsPath = defaultBookingsPath
	}
	if c.Smoobu.PageSize == 0 {
		c.Smoobu.PageSize = defaultPageSize
	}
	if c.Session.Key == "" {
		c.Session.Key = defaultSessionKey
	}
	if c.Page.PeriodSelector == "" {
		c.Page.PeriodSelector = defaultPeriodSelector
	}
	if c.Page.TriggerSelector == "" {
		c.Page.TriggerSelector = defaultTriggerSelector
	}
}

func (c *Config) Validate() error {
	if c.Smoobu.BaseURL == "" {
		return fmt.Errorf("smoobu base url is required")
	}
	if !strings.HasPrefix(c.Smoobu.BaseURL, "http://") && !strings.HasPrefix(c.Smoobu.BaseURL, "https://") {
		return fmt.Errorf("smoobu base url must be http or https: %s", c.Smoobu.BaseURL)
	}
	if !strings.Contains(c.Smoobu.PropertiesPath, "{tenant}") {
		return fmt.Errorf("properties path must contain {tenant}")
	}
	for _, placeholder := range []string{"{tenant}", "{page}", "{from}", "{to}"} {
		if !strings.Contains(c.Smoobu.BookingsPath, placeholder) {
			return fmt.Errorf("bookings path must contain %s", placeholder)
		}
	}
	if c.Smoobu.PageSize < 1 {
		return fmt.Errorf("page size must be positive, got %d", c.Smoobu.PageSize)
	}
	if c.Session.Filename == "" {
		return fmt.Errorf("session filename is required")
	}
	if c.App.RunCooldown < 0 {
		return fmt.Errorf("run cooldown must not be negative")
	}
	if c.Email.Sender != "" && c.Email.Region == "" {
		return fmt.Errorf("email region is required when a sender is set")
	}
	if len(c.Email.Recipients) > 0 && c.Email.Sender == "" {
		return fmt.Errorf("email sender is required when recipients are set")
	}
	return nil
}
