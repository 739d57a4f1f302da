package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the config file
const (
	EnvDatabaseDSN  = "ALUMNET_DATABASE_DSN"
	EnvSMTPPassword = "ALUMNET_SMTP_PASSWORD"
	EnvMailerAPIKey = "ALUMNET_API_KEY"
)

// Config represents the main configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Mailer   MailerConfig   `yaml:"mailer"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Audience AudienceConfig `yaml:"audience"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // must cover a full dispatch
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	TLS          TLSConfig     `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig selects the relational store
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// AuthConfig lists the administrators allowed to use the API
type AuthConfig struct {
	Admins []AdminConfig `yaml:"admins"`
}

// AdminConfig is one administrator. KeyHash is a bcrypt hash of the API key,
// generated with `alumnet admin hash-key`.
type AdminConfig struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	KeyHash string `yaml:"key_hash"`
}

// MailerConfig selects and configures the outbound transport
type MailerConfig struct {
	Transport string        `yaml:"transport"` // smtp, api, sandbox
	FromEmail string        `yaml:"from_email"`
	FromName  string        `yaml:"from_name"`
	Timeout   time.Duration `yaml:"timeout"`
	SMTP      SMTPConfig    `yaml:"smtp"`
	API       APIConfig     `yaml:"api"`
	Sandbox   SandboxConfig `yaml:"sandbox"`
	DKIM      DKIMConfig    `yaml:"dkim"`
}

type SMTPConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	Security           string `yaml:"security"` // none, starttls, tls
	HeloName           string `yaml:"helo_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// APIConfig points at a Sendry-compatible HTTP send endpoint
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type SandboxConfig struct {
	Path             string  `yaml:"path"`
	SimulateErrors   bool    `yaml:"simulate_errors"`
	ErrorProbability float64 `yaml:"error_probability"`
}

type DKIMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Domain   string `yaml:"domain"`
	Selector string `yaml:"selector"`
	KeyFile  string `yaml:"key_file"`
}

// DispatchConfig tunes campaign delivery
type DispatchConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	Concurrency int           `yaml:"concurrency"`
	RatePerSec  float64       `yaml:"rate_per_sec"` // 0 = unlimited
	RetryMax    int           `yaml:"retry_max"`    // extra attempts for temporary errors
	ProgressTTL time.Duration `yaml:"progress_ttl"`
}

type AudienceConfig struct {
	PageSize        int  `yaml:"page_size"`
	ExpandComposite bool `yaml:"expand_composite"`
}

// NotifyConfig holds per-listing-type message templates, keyed by
// job_posting, event, opportunity, post
type NotifyConfig struct {
	Templates map[string]TemplateConfig `yaml:"templates"`
	Footer    string                    `yaml:"footer"`
}

type TemplateConfig struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"`
	Path       string   `yaml:"path"`
	AllowedIPs []string `yaml:"allowed_ips"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseDSN)); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.Mailer.SMTP.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMailerAPIKey)); v != "" {
		c.Mailer.API.APIKey = v
	}
}

func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8088"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Minute
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "/var/lib/alumnet/alumnet.db"
	}

	if c.Mailer.Transport == "" {
		c.Mailer.Transport = "smtp"
	}
	if c.Mailer.Timeout == 0 {
		c.Mailer.Timeout = 30 * time.Second
	}
	if c.Mailer.SMTP.Security == "" {
		c.Mailer.SMTP.Security = "starttls"
	}
	if c.Mailer.SMTP.Port == 0 {
		switch c.Mailer.SMTP.Security {
		case "tls":
			c.Mailer.SMTP.Port = 465
		case "none":
			c.Mailer.SMTP.Port = 25
		default:
			c.Mailer.SMTP.Port = 587
		}
	}
	if c.Mailer.Sandbox.Path == "" {
		c.Mailer.Sandbox.Path = "/var/lib/alumnet/sandbox.db"
	}
	if c.Mailer.Sandbox.ErrorProbability == 0 {
		c.Mailer.Sandbox.ErrorProbability = 0.1
	}

	if c.Dispatch.BatchSize == 0 {
		c.Dispatch.BatchSize = 50
	}
	if c.Dispatch.Concurrency == 0 {
		c.Dispatch.Concurrency = 5
	}
	if c.Dispatch.ProgressTTL == 0 {
		c.Dispatch.ProgressTTL = time.Hour
	}

	if c.Audience.PageSize == 0 {
		c.Audience.PageSize = 500
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database.driver: %s (must be sqlite or postgres)", c.Database.Driver)
	}

	if len(c.Auth.Admins) == 0 {
		return fmt.Errorf("auth.admins must not be empty")
	}
	for i, a := range c.Auth.Admins {
		if a.Email == "" {
			return fmt.Errorf("auth.admins[%d].email is required", i)
		}
		if !strings.HasPrefix(a.KeyHash, "$2") {
			return fmt.Errorf("auth.admins[%d].key_hash must be a bcrypt hash", i)
		}
	}

	if err := c.validateMailer(); err != nil {
		return err
	}

	if c.Dispatch.BatchSize < 0 || c.Dispatch.Concurrency < 0 || c.Dispatch.RetryMax < 0 {
		return fmt.Errorf("dispatch values must not be negative")
	}
	if c.Dispatch.RatePerSec < 0 {
		return fmt.Errorf("dispatch.rate_per_sec must not be negative")
	}

	for key := range c.Notify.Templates {
		switch key {
		case "job_posting", "event", "opportunity", "post":
		default:
			return fmt.Errorf("unknown notify.templates key: %s", key)
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls.cert_file and server.tls.key_file are required when TLS is enabled")
	}

	return nil
}

func (c *Config) validateMailer() error {
	m := c.Mailer
	if m.FromEmail == "" {
		return fmt.Errorf("mailer.from_email is required")
	}

	switch m.Transport {
	case "smtp":
		if m.SMTP.Host == "" {
			return fmt.Errorf("mailer.smtp.host is required for the smtp transport")
		}
		switch m.SMTP.Security {
		case "none", "starttls", "tls":
		default:
			return fmt.Errorf("invalid mailer.smtp.security: %s (must be none, starttls or tls)", m.SMTP.Security)
		}
	case "api":
		if m.API.BaseURL == "" {
			return fmt.Errorf("mailer.api.base_url is required for the api transport")
		}
	case "sandbox":
		if m.Sandbox.ErrorProbability < 0 || m.Sandbox.ErrorProbability > 1 {
			return fmt.Errorf("mailer.sandbox.error_probability must be between 0 and 1")
		}
	default:
		return fmt.Errorf("invalid mailer.transport: %s (must be smtp, api or sandbox)", m.Transport)
	}

	if m.DKIM.Enabled {
		if m.DKIM.Domain == "" {
			return fmt.Errorf("mailer.dkim.domain is required when DKIM is enabled")
		}
		if m.DKIM.Selector == "" {
			return fmt.Errorf("mailer.dkim.selector is required when DKIM is enabled")
		}
		if m.DKIM.KeyFile == "" {
			return fmt.Errorf("mailer.dkim.key_file is required when DKIM is enabled")
		}
	}
	return nil
}
