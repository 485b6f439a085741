// Package config provides environment-based configuration for the portal.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultSecretName is the Key Vault secret holding the app-only certificate.
	DefaultSecretName = "nickoftime-certificate"
	// DefaultListName is the SharePoint list rendered on the home page.
	DefaultListName = "ProjectList"
)

// Config holds all configuration for the portal.
type Config struct {
	// Azure Key Vault
	KeyVaultEndpoint string `yaml:"keyvault_endpoint"`
	SecretName       string `yaml:"secret_name"`
	// ManagedIdentityClientID selects a user-assigned identity. Empty means
	// the system-assigned identity.
	ManagedIdentityClientID string `yaml:"managed_identity_client_id"`

	// SharePoint Online app-only authentication
	SiteURL  string `yaml:"site_url"`
	ClientID string `yaml:"client_id"`
	Tenant   string `yaml:"tenant"`
	ListName string `yaml:"list_name"`

	// Server configuration
	WebHost         string        `yaml:"web_host"`
	WebPort         int           `yaml:"web_port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE
// and then from environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.KeyVaultEndpoint == "" {
		return fmt.Errorf("KEYVAULT_ENDPOINT is required")
	}
	if err := validateHTTPSURL("KEYVAULT_ENDPOINT", c.KeyVaultEndpoint); err != nil {
		return err
	}
	if c.SiteURL == "" {
		return fmt.Errorf("SITE_URL is required")
	}
	if err := validateHTTPSURL("SITE_URL", c.SiteURL); err != nil {
		return err
	}
	if c.ClientID == "" {
		return fmt.Errorf("CLIENT_ID is required")
	}
	if c.Tenant == "" {
		return fmt.Errorf("TENANT is required")
	}
	if c.SecretName == "" {
		return fmt.Errorf("CERT_SECRET_NAME must not be empty")
	}
	if c.ListName == "" {
		return fmt.Errorf("LIST_NAME must not be empty")
	}
	if c.WebPort <= 0 || c.WebPort > 65535 {
		return fmt.Errorf("WEB_PORT must be between 1 and 65535, got %d", c.WebPort)
	}
	return nil
}

// Addr returns the listen address of the web server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.WebHost, c.WebPort)
}

func defaults() *Config {
	return &Config{
		SecretName:      DefaultSecretName,
		ListName:        DefaultListName,
		WebHost:         "0.0.0.0",
		WebPort:         8090,
		RequestTimeout:  60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.KeyVaultEndpoint = getEnv("KEYVAULT_ENDPOINT", c.KeyVaultEndpoint)
	c.SecretName = getEnv("CERT_SECRET_NAME", c.SecretName)
	c.ManagedIdentityClientID = getEnv("MANAGED_IDENTITY_CLIENT_ID", c.ManagedIdentityClientID)
	c.SiteURL = getEnv("SITE_URL", c.SiteURL)
	c.ClientID = getEnv("CLIENT_ID", c.ClientID)
	c.Tenant = getEnv("TENANT", c.Tenant)
	c.ListName = getEnv("LIST_NAME", c.ListName)
	c.WebHost = getEnv("WEB_HOST", c.WebHost)
	c.WebPort = getIntEnv("WEB_PORT", c.WebPort)
	c.RequestTimeout = getDurationEnv("REQUEST_TIMEOUT", c.RequestTimeout)
	c.ShutdownTimeout = getDurationEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func validateHTTPSURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute https URL, got %q", key, raw)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
