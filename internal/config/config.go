// Package config provides configuration management for the roster board
// server.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// APP_CONFIG_FILE, then environment variables, which always win.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Default configuration values.
const (
	DefaultServerPort         = 8080
	DefaultLogLevel           = "info"
	DefaultShutdownTimeout    = 30 * time.Second
	DefaultMetricsEnabled     = true
	DefaultPublicURL          = "http://localhost:8080"
	DefaultStorageBackend     = StorageFile
	DefaultStoragePath        = "data/staffMembers.json"
	DefaultRedisAddr          = "localhost:6379"
	DefaultRedisKey           = "staffMembers"
	DefaultPexelsBaseURL      = "https://api.pexels.com/v1"
	DefaultImageLookupTimeout = 5 * time.Second
	DefaultAuthMode           = "none"
)

// Environment variable names.
const (
	EnvConfigFile         = "APP_CONFIG_FILE"
	EnvServerPort         = "APP_SERVER_PORT"
	EnvLogLevel           = "APP_LOG_LEVEL"
	EnvShutdownTimeout    = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled     = "APP_METRICS_ENABLED"
	EnvPublicURL          = "APP_PUBLIC_URL"
	EnvCORSOrigins        = "APP_CORS_ALLOWED_ORIGINS"
	EnvStorageBackend     = "APP_STORAGE_BACKEND"
	EnvStoragePath        = "APP_STORAGE_PATH"
	EnvRedisAddr          = "APP_REDIS_ADDR"
	EnvRedisPassword      = "APP_REDIS_PASSWORD" //nolint:gosec // env var name, not a credential
	EnvRedisDB            = "APP_REDIS_DB"
	EnvRedisKey           = "APP_REDIS_KEY"
	EnvPexelsAPIKey       = "APP_PEXELS_API_KEY" //nolint:gosec // env var name, not a credential
	EnvPexelsBaseURL      = "APP_PEXELS_BASE_URL"
	EnvImageLookupTimeout = "APP_IMAGE_LOOKUP_TIMEOUT"
	EnvAuthMode           = "APP_AUTH_MODE"
	EnvBasicAuthUsers     = "APP_BASIC_AUTH_USERS"
	EnvAPIKeys            = "APP_API_KEYS" //nolint:gosec // env var name, not a credential
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int           `yaml:"server_port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`

	// PublicURL is the scheme and host board addresses and share links
	// are built on.
	PublicURL string `yaml:"public_url"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// "*" allows any origin without credentials.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// Storage settings. Backend is one of file, redis, memory.
	StorageBackend string `yaml:"storage_backend"`
	StoragePath    string `yaml:"storage_path"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	RedisKey       string `yaml:"redis_key"`

	// Portrait lookup. An empty API key disables it.
	PexelsAPIKey       string        `yaml:"pexels_api_key"`
	PexelsBaseURL      string        `yaml:"pexels_base_url"`
	ImageLookupTimeout time.Duration `yaml:"image_lookup_timeout"`

	// Authentication mode for roster edits: none, basic, apikey, multi.
	AuthMode string `yaml:"auth_mode"`

	// Basic auth settings (format: "user1:bcrypt_hash,user2:bcrypt_hash").
	BasicAuthUsers string `yaml:"basic_auth_users"`

	// API key settings (format: "key1:name1,key2:name2").
	APIKeys string `yaml:"api_keys"`
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidPublicURL       = errors.New("public URL must be an absolute http or https URL")
	ErrInvalidStorageBackend  = errors.New("storage backend must be one of: file, redis, memory")
	ErrInvalidStoragePath     = errors.New("storage path must be set when storage backend is file")
	ErrInvalidRedisConfig     = errors.New("redis address and key must be set when storage backend is redis")
	ErrInvalidPexelsBaseURL   = errors.New("pexels base URL must be an absolute URL")
	ErrInvalidImageTimeout    = errors.New("image lookup timeout must be positive")
	ErrInvalidAuthMode        = errors.New(
		"auth mode must be one of: none, basic, apikey, multi",
	)
	ErrInvalidBasicAuthConfig = errors.New(
		"basic auth users must be set when auth mode is basic",
	)
	ErrInvalidAPIKeyConfig = errors.New(
		"API keys must be set when auth mode is apikey",
	)
	ErrInvalidMultiAuthConfig = errors.New(
		"basic auth users or API keys must be set when auth mode is multi",
	)
)

// Defaults returns a configuration holding only built-in defaults.
func Defaults() *Config {
	return &Config{
		ServerPort:         DefaultServerPort,
		LogLevel:           DefaultLogLevel,
		ShutdownTimeout:    DefaultShutdownTimeout,
		MetricsEnabled:     DefaultMetricsEnabled,
		PublicURL:          DefaultPublicURL,
		CORSAllowedOrigins: []string{"*"},
		StorageBackend:     DefaultStorageBackend,
		StoragePath:        DefaultStoragePath,
		RedisAddr:          DefaultRedisAddr,
		RedisKey:           DefaultRedisKey,
		PexelsBaseURL:      DefaultPexelsBaseURL,
		ImageLookupTimeout: DefaultImageLookupTimeout,
		AuthMode:           DefaultAuthMode,
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the keys present in the YAML file at path.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}

	if err := c.loadStorageEnv(); err != nil {
		return err
	}

	if err := c.loadImageEnv(); err != nil {
		return err
	}

	c.loadAuthEnv()

	return nil
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	if val := os.Getenv(EnvServerPort); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvServerPort, err)
		}
		c.ServerPort = port
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv(EnvShutdownTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvShutdownTimeout, err)
		}
		c.ShutdownTimeout = timeout
	}

	if val := os.Getenv(EnvMetricsEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMetricsEnabled, err)
		}
		c.MetricsEnabled = enabled
	}

	if val := os.Getenv(EnvPublicURL); val != "" {
		c.PublicURL = val
	}

	if val := os.Getenv(EnvCORSOrigins); val != "" {
		c.CORSAllowedOrigins = splitList(val)
	}

	return nil
}

// splitList splits a comma separated list, dropping blank entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadStorageEnv loads storage-related environment variables.
func (c *Config) loadStorageEnv() error {
	if val := os.Getenv(EnvStorageBackend); val != "" {
		c.StorageBackend = val
	}

	if val := os.Getenv(EnvStoragePath); val != "" {
		c.StoragePath = val
	}

	if val := os.Getenv(EnvRedisAddr); val != "" {
		c.RedisAddr = val
	}

	if val := os.Getenv(EnvRedisPassword); val != "" {
		c.RedisPassword = val
	}

	if val := os.Getenv(EnvRedisDB); val != "" {
		db, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvRedisDB, err)
		}
		c.RedisDB = db
	}

	if val := os.Getenv(EnvRedisKey); val != "" {
		c.RedisKey = val
	}

	return nil
}

// loadImageEnv loads portrait lookup environment variables.
func (c *Config) loadImageEnv() error {
	if val := os.Getenv(EnvPexelsAPIKey); val != "" {
		c.PexelsAPIKey = val
	}

	if val := os.Getenv(EnvPexelsBaseURL); val != "" {
		c.PexelsBaseURL = val
	}

	if val := os.Getenv(EnvImageLookupTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvImageLookupTimeout, err)
		}
		c.ImageLookupTimeout = timeout
	}

	return nil
}

// loadAuthEnv loads authentication environment variables.
func (c *Config) loadAuthEnv() {
	if val := os.Getenv(EnvAuthMode); val != "" {
		c.AuthMode = val
	}

	if val := os.Getenv(EnvBasicAuthUsers); val != "" {
		c.BasicAuthUsers = val
	}

	if val := os.Getenv(EnvAPIKeys); val != "" {
		c.APIKeys = val
	}
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateImageLookup(); err != nil {
		return err
	}

	return c.validateAuth()
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if _, err := c.PublicBase(); err != nil {
		return err
	}

	return nil
}

// validateStorage validates the storage backend selection.
func (c *Config) validateStorage() error {
	switch c.StorageBackend {
	case StorageFile:
		if strings.TrimSpace(c.StoragePath) == "" {
			return ErrInvalidStoragePath
		}
	case StorageRedis:
		if c.RedisAddr == "" || c.RedisKey == "" {
			return ErrInvalidRedisConfig
		}
	case StorageMemory:
	default:
		return ErrInvalidStorageBackend
	}

	return nil
}

// validateImageLookup validates portrait lookup settings.
func (c *Config) validateImageLookup() error {
	if c.ImageLookupTimeout <= 0 {
		return ErrInvalidImageTimeout
	}

	u, err := url.Parse(c.PexelsBaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidPexelsBaseURL
	}

	return nil
}

// validateAuth validates the auth mode and its credentials.
func (c *Config) validateAuth() error {
	switch c.authModeOrDefault() {
	case "none":
	case "basic":
		if c.BasicAuthUsers == "" {
			return ErrInvalidBasicAuthConfig
		}
	case "apikey":
		if c.APIKeys == "" {
			return ErrInvalidAPIKeyConfig
		}
	case "multi":
		if c.BasicAuthUsers == "" && c.APIKeys == "" {
			return ErrInvalidMultiAuthConfig
		}
	default:
		return ErrInvalidAuthMode
	}

	return nil
}

// authModeOrDefault returns the auth mode, defaulting to "none" if empty.
func (c *Config) authModeOrDefault() string {
	if c.AuthMode == "" {
		return DefaultAuthMode
	}
	return c.AuthMode
}

// ImageLookupEnabled reports whether a Pexels API key is configured.
func (c *Config) ImageLookupEnabled() bool {
	return c.PexelsAPIKey != ""
}

// PublicBase parses PublicURL. Only the scheme, host and path are kept.
func (c *Config) PublicBase() (*url.URL, error) {
	u, err := url.Parse(c.PublicURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidPublicURL
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: strings.TrimSuffix(u.Path, "/")}, nil
}

// BoardURL returns the address of the first board page before any request
// has been seen.
func (c *Config) BoardURL() (*url.URL, error) {
	base, err := c.PublicBase()
	if err != nil {
		return nil, err
	}
	base.Path += "/board"
	return base, nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
