package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Service Ports
	TCPHost  string `env:"TCP_HOST" default:"0.0.0.0"`
	TCPPort  int    `env:"TCP_PORT" default:"1250"`
	HTTPPort int    `env:"HTTP_PORT" default:"8080"` // 0 disables the status API
	UDPPort  int    `env:"UDP_PORT" default:"1251"`  // 0 disables UDP match notifications

	UDPSubscriberTimeout time.Duration `env:"UDP_SUBSCRIBER_TIMEOUT" default:"5m"`

	// Game server bounds
	LivenessTimeout  time.Duration `env:"LIVENESS_TIMEOUT" default:"30s"`
	BlockingTimeout  time.Duration `env:"BLOCKING_TIMEOUT" default:"20s"`
	AcceptTimeout    time.Duration `env:"ACCEPT_TIMEOUT" default:"1s"`
	RequestQueueSize int           `env:"REQUEST_QUEUE_SIZE" default:"1024"`
	RematchEnabled   bool          `env:"REMATCH_ENABLED" default:"true"`
	FleetFile        string        `env:"FLEET_FILE"`

	// Rate limiting of new connections per remote host
	RateLimit float64 `env:"RATE_LIMIT" default:"100"`
	RateBurst int     `env:"RATE_BURST" default:"200"`

	// Match history
	DatabaseURL   string `env:"DATABASE_URL"` // empty disables the archive
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Client
	ServerAddr string `env:"SERVER_ADDR" default:"localhost:1250"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// A missing .env is fine, system env vars still apply
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: .env file not loaded: %v\n", err)
	}

	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// Ports
	if err := loadEnvString(&config.TCPHost, "TCP_HOST", "0.0.0.0"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.TCPPort, "TCP_PORT", 1250); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 8080); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.UDPPort, "UDP_PORT", 1251); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.UDPSubscriberTimeout, "UDP_SUBSCRIBER_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}

	// Game server
	if err := loadEnvDuration(&config.LivenessTimeout, "LIVENESS_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.BlockingTimeout, "BLOCKING_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.AcceptTimeout, "ACCEPT_TIMEOUT", time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RequestQueueSize, "REQUEST_QUEUE_SIZE", 1024); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.RematchEnabled, "REMATCH_ENABLED", true); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.FleetFile, "FLEET_FILE", ""); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.RateLimit, "RATE_LIMIT", 100); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RateBurst, "RATE_BURST", 200); err != nil {
		return nil, err
	}

	// Match history
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}

	if err := loadEnvString(&config.ServerAddr, "SERVER_ADDR", "localhost:1250"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	// Validate ports are in valid range
	if c.TCPPort < 1 || c.TCPPort > 65535 {
		errors = append(errors, "TCP_PORT must be between 1 and 65535")
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errors = append(errors, "HTTP_PORT must be between 0 and 65535")
	}
	if c.HTTPPort != 0 && c.HTTPPort == c.TCPPort {
		errors = append(errors, "HTTP_PORT and TCP_PORT must differ")
	}
	if c.UDPPort < 0 || c.UDPPort > 65535 {
		errors = append(errors, "UDP_PORT must be between 0 and 65535")
	}
	if c.UDPPort != 0 && c.UDPSubscriberTimeout <= 0 {
		errors = append(errors, "UDP_SUBSCRIBER_TIMEOUT must be positive")
	}

	if c.LivenessTimeout <= 0 {
		errors = append(errors, "LIVENESS_TIMEOUT must be positive")
	}
	if c.BlockingTimeout <= 0 {
		errors = append(errors, "BLOCKING_TIMEOUT must be positive")
	}
	if c.AcceptTimeout <= 0 {
		errors = append(errors, "ACCEPT_TIMEOUT must be positive")
	}
	if c.RequestQueueSize < 1 {
		errors = append(errors, "REQUEST_QUEUE_SIZE must be at least 1")
	}
	if c.RateLimit <= 0 || c.RateBurst < 1 {
		errors = append(errors, "RATE_LIMIT and RATE_BURST must be positive")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	// Validate log format
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// TCPAddr is the listen address of the game server.
func (c *Config) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.TCPHost, c.TCPPort)
}

// HTTPAddr is the listen address of the status API, empty when it is disabled.
func (c *Config) HTTPAddr() string {
	if c.HTTPPort == 0 {
		return ""
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UDPAddr is the listen address of the match notifier, empty when it is disabled.
func (c *Config) UDPAddr() string {
	if c.UDPPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.TCPHost, c.UDPPort)
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
