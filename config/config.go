package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"rafflepool/database"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `toml:"database_url"`
	DatabaseName string `toml:"database_name"`

	// HTTP configuration
	HTTPAddr string `toml:"http_addr"`

	// NATS configuration
	NATSServers string `toml:"nats_servers"` // NATS server addresses (comma-separated)
	NATSEnabled bool   `toml:"nats_enabled"`

	// Deployment configuration
	AddressFiles     []string `toml:"address_files"`     // Files the deployed ledger address is written to
	DeployerAddress  string   `toml:"deployer_address"`  // Identity that deploys and operates ledgers
	MinimumThreshold int64    `toml:"minimum_threshold"` // Threshold used by the deploy command

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"` // "json" or "text"
	LogFile       string `toml:"log_file"`   // Empty logs to stderr only
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `toml:"otel_enabled"`
	OTelServiceName          string `toml:"otel_service_name"`
	OTelExporterType         string `toml:"otel_exporter_type"` // "console", "otlp" or "none"
	OTelOTLPEndpoint         string `toml:"otel_otlp_endpoint"`
	OTelExportIntervalMillis int    `toml:"otel_export_interval_millis"`

	// Environment
	Environment string `toml:"environment"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// defaults returns the configuration used when neither file nor environment set a value
func defaults() *Config {
	return &Config{
		HTTPAddr:                 ":8080",
		NATSServers:              "nats://nats:4222",
		NATSEnabled:              true,
		AddressFiles:             []string{"ProxyContractAddress.txt"},
		MinimumThreshold:         10,
		LogLevel:                 "info",
		LogFormat:                "text",
		LogMaxSizeMB:             100,
		LogMaxBackups:            3,
		LogMaxAgeDays:            28,
		OTelServiceName:          "rafflepool",
		OTelExporterType:         "console",
		OTelOTLPEndpoint:         "otel-collector:4317",
		OTelExportIntervalMillis: 60000,
		Environment:              "development",
	}
}

// load loads configuration from an optional TOML file, then environment variables
func load() (*Config, error) {
	config := defaults()

	if path := os.Getenv("RAFFLE_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	applyEnv(config)

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
		if config.MinimumThreshold <= 0 {
			return nil, fmt.Errorf("MINIMUM_THRESHOLD must be positive")
		}
	}

	return config, nil
}

// applyEnv overrides config with every environment variable that is set
func applyEnv(config *Config) {
	config.DatabaseURL = getEnvWithDefault("DATABASE_URL", config.DatabaseURL)
	config.DatabaseName = getEnvWithDefault("DATABASE_NAME", config.DatabaseName)
	config.HTTPAddr = getEnvWithDefault("HTTP_ADDR", config.HTTPAddr)
	config.NATSServers = getEnvWithDefault("NATS_SERVERS", config.NATSServers)
	config.NATSEnabled = getBoolEnv("NATS_ENABLED", config.NATSEnabled)
	config.DeployerAddress = getEnvWithDefault("DEPLOYER_ADDRESS", config.DeployerAddress)
	config.MinimumThreshold = getInt64Env("MINIMUM_THRESHOLD", config.MinimumThreshold)

	if files := os.Getenv("ADDRESS_FILES"); files != "" {
		config.AddressFiles = nil
		for _, f := range strings.Split(files, ",") {
			if f = strings.TrimSpace(f); f != "" {
				config.AddressFiles = append(config.AddressFiles, f)
			}
		}
	}

	config.LogLevel = getEnvWithDefault("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnvWithDefault("LOG_FORMAT", config.LogFormat)
	config.LogFile = getEnvWithDefault("LOG_FILE", config.LogFile)
	config.LogMaxSizeMB = int(getInt64Env("LOG_MAX_SIZE_MB", int64(config.LogMaxSizeMB)))
	config.LogMaxBackups = int(getInt64Env("LOG_MAX_BACKUPS", int64(config.LogMaxBackups)))
	config.LogMaxAgeDays = int(getInt64Env("LOG_MAX_AGE_DAYS", int64(config.LogMaxAgeDays)))

	config.OTelEnabled = getBoolEnv("OTEL_ENABLED", config.OTelEnabled)
	config.OTelServiceName = getEnvWithDefault("OTEL_SERVICE_NAME", config.OTelServiceName)
	config.OTelExporterType = getEnvWithDefault("OTEL_EXPORTER_TYPE", config.OTelExporterType)
	config.OTelOTLPEndpoint = getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", config.OTelOTLPEndpoint)
	config.OTelExportIntervalMillis = int(getInt64Env("OTEL_EXPORT_INTERVAL_MILLIS", int64(config.OTelExportIntervalMillis)))

	config.Environment = getEnvWithDefault("ENVIRONMENT", config.Environment)
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	config := defaults()
	config.Environment = "test"
	config.NATSEnabled = false
	config.OTelEnabled = false
	config.AddressFiles = nil
	return config
}
