package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:",prefix=SERVER_"`

	// Database configuration
	Database DatabaseConfig `env:",prefix=DB_"`

	// Order engine configuration
	Engine EngineConfig `env:",prefix=ENGINE_"`

	// Application configuration
	App AppConfig `env:",prefix=APP_"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string `env:"PORT,default=8080"`
	Host            string `env:"HOST,default=0.0.0.0"`
	ReadTimeout     int    `env:"READ_TIMEOUT,default=30"`     // seconds
	WriteTimeout    int    `env:"WRITE_TIMEOUT,default=30"`    // seconds
	ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT,default=30"` // seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `env:"HOST,default=localhost"`
	Port           string `env:"PORT,default=5432"`
	User           string `env:"USER,default=postgres"`
	Password       string `env:"PASSWORD,default=postgres"`
	Name           string `env:"NAME,default=groupbuy"`
	SSLMode        string `env:"SSL_MODE,default=disable"`
	MaxConns       int    `env:"MAX_CONNS,default=25"`
	MinConns       int    `env:"MIN_CONNS,default=5"`
	MigrationsPath string `env:"MIGRATIONS_PATH,default=migrations"`
	AutoMigrate    bool   `env:"AUTO_MIGRATE,default=true"`
}

// EngineConfig tunes the order aggregation engine
type EngineConfig struct {
	// InsertRetries bounds how often a lost first-order insert race is retried as an update
	InsertRetries    int           `env:"INSERT_RETRIES,default=1"`
	OperationTimeout time.Duration `env:"OPERATION_TIMEOUT,default=10s"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	Debug       bool   `env:"DEBUG,default=false"`
}

// Load loads configuration from environment variables, after merging any
// .env files found in the working directory.
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles loads .env files without overriding variables already set.
// Missing files are ignored.
func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if c.Engine.InsertRetries < 0 {
		return fmt.Errorf("ENGINE_INSERT_RETRIES must not be negative, got %d", c.Engine.InsertRetries)
	}
	if c.Engine.OperationTimeout < 0 {
		return fmt.Errorf("ENGINE_OPERATION_TIMEOUT must not be negative, got %s", c.Engine.OperationTimeout)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.Database.MaxConns)
	}
	return nil
}

// GetDatabaseURL returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// EffectiveLogLevel returns the configured log level, or debug when APP_DEBUG is set
func (c *AppConfig) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
