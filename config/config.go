// Package config provides configuration management for the blogpress application.
// It handles loading and validation of configuration values from environment variables,
// with support for default values and collective error reporting.
// Every setting has a default so a developer can start the server with no
// environment at all; the secret key and database URL defaults are insecure
// and must be overridden in any real deployment.
package config

import (
	"fmt"
	// `os` package provides operating system functionalities, like reading environment variables.
	"os"
	"strconv"
	"strings"
	"time"
	// Embedded zoneinfo so TIMEZONE resolves on hosts without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// Insecure development defaults. LoadConfig reports when they are in use.
const (
	DefaultSecretKey   = "dev_secret_key"
	DefaultDatabaseURL = "postgres://eiei:@localhost:5432/postgres?sslmode=disable"
)

// DatabaseConfig represents configuration for the database connection pool.
type DatabaseConfig struct {
	URL           string
	MaxSize       int
	MigrationsDir string
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	SecretKey       string        // Secret key for signing session and flash cookies
	SessionDuration time.Duration // Lifetime of a login session
	CookieSecure    bool          // Mark cookies Secure (HTTPS only)
	CSRFEnabled     bool
}

// RedisConfig holds the optional server-side session registry settings.
// An empty URL selects stateless sessions.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port               string // Port for the HTTP server
	StaticDir          string // Root of static assets; uploads go to StaticDir/img
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Database *DatabaseConfig
	Auth     *AuthConfig
	Redis    *RedisConfig
	Server   *ServerConfig
	Location *time.Location // Time zone posts are timestamped in
	LogLevel string

	// Warnings are non-fatal findings, such as insecure defaults in use.
	Warnings []string
}

// Helper function to get an optional environment variable with a default string value.
func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get an optional environment variable parsed as an int.
// Uses defaultValue if not set or if parsing fails. Appends an error if parsing fails.
func getOptionalEnvInt(key string, defaultValue int, errors *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

// Helper function to get an optional environment variable parsed as a bool.
func getOptionalEnvBool(key string, defaultValue bool, errors *[]string) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueBool, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected boolean, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueBool
}

// Helper function to get an optional environment variable parsed as time.Duration.
// `time.ParseDuration` expects a string like "15m", "1h30s".
func getOptionalEnvDuration(key string, defaultValue time.Duration, errors *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	if valueDuration <= 0 {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: duration must be positive, got '%s'", key, valueStr))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the pool size between 1 and 100, recording a warning when it had to clamp.
func clampPoolSize(size int, warnings *[]string) int {
	if size < 1 {
		*warnings = append(*warnings, fmt.Sprintf("DB_POOL_SIZE (%d) is less than minimum 1, clamping to 1", size))
		return 1
	}
	if size > 100 {
		*warnings = append(*warnings, fmt.Sprintf("DB_POOL_SIZE (%d) is greater than maximum 100, clamping to 100", size))
		return 100
	}
	return size
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadConfig creates and returns an AppConfig by reading and validating environment variables.
// It collects all errors encountered during loading and returns a single error if any exist.
func LoadConfig() (*AppConfig, error) {
	var errors []string
	var warnings []string

	// Database Configuration
	dbURL := getOptionalEnv("DATABASE_URL", DefaultDatabaseURL)
	if dbURL == DefaultDatabaseURL {
		warnings = append(warnings, "DATABASE_URL not set, using insecure development default")
	}
	poolSize := clampPoolSize(getOptionalEnvInt("DB_POOL_SIZE", 10, &errors), &warnings)

	database := &DatabaseConfig{
		URL:           dbURL,
		MaxSize:       poolSize,
		MigrationsDir: getOptionalEnv("MIGRATIONS_DIR", "migrations"),
	}

	// Auth Configuration
	secretKey := getOptionalEnv("SECRET_KEY", DefaultSecretKey)
	if secretKey == DefaultSecretKey {
		warnings = append(warnings, "SECRET_KEY not set, using insecure development default")
	}
	authConfig := &AuthConfig{
		SecretKey:       secretKey,
		SessionDuration: getOptionalEnvDuration("SESSION_DURATION", 24*time.Hour, &errors),
		CookieSecure:    getOptionalEnvBool("COOKIE_SECURE", false, &errors),
		CSRFEnabled:     getOptionalEnvBool("CSRF_ENABLED", true, &errors),
	}

	redisConfig := &RedisConfig{
		URL:       getOptionalEnv("REDIS_URL", ""),
		KeyPrefix: getOptionalEnv("REDIS_KEY_PREFIX", "blogpress:"),
	}

	// Server Configuration
	maxUpload := getOptionalEnvInt("MAX_UPLOAD_BYTES", 10<<20, &errors)
	if maxUpload <= 0 {
		errors = append(errors, fmt.Sprintf("invalid value for MAX_UPLOAD_BYTES: must be positive, got %d", maxUpload))
	}
	serverConfig := &ServerConfig{
		// Note: Server port is a string because it's used directly in the listen address (e.g., ":8080").
		Port:               getOptionalEnv("PORT", "8080"),
		StaticDir:          getOptionalEnv("STATIC_DIR", "static"),
		MaxUploadBytes:     int64(maxUpload),
		CORSAllowedOrigins: splitList(getOptionalEnv("CORS_ALLOWED_ORIGINS", "")),
	}

	tzName := getOptionalEnv("TIMEZONE", "Asia/Tokyo")
	location, err := time.LoadLocation(tzName)
	if err != nil {
		errors = append(errors, fmt.Sprintf("invalid value for TIMEZONE: unknown time zone '%s': %v", tzName, err))
	}

	// If any errors were collected during loading, return a single aggregated error message.
	if len(errors) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return &AppConfig{
		Database: database,
		Auth:     authConfig,
		Redis:    redisConfig,
		Server:   serverConfig,
		Location: location,
		LogLevel: getOptionalEnv("LOG_LEVEL", "info"),
		Warnings: warnings,
	}, nil
}
