package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment Environment

	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration. DatabaseURL wins over the DB_* parts when set.
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Redis configuration. Redis is optional: without it login rate
	// limiting and refresh-token revocation are disabled.
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT configuration
	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	// Web session and CSRF
	SessionSecret string
	CSRFKey       string
	CookieSecure  bool

	Timezone string

	// Uploads
	StorageBackend string
	MediaRoot      string
	MediaURL       string
	S3BucketName   string
	AWSRegion      string

	CORSAllowedOrigins []string
	LogLevel           string
	RollbarToken       string
}

// secretKeys maps Docker secret file names to the viper keys they fill.
var secretKeys = map[string]string{
	"db_user":        "DB_USER",
	"db_password":    "DB_PASSWORD",
	"jwt_secret":     "JWT_SECRET",
	"redis_password": "REDIS_PASSWORD",
	"session_secret": "SESSION_SECRET",
	"csrf_key":       "CSRF_KEY",
	"database_url":   "DATABASE_URL",
	"rollbar_token":  "ROLLBAR_TOKEN",
}

func setDefaults(v *viper.Viper, env Environment) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "cantine")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_TTL", 30*time.Minute)
	v.SetDefault("JWT_REFRESH_TTL", 24*time.Hour)
	v.SetDefault("COOKIE_SECURE", env == Production)
	v.SetDefault("TIMEZONE", "Africa/Conakry")
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("MEDIA_ROOT", "media")
	v.SetDefault("MEDIA_URL", "/media")
	v.SetDefault("S3_BUCKET_NAME", "cantine-media")
	v.SetDefault("LOG_LEVEL", "info")

	// Local runs work out of the box; production must supply real secrets.
	if env == Development || env == Test {
		v.SetDefault("DB_PASSWORD", "postgres")
		v.SetDefault("JWT_SECRET", "dev-jwt-secret")
		v.SetDefault("SESSION_SECRET", "dev-session-secret")
		v.SetDefault("CSRF_KEY", "dev-csrf-key-32-bytes-long-000000")
		v.SetDefault("LOG_LEVEL", "debug")
	}
}

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	env := GetEnvironment()
	v := viper.New()
	setDefaults(v, env)

	switch env {
	case Development, Test:
		if err := loadDotEnv(); err != nil {
			return nil, fmt.Errorf("failed to load development configuration: %w", err)
		}
	case CI:
		// GitHub Actions exposes secrets under TEST_* names
		for _, key := range []string{"DB_PASSWORD", "JWT_SECRET", "REDIS_PASSWORD", "SESSION_SECRET", "CSRF_KEY"} {
			if val := os.Getenv("TEST_" + key); val != "" {
				v.SetDefault(key, val)
			}
		}
	case Production:
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}
	v.AutomaticEnv()

	if env != CI {
		for name, key := range secretKeys {
			if val := readSecret(name); val != "" {
				v.Set(key, val)
			}
		}
	}

	cfg := fromViper(v)
	cfg.Environment = env

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		ServerPort:         v.GetString("SERVER_PORT"),
		ServerHost:         v.GetString("SERVER_HOST"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		DBHost:             v.GetString("DB_HOST"),
		DBPort:             v.GetString("DB_PORT"),
		DBUser:             v.GetString("DB_USER"),
		DBPassword:         v.GetString("DB_PASSWORD"),
		DBName:             v.GetString("DB_NAME"),
		DBSSLMode:          v.GetString("DB_SSL_MODE"),
		RedisURL:           v.GetString("REDIS_URL"),
		RedisHost:          v.GetString("REDIS_HOST"),
		RedisPort:          v.GetString("REDIS_PORT"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTAccessTTL:       v.GetDuration("JWT_ACCESS_TTL"),
		JWTRefreshTTL:      v.GetDuration("JWT_REFRESH_TTL"),
		SessionSecret:      v.GetString("SESSION_SECRET"),
		CSRFKey:            v.GetString("CSRF_KEY"),
		CookieSecure:       v.GetBool("COOKIE_SECURE"),
		Timezone:           v.GetString("TIMEZONE"),
		StorageBackend:     strings.ToLower(v.GetString("STORAGE_BACKEND")),
		MediaRoot:          v.GetString("MEDIA_ROOT"),
		MediaURL:           v.GetString("MEDIA_URL"),
		S3BucketName:       v.GetString("S3_BUCKET_NAME"),
		AWSRegion:          v.GetString("AWS_REGION"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		RollbarToken:       v.GetString("ROLLBAR_TOKEN"),
	}
}

// loadDotEnv loads .env from the working directory when present. Variables
// already set in the process environment are not overridden.
func loadDotEnv() error {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// Location returns the canteen timezone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
