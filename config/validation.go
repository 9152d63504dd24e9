package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Has reports whether field was rejected.
func (e ValidationErrors) Has(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// ValidateConfig checks if the configuration meets the requirements for its environment
func ValidateConfig(cfg *Config) error {
	var errs ValidationErrors
	require := func(field, value string) {
		if value == "" {
			errs = append(errs, ValidationError{Field: field, Message: "is required"})
		}
	}

	require("SERVER_PORT", cfg.ServerPort)
	require("JWT_SECRET", cfg.JWTSecret)
	require("SESSION_SECRET", cfg.SessionSecret)
	require("CSRF_KEY", cfg.CSRFKey)
	if cfg.DatabaseURL == "" {
		require("DB_HOST", cfg.DBHost)
		require("DB_NAME", cfg.DBName)
		require("DB_USER", cfg.DBUser)
		if cfg.Environment == Production || cfg.Environment == CI {
			require("DB_PASSWORD", cfg.DBPassword)
		}
	}

	if cfg.JWTAccessTTL <= 0 {
		errs = append(errs, ValidationError{Field: "JWT_ACCESS_TTL", Message: "must be positive"})
	}
	if cfg.JWTRefreshTTL < cfg.JWTAccessTTL {
		errs = append(errs, ValidationError{Field: "JWT_REFRESH_TTL", Message: "must not be shorter than JWT_ACCESS_TTL"})
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			errs = append(errs, ValidationError{Field: "TIMEZONE", Message: err.Error()})
		}
	}

	switch cfg.StorageBackend {
	case "local":
		require("MEDIA_ROOT", cfg.MediaRoot)
	case "s3":
		require("S3_BUCKET_NAME", cfg.S3BucketName)
	default:
		errs = append(errs, ValidationError{Field: "STORAGE_BACKEND", Message: "must be local or s3"})
	}

	if cfg.Environment == Production {
		if len(cfg.CSRFKey) < 32 {
			errs = append(errs, ValidationError{Field: "CSRF_KEY", Message: "must be at least 32 bytes"})
		}
		if !cfg.CookieSecure {
			errs = append(errs, ValidationError{Field: "COOKIE_SECURE", Message: "must be enabled in production"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
