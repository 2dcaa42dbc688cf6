// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error", "fatal"}
	validLogFormats = []string{"console", "json"}
	validDBDrivers  = []string{"sqlite", "postgres"}
)

// DefaultAllowedExtensions is the list of model formats accepted when
// upload.allowed_extensions isn't set
var DefaultAllowedExtensions = []string{"obj", "fbx", "gltf", "glb", "dae", "3ds", "ply", "stl"}

// Setup prepares everything config-related so that the app can
// start working. path may be empty, in which case config.toml is
// looked up in the working directory. A missing config file isn't
// fatal since every key can be provided through the environment.
func Setup(path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")
	v.BindEnv("app.log_format", "app_log_format")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.cors_origins", "host_cors_origins")

	v.BindEnv("host.ssl.enabled", "host_ssl_enabled")
	v.BindEnv("host.ssl.certificate_path", "host_ssl_certificate_path")
	v.BindEnv("host.ssl.certificate_key_path", "host_ssl_certificate_key_path")

	v.BindEnv("security.rate_limit", "security_rate_limit")
	v.BindEnv("jwt.secret", "jwt_secret")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.dsn", "db_dsn", "database_url")

	v.BindEnv("storage.type", "storage_type")
	v.BindEnv("storage.local.path", "storage_local_path")

	v.BindEnv("storage.s3.bucket", "storage_s3_bucket")
	v.BindEnv("storage.s3.region", "storage_s3_region")
	v.BindEnv("storage.s3.endpoint", "storage_s3_endpoint")
	v.BindEnv("storage.s3.account_id", "storage_s3_account_id", "cloudflare_account_id")
	v.BindEnv("storage.s3.access_key_id", "storage_s3_access_key_id")
	v.BindEnv("storage.s3.secret_access_key", "storage_s3_secret_access_key")
	v.BindEnv("storage.s3.path_style", "storage_s3_path_style")
	v.BindEnv("storage.s3.key_prefix", "storage_s3_key_prefix")
	v.BindEnv("storage.s3.public_base_url", "storage_s3_public_base_url")
	v.BindEnv("storage.s3.presign_expiry", "storage_s3_presign_expiry")
	v.BindEnv("storage.s3.timeout", "storage_s3_timeout")
	v.BindEnv("storage.s3.upload_timeout", "storage_s3_upload_timeout")
	v.BindEnv("storage.s3.part_size", "storage_s3_part_size")

	v.BindEnv("upload.max_size", "upload_max_size")
	v.BindEnv("upload.allowed_extensions", "upload_allowed_extensions")

	v.BindEnv("integrity.schedule", "integrity_schedule")
	v.BindEnv("integrity.concurrency", "integrity_concurrency")

	v.BindEnv("cloudflare.turnstile.enabled", "cloudflare_turnstile_enabled")
	v.BindEnv("cloudflare.turnstile.secret_token", "cloudflare_turnstile_secret_token")

	SetDefaults()

	if err := v.ReadInConfig(); err != nil {
		var notFound v.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file, %w", err)
		}

		zap.L().Warn("No config.toml found, using defaults and environment only")
	}

	return Validate()
}

// SetDefaults registers the default value of every known key
func SetDefaults() {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("security.rate_limit", 20)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.path", "uploads")

	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.key_prefix", "models/")
	v.SetDefault("storage.s3.presign_expiry", 15*time.Minute)
	v.SetDefault("storage.s3.timeout", 30*time.Second)
	v.SetDefault("storage.s3.upload_timeout", 10*time.Minute)
	v.SetDefault("storage.s3.part_size", 8)

	// In MiB
	v.SetDefault("upload.max_size", 100)
	v.SetDefault("upload.allowed_extensions", DefaultAllowedExtensions)

	v.SetDefault("integrity.schedule", "")
	v.SetDefault("integrity.concurrency", 8)

	v.SetDefault("cloudflare.turnstile.enabled", false)
}

// Validate checks the currently loaded configuration. It returns the
// first problem found.
func Validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if !slices.Contains(validLogFormats, v.GetString("app.log_format")) {
		return errors.New("invalid log format provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetBool("host.ssl.enabled") {
		if v.GetString("host.ssl.certificate_path") == "" {
			return errors.New("no ssl certificate path provided")
		}

		if v.GetString("host.ssl.certificate_key_path") == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if v.GetString("jwt.secret") == "" {
		return errors.New("jwt.secret is empty, set it in config.toml or the JWT_SECRET environment variable")
	}

	if !slices.Contains(validDBDrivers, v.GetString("db.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("db.dsn can't be empty")
	}

	if v.GetInt64("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if len(AllowedExtensions()) == 0 {
		return errors.New("upload.allowed_extensions can't be empty")
	}

	if v.GetInt("integrity.concurrency") <= 0 {
		return errors.New("integrity.concurrency must be bigger than 0")
	}

	switch v.GetString("storage.type") {
	case "remote":
		if v.GetString("storage.s3.bucket") == "" {
			return errors.New("bucket can't be empty")
		}
		if v.GetString("storage.s3.access_key_id") == "" {
			return errors.New("access key id can't be empty")
		}
		if v.GetString("storage.s3.secret_access_key") == "" {
			return errors.New("secret access key can't be empty")
		}
		if v.GetDuration("storage.s3.timeout") <= 0 {
			return errors.New("storage.s3.timeout must be bigger than 0")
		}
		if v.GetDuration("storage.s3.upload_timeout") <= 0 {
			return errors.New("storage.s3.upload_timeout must be bigger than 0")
		}
		if v.GetInt64("storage.s3.part_size") < 5 {
			return errors.New("storage.s3.part_size must be at least 5 MiB")
		}
	case "local":
		if v.GetString("storage.local.path") == "" {
			return errors.New("storage.local.path can't be empty")
		}
	default:
		return errors.New("invalid storage type provided")
	}

	if v.GetBool("cloudflare.turnstile.enabled") && v.GetString("cloudflare.turnstile.secret_token") == "" {
		return errors.New("turnstile secret token is missing")
	}

	return nil
}

// MaxUploadSize returns upload.max_size converted to bytes
func MaxUploadSize() int64 {
	return v.GetInt64("upload.max_size") << 20
}

// AllowedExtensions returns the normalized upload allow-list. Both a
// list and a comma separated string (as set through the environment)
// are accepted.
func AllowedExtensions() []string {
	raw := v.GetStringSlice("upload.allowed_extensions")
	if slices.ContainsFunc(raw, func(s string) bool { return strings.Contains(s, ",") }) {
		raw = strings.Split(strings.Join(raw, ","), ",")
	}

	out := make([]string, 0, len(raw))
	for _, e := range raw {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" || slices.Contains(out, e) {
			continue
		}
		out = append(out, e)
	}

	return out
}
