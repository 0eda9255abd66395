// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVars   []string           // Environment variable names, first set one wins
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"database.url", []string{"NUTRISNAP_DATABASE_URL", "DATABASE_URL"}, validateEnvDatabaseURL},
		{"database.type", []string{"NUTRISNAP_DATABASE_TYPE"}, validateEnvDatabaseType},
		{"model.path", []string{"NUTRISNAP_MODEL_PATH"}, nil},
		{"model.labelpath", []string{"NUTRISNAP_LABEL_PATH"}, nil},
		{"model.threads", []string{"NUTRISNAP_MODEL_THREADS"}, validateEnvNonNegativeInt},
		{"model.maxpixels", []string{"NUTRISNAP_MODEL_MAX_PIXELS"}, validateEnvNonNegativeInt},
		{"model.loadpolicy", []string{"NUTRISNAP_MODEL_LOAD_POLICY"}, validateEnvLoadPolicy},
		{"webserver.port", []string{"NUTRISNAP_HTTP_PORT", "PORT"}, validateEnvPort},
		{"logging.level", []string{"NUTRISNAP_LOG_LEVEL"}, validateEnvLogLevel},
		{"sentry.dsn", []string{"NUTRISNAP_SENTRY_DSN", "SENTRY_DSN"}, nil},
		{"sentry.enabled", []string{"NUTRISNAP_SENTRY_ENABLED"}, validateEnvBool},
		{"mqtt.broker", []string{"NUTRISNAP_MQTT_BROKER"}, nil},
		{"mqtt.enabled", []string{"NUTRISNAP_MQTT_ENABLED"}, validateEnvBool},
		{"storage.type", []string{"NUTRISNAP_STORAGE_TYPE"}, nil},
		{"storage.s3.bucket", []string{"NUTRISNAP_S3_BUCKET"}, nil},
		{"storage.s3.region", []string{"NUTRISNAP_S3_REGION", "AWS_REGION"}, nil},
	}
}

// bindEnvVars binds every environment variable and validates the ones that are set
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		args := append([]string{binding.ConfigKey}, binding.EnvVars...)
		if err := viper.BindEnv(args...); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.ConfigKey, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		for _, name := range binding.EnvVars {
			value := os.Getenv(name)
			if value == "" {
				continue
			}
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", name, err))
			}
			break
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// LoadDotEnv loads variables from path into the process environment.
// Variables that are already set keep their value. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer '%s': %w", value, err)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port '%s': %w", value, err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown log level '%s'", value)
}

func validateEnvLoadPolicy(value string) error {
	switch value {
	case LoadPolicyRetryEveryCall, LoadPolicyCacheFailure:
		return nil
	}
	return fmt.Errorf("unknown load policy '%s', expected %s or %s", value, LoadPolicyRetryEveryCall, LoadPolicyCacheFailure)
}

func validateEnvDatabaseType(value string) error {
	switch value {
	case "sqlite", "mysql":
		return nil
	}
	return fmt.Errorf("unknown database type '%s'", value)
}

func validateEnvDatabaseURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid database url: %w", err)
	}
	switch u.Scheme {
	case "sqlite", "sqlite3", "mysql":
		return nil
	}
	return fmt.Errorf("unsupported database url scheme '%s'", u.Scheme)
}
