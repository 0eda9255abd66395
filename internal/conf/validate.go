// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct and reports every problem at once
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateImageSettings,
		validateModelSettings,
		validateResolverSettings,
		validateDatabaseSettings,
		validateStorageSettings,
		validateWebServerSettings,
		validateMQTTSettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateImageSettings(s *Settings) []string {
	var errs []string
	if s.Image.MaxBytes <= 0 {
		errs = append(errs, "image.maxbytes must be greater than 0")
	}
	if len(s.Image.AllowedTypes) == 0 {
		errs = append(errs, "image.allowedtypes must list at least one content type")
	}
	for _, ct := range s.Image.AllowedTypes {
		if !strings.HasPrefix(ct, "image/") {
			errs = append(errs, fmt.Sprintf("image.allowedtypes entry %q is not an image type", ct))
		}
	}
	return errs
}

func validateModelSettings(s *Settings) []string {
	var errs []string
	m := &s.Model
	if m.InputSize <= 0 {
		errs = append(errs, "model.inputsize must be greater than 0")
	}
	if m.MaxPixels < 0 {
		errs = append(errs, "model.maxpixels must not be negative")
	}
	if m.TopK <= 0 {
		errs = append(errs, "model.topk must be greater than 0")
	}
	if m.Threads < 0 {
		errs = append(errs, "model.threads must not be negative")
	}
	if m.MaxConcurrent <= 0 {
		errs = append(errs, "model.maxconcurrent must be greater than 0")
	}
	if !slices.Contains([]string{LoadPolicyRetryEveryCall, LoadPolicyCacheFailure}, m.LoadPolicy) {
		errs = append(errs, fmt.Sprintf("model.loadpolicy %q is not one of %s, %s", m.LoadPolicy, LoadPolicyRetryEveryCall, LoadPolicyCacheFailure))
	}
	if m.LoadPolicy == LoadPolicyCacheFailure && m.FailureTTL <= 0 {
		errs = append(errs, "model.failurettl must be positive with the cache-failure policy")
	}
	if m.Normalization != NormalizationUnit && m.Normalization != NormalizationSigned {
		errs = append(errs, fmt.Sprintf("model.normalization %q must be %s or %s", m.Normalization, NormalizationUnit, NormalizationSigned))
	}
	if m.Path != "" && m.LabelPath == "" {
		errs = append(errs, "model.labelpath is required when model.path is set")
	}
	return errs
}

func validateResolverSettings(s *Settings) []string {
	var errs []string
	if strings.TrimSpace(s.Resolver.DefaultFood) == "" {
		errs = append(errs, "resolver.defaultfood must not be empty")
	}
	for name, v := range map[string]float64{
		"resolver.heuristicconfidence": s.Resolver.HeuristicConfidence,
		"resolver.defaultconfidence":   s.Resolver.DefaultConfidence,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be within [0, 1], got %g", name, v))
		}
	}
	slices.Sort(errs)
	return errs
}

func validateDatabaseSettings(s *Settings) []string {
	if s.Database.URL != "" {
		if err := validateEnvDatabaseURL(s.Database.URL); err != nil {
			return []string{"database.url: " + err.Error()}
		}
		return nil
	}
	switch s.Database.Type {
	case "sqlite":
		if s.Database.SQLite.Path == "" {
			return []string{"database.sqlite.path must not be empty"}
		}
	case "mysql":
		if s.Database.MySQL.Host == "" || s.Database.MySQL.Database == "" {
			return []string{"database.mysql.host and database.mysql.database are required"}
		}
	default:
		return []string{fmt.Sprintf("database.type %q must be sqlite or mysql", s.Database.Type)}
	}
	return nil
}

func validateStorageSettings(s *Settings) []string {
	switch s.Storage.Type {
	case "", "none":
	case "local":
		if s.Storage.Local.Path == "" {
			return []string{"storage.local.path must not be empty"}
		}
	case "s3":
		if s.Storage.S3.Bucket == "" {
			return []string{"storage.s3.bucket is required with storage.type s3"}
		}
	default:
		return []string{fmt.Sprintf("storage.type %q must be none, local or s3", s.Storage.Type)}
	}
	return nil
}

func validateWebServerSettings(s *Settings) []string {
	var errs []string
	w := &s.WebServer
	if !w.Enabled {
		return nil
	}
	if w.HistoryMaxLimit <= 0 {
		errs = append(errs, "webserver.historymaxlimit must be greater than 0")
	}
	if w.HistoryLimit <= 0 || w.HistoryLimit > w.HistoryMaxLimit {
		errs = append(errs, "webserver.historylimit must be between 1 and webserver.historymaxlimit")
	}
	if w.RateLimit < 0 {
		errs = append(errs, "webserver.ratelimit must not be negative")
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when mqtt is enabled")
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when mqtt is enabled")
	}
	return errs
}
