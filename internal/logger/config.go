package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" json:"default_level"` // trace, debug, info, warn, error
	Format       string            `yaml:"format" json:"format"`               // console format: "text" or "json"
	Timezone     string            `yaml:"timezone" json:"timezone"`           // "Local", "UTC" or an IANA name
	FilePath     string            `yaml:"file_path" json:"file_path"`         // optional JSON log file, appended to
	ModuleLevels map[string]string `yaml:"module_levels" json:"module_levels"` // per-module level overrides
}

// Default values for logging configuration, kept in line with conf defaults.
const (
	DefaultLogLevel = "info"
	DefaultFormat   = "text"
)

func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
}
