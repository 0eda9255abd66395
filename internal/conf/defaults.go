// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with other packages
const (
	DefaultMaxImageBytes       = 5 * 1024 * 1024
	DefaultFoodKey             = "pizza"
	DefaultHeuristicConfidence = 0.85
	DefaultFallbackConfidence  = 0.80
	DefaultHistoryLimit        = 50
	DefaultHistoryMaxLimit     = 200

	LoadPolicyRetryEveryCall = "retry-every-call"
	LoadPolicyCacheFailure   = "cache-failure"

	NormalizationUnit   = "unit"
	NormalizationSigned = "signed"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)
	viper.SetDefault("main.name", "nutrisnap")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.file", "")

	viper.SetDefault("image.maxbytes", DefaultMaxImageBytes)
	viper.SetDefault("image.allowedtypes", []string{"image/jpeg", "image/png", "image/webp"})

	viper.SetDefault("model.path", "")
	viper.SetDefault("model.labelpath", "")
	viper.SetDefault("model.inputsize", 224)
	viper.SetDefault("model.maxpixels", 40_000_000)
	viper.SetDefault("model.normalization", NormalizationUnit)
	viper.SetDefault("model.topk", 5)
	viper.SetDefault("model.threads", 0)
	viper.SetDefault("model.usexnnpack", false)
	viper.SetDefault("model.maxconcurrent", 2)
	viper.SetDefault("model.loadpolicy", LoadPolicyRetryEveryCall)
	viper.SetDefault("model.failurettl", 30*time.Second)

	viper.SetDefault("resolver.defaultfood", DefaultFoodKey)
	viper.SetDefault("resolver.heuristicconfidence", DefaultHeuristicConfidence)
	viper.SetDefault("resolver.defaultconfidence", DefaultFallbackConfidence)

	viper.SetDefault("nutrition.cachettl", 10*time.Minute)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.sqlite.path", "nutrisnap.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.database", "nutrisnap")
	viper.SetDefault("database.slowthreshold", 200*time.Millisecond)
	viper.SetDefault("database.seedonstart", true)

	viper.SetDefault("storage.type", "none")
	viper.SetDefault("storage.local.path", "uploads")
	viper.SetDefault("storage.s3.prefix", "uploads/")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.port", "8000")
	viper.SetDefault("webserver.corsorigins", []string{"http://localhost:5173"})
	viper.SetDefault("webserver.bodylimit", "6M")
	viper.SetDefault("webserver.ratelimit", 10.0)
	viper.SetDefault("webserver.rateburst", 20)
	viper.SetDefault("webserver.historylimit", DefaultHistoryLimit)
	viper.SetDefault("webserver.historymaxlimit", DefaultHistoryMaxLimit)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "nutrisnap/analysis")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.samplerate", 1.0)
}
