// Package app assembles the NutriSnap service from settings
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/nutrisnap/nutrisnap/internal/buildinfo"
	"github.com/nutrisnap/nutrisnap/internal/classifier"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/datastore"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/imageguard"
	"github.com/nutrisnap/nutrisnap/internal/imagestore"
	"github.com/nutrisnap/nutrisnap/internal/labelmap"
	"github.com/nutrisnap/nutrisnap/internal/logger"
	"github.com/nutrisnap/nutrisnap/internal/mqtt"
	"github.com/nutrisnap/nutrisnap/internal/nutrition"
	"github.com/nutrisnap/nutrisnap/internal/observability"
	"github.com/nutrisnap/nutrisnap/internal/pipeline"
	"github.com/nutrisnap/nutrisnap/internal/resolver"
	"github.com/nutrisnap/nutrisnap/internal/telemetry"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Settings   *conf.Settings
	Build      *buildinfo.Context
	Metrics    *observability.Metrics
	Store      datastore.Interface
	Classifier *classifier.Classifier
	Labels     *labelmap.Cache
	Catalog    *nutrition.Catalog
	Images     imagestore.Store
	Publisher  *mqtt.Publisher
	Pipeline   *pipeline.Pipeline

	log     logger.Logger
	closers []func() error
}

// Option customizes New
type Option func(*options)

type options struct {
	skipSeed   bool
	mqttClient mqtt.Client
}

// WithoutSeeding skips seeding even when the settings request it
func WithoutSeeding() Option {
	return func(o *options) { o.skipSeed = true }
}

// WithMQTTClient replaces the broker client built from settings
func WithMQTTClient(c mqtt.Client) Option {
	return func(o *options) { o.mqttClient = c }
}

// SetupLogging installs the central logger described by settings
func SetupLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	level := settings.Logging.Level
	if settings.Debug {
		level = "debug"
	}
	central, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: level,
		Format:       settings.Logging.Format,
		Timezone:     settings.Logging.Timezone,
		FilePath:     settings.Logging.File,
		ModuleLevels: settings.Logging.ModuleLevels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return central, nil
}

// New opens the database and builds every component of the analyze pipeline.
// On error everything opened so far is closed again.
func New(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Settings: settings,
		Build:    build,
		log:      logger.Global().Module("app"),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err = telemetry.InitSentry(&settings.Sentry, build); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		telemetry.Flush(telemetry.DefaultFlushTimeout)
		return nil
	})

	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return nil, err
	}

	if err = a.openStore(ctx, o.skipSeed); err != nil {
		return nil, err
	}

	a.Classifier = newClassifier(settings.Model, a.Metrics)
	a.closers = append(a.closers, a.Classifier.Close)

	a.Labels = labelmap.New(a.Store, logger.Global().Module("labelmap"))
	a.Catalog, err = nutrition.NewCatalog(ctx, a.Store, settings.Resolver.DefaultFood,
		settings.Nutrition.CacheTTL, logger.Global().Module("nutrition"))
	if err != nil {
		return nil, err
	}

	if a.Images, err = imagestore.New(ctx, settings.Storage); err != nil {
		return nil, err
	}

	a.setupPublisher(ctx, o.mqttClient)

	res := resolver.New(a.Classifier, a.Labels, resolver.Options{
		DefaultFood:         settings.Resolver.DefaultFood,
		HeuristicConfidence: settings.Resolver.HeuristicConfidence,
		DefaultConfidence:   settings.Resolver.DefaultConfidence,
		Logger:              logger.Global().Module("resolver"),
	})

	popts := pipeline.Options{
		Guard:           imageguard.New(settings.Image.MaxBytes, settings.Image.AllowedTypes),
		Resolver:        res,
		Catalog:         a.Catalog,
		Store:           a.Store,
		Images:          a.Images,
		Metrics:         a.Metrics.Pipeline,
		HistoryLimit:    settings.WebServer.HistoryLimit,
		HistoryMaxLimit: settings.WebServer.HistoryMaxLimit,
	}
	// a nil *Publisher must not reach the interface
	if a.Publisher != nil {
		popts.Publisher = a.Publisher
	}
	if a.Pipeline, err = pipeline.New(popts); err != nil {
		return nil, err
	}

	a.log.Info("service components ready",
		logger.String("version", build.GetVersion()),
		logger.String("database", settings.Database.Type),
		logger.String("storage", a.Images.Kind()),
		logger.String("model_state", a.Classifier.State().String()),
		logger.Bool("mqtt", a.Publisher != nil))
	return a, nil
}

func (a *App) openStore(ctx context.Context, skipSeed bool) error {
	store, err := datastore.New(a.Settings)
	if err != nil {
		return errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	if a.Settings.Database.SeedOnStart && !skipSeed {
		data, err := datastore.DefaultSeedData()
		if err != nil {
			return err
		}
		stats, err := store.Seed(ctx, data)
		if err != nil {
			return err
		}
		a.log.Info("lookup tables seeded",
			logger.Int("profiles", stats.Profiles),
			logger.Int("labels", stats.Labels))
	}
	return nil
}

// newClassifier returns a classifier that reports unavailable when no model
// path is configured.
func newClassifier(settings conf.ModelSettings, metrics *observability.Metrics) *classifier.Classifier {
	opts := classifier.Options{
		Policy:        classifier.PolicyFromSettings(settings.LoadPolicy, settings.FailureTTL),
		TopK:          settings.TopK,
		MaxConcurrent: settings.MaxConcurrent,
		Metrics:       metrics.Classifier,
		Logger:        logger.Global().Module("classifier"),
	}
	if settings.Path != "" {
		opts.Loader = classifier.NewTFLiteLoader(settings)
	}
	return classifier.New(opts)
}

// setupPublisher connects to the broker. A failed connection is logged and
// the service keeps running; publishing then fails per event.
func (a *App) setupPublisher(ctx context.Context, client mqtt.Client) {
	s := a.Settings.MQTT
	if !s.Enabled {
		return
	}

	if client == nil {
		client = mqtt.NewClient(mqtt.ConfigFromSettings(&s, a.Settings.Main.Name), a.Metrics.MQTT)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		a.log.Warn("mqtt broker unreachable, analysis events will not be delivered",
			logger.String("broker", s.Broker),
			logger.Error(err))
	}

	a.Publisher = mqtt.NewPublisher(client, s.Topic)
	a.closers = append(a.closers, func() error {
		a.Publisher.Close()
		return nil
	})
}

// Close releases components in reverse construction order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
