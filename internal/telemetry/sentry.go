// Package telemetry wires optional Sentry error reporting
package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nutrisnap/nutrisnap/internal/buildinfo"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// DefaultFlushTimeout bounds how long shutdown waits for queued events
const DefaultFlushTimeout = 2 * time.Second

var (
	sentryInitialized atomic.Bool

	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the telemetry module logger
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("telemetry")
	})
	return serviceLogger
}

// InitSentry initializes the Sentry SDK when enabled in settings and installs
// the error reporter. It is a no-op when telemetry is disabled.
func InitSentry(settings *conf.SentrySettings, build *buildinfo.Context) error {
	return initSentry(settings, build, nil)
}

func initSentry(settings *conf.SentrySettings, build *buildinfo.Context, transport sentry.Transport) error {
	if settings == nil || !settings.Enabled {
		errors.SetTelemetryReporter(nil)
		return nil
	}
	if settings.DSN == "" {
		return errors.Newf("sentry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sampleRate := settings.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}
	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       sampleRate,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          build.Release(),
		BeforeSend:       beforeSend,
		Transport:        transport,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	sentryInitialized.Store(true)

	GetLogger().Info("error telemetry enabled",
		logger.String("environment", environment),
		logger.String("release", build.Release()),
		logger.Float64("sample_rate", sampleRate))
	return nil
}

// Flush waits for queued events to be delivered
func Flush(timeout time.Duration) bool {
	if !sentryInitialized.Load() {
		return true
	}
	return sentry.Flush(timeout)
}

// beforeSend strips host and user identifying data from outgoing events
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
