// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporter           atomic.Pointer[TelemetryReporter]
	hasActiveReporting atomic.Bool
)

// SetTelemetryReporter installs the process wide reporter. Passing nil disables reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	if r == nil {
		reporter.Store(nil)
		hasActiveReporting.Store(false)
		return
	}
	reporter.Store(&r)
	hasActiveReporting.Store(r.IsEnabled())
}

func reportToTelemetry(ee *EnhancedError) {
	ptr := reporter.Load()
	if ptr == nil || *ptr == nil || !(*ptr).IsEnabled() {
		return
	}
	if !isReportable(ee.Category) {
		return
	}
	(*ptr).ReportError(ee)
}

// isReportable limits telemetry to failures of the service itself. Client
// input errors and recovered recognition failures are expected traffic.
func isReportable(category ErrorCategory) bool {
	switch category {
	case CategoryDatabase, CategoryModelLoad, CategoryModelInit,
		CategoryStorage, CategoryConfiguration, CategoryLabelLoad:
		return true
	default:
		return false
	}
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends the error to Sentry with scrubbed message and context
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubURLs(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubURLs(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(sentryLevel(ee.Category))
		scope.SetFingerprint([]string{ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = sentryLevel(ee.Category)
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%s %s", ee.Component, ee.Category),
			Value: message,
		}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

func sentryLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryStorage, CategoryNetwork, CategoryPublish:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var urlQueryPattern = regexp.MustCompile(`((?:https?|s3|mysql|tcp)://[^?\s]+)\?\S*`)
var credentialsPattern = regexp.MustCompile(`(://)[^/@\s]+:[^/@\s]+@`)

// scrubURLs drops query strings and inline credentials from URLs and DSNs
func scrubURLs(message string) string {
	scrubbed := urlQueryPattern.ReplaceAllString(message, "$1?[REDACTED]")
	return credentialsPattern.ReplaceAllString(scrubbed, "$1[REDACTED]@")
}
