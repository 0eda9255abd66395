// Package metrics provides custom Prometheus metrics for the NutriSnap service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nutrisnap/nutrisnap/internal/errors"
)

// modelStates lists every state the model state gauge reports
var modelStates = []string{"unloaded", "loading", "loaded", "unavailable"}

// ClassifierMetrics contains Prometheus metrics related to model loading and inference.
type ClassifierMetrics struct {
	InferenceDuration *prometheus.HistogramVec
	InferenceTotal    *prometheus.CounterVec
	ModelLoadDuration *prometheus.HistogramVec
	ModelLoadTotal    *prometheus.CounterVec
	ModelState        *prometheus.GaugeVec
}

// NewClassifierMetrics creates and registers classifier metrics.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

func (m *ClassifierMetrics) initMetrics() {
	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nutrisnap_inference_duration_seconds",
			Help:    "Time taken to preprocess an image and run the model",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		},
		[]string{"model"},
	)
	m.InferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisnap_inference_total",
			Help: "Total number of inference attempts",
		},
		[]string{"model", "status"},
	)
	m.ModelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nutrisnap_model_load_duration_seconds",
			Help:    "Time taken to load the model",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"model"},
	)
	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisnap_model_load_total",
			Help: "Total number of model load attempts",
		},
		[]string{"model", "status", "category"},
	)
	m.ModelState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nutrisnap_model_state",
			Help: "Current model state, 1 for the active state and 0 for the others",
		},
		[]string{"state"},
	)
}

// RecordModelLoad records one load attempt
func (m *ClassifierMetrics) RecordModelLoad(model string, duration time.Duration, err error) {
	m.ModelLoadDuration.WithLabelValues(model).Observe(duration.Seconds())
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(model, statusError, errorCategory(err)).Inc()
		return
	}
	m.ModelLoadTotal.WithLabelValues(model, statusSuccess, "none").Inc()
}

// RecordInference records one inference attempt
func (m *ClassifierMetrics) RecordInference(model string, duration time.Duration, err error) {
	if err != nil {
		m.InferenceTotal.WithLabelValues(model, statusError).Inc()
		return
	}
	m.InferenceTotal.WithLabelValues(model, statusSuccess).Inc()
	m.InferenceDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// SetModelState marks state as the active model state
func (m *ClassifierMetrics) SetModelState(state string) {
	for _, s := range modelStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ModelState.WithLabelValues(s).Set(v)
	}
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InferenceDuration.Describe(ch)
	m.InferenceTotal.Describe(ch)
	m.ModelLoadDuration.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	m.ModelState.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InferenceDuration.Collect(ch)
	m.InferenceTotal.Collect(ch)
	m.ModelLoadDuration.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	m.ModelState.Collect(ch)
}

// errorCategory returns the category of an enhanced error, or "unknown"
func errorCategory(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return string(ee.Category)
	}
	return "unknown"
}
