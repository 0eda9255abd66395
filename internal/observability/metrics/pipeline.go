package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains metrics of the analyze pipeline
type PipelineMetrics struct {
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	ResolutionSource *prometheus.CounterVec
	FallbackProfiles prometheus.Counter
	Rejections       *prometheus.CounterVec
	StageErrors      *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisnap_analyses_total",
			Help: "Total number of analyze requests by outcome",
		},
		[]string{"status"},
	)
	m.AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nutrisnap_analysis_duration_seconds",
			Help:    "End to end duration of successful analyses",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)
	m.ResolutionSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisnap_resolution_source_total",
			Help: "Resolved food keys by how they were obtained",
		},
		[]string{"source"},
	)
	m.FallbackProfiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nutrisnap_fallback_profile_total",
			Help: "Number of analyses that used the default nutrition profile",
		},
	)
	m.Rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisnap_rejected_images_total",
			Help: "Images rejected by validation",
		},
		[]string{"reason"},
	)
	m.StageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisnap_stage_errors_total",
			Help: "Non fatal and fatal errors by pipeline stage",
		},
		[]string{"stage"},
	)
}

// RecordAnalysis records one completed analysis
func (m *PipelineMetrics) RecordAnalysis(source string, fallbackProfile bool, duration time.Duration) {
	m.AnalysesTotal.WithLabelValues(statusSuccess).Inc()
	m.AnalysisDuration.Observe(duration.Seconds())
	m.ResolutionSource.WithLabelValues(source).Inc()
	if fallbackProfile {
		m.FallbackProfiles.Inc()
	}
}

// RecordRejection records an image rejected before analysis
func (m *PipelineMetrics) RecordRejection(reason string) {
	m.AnalysesTotal.WithLabelValues("rejected").Inc()
	m.Rejections.WithLabelValues(reason).Inc()
}

// RecordStageError records a failure in a pipeline stage
func (m *PipelineMetrics) RecordStageError(stage string) {
	if stage == OpRecord {
		m.AnalysesTotal.WithLabelValues(statusError).Inc()
	}
	m.StageErrors.WithLabelValues(stage).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.AnalysesTotal.Describe(ch)
	ch <- m.AnalysisDuration.Desc()
	m.ResolutionSource.Describe(ch)
	ch <- m.FallbackProfiles.Desc()
	m.Rejections.Describe(ch)
	m.StageErrors.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.AnalysesTotal.Collect(ch)
	m.AnalysisDuration.Collect(ch)
	m.ResolutionSource.Collect(ch)
	m.FallbackProfiles.Collect(ch)
	m.Rejections.Collect(ch)
	m.StageErrors.Collect(ch)
}
