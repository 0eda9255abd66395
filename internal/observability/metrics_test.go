package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrisnap/nutrisnap/internal/errors"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestClassifierMetrics(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Classifier.SetModelState("loading")
	m.Classifier.SetModelState("unavailable")
	assert.InDelta(t, 1, gaugeValue(t, m.Classifier.ModelState.WithLabelValues("unavailable")), 0)
	assert.InDelta(t, 0, gaugeValue(t, m.Classifier.ModelState.WithLabelValues("loading")), 0)

	loadErr := errors.Newf("missing").Category(errors.CategoryModelLoad).Build()
	m.Classifier.RecordModelLoad("food101", time.Millisecond, loadErr)
	m.Classifier.RecordModelLoad("food101", time.Millisecond, nil)
	assert.InDelta(t, 1, counterValue(t, m.Classifier.ModelLoadTotal.WithLabelValues("food101", "error", "model-loading")), 0)
	assert.InDelta(t, 1, counterValue(t, m.Classifier.ModelLoadTotal.WithLabelValues("food101", "success", "none")), 0)

	m.Classifier.RecordInference("food101", 20*time.Millisecond, nil)
	m.Classifier.RecordInference("food101", 0, errors.NewStd("x"))
	assert.InDelta(t, 1, counterValue(t, m.Classifier.InferenceTotal.WithLabelValues("food101", "error")), 0)
}

func TestPipelineMetrics(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Pipeline.RecordAnalysis("filename_heuristic", true, 10*time.Millisecond)
	m.Pipeline.RecordRejection("payload_too_large")
	m.Pipeline.RecordStageError("record")

	assert.InDelta(t, 1, counterValue(t, m.Pipeline.AnalysesTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, counterValue(t, m.Pipeline.AnalysesTotal.WithLabelValues("rejected")), 0)
	assert.InDelta(t, 1, counterValue(t, m.Pipeline.AnalysesTotal.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, counterValue(t, m.Pipeline.FallbackProfiles), 0)
	assert.InDelta(t, 1, counterValue(t, m.Pipeline.ResolutionSource.WithLabelValues("filename_heuristic")), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics()
	require.NoError(t, err)

	m.MQTT.SetConnected(true)
	m.HTTP.RequestStarted()
	m.HTTP.RecordRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "nutrisnap_mqtt_connection_status 1")
	assert.Contains(t, body, `nutrisnap_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
