package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nutrisnap/nutrisnap/internal/classifier"
	"github.com/nutrisnap/nutrisnap/internal/datastore"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/imageguard"
	"github.com/nutrisnap/nutrisnap/internal/logger"
	"github.com/nutrisnap/nutrisnap/internal/nutrition"
	"github.com/nutrisnap/nutrisnap/internal/observability"
	"github.com/nutrisnap/nutrisnap/internal/pipeline"
	"github.com/nutrisnap/nutrisnap/internal/resolver"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req pipeline.Request) (*pipeline.AnalysisResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*pipeline.AnalysisResult)
	return res, args.Error(1)
}

func (m *mockAnalyzer) History(ctx context.Context, q pipeline.HistoryQuery) ([]pipeline.HistoryItem, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]pipeline.HistoryItem)
	return items, args.Error(1)
}

func (m *mockAnalyzer) Nutrition(ctx context.Context, food string) (nutrition.Profile, error) {
	args := m.Called(ctx, food)
	p, _ := args.Get(0).(nutrition.Profile)
	return p, args.Error(1)
}

func (m *mockAnalyzer) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type fixedModel classifier.State

func (f fixedModel) State() classifier.State { return classifier.State(f) }

func newTestServer(t *testing.T, a Analyzer, mutate func(*Config), opts ...ServerOption) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}
	opts = append([]ServerOption{WithLogger(logger.NewDiscard())}, opts...)
	s, err := NewWithConfig(cfg, a, opts...)
	require.NoError(t, err)
	return s
}

func multipartImage(t *testing.T, field, fileName, contentType string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range extra {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	a := &mockAnalyzer{}
	a.On("Ping", mock.Anything).Return(nil)
	s := newTestServer(t, a, nil, WithModelStatus(fixedModel(classifier.StateUnavailable)))

	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "unavailable", resp.ModelState)
	assert.Equal(t, "ok", resp.Database)
	assert.Nil(t, resp.Host)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/v1/health?details=true", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Host)
}

func TestHealthDatabaseUnreachable(t *testing.T) {
	t.Parallel()

	a := &mockAnalyzer{}
	a.On("Ping", mock.Anything).Return(errors.NewStd("connection refused"))
	s := newTestServer(t, a, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"unreachable"`, mustField(t, rec.Body.Bytes(), "database"))
	assert.JSONEq(t, `"disabled"`, mustField(t, rec.Body.Bytes(), "model_state"))
}

func mustField(t *testing.T, body []byte, key string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	require.Contains(t, m, key)
	return string(m[key])
}

func TestAnalyzeSuccess(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &mockAnalyzer{}
	a.On("Analyze", mock.Anything, mock.MatchedBy(func(r pipeline.Request) bool {
		return r.Body != nil &&
			r.ContentType == "image/jpeg" &&
			r.FileName == "lunch_banana.jpg" &&
			r.UserID == "u-1"
	})).Return(&pipeline.AnalysisResult{
		UploadID:          "c1d7a8a0-5a4f-4b8e-9a52-0b7f3f0e2b11",
		RecordID:          3,
		FoodKey:           "banana",
		Confidence:        0.85,
		Source:            resolver.SourceFilename,
		ServingG:          118,
		Calories:          105,
		Protein:           1.1,
		Carbs:             23,
		Fat:               0.3,
		InferenceDuration: 42 * time.Millisecond,
		Timestamp:         ts,
	}, nil)
	s := newTestServer(t, a, nil)

	body, ct := multipartImage(t, "image", "lunch_banana.jpg", "image/jpeg", []byte("jpeg-bytes"), map[string]string{"user_id": "u-1"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, AnalyzeResponse{
		Food:        "banana",
		Confidence:  0.85,
		Source:      "filename_heuristic",
		ServingG:    118,
		Calories:    105,
		ProteinG:    1.1,
		CarbsG:      23,
		FatG:        0.3,
		InferenceMS: 42,
		UploadID:    "c1d7a8a0-5a4f-4b8e-9a52-0b7f3f0e2b11",
		RecordID:    3,
		Timestamp:   ts,
	}, resp)
	a.AssertExpectations(t)
}

func TestAnalyzeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		field    string
		err      error
		wantCode int
	}{
		{name: "missing image field", field: "", wantCode: http.StatusBadRequest},
		{name: "unsupported media type", field: "image", err: errors.New(imageguard.ErrUnsupportedMediaType).Build(), wantCode: http.StatusUnsupportedMediaType},
		{name: "payload too large", field: "image", err: errors.New(imageguard.ErrPayloadTooLarge).Build(), wantCode: http.StatusRequestEntityTooLarge},
		{name: "persistence failure", field: "image", err: datastore.ErrPersistence, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := &mockAnalyzer{}
			if tt.err != nil {
				a.On("Analyze", mock.Anything, mock.Anything).Return(nil, tt.err)
			}
			s := newTestServer(t, a, nil)

			body, ct := multipartImage(t, tt.field, "x.gif", "image/gif", []byte("GIF89a"), map[string]string{"note": "x"})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
			req.Header.Set("Content-Type", ct)
			rec := do(s, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Detail)
			assert.NotEmpty(t, resp.CorrelationID)
			assert.Equal(t, resp.CorrelationID, rec.Header().Get("X-Request-ID"))
			a.AssertExpectations(t)
		})
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &mockAnalyzer{}
	a.On("History", mock.Anything, pipeline.HistoryQuery{Limit: 5, UserID: "u-1"}).Return([]pipeline.HistoryItem{
		{RecordID: 9, FoodKey: "pizza", Calories: 399, Protein: 11, Carbs: 33, Fat: 10, Confidence: 0.8, Timestamp: ts, FileName: "IMG_1.jpg"},
	}, nil)
	a.On("History", mock.Anything, pipeline.HistoryQuery{}).Return([]pipeline.HistoryItem{}, nil)
	s := newTestServer(t, a, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/history?limit=5&user_id=u-1", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":9,"food":"pizza","calories":399,"protein_g":11,"carbs_g":33,"fat_g":10,
		"confidence":0.8,"timestamp":"2026-03-01T12:00:00Z","file_name":"IMG_1.jpg"}]`, rec.Body.String())

	rec = do(s, httptest.NewRequest(http.MethodGet, "/history", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, bad := range []string{"abc", "0", "-3"} {
		rec = do(s, httptest.NewRequest(http.MethodGet, "/history?limit="+bad, http.NoBody))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", bad)
	}
	a.AssertExpectations(t)
}

func TestNutrition(t *testing.T) {
	t.Parallel()

	a := &mockAnalyzer{}
	a.On("Nutrition", mock.Anything, "Banana").Return(nutrition.Profile{
		FoodKey: "banana", CaloriesPer100g: 89, Protein: 1.1, Carbs: 23, Fat: 0.3, DefaultServingG: 118,
	}, nil)
	a.On("Nutrition", mock.Anything, "durian").Return(nil, datastore.ErrProfileNotFound)
	s := newTestServer(t, a, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/nutrition?food=Banana", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"food":"banana","calories_per_100g":89,"protein":1.1,"carbs":23,"fat":0.3,"default_serving_g":118}`, rec.Body.String())

	rec = do(s, httptest.NewRequest(http.MethodGet, "/nutrition?food=durian", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/nutrition", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	a.AssertExpectations(t)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	a := &mockAnalyzer{}
	a.On("Ping", mock.Anything).Return(nil)
	s := newTestServer(t, a, nil, WithMetrics(m))

	require.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/health", http.NoBody)).Code)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nutrisnap_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	a := &mockAnalyzer{}
	a.On("History", mock.Anything, mock.Anything).Return([]pipeline.HistoryItem{}, nil)
	a.On("Ping", mock.Anything).Return(nil)
	s := newTestServer(t, a, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})

	assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/history", http.NoBody)).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(s, httptest.NewRequest(http.MethodGet, "/history", http.NoBody)).Code)

	for range 3 {
		assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/health", http.NoBody)).Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &mockAnalyzer{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/analyze", http.NoBody)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := do(s, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/analyze", http.NoBody)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = do(s, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorrelationIDHonoursIncomingHeader(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &mockAnalyzer{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/nutrition", http.NoBody)
	req.Header.Set("X-Request-ID", "req-123")
	rec := do(s, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.True(t, strings.Contains(rec.Body.String(), `"correlation_id":"req-123"`))
}
