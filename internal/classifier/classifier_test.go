package classifier

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeEngine returns fixed scores and records calls
type fakeEngine struct {
	scores []float32
	err    error
	runs   atomic.Int32
	closed atomic.Bool
}

func (e *fakeEngine) Run([]float32) ([]float32, error) {
	e.runs.Add(1)
	return e.scores, e.err
}

func (e *fakeEngine) Close() error {
	e.closed.Store(true)
	return nil
}

func passthrough(b []byte) ([]float32, error) { return []float32{float32(len(b))}, nil }

// countingLoader fails the first failN loads
type countingLoader struct {
	engine *fakeEngine
	labels []string
	failN  int32
	delay  time.Duration
	calls  atomic.Int32
}

func (l *countingLoader) Load(context.Context) (*Model, error) {
	n := l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if n <= l.failN {
		return nil, errors.Newf("model file missing").Category(errors.CategoryModelLoad).Build()
	}
	return NewModel("food101", l.engine, passthrough, l.labels), nil
}

type recordingMetrics struct {
	mu     sync.Mutex
	loads  int
	infers int
	states []string
}

func (m *recordingMetrics) RecordModelLoad(string, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
}

func (m *recordingMetrics) RecordInference(string, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infers++
}

func (m *recordingMetrics) SetModelState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func newTestClassifier(loader Loader, policy LoadPolicy) *Classifier {
	return New(Options{Loader: loader, Policy: policy, Logger: logger.NewDiscard()})
}

func TestInferRanksCandidates(t *testing.T) {
	loader := &countingLoader{
		engine: &fakeEngine{scores: []float32{0.05, 0.6, 0.1, 0.15, 0.02, 0.03, 0.05}},
		labels: []string{"bagel", "pizza", "banana", "hotdog", "carrot", "lemon", "orange"},
	}
	c := newTestClassifier(loader, nil)
	assert.Equal(t, StateUnloaded, c.State())

	got, err := c.Infer(t.Context(), []byte("img"))
	require.NoError(t, err)
	require.Len(t, got, MaxCandidates)
	assert.Equal(t, "pizza", got[0].Label)
	assert.Equal(t, "hotdog", got[1].Label)
	assert.Equal(t, "banana", got[2].Label)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
		assert.GreaterOrEqual(t, got[i].Score, 0.0)
		assert.LessOrEqual(t, got[i].Score, 1.0)
	}
	assert.Equal(t, StateLoaded, c.State())
}

func TestLoadedIsKept(t *testing.T) {
	loader := &countingLoader{engine: &fakeEngine{scores: []float32{1}}, labels: []string{"pizza"}}
	c := newTestClassifier(loader, nil)

	for range 3 {
		_, err := c.Infer(t.Context(), []byte("x"))
		require.NoError(t, err)
	}
	state, err := c.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, state)
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestRetryEveryCallReloadsWhileUnavailable(t *testing.T) {
	loader := &countingLoader{engine: &fakeEngine{scores: []float32{1}}, labels: []string{"pizza"}, failN: 2}
	c := newTestClassifier(loader, RetryEveryCall{})

	_, err := c.Infer(t.Context(), []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, StateUnavailable, c.State())
	assert.Error(t, c.LastError())

	_, err = c.Infer(t.Context(), []byte("x"))
	assert.ErrorIs(t, err, ErrModelUnavailable)

	got, err := c.Infer(t.Context(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "pizza", got[0].Label)
	assert.EqualValues(t, 3, loader.calls.Load(), "each call while unavailable retries the load")
	assert.NoError(t, c.LastError())
}

func TestCacheFailureSuppressesReload(t *testing.T) {
	loader := &countingLoader{engine: &fakeEngine{scores: []float32{1}}, labels: []string{"pizza"}, failN: 1}
	c := newTestClassifier(loader, CacheFailureForDuration{TTL: time.Minute})

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	_, err := c.Infer(t.Context(), []byte("x"))
	require.ErrorIs(t, err, ErrModelUnavailable)

	clock = clock.Add(30 * time.Second)
	_, err = c.Infer(t.Context(), []byte("x"))
	require.ErrorIs(t, err, ErrModelUnavailable)
	assert.EqualValues(t, 1, loader.calls.Load(), "failure is cached within the TTL")

	clock = clock.Add(31 * time.Second)
	_, err = c.Infer(t.Context(), []byte("x"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestCanceledLoadIsNotCachedAsFailure(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func(ctx context.Context) (*Model, error) {
		calls.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewModel("food101", &fakeEngine{scores: []float32{1}}, passthrough, []string{"pizza"}), nil
	})
	c := newTestClassifier(loader, CacheFailureForDuration{TTL: time.Hour})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := c.Infer(ctx, []byte("x"))
	require.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, StateUnloaded, c.State())

	candidates, err := c.Infer(t.Context(), []byte("x"))
	require.NoError(t, err, "a canceled request must not block the next load")
	assert.Equal(t, "pizza", candidates[0].Label)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, StateLoaded, c.State())
}

func TestOversizedImageFallsOutOfInference(t *testing.T) {
	engine := &fakeEngine{scores: []float32{1}}
	pre := NewPreprocessor(8, "", 1000)
	loader := LoaderFunc(func(context.Context) (*Model, error) {
		return NewModel("food101", engine, pre.Preprocess, []string{"pizza"}), nil
	})
	c := newTestClassifier(loader, nil)

	_, err := c.Infer(t.Context(), hugeHeaderPNG(t, 2000, 2000))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Zero(t, engine.runs.Load(), "the engine never sees an oversized image")
	assert.Equal(t, StateLoaded, c.State())
}

func TestConcurrentFirstUseLoadsOnce(t *testing.T) {
	loader := &countingLoader{
		engine: &fakeEngine{scores: []float32{0.2, 0.8}},
		labels: []string{"banana", "pizza"},
		delay:  20 * time.Millisecond,
	}
	c := New(Options{Loader: loader, MaxConcurrent: 4, Logger: logger.NewDiscard()})

	g, ctx := errgroup.WithContext(t.Context())
	for range 16 {
		g.Go(func() error {
			_, err := c.Infer(ctx, []byte("x"))
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, loader.calls.Load())
	assert.EqualValues(t, 16, loader.engine.runs.Load())
}

func TestInferenceFailureIsModelUnavailable(t *testing.T) {
	engine := &fakeEngine{err: errors.NewStd("tensor invoke failed")}
	c := newTestClassifier(&countingLoader{engine: engine}, nil)

	_, err := c.Infer(t.Context(), []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, StateLoaded, c.State(), "an inference failure does not unload the model")
}

func TestPreprocessFailureIsModelUnavailable(t *testing.T) {
	failing := LoaderFunc(func(context.Context) (*Model, error) {
		return NewModel("m", &fakeEngine{scores: []float32{1}}, func([]byte) ([]float32, error) {
			return nil, errors.NewStd("decode image: unknown format")
		}, nil), nil
	})
	c := newTestClassifier(failing, nil)

	_, err := c.Infer(t.Context(), []byte("not an image"))
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestNoLoaderIsUnavailable(t *testing.T) {
	c := New(Options{Logger: logger.NewDiscard()})

	state, err := c.Load(t.Context())
	assert.Equal(t, StateUnavailable, state)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestCloseReleasesModel(t *testing.T) {
	engine := &fakeEngine{scores: []float32{1}}
	metrics := &recordingMetrics{}
	c := New(Options{Loader: &countingLoader{engine: engine}, Metrics: metrics, Logger: logger.NewDiscard()})

	_, err := c.Infer(t.Context(), []byte("x"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.True(t, engine.closed.Load())
	assert.Equal(t, StateUnloaded, c.State())
	assert.Equal(t, 1, metrics.loads)
	assert.Equal(t, 1, metrics.infers)
	assert.Equal(t, []string{"unloaded", "loading", "loaded", "unloaded"}, metrics.states)
}

func TestCanceledContextWhileQueued(t *testing.T) {
	c := New(Options{
		Loader:        &countingLoader{engine: &fakeEngine{scores: []float32{1}}},
		MaxConcurrent: 1,
		Logger:        logger.NewDiscard(),
	})
	_, err := c.Load(t.Context())
	require.NoError(t, err)

	require.NoError(t, c.sem.Acquire(t.Context(), 1))
	defer c.sem.Release(1)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = c.Infer(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestPolicyFromSettings(t *testing.T) {
	assert.IsType(t, RetryEveryCall{}, PolicyFromSettings("retry-every-call", 0))
	assert.IsType(t, RetryEveryCall{}, PolicyFromSettings("", 0))
	p := PolicyFromSettings("cache-failure", time.Second)
	assert.Equal(t, CacheFailureForDuration{TTL: time.Second}, p)
}
