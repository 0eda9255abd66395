// Package classifier wraps a lazily loaded image classification model.
//
// A Classifier moves through Unloaded → Loading → {Loaded, Unavailable}.
// Loaded is kept for the lifetime of the process (or until Close).
// Unavailable is not sticky: the LoadPolicy decides when the next inference
// attempts to load again. Every inference failure, including a failed load,
// is reported as ErrModelUnavailable so callers can fall back.
package classifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// ErrModelUnavailable is returned when no model can serve an inference
var ErrModelUnavailable = errors.Sentinel(errors.CategoryModelUnavailable, "model unavailable")

// State of the model handle
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Loader builds the composite model. It is called at most once at a time.
type Loader interface {
	Load(ctx context.Context) (*Model, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context) (*Model, error)

func (f LoaderFunc) Load(ctx context.Context) (*Model, error) { return f(ctx) }

// Metrics receives load and inference observations
type Metrics interface {
	RecordModelLoad(model string, duration time.Duration, err error)
	RecordInference(model string, duration time.Duration, err error)
	SetModelState(state string)
}

// Options configures a Classifier
type Options struct {
	Loader        Loader
	Policy        LoadPolicy // nil selects RetryEveryCall
	TopK          int        // capped at MaxCandidates
	MaxConcurrent int        // concurrent inferences, at least 1
	Metrics       Metrics
	Logger        logger.Logger
	Name          string // model name used in logs and metrics before the first load
}

// Classifier owns the model handle and serializes its construction
type Classifier struct {
	loader  Loader
	policy  LoadPolicy
	topK    int
	sem     *semaphore.Weighted
	metrics Metrics
	log     logger.Logger
	name    string
	now     func() time.Time

	state atomic.Int32

	mu       sync.Mutex // guards load and the fields below
	model    *Model
	lastErr  error
	failedAt time.Time
}

// New returns a Classifier in the Unloaded state. Nothing is loaded until
// the first Load or Infer call.
func New(opts Options) *Classifier {
	if opts.Policy == nil {
		opts.Policy = RetryEveryCall{}
	}
	if opts.TopK <= 0 || opts.TopK > MaxCandidates {
		opts.TopK = MaxCandidates
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}
	if opts.Loader == nil {
		opts.Loader = LoaderFunc(func(context.Context) (*Model, error) {
			return nil, errors.Newf("no model configured").
				Component("classifier").
				Category(errors.CategoryModelLoad).
				Build()
		})
	}
	if opts.Name == "" {
		opts.Name = "default"
	}

	c := &Classifier{
		loader:  opts.Loader,
		policy:  opts.Policy,
		topK:    opts.TopK,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		metrics: opts.Metrics,
		log:     opts.Logger,
		name:    opts.Name,
		now:     time.Now,
	}
	c.setState(StateUnloaded)
	return c
}

// State returns the current state
func (c *Classifier) State() State {
	return State(c.state.Load())
}

// LastError returns the error of the most recent failed load, if any
func (c *Classifier) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Classifier) setState(s State) {
	c.state.Store(int32(s))
	if c.metrics != nil {
		c.metrics.SetModelState(s.String())
	}
}

// Load makes sure a model is available. It is idempotent; concurrent callers
// wait for a single load attempt.
func (c *Classifier) Load(ctx context.Context) (State, error) {
	_, err := c.acquireModel(ctx)
	return c.State(), err
}

func (c *Classifier) acquireModel(ctx context.Context) (*Model, error) {
	if c.State() == StateLoaded {
		c.mu.Lock()
		m := c.model
		c.mu.Unlock()
		if m != nil {
			return m, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model != nil {
		return c.model, nil
	}
	if c.State() == StateUnavailable && !c.policy.ShouldRetry(c.failedAt, c.now()) {
		return nil, c.unavailable(c.lastErr, "load_suppressed")
	}

	prev := c.State()
	c.setState(StateLoading)
	start := time.Now()
	model, err := c.loader.Load(ctx)
	elapsed := time.Since(start)
	if err == nil && model == nil {
		err = errors.Newf("loader returned no model").Component("classifier").Category(errors.CategoryModelLoad).Build()
	}
	if c.metrics != nil {
		c.metrics.RecordModelLoad(c.name, elapsed, err)
	}

	// Cancellation is not a model failure and leaves failedAt untouched
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.setState(prev)
		c.log.Debug("model load abandoned", logger.Error(err))
		return nil, c.unavailable(err, "load_canceled")
	}

	if err != nil {
		c.lastErr = err
		c.failedAt = c.now()
		c.setState(StateUnavailable)
		c.log.Warn("model unavailable",
			logger.String("policy", c.policy.String()),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		return nil, c.unavailable(err, "load")
	}

	c.model = model
	c.lastErr = nil
	if model.Name != "" {
		c.name = model.Name
	}
	c.setState(StateLoaded)
	return model, nil
}

// unavailable classifies err as ErrModelUnavailable while keeping it in the chain
func (c *Classifier) unavailable(err error, stage string) error {
	if err == nil {
		err = ErrModelUnavailable
	}
	return errors.New(err).
		Component("classifier").
		Category(errors.CategoryModelUnavailable).
		Context("stage", stage).
		Context("model", c.name).
		Build()
}

// Infer returns up to TopK candidates for the encoded image, descending by
// score. Any failure is returned as ErrModelUnavailable.
func (c *Classifier) Infer(ctx context.Context, image []byte) ([]Candidate, error) {
	model, err := c.acquireModel(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, c.unavailable(err, "queue")
	}
	defer c.sem.Release(1)

	start := time.Now()
	candidates, err := model.predict(image, c.topK)
	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordInference(model.Name, elapsed, err)
	}
	if err != nil {
		c.log.Debug("inference failed", logger.Error(err), logger.Duration("elapsed", elapsed))
		return nil, c.unavailable(err, "predict")
	}

	c.log.Trace("inference complete",
		logger.Int("candidates", len(candidates)),
		logger.Duration("elapsed", elapsed))
	return candidates, nil
}

// Close releases the model. The classifier returns to Unloaded and may load again.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.model.close()
	c.model = nil
	c.setState(StateUnloaded)
	return err
}
