package classifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/cpuspec"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// TFLiteLoader loads a TensorFlow Lite image classification model from disk
type TFLiteLoader struct {
	settings conf.ModelSettings
}

// NewTFLiteLoader returns a loader for the configured model
func NewTFLiteLoader(settings conf.ModelSettings) *TFLiteLoader {
	return &TFLiteLoader{settings: settings}
}

// Load reads the model and label files and allocates an interpreter
func (l *TFLiteLoader) Load(ctx context.Context) (*Model, error) {
	start := time.Now()
	s := l.settings
	modelID := strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))

	if s.Path == "" {
		return nil, errors.Newf("no model path configured").
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Build()
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(s.Path, modelID).
			Timing("model-load", time.Since(start)).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var labels []string
	if s.LabelPath != "" {
		if labels, err = LoadLabels(s.LabelPath); err != nil {
			return nil, err
		}
	}

	threads := cpuspec.ThreadCount(s.Threads)
	engine, err := newTFLiteEngine(data, threads, s.UseXNNPACK)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(s.Path, modelID).
			Context("model_size_mb", len(data)/1024/1024).
			Context("use_xnnpack", s.UseXNNPACK).
			Timing("model-init", time.Since(start)).
			Build()
	}
	// The interpreter keeps its own copy of the flatbuffer
	data = nil
	runtime.GC()

	if len(labels) > 0 && engine.classes != len(labels) {
		_ = engine.Close()
		return nil, errors.Newf("model has %d output classes but label file has %d labels", engine.classes, len(labels)).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			ModelContext(s.Path, modelID).
			Build()
	}

	size := s.InputSize
	if engine.inputSize > 0 {
		size = engine.inputSize
	}
	pre := NewPreprocessor(size, s.Normalization, s.MaxPixels)

	GetLogger().Info("model loaded",
		logger.String("model", modelID),
		logger.Int("classes", engine.classes),
		logger.Int("input_size", pre.Size()),
		logger.Int("threads", threads),
		logger.Bool("xnnpack", engine.xnnpack),
		logger.Duration("elapsed", time.Since(start)))

	return NewModel(modelID, engine, pre.Preprocess, labels), nil
}

// tfliteEngine serializes access to one interpreter
type tfliteEngine struct {
	mu          sync.Mutex
	interpreter *tflite.Interpreter
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	inputLen    int
	inputSize   int
	classes     int
	xnnpack     bool
}

func newTFLiteEngine(data []byte, threads int, useXNNPACK bool) (*tfliteEngine, error) {
	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model")
	}

	e := &tfliteEngine{model: model}
	options := tflite.NewInterpreterOptions()
	e.options = options

	if useXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: bounded by CPU count
		if delegate == nil {
			GetLogger().Warn("failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
			e.xnnpack = true
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	e.interpreter = tflite.NewInterpreter(model, options)
	if e.interpreter == nil {
		_ = e.Close()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		_ = e.Close()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	input := e.interpreter.GetInputTensor(0)
	if input == nil || input.Type() != tflite.Float32 {
		_ = e.Close()
		return nil, fmt.Errorf("model input must be a float32 tensor")
	}
	e.inputLen = len(input.Float32s())
	// NHWC: [1, height, width, 3]
	if input.NumDims() == 4 && input.Dim(1) == input.Dim(2) && input.Dim(3) == 3 {
		e.inputSize = input.Dim(1)
	}

	output := e.interpreter.GetOutputTensor(0)
	if output == nil {
		_ = e.Close()
		return nil, fmt.Errorf("model has no output tensor")
	}
	e.classes = output.Dim(output.NumDims() - 1)
	return e, nil
}

// Run copies input into the input tensor, invokes the interpreter and returns
// a copy of the output scores.
func (e *tfliteEngine) Run(input []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interpreter == nil {
		return nil, fmt.Errorf("interpreter closed")
	}
	if len(input) != e.inputLen {
		return nil, fmt.Errorf("input tensor length %d does not match model input %d", len(input), e.inputLen)
	}

	copy(e.interpreter.GetInputTensor(0).Float32s(), input)
	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	output := e.interpreter.GetOutputTensor(0)
	scores := make([]float32, output.Dim(output.NumDims()-1))
	copy(scores, output.Float32s())
	return scores, nil
}

// Close releases the interpreter, options and model
func (e *tfliteEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}
