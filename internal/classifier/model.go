package classifier

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// MaxCandidates caps the number of candidates returned per inference
const MaxCandidates = 5

// Candidate is one ranked raw label with its score in [0,1]
type Candidate struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Engine runs one forward pass over a preprocessed input tensor
type Engine interface {
	Run(input []float32) ([]float32, error)
	Close() error
}

// PreprocessFunc turns encoded image bytes into the input tensor the engine expects
type PreprocessFunc func(image []byte) ([]float32, error)

// Model bundles an engine with its matching preprocessing and label vocabulary.
// It is built once per successful load and never modified afterwards.
type Model struct {
	Name       string
	engine     Engine
	preprocess PreprocessFunc
	labels     []string
}

// NewModel returns a composite model. labels may be empty, in which case
// candidates are named by their class index.
func NewModel(name string, engine Engine, preprocess PreprocessFunc, labels []string) *Model {
	return &Model{Name: name, engine: engine, preprocess: preprocess, labels: labels}
}

// Labels returns the label vocabulary of the model
func (m *Model) Labels() []string { return m.labels }

// predict runs preprocessing and inference and ranks the output
func (m *Model) predict(image []byte, topK int) ([]Candidate, error) {
	input, err := m.preprocess(image)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	scores, err := m.engine.Run(input)
	if err != nil {
		return nil, fmt.Errorf("invoke: %w", err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("invoke: empty output tensor")
	}
	return rank(probabilities(scores), m.labels, topK), nil
}

func (m *Model) close() error {
	if m == nil || m.engine == nil {
		return nil
	}
	return m.engine.Close()
}

// probabilities returns scores unchanged when every value is already in
// [0,1], otherwise treats them as logits and applies softmax.
func probabilities(scores []float32) []float64 {
	out := make([]float64, len(scores))
	isProb := true
	for i, s := range scores {
		out[i] = float64(s)
		if s < 0 || s > 1 || math.IsNaN(out[i]) {
			isProb = false
		}
	}
	if isProb {
		return out
	}

	maxLogit := math.Inf(-1)
	for _, v := range out {
		if !math.IsNaN(v) && v > maxLogit {
			maxLogit = v
		}
	}
	var sum float64
	for i, v := range out {
		if math.IsNaN(v) {
			out[i] = 0
			continue
		}
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}

// rank returns the topK candidates, descending by score. Ties keep class order.
func rank(probs []float64, labels []string, topK int) []Candidate {
	if topK <= 0 || topK > MaxCandidates {
		topK = MaxCandidates
	}

	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(probs[b], probs[a])
	})
	if len(idx) > topK {
		idx = idx[:topK]
	}

	out := make([]Candidate, 0, len(idx))
	for _, i := range idx {
		label := fmt.Sprintf("class_%d", i)
		if i < len(labels) {
			label = labels[i]
		}
		out = append(out, Candidate{Label: label, Score: min(max(probs[i], 0), 1)})
	}
	return out
}
