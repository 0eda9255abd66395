// Package resolver turns an image into a single (food key, confidence) pair.
//
// Resolution never fails. In priority order:
//
//  1. the first model candidate with a label mapping, at the candidate score
//  2. the top model candidate's normalized raw label, at its score
//  3. a label mapping whose raw label occurs in the file name, at a fixed confidence
//  4. the default food key, at a fixed confidence
//
// Steps 3 and 4 run only when the classifier is unavailable or fails.
package resolver

import (
	"context"
	"strings"

	"github.com/nutrisnap/nutrisnap/internal/classifier"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/labelmap"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// Source tells how a food key was obtained
type Source string

const (
	SourceModelMapped Source = "model_mapped"
	SourceModelRaw    Source = "model_raw"
	SourceFilename    Source = "filename_heuristic"
	SourceDefault     Source = "default"
)

// Classifier produces ranked candidates or fails with classifier.ErrModelUnavailable
type Classifier interface {
	Infer(ctx context.Context, image []byte) ([]classifier.Candidate, error)
}

// Mappings is the label mapping cache
type Mappings interface {
	Lookup(ctx context.Context, rawLabel string) (string, bool, error)
	AllEntries(ctx context.Context) ([]labelmap.Entry, error)
}

// Result is the outcome of a resolution
type Result struct {
	FoodKey    string
	Confidence float64
	Source     Source
	Candidates []classifier.Candidate // empty unless the model ran
}

// Options configures a Resolver. Zero values select the defaults.
type Options struct {
	DefaultFood         string
	HeuristicConfidence float64
	DefaultConfidence   float64
	Logger              logger.Logger
}

// Resolver applies the fallback chain
type Resolver struct {
	classifier Classifier
	mappings   Mappings
	opts       Options
	log        logger.Logger
}

// New returns a Resolver. classifier may be nil, in which case only the
// file name heuristic and the default apply.
func New(c Classifier, m Mappings, opts Options) *Resolver {
	if opts.DefaultFood == "" {
		opts.DefaultFood = conf.DefaultFoodKey
	}
	if opts.HeuristicConfidence <= 0 {
		opts.HeuristicConfidence = conf.DefaultHeuristicConfidence
	}
	if opts.DefaultConfidence <= 0 {
		opts.DefaultConfidence = conf.DefaultFallbackConfidence
	}
	log := opts.Logger
	if log == nil {
		log = logger.Global().Module("resolver")
	}
	return &Resolver{classifier: c, mappings: m, opts: opts, log: log}
}

// Resolve returns a usable result for any input
func (r *Resolver) Resolve(ctx context.Context, image []byte, fileName string) Result {
	log := r.log.WithContext(ctx)

	if r.classifier != nil {
		candidates, err := r.classifier.Infer(ctx, image)
		switch {
		case err == nil && len(candidates) > 0:
			return r.fromCandidates(ctx, candidates)
		case err == nil:
			log.Debug("classifier returned no candidates")
		case errors.Is(err, classifier.ErrModelUnavailable):
			log.Debug("classifier unavailable, using fallback", logger.Error(err))
		default:
			log.Warn("unexpected classifier error, using fallback", logger.Error(err))
		}
	}

	if key, ok := r.matchFileName(ctx, fileName); ok {
		return Result{FoodKey: key, Confidence: r.opts.HeuristicConfidence, Source: SourceFilename}
	}
	return Result{FoodKey: r.opts.DefaultFood, Confidence: r.opts.DefaultConfidence, Source: SourceDefault}
}

func (r *Resolver) fromCandidates(ctx context.Context, candidates []classifier.Candidate) Result {
	for _, c := range candidates {
		key, ok, err := r.mappings.Lookup(ctx, c.Label)
		if err != nil {
			r.log.WithContext(ctx).Warn("label mapping lookup failed", logger.Error(err))
			break
		}
		if ok {
			return Result{FoodKey: key, Confidence: clamp(c.Score), Source: SourceModelMapped, Candidates: candidates}
		}
	}

	top := candidates[0]
	return Result{
		FoodKey:    labelmap.Normalize(top.Label),
		Confidence: clamp(top.Score),
		Source:     SourceModelRaw,
		Candidates: candidates,
	}
}

// matchFileName scans mappings in insertion order and returns the first
// whose raw label occurs in the lower-cased file name.
func (r *Resolver) matchFileName(ctx context.Context, fileName string) (string, bool) {
	name := strings.ToLower(fileName)
	if name == "" {
		return "", false
	}
	entries, err := r.mappings.AllEntries(ctx)
	if err != nil {
		r.log.WithContext(ctx).Warn("label mappings unavailable for file name heuristic", logger.Error(err))
		return "", false
	}
	for _, e := range entries {
		if e.RawLabel != "" && strings.Contains(name, e.RawLabel) {
			return e.FoodKey, true
		}
	}
	return "", false
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
