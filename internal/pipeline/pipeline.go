// Package pipeline runs the analyze entry point: validate the image, resolve a
// food key, look up its nutrition profile and record the outcome.
//
// Recognition failures never reach the caller; they degrade to lower
// confidence results. Only input validation and persistence errors are
// returned.
package pipeline

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/nutrisnap/internal/classifier"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/datastore"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/imageguard"
	"github.com/nutrisnap/nutrisnap/internal/imagestore"
	"github.com/nutrisnap/nutrisnap/internal/logger"
	"github.com/nutrisnap/nutrisnap/internal/mqtt"
	"github.com/nutrisnap/nutrisnap/internal/nutrition"
	"github.com/nutrisnap/nutrisnap/internal/observability/metrics"
	"github.com/nutrisnap/nutrisnap/internal/resolver"
)

const publishTimeout = 5 * time.Second

// Guard validates inbound images
type Guard interface {
	Validate(contentType string, r io.Reader) ([]byte, error)
}

// Resolver maps an image to a food key and never fails
type Resolver interface {
	Resolve(ctx context.Context, image []byte, fileName string) resolver.Result
}

// Catalog resolves food keys to nutrition profiles
type Catalog interface {
	Resolve(ctx context.Context, foodKey string) (nutrition.Profile, bool)
	Lookup(ctx context.Context, foodKey string) (nutrition.Profile, error)
}

// Store records resolutions and reads them back
type Store interface {
	RecordResolution(ctx context.Context, meta datastore.UploadMeta, in datastore.ResolutionInput) (*datastore.Upload, *datastore.NutritionResolution, error)
	History(ctx context.Context, q datastore.HistoryQuery) ([]datastore.HistoryEntry, error)
	Ping(ctx context.Context) error
}

// EventPublisher announces committed analyses
type EventPublisher interface {
	PublishAnalysis(ctx context.Context, event mqtt.AnalysisEvent) error
}

// Metrics receives pipeline observations
type Metrics interface {
	RecordAnalysis(source string, fallbackProfile bool, duration time.Duration)
	RecordRejection(reason string)
	RecordStageError(stage string)
}

// Options wires the pipeline. Guard, Resolver, Catalog and Store are required.
type Options struct {
	Guard     Guard
	Resolver  Resolver
	Catalog   Catalog
	Store     Store
	Images    imagestore.Store // nil stores nothing
	Publisher EventPublisher   // nil publishes nothing
	Metrics   Metrics
	Logger    logger.Logger

	HistoryLimit    int // default page size
	HistoryMaxLimit int // hard cap
}

// Pipeline is safe for concurrent use
type Pipeline struct {
	guard     Guard
	resolver  Resolver
	catalog   Catalog
	store     Store
	images    imagestore.Store
	publisher EventPublisher
	metrics   Metrics
	log       logger.Logger

	historyLimit    int
	historyMaxLimit int
}

// New returns a pipeline or an error when a required collaborator is missing
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Guard == nil:
		return nil, configError("image guard")
	case opts.Resolver == nil:
		return nil, configError("resolver")
	case opts.Catalog == nil:
		return nil, configError("nutrition catalog")
	case opts.Store == nil:
		return nil, configError("datastore")
	}

	p := &Pipeline{
		guard:           opts.Guard,
		resolver:        opts.Resolver,
		catalog:         opts.Catalog,
		store:           opts.Store,
		images:          opts.Images,
		publisher:       opts.Publisher,
		metrics:         opts.Metrics,
		log:             opts.Logger,
		historyLimit:    opts.HistoryLimit,
		historyMaxLimit: opts.HistoryMaxLimit,
	}
	if p.images == nil {
		p.images = imagestore.Noop{}
	}
	if p.log == nil {
		p.log = GetLogger()
	}
	if p.historyMaxLimit <= 0 {
		p.historyMaxLimit = conf.DefaultHistoryMaxLimit
	}
	if p.historyLimit <= 0 {
		p.historyLimit = conf.DefaultHistoryLimit
	}
	p.historyLimit = min(p.historyLimit, p.historyMaxLimit)
	return p, nil
}

func configError(what string) error {
	return errors.Newf("pipeline requires a %s", what).
		Component("pipeline").
		Category(errors.CategoryConfiguration).
		Build()
}

// Request is one submitted image
type Request struct {
	Body        io.Reader
	ContentType string
	FileName    string
	UserID      string // optional owner
}

// AnalysisResult is returned for a committed analysis
type AnalysisResult struct {
	UploadID   string // public id of the upload
	UploadRow  uint
	RecordID   uint
	FoodKey    string
	Confidence float64
	Source     resolver.Source
	Candidates []classifier.Candidate

	ServingG int
	Calories int
	Protein  float64 // grams per 100 g
	Carbs    float64
	Fat      float64

	FallbackProfile   bool
	StoredPath        string
	InferenceDuration time.Duration
	UploadedAt        time.Time
	Timestamp         time.Time
}

// Analyze runs the whole pipeline for one image. Returned errors match
// imageguard.ErrUnsupportedMediaType, imageguard.ErrPayloadTooLarge or
// datastore.ErrPersistence.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*AnalysisResult, error) {
	start := time.Now()
	log := p.log.WithContext(ctx)

	data, err := p.guard.Validate(req.ContentType, req.Body)
	if err != nil {
		p.recordRejection(err)
		log.Info("image rejected",
			logger.String("content_type", req.ContentType),
			logger.String("file_name", req.FileName),
			logger.Error(err))
		return nil, err
	}

	resolveStart := time.Now()
	res := p.resolver.Resolve(ctx, data, req.FileName)
	profile, fallback := p.catalog.Resolve(ctx, res.FoodKey)
	inference := time.Since(resolveStart)

	publicID := uuid.NewString()
	storedPath := p.storeImage(ctx, publicID, req.ContentType, data)

	upload, record, err := p.store.RecordResolution(ctx,
		datastore.UploadMeta{
			PublicID: publicID,
			UserID:   req.UserID,
			FileName: req.FileName,
			FilePath: storedPath,
		},
		datastore.ResolutionInput{
			FoodKey:      res.FoodKey,
			Confidence:   res.Confidence,
			Calories:     profile.ServingCalories(),
			Protein:      profile.Protein,
			Carbs:        profile.Carbs,
			Fat:          profile.Fat,
			ServingGrams: profile.DefaultServingG,
			Source:       string(res.Source),
			Candidates:   candidatesOrNil(res.Candidates),
		})
	if err != nil {
		p.stageError(metrics.OpRecord)
		if !errors.Is(err, datastore.ErrPersistence) {
			err = errors.New(err).
				Component("pipeline").
				Category(errors.CategoryDatabase).
				Context("operation", "record").
				Build()
		}
		return nil, err
	}

	result := &AnalysisResult{
		UploadID:          upload.PublicID,
		UploadRow:         upload.ID,
		RecordID:          record.ID,
		FoodKey:           record.FoodKey,
		Confidence:        record.Confidence,
		Source:            res.Source,
		Candidates:        res.Candidates,
		ServingG:          record.ServingGrams,
		Calories:          record.Calories,
		Protein:           record.Protein,
		Carbs:             record.Carbs,
		Fat:               record.Fat,
		FallbackProfile:   fallback,
		StoredPath:        storedPath,
		InferenceDuration: inference,
		UploadedAt:        upload.UploadedAt,
		Timestamp:         record.CreatedAt,
	}

	if p.metrics != nil {
		p.metrics.RecordAnalysis(string(res.Source), fallback, time.Since(start))
	}
	log.Info("analysis recorded",
		logger.String("upload_id", result.UploadID),
		logger.String("food_key", result.FoodKey),
		logger.Float64("confidence", result.Confidence),
		logger.String("source", string(result.Source)),
		logger.Bool("fallback_profile", fallback),
		logger.Duration("elapsed", time.Since(start)))

	p.publish(ctx, req, result)
	return result, nil
}

// storeImage keeps a copy of the image. Failures are logged and yield an
// empty path.
func (p *Pipeline) storeImage(ctx context.Context, publicID, contentType string, data []byte) string {
	if p.images.Kind() == "none" {
		return ""
	}
	path, err := p.images.Save(ctx, imagestore.ObjectName(publicID, contentType), contentType, data)
	if err != nil {
		p.stageError(metrics.OpStore)
		p.log.WithContext(ctx).Warn("failed to store image, recording without path",
			logger.String("store", p.images.Kind()),
			logger.String("upload_id", publicID),
			logger.Error(err))
		return ""
	}
	return path
}

// publish announces a committed analysis. Failures are logged only.
func (p *Pipeline) publish(ctx context.Context, req Request, r *AnalysisResult) {
	if p.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := mqtt.AnalysisEvent{
		UploadID:    r.UploadID,
		RecordID:    r.RecordID,
		UserID:      req.UserID,
		FileName:    req.FileName,
		Food:        r.FoodKey,
		Confidence:  r.Confidence,
		Source:      string(r.Source),
		Calories:    r.Calories,
		ProteinG:    r.Protein,
		CarbsG:      r.Carbs,
		FatG:        r.Fat,
		ServingG:    r.ServingG,
		InferenceMS: r.InferenceDuration.Milliseconds(),
		Timestamp:   r.Timestamp,
	}
	if err := p.publisher.PublishAnalysis(pubCtx, event); err != nil {
		p.stageError(metrics.OpPublish)
		p.log.WithContext(ctx).Warn("failed to publish analysis event",
			logger.String("upload_id", r.UploadID),
			logger.Error(err))
	}
}

func (p *Pipeline) recordRejection(err error) {
	if p.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, imageguard.ErrUnsupportedMediaType):
		p.metrics.RecordRejection("unsupported_media_type")
	case errors.Is(err, imageguard.ErrPayloadTooLarge):
		p.metrics.RecordRejection("payload_too_large")
	default:
		p.metrics.RecordStageError(metrics.OpValidate)
	}
}

func (p *Pipeline) stageError(stage string) {
	if p.metrics != nil {
		p.metrics.RecordStageError(stage)
	}
}

func candidatesOrNil(c []classifier.Candidate) any {
	if len(c) == 0 {
		return nil
	}
	return c
}

// Nutrition returns the profile of a food key without default substitution.
// Unknown keys yield datastore.ErrProfileNotFound.
func (p *Pipeline) Nutrition(ctx context.Context, food string) (nutrition.Profile, error) {
	key := strings.ToLower(strings.TrimSpace(food))
	if key == "" {
		return nutrition.Profile{}, errors.Newf("food key is required").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	return p.catalog.Lookup(ctx, key)
}

// Ping reports whether the datastore is reachable
func (p *Pipeline) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}
