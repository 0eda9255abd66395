package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// RecordResolution persists an upload together with its resolution. Both rows
// are committed or neither is; any failure is returned as ErrPersistence.
func (ds *DataStore) RecordResolution(ctx context.Context, meta UploadMeta, in ResolutionInput) (*Upload, *NutritionResolution, error) {
	if ds.DB == nil {
		return nil, nil, ErrNotOpen
	}
	if in.FoodKey == "" {
		return nil, nil, errors.Newf("food key is required").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	candidates, err := marshalCandidates(in.Candidates)
	if err != nil {
		return nil, nil, dbError(err, "marshal-candidates")
	}

	now := time.Now().UTC()
	upload := &Upload{
		PublicID:   meta.PublicID,
		UserID:     optional(meta.UserID),
		FileName:   meta.FileName,
		FilePath:   optional(meta.FilePath),
		UploadedAt: now,
	}
	if upload.PublicID == "" {
		upload.PublicID = uuid.NewString()
	}

	resolution := &NutritionResolution{
		FoodKey:      in.FoodKey,
		Confidence:   roundConfidence(in.Confidence),
		Calories:     in.Calories,
		Protein:      round2(in.Protein),
		Carbs:        round2(in.Carbs),
		Fat:          round2(in.Fat),
		ServingGrams: in.ServingGrams,
		Source:       in.Source,
		Candidates:   candidates,
		CreatedAt:    now,
	}

	start := time.Now()
	err = ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(upload).Error; err != nil {
			return fmt.Errorf("insert upload: %w", err)
		}
		resolution.UploadID = upload.ID
		if err := tx.Create(resolution).Error; err != nil {
			return fmt.Errorf("insert resolution: %w", err)
		}
		return nil
	})
	if err != nil {
		GetLogger().WithContext(ctx).Error("failed to record resolution",
			logger.String("food_key", in.FoodKey),
			logger.String("public_id", upload.PublicID),
			logger.Error(err))
		return nil, nil, dbError(err, "record-resolution",
			"food_key", in.FoodKey,
			"duration_ms", time.Since(start).Milliseconds())
	}

	return upload, resolution, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// roundConfidence clamps to [0,1] and keeps four fractional digits
func roundConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return math.Round(c*10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func marshalCandidates(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
