package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nutrisnap/nutrisnap/internal/errors"
)

func TestRecordResolution(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	in := sampleInput("pizza")
	in.Candidates = []map[string]any{{"label": "pizza", "score": 0.91}}

	upload, res, err := store.RecordResolution(t.Context(), UploadMeta{FileName: "lunch.jpg", UserID: "u1"}, in)
	require.NoError(t, err)

	assert.NotZero(t, upload.ID)
	assert.Len(t, upload.PublicID, 36)
	require.NotNil(t, upload.UserID)
	assert.Equal(t, "u1", *upload.UserID)
	assert.Nil(t, upload.FilePath)
	assert.False(t, upload.UploadedAt.IsZero())

	assert.NotZero(t, res.ID)
	assert.Equal(t, upload.ID, res.UploadID)
	assert.InDelta(t, 0.9123, res.Confidence, 1e-9)
	assert.Equal(t, 399, res.Calories)
	assert.JSONEq(t, `[{"label":"pizza","score":0.91}]`, string(res.Candidates))

	var stored NutritionResolution
	require.NoError(t, store.DB.First(&stored, res.ID).Error)
	assert.Equal(t, "pizza", stored.FoodKey)
	assert.InDelta(t, 0.9123, stored.Confidence, 1e-9)
}

func TestRecordResolutionRequiresFoodKey(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, _, err := store.RecordResolution(t.Context(), UploadMeta{}, ResolutionInput{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestRecordResolutionIsAtomic(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	err := store.DB.Callback().Create().Before("gorm:create").Register("test:fail_resolution", func(db *gorm.DB) {
		if db.Statement.Table == "nutrition_resolution" {
			_ = db.AddError(errors.NewStd("injected failure"))
		}
	})
	require.NoError(t, err)

	upload, res, err := store.RecordResolution(t.Context(), UploadMeta{FileName: "x.jpg"}, sampleInput("pizza"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Nil(t, upload)
	assert.Nil(t, res)

	var uploads, resolutions int64
	require.NoError(t, store.DB.Model(&Upload{}).Count(&uploads).Error)
	require.NoError(t, store.DB.Model(&NutritionResolution{}).Count(&resolutions).Error)
	assert.Zero(t, uploads, "upload row must be rolled back")
	assert.Zero(t, resolutions)
}

func TestMultipleResolutionsPerUpload(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	upload, first, err := store.RecordResolution(t.Context(), UploadMeta{FileName: "a.jpg"}, sampleInput("pizza"))
	require.NoError(t, err)

	again := *first
	again.ID = 0
	again.FoodKey = "salad"
	require.NoError(t, store.DB.Create(&again).Error)

	var count int64
	require.NoError(t, store.DB.Model(&NutritionResolution{}).Where("upload_id = ?", upload.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestResolutionRequiresUpload(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	orphan := NutritionResolution{UploadID: 999, FoodKey: "pizza", Calories: 1, ServingGrams: 1}
	err := store.DB.Create(&orphan).Error
	require.Error(t, err)
	assert.True(t, isConstraintViolation(err))
}

func TestRoundConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"four digits kept", 0.1234, 0.1234},
		{"rounded half up", 0.12345, 0.1235},
		{"clamped above", 1.5, 1},
		{"clamped below", -0.2, 0},
		{"exact one", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, roundConfidence(tt.in), 1e-9)
		})
	}
}
