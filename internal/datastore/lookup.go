package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/nutrisnap/nutrisnap/internal/errors"
)

// LabelMappings returns all label mappings ordered by id, which is the order
// they were inserted in.
func (ds *DataStore) LabelMappings(ctx context.Context) ([]LabelMapping, error) {
	if ds.DB == nil {
		return nil, ErrNotOpen
	}
	var mappings []LabelMapping
	if err := ds.DB.WithContext(ctx).Order("id ASC").Find(&mappings).Error; err != nil {
		return nil, dbError(err, "label-mappings")
	}
	return mappings, nil
}

// NutritionProfile returns the profile of foodKey
func (ds *DataStore) NutritionProfile(ctx context.Context, foodKey string) (*NutritionProfile, error) {
	if ds.DB == nil {
		return nil, ErrNotOpen
	}
	var profile NutritionProfile
	err := ds.DB.WithContext(ctx).Where("food_key = ?", foodKey).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("food_key", foodKey).
			Build()
	}
	if err != nil {
		return nil, dbError(err, "nutrition-profile", "food_key", foodKey)
	}
	return &profile, nil
}

// NutritionProfiles returns every profile ordered by food key
func (ds *DataStore) NutritionProfiles(ctx context.Context) ([]NutritionProfile, error) {
	if ds.DB == nil {
		return nil, ErrNotOpen
	}
	var profiles []NutritionProfile
	if err := ds.DB.WithContext(ctx).Order("food_key ASC").Find(&profiles).Error; err != nil {
		return nil, dbError(err, "nutrition-profiles")
	}
	return profiles, nil
}
