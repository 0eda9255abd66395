package datastore

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutrisnap/nutrisnap/internal/logger"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedProfile is one nutrition profile entry of a seed file
type SeedProfile struct {
	Food            string  `yaml:"food"`
	CaloriesPer100g int     `yaml:"calories_per_100g"`
	Protein         float64 `yaml:"protein"`
	Carbs           float64 `yaml:"carbs"`
	Fat             float64 `yaml:"fat"`
	ServingG        int     `yaml:"serving_g"`
}

// SeedLabel is one label mapping entry of a seed file
type SeedLabel struct {
	Raw  string `yaml:"raw"`
	Food string `yaml:"food"`
}

// SeedData is the content of a seed file
type SeedData struct {
	Profiles []SeedProfile `yaml:"profiles"`
	Labels   []SeedLabel   `yaml:"labels"`
}

// SeedStats reports how many rows a seed run touched
type SeedStats struct {
	Profiles int
	Labels   int
}

// DefaultSeedData returns the seed bundled with the binary
func DefaultSeedData() (*SeedData, error) {
	return ParseSeedData(defaultSeed)
}

// LoadSeedFile reads and parses a seed file from disk
func LoadSeedFile(path string) (*SeedData, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeedData(b)
}

// ParseSeedData decodes a seed document and validates its entries
func ParseSeedData(b []byte) (*SeedData, error) {
	var data SeedData
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("parsing seed data: %w", err)
	}
	for i := range data.Profiles {
		p := &data.Profiles[i]
		p.Food = strings.ToLower(strings.TrimSpace(p.Food))
		if p.Food == "" {
			return nil, fmt.Errorf("seed profile %d has no food key", i)
		}
		if p.CaloriesPer100g < 0 || p.ServingG <= 0 {
			return nil, fmt.Errorf("seed profile %q has invalid calories or serving size", p.Food)
		}
	}
	for i := range data.Labels {
		l := &data.Labels[i]
		l.Raw = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(l.Raw)), " ", "_")
		l.Food = strings.ToLower(strings.TrimSpace(l.Food))
		if l.Raw == "" || l.Food == "" {
			return nil, fmt.Errorf("seed label %d is incomplete", i)
		}
	}
	return &data, nil
}

// Seed upserts profiles and label mappings in one transaction. Existing rows
// are updated in place so their ids, and with them the label order, are kept.
func (ds *DataStore) Seed(ctx context.Context, data *SeedData) (SeedStats, error) {
	var stats SeedStats
	if ds.DB == nil {
		return stats, ErrNotOpen
	}
	if data == nil {
		return stats, nil
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range data.Profiles {
			row := NutritionProfile{
				FoodKey:         p.Food,
				CaloriesPer100g: p.CaloriesPer100g,
				ProteinPer100g:  p.Protein,
				CarbsPer100g:    p.Carbs,
				FatPer100g:      p.Fat,
				DefaultServingG: p.ServingG,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "food_key"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"calories_per_100g", "protein_per_100g", "carbs_per_100g", "fat_per_100g", "default_serving_g",
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert profile %s: %w", p.Food, err)
			}
			stats.Profiles++
		}

		for _, l := range data.Labels {
			row := LabelMapping{RawLabel: l.Raw, FoodKey: l.Food}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "raw_label"}},
				DoUpdates: clause.AssignmentColumns([]string{"food_key"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert label %s: %w", l.Raw, err)
			}
			stats.Labels++
		}
		return nil
	})
	if err != nil {
		return SeedStats{}, dbError(err, "seed")
	}

	GetLogger().Info("seed applied",
		logger.Int("profiles", stats.Profiles),
		logger.Int("labels", stats.Labels))
	return stats, nil
}
