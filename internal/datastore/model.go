// model.go this code defines the data model for the application
package datastore

import (
	"time"

	"gorm.io/datatypes"
)

// Upload is one accepted image submission. Rows are immutable once created.
type Upload struct {
	ID         uint      `gorm:"primaryKey"`
	PublicID   string    `gorm:"type:char(36);uniqueIndex;not null"` // uuid exposed to clients and used for stored object names
	UserID     *string   `gorm:"size:64;index"`                      // optional owner reference
	FileName   string    `gorm:"size:255"`                           // original file name as supplied by the client
	FilePath   *string   `gorm:"size:512"`                           // location of the stored image, if any
	UploadedAt time.Time `gorm:"index;not null"`
}

// TableName returns the table name for Upload.
func (Upload) TableName() string { return "upload" }

// NutritionResolution is one computed result for an upload. An upload may
// carry several of them, for example after a re-analysis.
type NutritionResolution struct {
	ID           uint           `gorm:"primaryKey"`
	UploadID     uint           `gorm:"index;not null"`
	FoodKey      string         `gorm:"size:100;not null;index"`
	Confidence   float64        `gorm:"type:decimal(5,4);not null"` // [0,1], 4 fractional digits
	Calories     int            `gorm:"not null"`                   // for the default serving
	Protein      float64        `gorm:"type:decimal(6,2);not null"` // grams per 100 g
	Carbs        float64        `gorm:"type:decimal(6,2);not null"` // grams per 100 g
	Fat          float64        `gorm:"type:decimal(6,2);not null"` // grams per 100 g
	ServingGrams int            `gorm:"not null"`
	Source       string         `gorm:"size:32"` // how the food key was resolved
	Candidates   datatypes.JSON `gorm:"type:json"`
	CreatedAt    time.Time      `gorm:"index;not null"`

	// Upload declares the foreign key; it is never preloaded.
	Upload *Upload `gorm:"foreignKey:UploadID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the table name for NutritionResolution.
func (NutritionResolution) TableName() string { return "nutrition_resolution" }

// LabelMapping maps one normalized raw model label to a canonical food key.
type LabelMapping struct {
	ID       uint   `gorm:"primaryKey"`
	RawLabel string `gorm:"size:100;uniqueIndex;not null"`
	FoodKey  string `gorm:"size:100;not null;index"`
}

// TableName returns the table name for LabelMapping.
func (LabelMapping) TableName() string { return "label_mapping" }

// NutritionProfile holds the per-100 g facts of one food key.
type NutritionProfile struct {
	ID              uint    `gorm:"primaryKey"`
	FoodKey         string  `gorm:"size:100;uniqueIndex;not null"`
	CaloriesPer100g int     `gorm:"column:calories_per_100g;not null"`
	ProteinPer100g  float64 `gorm:"column:protein_per_100g;type:decimal(6,2);not null"`
	CarbsPer100g    float64 `gorm:"column:carbs_per_100g;type:decimal(6,2);not null"`
	FatPer100g      float64 `gorm:"column:fat_per_100g;type:decimal(6,2);not null"`
	DefaultServingG int     `gorm:"not null"`
}

// TableName returns the table name for NutritionProfile.
func (NutritionProfile) TableName() string { return "nutrition_profile" }

// HistoryEntry is a resolution joined with its upload.
type HistoryEntry struct {
	Resolution NutritionResolution
	Upload     Upload
}

// HistoryQuery selects recent resolutions, newest first.
type HistoryQuery struct {
	Limit  int
	UserID string // empty means all owners
}

// UploadMeta describes the submission being recorded.
type UploadMeta struct {
	PublicID string // generated when empty
	UserID   string
	FileName string
	FilePath string
}

// ResolutionInput carries the outcome of recognition and nutrition lookup.
type ResolutionInput struct {
	FoodKey      string
	Confidence   float64
	Calories     int
	Protein      float64
	Carbs        float64
	Fat          float64
	ServingGrams int
	Source       string
	Candidates   any // marshalled to JSON when non-nil
}
