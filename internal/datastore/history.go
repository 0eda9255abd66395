package datastore

import (
	"context"
	"time"
)

// historyRow is the flat shape of the resolution/upload join
type historyRow struct {
	ResolutionID uint
	UploadID     uint
	FoodKey      string
	Confidence   float64
	Calories     int
	Protein      float64
	Carbs        float64
	Fat          float64
	ServingGrams int
	Source       string
	CreatedAt    time.Time
	PublicID     string
	UserID       *string
	FileName     string
	FilePath     *string
	UploadedAt   time.Time
}

// History returns the most recent resolutions joined with their uploads,
// ordered newest first. A non-positive limit returns nothing.
func (ds *DataStore) History(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error) {
	if ds.DB == nil {
		return nil, ErrNotOpen
	}
	if q.Limit <= 0 {
		return []HistoryEntry{}, nil
	}

	query := ds.DB.WithContext(ctx).
		Table("nutrition_resolution AS r").
		Select(`r.id AS resolution_id, r.upload_id, r.food_key, r.confidence, r.calories,
			r.protein, r.carbs, r.fat, r.serving_grams, r.source, r.created_at,
			u.public_id, u.user_id, u.file_name, u.file_path, u.uploaded_at`).
		Joins("JOIN upload AS u ON u.id = r.upload_id").
		Order("r.created_at DESC").
		Order("r.id DESC").
		Limit(q.Limit)

	if q.UserID != "" {
		query = query.Where("u.user_id = ?", q.UserID)
	}

	var rows []historyRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, dbError(err, "history", "limit", q.Limit)
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		entries = append(entries, HistoryEntry{
			Resolution: NutritionResolution{
				ID:           row.ResolutionID,
				UploadID:     row.UploadID,
				FoodKey:      row.FoodKey,
				Confidence:   row.Confidence,
				Calories:     row.Calories,
				Protein:      row.Protein,
				Carbs:        row.Carbs,
				Fat:          row.Fat,
				ServingGrams: row.ServingGrams,
				Source:       row.Source,
				CreatedAt:    row.CreatedAt,
			},
			Upload: Upload{
				ID:         row.UploadID,
				PublicID:   row.PublicID,
				UserID:     row.UserID,
				FileName:   row.FileName,
				FilePath:   row.FilePath,
				UploadedAt: row.UploadedAt,
			},
		})
	}
	return entries, nil
}
