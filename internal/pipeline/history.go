package pipeline

import (
	"context"
	"time"

	"github.com/nutrisnap/nutrisnap/internal/datastore"
	"github.com/nutrisnap/nutrisnap/internal/observability/metrics"
)

// HistoryQuery selects recent analyses. A zero Limit selects the default
// page size; larger values are capped.
type HistoryQuery struct {
	Limit  int
	UserID string
}

// HistoryItem is one committed analysis
type HistoryItem struct {
	RecordID   uint
	UploadID   string
	UserID     string
	FileName   string
	FoodKey    string
	Confidence float64
	Source     string
	Calories   int
	Protein    float64
	Carbs      float64
	Fat        float64
	ServingG   int
	Timestamp  time.Time
}

// EffectiveLimit applies the default and the cap to a requested page size
func (p *Pipeline) EffectiveLimit(requested int) int {
	if requested <= 0 {
		return p.historyLimit
	}
	return min(requested, p.historyMaxLimit)
}

// History returns recent analyses, newest first
func (p *Pipeline) History(ctx context.Context, q HistoryQuery) ([]HistoryItem, error) {
	entries, err := p.store.History(ctx, datastore.HistoryQuery{
		Limit:  p.EffectiveLimit(q.Limit),
		UserID: q.UserID,
	})
	if err != nil {
		p.stageError(metrics.OpHistory)
		return nil, err
	}

	items := make([]HistoryItem, 0, len(entries))
	for i := range entries {
		r, u := &entries[i].Resolution, &entries[i].Upload
		item := HistoryItem{
			RecordID:   r.ID,
			UploadID:   u.PublicID,
			FileName:   u.FileName,
			FoodKey:    r.FoodKey,
			Confidence: r.Confidence,
			Source:     r.Source,
			Calories:   r.Calories,
			Protein:    r.Protein,
			Carbs:      r.Carbs,
			Fat:        r.Fat,
			ServingG:   r.ServingGrams,
			Timestamp:  r.CreatedAt,
		}
		if u.UserID != nil {
			item.UserID = *u.UserID
		}
		items = append(items, item)
	}
	return items, nil
}
