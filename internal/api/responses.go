package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nutrisnap/nutrisnap/internal/logger"
	"github.com/nutrisnap/nutrisnap/internal/pipeline"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Detail        string `json:"detail"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// AnalyzeResponse is returned by POST /analyze
type AnalyzeResponse struct {
	Food        string    `json:"food"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	ServingG    int       `json:"serving_g"`
	Calories    int       `json:"calories"`
	ProteinG    float64   `json:"protein_g"`
	CarbsG      float64   `json:"carbs_g"`
	FatG        float64   `json:"fat_g"`
	InferenceMS int64     `json:"inference_ms"`
	UploadID    string    `json:"upload_id"`
	RecordID    uint      `json:"record_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewAnalyzeResponse converts a pipeline result to its JSON shape
func NewAnalyzeResponse(r *pipeline.AnalysisResult) AnalyzeResponse {
	return AnalyzeResponse{
		Food:        r.FoodKey,
		Confidence:  r.Confidence,
		Source:      string(r.Source),
		ServingG:    r.ServingG,
		Calories:    r.Calories,
		ProteinG:    r.Protein,
		CarbsG:      r.Carbs,
		FatG:        r.Fat,
		InferenceMS: r.InferenceDuration.Milliseconds(),
		UploadID:    r.UploadID,
		RecordID:    r.RecordID,
		Timestamp:   r.Timestamp,
	}
}

// HistoryItem is one entry of GET /history
type HistoryItem struct {
	ID         uint      `json:"id"`
	Food       string    `json:"food"`
	Calories   int       `json:"calories"`
	ProteinG   float64   `json:"protein_g"`
	CarbsG     float64   `json:"carbs_g"`
	FatG       float64   `json:"fat_g"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	FileName   string    `json:"file_name"`
}

// NewHistoryItems converts history entries to their JSON shape
func NewHistoryItems(items []pipeline.HistoryItem) []HistoryItem {
	out := make([]HistoryItem, 0, len(items))
	for i := range items {
		it := &items[i]
		out = append(out, HistoryItem{
			ID:         it.RecordID,
			Food:       it.FoodKey,
			Calories:   it.Calories,
			ProteinG:   it.Protein,
			CarbsG:     it.Carbs,
			FatG:       it.Fat,
			Confidence: it.Confidence,
			Timestamp:  it.Timestamp,
			FileName:   it.FileName,
		})
	}
	return out
}

// HandleError logs err with the request's correlation id and writes an
// ErrorResponse with code.
func (s *Server) HandleError(ctx echo.Context, err error, detail string, code int) error {
	id := ctx.Response().Header().Get(echo.HeaderXRequestID)
	fields := []logger.Field{
		logger.String("path", ctx.Path()),
		logger.Int("status", code),
		logger.String("detail", detail),
		logger.Error(err),
	}
	log := s.log.WithContext(ctx.Request().Context())
	if code >= 500 {
		log.Error("API error", fields...)
	} else {
		log.Debug("API error", fields...)
	}
	return ctx.JSON(code, ErrorResponse{Detail: detail, Code: code, CorrelationID: id})
}
