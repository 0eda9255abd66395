package mqtt

import "time"

// AnalysisEvent is the JSON document published after an analysis is committed
type AnalysisEvent struct {
	UploadID    string    `json:"upload_id"`
	RecordID    uint      `json:"record_id"`
	UserID      string    `json:"user_id,omitempty"`
	FileName    string    `json:"file_name"`
	Food        string    `json:"food"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	Calories    int       `json:"calories"`
	ProteinG    float64   `json:"protein_g"`
	CarbsG      float64   `json:"carbs_g"`
	FatG        float64   `json:"fat_g"`
	ServingG    int       `json:"serving_g"`
	InferenceMS int64     `json:"inference_ms"`
	Timestamp   time.Time `json:"timestamp"`
}
