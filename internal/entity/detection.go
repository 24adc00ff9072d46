package entity

import "time"

// DetectionSource tells where an analyzed image came from.
const (
	SourceURL    = "url"
	SourceUpload = "upload"
	SourceStream = "stream"
)

type WasteDetection struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	ImageRef   string    `json:"image_ref"`
	WasteType  string    `json:"waste_type"`
	Confidence float64   `json:"confidence"`
	RiskLevel  string    `json:"risk_level"`
	CreatedAt  time.Time `json:"created_at"`
}

// Training run statuses.
const (
	TrainingStatusRunning   = "running"
	TrainingStatusCompleted = "completed"
	TrainingStatusFailed    = "failed"
)

type TrainingRun struct {
	ID            string     `json:"id"`
	Trigger       string     `json:"trigger"`
	DataSource    string     `json:"data_source"`
	Status        string     `json:"status"`
	Samples       int        `json:"samples"`
	Epochs        int        `json:"epochs"`
	TrainAccuracy float64    `json:"train_accuracy"`
	ValAccuracy   float64    `json:"val_accuracy"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}
