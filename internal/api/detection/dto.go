package detection

import (
	"EcosnapAI/internal/entity"
)

type DetectRequest struct {
	ImageURL string `json:"imageUrl" validate:"required,url"`
}

type DetectUploadRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
}

type TrainRequest struct {
	DataDir   string `json:"data_dir"`
	Epochs    int    `json:"epochs" validate:"omitempty,min=1,max=200"`
	Synthetic bool   `json:"synthetic"`
}

type TrainResponse struct {
	Message string             `json:"message"`
	Run     entity.TrainingRun `json:"run"`
}

type ModelInfoResponse struct {
	ModelLoaded         bool              `json:"model_loaded"`
	ClassNames          []string          `json:"class_names"`
	RiskLevels          map[string]string `json:"risk_levels"`
	ConfidenceThreshold float64           `json:"confidence_threshold"`
	InputShape          []int             `json:"input_shape"`
	TrainedSamples      int               `json:"trained_samples"`
	TrainedAt           string            `json:"trained_at,omitempty"`
}

type DetectionsResponse struct {
	Detections []entity.WasteDetection `json:"detections"`
}

type TrainingRunsResponse struct {
	Runs []entity.TrainingRun `json:"runs"`
}
