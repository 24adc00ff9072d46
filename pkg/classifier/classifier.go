package classifier

import (
	"errors"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// ImageSize is the side length the backbone expects.
	ImageSize = 224
	// Channels is the number of color channels in the model input.
	Channels = 3
	// EmbeddingSize is the width of the backbone output vector.
	EmbeddingSize = 1280
	// HiddenSize is the width of the hidden layer in the classification head.
	HiddenSize = 128

	// ConfidenceThreshold is the minimum softmax probability for a
	// prediction to keep its class label.
	ConfidenceThreshold = 0.6

	// minUnknownConfidence is the floor reported for below-threshold results.
	minUnknownConfidence = 50.0
)

const (
	ClassUnknown = "Unknown"
	RiskLow      = "Low"
)

// ClassNames is the fixed label order the head is trained with.
var ClassNames = []string{"Plastic", "Chemical", "Oil", "Mixed Waste"}

// RiskLevels maps each waste class to its reported risk level.
var RiskLevels = map[string]string{
	"Plastic":     "Medium",
	"Chemical":    "Critical",
	"Oil":         "High",
	"Mixed Waste": "Medium",
}

var ErrNotLoaded = errors.New("classifier backbone is not loaded")

// FeatureExtractor produces an embedding vector for a preprocessed image.
// The production implementation runs a frozen MobileNetV2 ONNX export;
// tests substitute deterministic fakes.
type FeatureExtractor interface {
	Features(input []float32) ([]float32, error)
	Close() error
}

// Result is the wire-format prediction for a single image.
type Result struct {
	WasteType      string             `json:"wasteType"`
	Confidence     float64            `json:"confidence"`
	RiskLevel      string             `json:"riskLevel"`
	AllPredictions map[string]float64 `json:"allPredictions"`
	AssistedBy     string             `json:"assistedBy,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// Classifier combines the frozen backbone with the trainable head and
// applies the confidence-threshold policy on top of the raw softmax.
type Classifier struct {
	log       *logrus.Logger
	extractor FeatureExtractor
	threshold float64

	mu   sync.RWMutex
	head *Head
}

// New builds a classifier around the given extractor. The head is loaded
// from headPath when an artifact exists there, otherwise a freshly
// initialized head is used (untrained heads still answer, just not well).
func New(log *logrus.Logger, extractor FeatureExtractor, headPath string) *Classifier {
	head, err := LoadHead(headPath)
	if err != nil {
		log.WithFields(logrus.Fields{
			"path":  headPath,
			"error": err.Error(),
		}).Warn("No head artifact found, initializing a new classification head")
		head = NewHead(defaultHeadSeed)
	} else {
		log.WithFields(logrus.Fields{
			"path":    headPath,
			"samples": head.TrainedSamples,
		}).Info("Loaded classification head artifact")
	}

	return &Classifier{
		log:       log,
		extractor: extractor,
		threshold: ConfidenceThreshold,
		head:      head,
	}
}

// Loaded reports whether the backbone is available for inference.
func (c *Classifier) Loaded() bool {
	return c.extractor != nil
}

// Head returns the currently active head.
func (c *Classifier) Head() *Head {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head
}

// SwapHead atomically replaces the active head, typically after training.
func (c *Classifier) SwapHead(h *Head) {
	c.mu.Lock()
	c.head = h
	c.mu.Unlock()
}

// Predict runs the full pipeline on a preprocessed NCHW pixel buffer and
// applies thresholding. Confidences are percentages rounded to 2 decimals.
func (c *Classifier) Predict(pixels []float32) (*Result, error) {
	if c.extractor == nil {
		return nil, ErrNotLoaded
	}
	if len(pixels) != Channels*ImageSize*ImageSize {
		return nil, errors.New("unexpected input size for backbone")
	}

	embedding, err := c.extractor.Features(pixels)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	probs := c.head.Forward(embedding)
	c.mu.RUnlock()

	maxIdx := argmax(probs)
	confidence := probs[maxIdx] * 100

	wasteType := ClassNames[maxIdx]
	riskLevel := RiskLevels[wasteType]

	if confidence < c.threshold*100 {
		wasteType = ClassUnknown
		riskLevel = RiskLow
		confidence = math.Max(confidence, minUnknownConfidence)
	}

	all := make(map[string]float64, len(ClassNames))
	for i, name := range ClassNames {
		all[name] = round2(probs[i] * 100)
	}

	return &Result{
		WasteType:      wasteType,
		Confidence:     round2(confidence),
		RiskLevel:      riskLevel,
		AllPredictions: all,
	}, nil
}

// Threshold returns the confidence threshold as a fraction.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// ErrorResult is the fallback body returned when detection cannot run.
// Shape matches a normal result so clients do not need a second schema.
func ErrorResult(message string) *Result {
	all := make(map[string]float64, len(ClassNames))
	for _, name := range ClassNames {
		all[name] = 25.0
	}
	return &Result{
		WasteType:      ClassUnknown,
		Confidence:     minUnknownConfidence,
		RiskLevel:      RiskLow,
		AllPredictions: all,
		Error:          message,
	}
}

func argmax(v []float64) int {
	idx := 0
	for i, x := range v {
		if x > v[idx] {
			idx = i
		}
	}
	return idx
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
