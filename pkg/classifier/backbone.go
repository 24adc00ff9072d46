package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// BackboneMetadata is the JSON sidecar shipped next to the ONNX export.
type BackboneMetadata struct {
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	ImageSize   int     `json:"image_size"`
}

// OnnxExtractor runs the frozen MobileNetV2 feature extractor through
// onnxruntime. Tensors are allocated once and reused, so Run calls are
// serialized with a mutex.
type OnnxExtractor struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	metadata     BackboneMetadata
}

// NewOnnxExtractor loads the ONNX backbone and its metadata sidecar.
func NewOnnxExtractor(modelPath, metadataPath string) (*OnnxExtractor, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backbone metadata: %w", err)
	}

	var metadata BackboneMetadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse backbone metadata: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"features"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &OnnxExtractor{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		metadata:     metadata,
	}, nil
}

// Metadata returns the backbone shape information.
func (e *OnnxExtractor) Metadata() BackboneMetadata {
	return e.metadata
}

// Features runs the backbone on a preprocessed NCHW pixel buffer and
// returns a copy of the embedding vector.
func (e *OnnxExtractor) Features(input []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	in := e.inputTensor.GetData()
	if len(input) != len(in) {
		return nil, fmt.Errorf("backbone expects %d values, got %d", len(in), len(input))
	}
	copy(in, input)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("backbone inference failed: %w", err)
	}

	out := e.outputTensor.GetData()
	embedding := make([]float32, len(out))
	copy(embedding, out)

	return embedding, nil
}

func (e *OnnxExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inputTensor != nil {
		e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	ort.DestroyEnvironment()

	return nil
}
