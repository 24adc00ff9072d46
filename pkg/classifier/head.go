package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"
)

const defaultHeadSeed = 7

// Head is the trainable classification head: a 1280->128 ReLU layer with
// dropout, followed by a 128->4 softmax layer. The backbone stays frozen,
// only these weights ever change.
type Head struct {
	w1 *mat.Dense    // HiddenSize x EmbeddingSize
	b1 *mat.VecDense // HiddenSize
	w2 *mat.Dense    // classes x HiddenSize
	b2 *mat.VecDense // classes

	TrainedSamples int
	TrainedAt      time.Time
}

// NewHead returns a head with He-initialized weights.
func NewHead(seed int64) *Head {
	rng := rand.New(rand.NewSource(seed))

	classes := len(ClassNames)
	w1 := mat.NewDense(HiddenSize, EmbeddingSize, nil)
	scale1 := math.Sqrt(2.0 / float64(EmbeddingSize))
	for i := 0; i < HiddenSize; i++ {
		for j := 0; j < EmbeddingSize; j++ {
			w1.Set(i, j, rng.NormFloat64()*scale1)
		}
	}

	w2 := mat.NewDense(classes, HiddenSize, nil)
	scale2 := math.Sqrt(2.0 / float64(HiddenSize))
	for i := 0; i < classes; i++ {
		for j := 0; j < HiddenSize; j++ {
			w2.Set(i, j, rng.NormFloat64()*scale2)
		}
	}

	return &Head{
		w1: w1,
		b1: mat.NewVecDense(HiddenSize, nil),
		w2: w2,
		b2: mat.NewVecDense(classes, nil),
	}
}

// Forward computes class probabilities for one embedding vector.
func (h *Head) Forward(embedding []float32) []float64 {
	x := embeddingVec(embedding)

	var z1 mat.VecDense
	z1.MulVec(h.w1, x)
	z1.AddVec(&z1, h.b1)
	reluInPlace(&z1)

	var z2 mat.VecDense
	z2.MulVec(h.w2, &z1)
	z2.AddVec(&z2, h.b2)

	return softmax(z2.RawVector().Data)
}

// forwardTrain runs the forward pass with inverted dropout on the hidden
// layer and returns the intermediates the backward pass needs.
func (h *Head) forwardTrain(x *mat.VecDense, rng *rand.Rand, keepProb float64) (z1, a1 *mat.VecDense, mask []float64, probs []float64) {
	z1 = mat.NewVecDense(HiddenSize, nil)
	z1.MulVec(h.w1, x)
	z1.AddVec(z1, h.b1)

	a1 = mat.NewVecDense(HiddenSize, nil)
	mask = make([]float64, HiddenSize)
	for i := 0; i < HiddenSize; i++ {
		v := z1.AtVec(i)
		if v < 0 {
			v = 0
		}
		if rng.Float64() < keepProb {
			mask[i] = 1 / keepProb
		}
		a1.SetVec(i, v*mask[i])
	}

	var z2 mat.VecDense
	z2.MulVec(h.w2, a1)
	z2.AddVec(&z2, h.b2)

	return z1, a1, mask, softmax(z2.RawVector().Data)
}

// backward accumulates cross-entropy gradients for one sample into grads.
func (h *Head) backward(x, z1, a1 *mat.VecDense, mask, probs []float64, label int, grads *headGradients) {
	classes := len(ClassNames)

	// dL/dz2 = p - onehot(y)
	dz2 := mat.NewVecDense(classes, nil)
	for i := 0; i < classes; i++ {
		v := probs[i]
		if i == label {
			v -= 1
		}
		dz2.SetVec(i, v)
	}

	grads.w2.RankOne(grads.w2, 1, dz2, a1)
	grads.b2.AddVec(grads.b2, dz2)

	// back through dropout and ReLU
	da1 := mat.NewVecDense(HiddenSize, nil)
	da1.MulVec(h.w2.T(), dz2)
	for i := 0; i < HiddenSize; i++ {
		v := da1.AtVec(i) * mask[i]
		if z1.AtVec(i) <= 0 {
			v = 0
		}
		da1.SetVec(i, v)
	}

	grads.w1.RankOne(grads.w1, 1, da1, x)
	grads.b1.AddVec(grads.b1, da1)
}

// Clone deep-copies the head, used for best-weights restore.
func (h *Head) Clone() *Head {
	return &Head{
		w1:             mat.DenseCopyOf(h.w1),
		b1:             mat.VecDenseCopyOf(h.b1),
		w2:             mat.DenseCopyOf(h.w2),
		b2:             mat.VecDenseCopyOf(h.b2),
		TrainedSamples: h.TrainedSamples,
		TrainedAt:      h.TrainedAt,
	}
}

type headGradients struct {
	w1, w2 *mat.Dense
	b1, b2 *mat.VecDense
}

func newHeadGradients() *headGradients {
	classes := len(ClassNames)
	return &headGradients{
		w1: mat.NewDense(HiddenSize, EmbeddingSize, nil),
		b1: mat.NewVecDense(HiddenSize, nil),
		w2: mat.NewDense(classes, HiddenSize, nil),
		b2: mat.NewVecDense(classes, nil),
	}
}

func (g *headGradients) reset() {
	g.w1.Zero()
	g.b1.Zero()
	g.w2.Zero()
	g.b2.Zero()
}

type headArtifact struct {
	Classes        []string    `json:"classes"`
	EmbeddingSize  int         `json:"embedding_size"`
	HiddenSize     int         `json:"hidden_size"`
	W1             [][]float64 `json:"w1"`
	B1             []float64   `json:"b1"`
	W2             [][]float64 `json:"w2"`
	B2             []float64   `json:"b2"`
	TrainedSamples int         `json:"trained_samples"`
	TrainedAt      time.Time   `json:"trained_at"`
}

// SaveHead writes the head weights as a JSON artifact.
func SaveHead(h *Head, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	artifact := headArtifact{
		Classes:        ClassNames,
		EmbeddingSize:  EmbeddingSize,
		HiddenSize:     HiddenSize,
		W1:             denseRows(h.w1),
		B1:             vecData(h.b1),
		W2:             denseRows(h.w2),
		B2:             vecData(h.b2),
		TrainedSamples: h.TrainedSamples,
		TrainedAt:      h.TrainedAt,
	}

	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to encode head artifact: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// LoadHead reads a head artifact written by SaveHead.
func LoadHead(path string) (*Head, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var artifact headArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse head artifact: %w", err)
	}

	if artifact.EmbeddingSize != EmbeddingSize || artifact.HiddenSize != HiddenSize {
		return nil, fmt.Errorf("head artifact shape mismatch: %dx%d", artifact.EmbeddingSize, artifact.HiddenSize)
	}
	if len(artifact.Classes) != len(ClassNames) {
		return nil, fmt.Errorf("head artifact trained for %d classes, want %d", len(artifact.Classes), len(ClassNames))
	}

	w1 := rowsToDense(artifact.W1, HiddenSize, EmbeddingSize)
	w2 := rowsToDense(artifact.W2, len(ClassNames), HiddenSize)
	if w1 == nil || w2 == nil {
		return nil, fmt.Errorf("head artifact weight rows malformed")
	}
	if len(artifact.B1) != HiddenSize || len(artifact.B2) != len(ClassNames) {
		return nil, fmt.Errorf("head artifact bias length malformed: b1=%d b2=%d", len(artifact.B1), len(artifact.B2))
	}

	return &Head{
		w1:             w1,
		b1:             mat.NewVecDense(HiddenSize, artifact.B1),
		w2:             w2,
		b2:             mat.NewVecDense(len(ClassNames), artifact.B2),
		TrainedSamples: artifact.TrainedSamples,
		TrainedAt:      artifact.TrainedAt,
	}, nil
}

func embeddingVec(embedding []float32) *mat.VecDense {
	data := make([]float64, len(embedding))
	for i, v := range embedding {
		data[i] = float64(v)
	}
	return mat.NewVecDense(len(data), data)
}

func reluInPlace(v *mat.VecDense) {
	raw := v.RawVector().Data
	for i, x := range raw {
		if x < 0 {
			raw[i] = 0
		}
	}
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(v - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func denseRows(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		mat.Row(row, i, m)
		rows[i] = row
	}
	return rows
}

func rowsToDense(rows [][]float64, r, c int) *mat.Dense {
	if len(rows) != r {
		return nil
	}
	m := mat.NewDense(r, c, nil)
	for i, row := range rows {
		if len(row) != c {
			return nil
		}
		m.SetRow(i, row)
	}
	return m
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	copy(out, v.RawVector().Data)
	return out
}
