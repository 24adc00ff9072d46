package classifier

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// TrainOptions controls a head-training run.
type TrainOptions struct {
	// DataDir is the class-per-directory dataset root. When it does not
	// exist (or Synthetic is set) training falls back to generated data.
	DataDir         string
	Epochs          int
	BatchSize       int
	LearningRate    float64
	Momentum        float64
	DropoutKeep     float64
	Patience        int
	Synthetic       bool
	SamplesPerClass int
	Augment         bool
	Seed            int64
}

// DefaultTrainOptions are the defaults the model was tuned with.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		DataDir:         "data/waste_dataset",
		Epochs:          50,
		BatchSize:       32,
		LearningRate:    0.01,
		Momentum:        0.9,
		DropoutKeep:     0.5,
		Patience:        10,
		SamplesPerClass: 250,
		Augment:         true,
		Seed:            time.Now().UnixNano(),
	}
}

// syntheticEpochCap keeps synthetic runs short, random noise does not
// reward long training.
const syntheticEpochCap = 10

// TrainingReport summarizes a finished run.
type TrainingReport struct {
	DataSource    string
	Samples       int
	EpochsRun     int
	TrainAccuracy float64
	TrainLoss     float64
	ValAccuracy   float64
	ValLoss       float64
	Duration      time.Duration
}

// Trainer runs the head-only transfer-learning loop: every image passes
// through the frozen backbone exactly once, then the head iterates over
// the resulting embeddings.
type Trainer struct {
	log       *logrus.Logger
	extractor FeatureExtractor
}

func NewTrainer(log *logrus.Logger, extractor FeatureExtractor) *Trainer {
	return &Trainer{log: log, extractor: extractor}
}

type embeddedSample struct {
	x     *mat.VecDense
	label int
}

// Run executes a training run and returns the trained head with a report.
func (t *Trainer) Run(ctx context.Context, opts TrainOptions) (*Head, *TrainingReport, error) {
	if t.extractor == nil {
		return nil, nil, ErrNotLoaded
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(opts.Seed))

	samples, source, err := t.collectSamples(opts, rng)
	if err != nil {
		return nil, nil, err
	}
	if len(samples) < 2*len(ClassNames) {
		return nil, nil, errors.New("not enough training samples")
	}

	epochs := opts.Epochs
	if source == "synthetic" && epochs > syntheticEpochCap {
		epochs = syntheticEpochCap
	}

	t.log.WithFields(logrus.Fields{
		"source":  source,
		"samples": len(samples),
		"epochs":  epochs,
	}).Info("Starting head training run")

	embedded, err := t.embedSamples(ctx, samples)
	if err != nil {
		return nil, nil, err
	}

	rng.Shuffle(len(embedded), func(i, j int) {
		embedded[i], embedded[j] = embedded[j], embedded[i]
	})

	splitIdx := int(0.8 * float64(len(embedded)))
	if splitIdx == len(embedded) {
		splitIdx--
	}
	train, val := embedded[:splitIdx], embedded[splitIdx:]

	head := NewHead(opts.Seed)
	velocity := newHeadGradients()
	grads := newHeadGradients()

	best := head.Clone()
	bestValLoss := math.Inf(1)
	sinceImprovement := 0
	epochsRun := 0

	var trainLoss, trainAcc float64
	for epoch := 0; epoch < epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		rng.Shuffle(len(train), func(i, j int) {
			train[i], train[j] = train[j], train[i]
		})

		trainLoss, trainAcc = t.runEpoch(head, train, grads, velocity, opts, rng)
		valLoss, valAcc := evaluate(head, val)
		epochsRun = epoch + 1

		t.log.WithFields(logrus.Fields{
			"epoch":     epochsRun,
			"loss":      round4(trainLoss),
			"accuracy":  round4(trainAcc),
			"val_loss":  round4(valLoss),
			"val_acc":   round4(valAcc),
			"data_size": len(train),
		}).Debug("Epoch finished")

		if valLoss < bestValLoss {
			bestValLoss = valLoss
			best = head.Clone()
			sinceImprovement = 0
		} else {
			sinceImprovement++
			if opts.Patience > 0 && sinceImprovement >= opts.Patience {
				t.log.WithFields(logrus.Fields{
					"epoch":    epochsRun,
					"patience": opts.Patience,
				}).Info("Early stopping, restoring best weights")
				break
			}
		}
	}

	head = best
	head.TrainedSamples = len(samples)
	head.TrainedAt = time.Now()

	valLoss, valAcc := evaluate(head, val)
	report := &TrainingReport{
		DataSource:    source,
		Samples:       len(samples),
		EpochsRun:     epochsRun,
		TrainAccuracy: round4(trainAcc),
		TrainLoss:     round4(trainLoss),
		ValAccuracy:   round4(valAcc),
		ValLoss:       round4(valLoss),
		Duration:      time.Since(start),
	}

	t.log.WithFields(logrus.Fields{
		"val_accuracy": report.ValAccuracy,
		"duration":     report.Duration.String(),
	}).Info("Training run finished")

	return head, report, nil
}

func (t *Trainer) collectSamples(opts TrainOptions, rng *rand.Rand) ([]Sample, string, error) {
	if !opts.Synthetic && opts.DataDir != "" {
		if _, err := os.Stat(opts.DataDir); err == nil {
			samples, err := LoadDirectory(opts.DataDir, opts.Augment, rng)
			if err != nil {
				return nil, "", err
			}
			if len(samples) > 0 {
				return samples, "dataset", nil
			}
			t.log.WithField("dir", opts.DataDir).Warn("Dataset directory is empty, falling back to synthetic data")
		} else {
			t.log.WithField("dir", opts.DataDir).Warn("No dataset directory found, falling back to synthetic data")
		}
	}

	perClass := opts.SamplesPerClass
	if perClass <= 0 {
		perClass = 25
	}
	return SyntheticSamples(perClass, rng), "synthetic", nil
}

// embedSamples pushes every sample through the frozen backbone. Workers
// are bounded by GOMAXPROCS; the extractor serializes actual Run calls.
func (t *Trainer) embedSamples(ctx context.Context, samples []Sample) ([]embeddedSample, error) {
	embedded := make([]embeddedSample, len(samples))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range samples {
		g.Go(func() error {
			features, err := t.extractor.Features(samples[i].Pixels)
			if err != nil {
				return err
			}
			embedded[i] = embeddedSample{x: embeddingVec(features), label: samples[i].Label}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embedded, nil
}

func (t *Trainer) runEpoch(head *Head, train []embeddedSample, grads, velocity *headGradients, opts TrainOptions, rng *rand.Rand) (loss, accuracy float64) {
	var totalLoss float64
	var correct int

	for offset := 0; offset < len(train); offset += opts.BatchSize {
		end := offset + opts.BatchSize
		if end > len(train) {
			end = len(train)
		}
		batch := train[offset:end]
		grads.reset()

		for _, s := range batch {
			z1, a1, mask, probs := head.forwardTrain(s.x, rng, opts.DropoutKeep)
			totalLoss += -math.Log(math.Max(probs[s.label], 1e-12))
			if argmax(probs) == s.label {
				correct++
			}
			head.backward(s.x, z1, a1, mask, probs, s.label, grads)
		}

		applyUpdate(head, grads, velocity, opts.LearningRate/float64(len(batch)), opts.Momentum)
	}

	return totalLoss / float64(len(train)), float64(correct) / float64(len(train))
}

// applyUpdate performs a momentum SGD step: v = mu*v - lr*g; w += v.
func applyUpdate(head *Head, grads, velocity *headGradients, lr, momentum float64) {
	step := func(w, g, v *mat.Dense) {
		v.Scale(momentum, v)
		var scaled mat.Dense
		scaled.Scale(lr, g)
		v.Sub(v, &scaled)
		w.Add(w, v)
	}
	stepVec := func(w, g, v *mat.VecDense) {
		v.ScaleVec(momentum, v)
		var scaled mat.VecDense
		scaled.ScaleVec(lr, g)
		v.SubVec(v, &scaled)
		w.AddVec(w, v)
	}

	step(head.w1, grads.w1, velocity.w1)
	stepVec(head.b1, grads.b1, velocity.b1)
	step(head.w2, grads.w2, velocity.w2)
	stepVec(head.b2, grads.b2, velocity.b2)
}

func evaluate(head *Head, set []embeddedSample) (loss, accuracy float64) {
	if len(set) == 0 {
		return 0, 0
	}

	var totalLoss float64
	var correct int
	for _, s := range set {
		probs := forwardVec(head, s.x)
		totalLoss += -math.Log(math.Max(probs[s.label], 1e-12))
		if argmax(probs) == s.label {
			correct++
		}
	}

	return totalLoss / float64(len(set)), float64(correct) / float64(len(set))
}

// forwardVec is Forward for an already-built gonum vector.
func forwardVec(head *Head, x *mat.VecDense) []float64 {
	var z1 mat.VecDense
	z1.MulVec(head.w1, x)
	z1.AddVec(&z1, head.b1)
	reluInPlace(&z1)

	var z2 mat.VecDense
	z2.MulVec(head.w2, &z1)
	z2.AddVec(&z2, head.b2)

	return softmax(z2.RawVector().Data)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
