package classifier

import (
	"errors"
	"math/rand"
	"testing"

	"golang.org/x/net/context"
	"gonum.org/v1/gonum/mat"
)

func TestTrainerNotLoaded(t *testing.T) {
	trainer := NewTrainer(testLogger(), nil)

	if _, _, err := trainer.Run(context.Background(), DefaultTrainOptions()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Run error = %v, want ErrNotLoaded", err)
	}
}

func TestTrainerCanceledContext(t *testing.T) {
	trainer := NewTrainer(testLogger(), &fakeExtractor{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultTrainOptions()
	opts.Synthetic = true
	opts.SamplesPerClass = 4
	opts.Seed = 1

	if _, _, err := trainer.Run(ctx, opts); err == nil {
		t.Fatal("Run ignored a canceled context")
	}
}

func TestTrainerSyntheticFallback(t *testing.T) {
	trainer := NewTrainer(testLogger(), &fakeExtractor{})

	opts := DefaultTrainOptions()
	opts.DataDir = t.TempDir() + "/missing"
	opts.SamplesPerClass = 40
	opts.Seed = 99

	head, report, err := trainer.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.DataSource != "synthetic" {
		t.Fatalf("data source = %q, want synthetic", report.DataSource)
	}
	if report.Samples != opts.SamplesPerClass*len(ClassNames) {
		t.Fatalf("samples = %d, want %d", report.Samples, opts.SamplesPerClass*len(ClassNames))
	}
	if report.EpochsRun > syntheticEpochCap {
		t.Fatalf("synthetic run trained %d epochs, cap is %d", report.EpochsRun, syntheticEpochCap)
	}
	if head.TrainedSamples != report.Samples {
		t.Fatalf("head records %d samples, report says %d", head.TrainedSamples, report.Samples)
	}
	if head.TrainedAt.IsZero() {
		t.Fatal("head has no training timestamp")
	}
}

func TestTrainerLearnsSeparableClasses(t *testing.T) {
	if testing.Short() {
		t.Skip("training loop is slow")
	}

	dir := t.TempDir()
	rng := rand.New(rand.NewSource(7))
	if err := WriteSyntheticImages(dir, 40, rng); err != nil {
		t.Fatalf("WriteSyntheticImages: %v", err)
	}

	trainer := NewTrainer(testLogger(), &fakeExtractor{})

	opts := DefaultTrainOptions()
	opts.DataDir = dir
	opts.Epochs = 30
	opts.Augment = false
	opts.Seed = 7

	head, report, err := trainer.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.DataSource != "dataset" {
		t.Fatalf("data source = %q, want dataset", report.DataSource)
	}

	// Color-biased classes are cleanly separable through the mean-color
	// fake extractor, so anything close to chance means learning broke.
	if report.TrainAccuracy < 0.5 {
		t.Fatalf("train accuracy = %v, expected the head to learn", report.TrainAccuracy)
	}

	// The trained head should now produce confident predictions.
	samples := SyntheticSamples(1, rand.New(rand.NewSource(13)))
	extractor := &fakeExtractor{}
	correct := 0
	for _, sample := range samples {
		embedding, err := extractor.Features(sample.Pixels)
		if err != nil {
			t.Fatal(err)
		}
		probs := head.Forward(embedding)
		if argmax(probs) == sample.Label {
			correct++
		}
	}
	if correct < len(samples)/2 {
		t.Fatalf("trained head got %d/%d held-out samples", correct, len(samples))
	}
}

func TestRunEpochDropoutVariesAcrossEpochs(t *testing.T) {
	trainer := NewTrainer(testLogger(), nil)

	opts := DefaultTrainOptions()
	opts.BatchSize = 4
	opts.DropoutKeep = 0.5
	opts.LearningRate = 0.01
	opts.Momentum = 0

	sampleRng := rand.New(rand.NewSource(3))
	train := make([]embeddedSample, 8)
	for i := range train {
		data := make([]float64, EmbeddingSize)
		for j := range data {
			data[j] = sampleRng.Float64()
		}
		train[i] = embeddedSample{x: mat.NewVecDense(EmbeddingSize, data), label: i % len(ClassNames)}
	}

	// Same starting weights and same batches, one shared RNG. The only
	// difference between the two epochs is the dropout draw, so equal
	// resulting weights mean the mask repeated.
	base := NewHead(2)
	rng := rand.New(rand.NewSource(9))

	first := base.Clone()
	trainer.runEpoch(first, train, newHeadGradients(), newHeadGradients(), opts, rng)

	second := base.Clone()
	trainer.runEpoch(second, train, newHeadGradients(), newHeadGradients(), opts, rng)

	if mat.Equal(first.w1, second.w1) && mat.Equal(first.w2, second.w2) {
		t.Fatal("consecutive epochs drew identical dropout masks")
	}
}

func TestApplyUpdateMovesWeights(t *testing.T) {
	head := NewHead(2)
	grads := newHeadGradients()
	velocity := newHeadGradients()

	grads.w1.Set(0, 0, 1.0)
	before := head.w1.At(0, 0)

	applyUpdate(head, grads, velocity, 0.1, 0.9)

	after := head.w1.At(0, 0)
	if after >= before {
		t.Fatalf("weight did not descend: %v -> %v", before, after)
	}
}
