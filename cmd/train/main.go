package main

import (
	"EcosnapAI/pkg/classifier"
	"EcosnapAI/pkg/log"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Debugf("No .env file loaded: %v", err)
	}

	defaults := classifier.DefaultTrainOptions()

	dataDir := flag.String("data", defaults.DataDir, "class-per-directory dataset root")
	epochs := flag.Int("epochs", defaults.Epochs, "maximum training epochs")
	batchSize := flag.Int("batch", defaults.BatchSize, "minibatch size")
	synthetic := flag.Bool("synthetic", false, "force synthetic training data")
	samples := flag.Int("samples", defaults.SamplesPerClass, "synthetic samples per class")
	seed := flag.Int64("seed", defaults.Seed, "random seed")
	modelPath := flag.String("model", envOr("BACKBONE_MODEL_PATH", "models/mobilenet_v2_features.onnx"), "backbone ONNX model path")
	metadataPath := flag.String("metadata", envOr("BACKBONE_METADATA_PATH", "models/backbone_metadata.json"), "backbone metadata path")
	headPath := flag.String("out", envOr("MODEL_HEAD_PATH", "models/waste_head.json"), "output path for the trained head")
	flag.Parse()

	extractor, err := classifier.NewOnnxExtractor(*modelPath, *metadataPath)
	if err != nil {
		logger.Fatalf("Failed to load backbone: %v", err)
	}
	defer extractor.Close()

	opts := defaults
	opts.DataDir = *dataDir
	opts.Epochs = *epochs
	opts.BatchSize = *batchSize
	opts.Synthetic = *synthetic
	opts.SamplesPerClass = *samples
	opts.Seed = *seed

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	trainer := classifier.NewTrainer(logger, extractor)
	head, report, err := trainer.Run(ctx, opts)
	if err != nil {
		logger.Fatalf("Training failed: %v", err)
	}

	if err := classifier.SaveHead(head, *headPath); err != nil {
		logger.Fatalf("Failed to save trained head: %v", err)
	}

	logger.WithFields(log.Fields{
		"data_source":    report.DataSource,
		"samples":        report.Samples,
		"epochs":         report.EpochsRun,
		"train_accuracy": report.TrainAccuracy,
		"val_accuracy":   report.ValAccuracy,
		"duration":       report.Duration.String(),
		"out":            *headPath,
	}).Info("Training finished")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
