package main

import (
	"EcosnapAI/internal/config"
	"EcosnapAI/pkg/classifier"
	"EcosnapAI/pkg/log"
	"EcosnapAI/pkg/redis"
	"EcosnapAI/pkg/smtp"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded: %v", err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()
	smtpMailer := smtp.New()

	modelPath := envOr("BACKBONE_MODEL_PATH", "models/mobilenet_v2_features.onnx")
	metadataPath := envOr("BACKBONE_METADATA_PATH", "models/backbone_metadata.json")
	headPath := envOr("MODEL_HEAD_PATH", "models/waste_head.json")

	var extractor classifier.FeatureExtractor
	onnxExtractor, err := classifier.NewOnnxExtractor(modelPath, metadataPath)
	if err != nil {
		logger.Warnf("Backbone not loaded, detection will be unavailable until training artifacts exist: %v", err)
	} else {
		extractor = onnxExtractor
		defer onnxExtractor.Close()
	}

	wasteClassifier := classifier.New(logger, extractor, headPath)
	trainer := classifier.NewTrainer(logger, extractor)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithSMTPMailer(smtpMailer),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithGeminiClient(),
		config.WithUtils(),
		config.WithClassifier(wasteClassifier, trainer, headPath),
		config.WithMetrics(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
