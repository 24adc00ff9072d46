package config

import (
	"EcosnapAI/database/postgres"
	detectionHandler "EcosnapAI/internal/api/detection/handler"
	detectionRepository "EcosnapAI/internal/api/detection/repository"
	detectionService "EcosnapAI/internal/api/detection/service"
	"EcosnapAI/internal/middleware"
	"EcosnapAI/pkg/classifier"
	"EcosnapAI/pkg/gemini"
	"EcosnapAI/pkg/metrics"
	"EcosnapAI/pkg/redis"
	"EcosnapAI/pkg/s3"
	"EcosnapAI/pkg/smtp"
	"EcosnapAI/pkg/utils"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	redisServer  redis.IRedis
	smtpMailer   smtp.ItfSmtp
	geminiClient gemini.IGemini
	s3Client     s3.ItfS3
	classifier   *classifier.Classifier
	trainer      *classifier.Trainer
	metrics      *metrics.Metrics
	headPath     string
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithSMTPMailer(smtpMailer smtp.ItfSmtp) ServerOption {
	return func(s *Server) error {
		s.smtpMailer = smtpMailer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

// WithS3Client is tolerant of missing AWS credentials, the image audit
// trail and artifact uploads are optional features.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Warnf("S3 client disabled: %v", err)
			}
			return nil
		}
		s.s3Client = client
		return nil
	}
}

// WithGeminiClient is tolerant of a missing API key, the low-confidence
// refinement step is optional.
func WithGeminiClient() ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient()
		if err != nil {
			if s.log != nil {
				s.log.Warnf("Gemini client disabled: %v", err)
			}
			return nil
		}
		s.geminiClient = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func WithClassifier(cls *classifier.Classifier, trainer *classifier.Trainer, headPath string) ServerOption {
	return func(s *Server) error {
		s.classifier = cls
		s.trainer = trainer
		s.headPath = headPath
		return nil
	}
}

func WithMetrics() ServerOption {
	return func(s *Server) error {
		s.metrics = metrics.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	detectionRepo := detectionRepository.New(s.db, s.log)
	detectionServices := detectionService.NewDetectionService(
		s.log,
		detectionRepo,
		s.classifier,
		s.trainer,
		s.utils,
		s.headPath,
		detectionService.Deps{
			Redis:   s.redisServer,
			S3:      s.s3Client,
			Smtp:    s.smtpMailer,
			Gemini:  s.geminiClient,
			Metrics: s.metrics,
		},
	)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, detectionServices, s.utils)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, detectionHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(cors.New())
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	router := s.engine.Group("/api/v1")
	router.Use(s.middleware.NewRateLimiter)

	for _, h := range s.handlers {
		h.Start(router)
	}

	if s.metrics != nil {
		s.engine.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"service": "EcoSnap AI Detection Service",
			"version": "1.0.0",
			"status":  "running",
			"endpoints": fiber.Map{
				"detect":        "/api/v1/detect",
				"detect_upload": "/api/v1/detect/upload",
				"detect_ws":     "/api/v1/detect/ws",
				"detections":    "/api/v1/detections",
				"model_info":    "/api/v1/model/info",
				"train":         "/api/v1/model/train",
				"health":        "/health",
			},
		})
	})

	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		status := "healthy"
		if !s.classifier.Loaded() {
			status = "degraded"
		}

		return ctx.JSON(fiber.Map{
			"status":          status,
			"model_loaded":    s.classifier.Loaded(),
			"supported_types": classifier.ClassNames,
		})
	})
}
