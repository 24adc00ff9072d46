package detectionHandler

import (
	detectionService "EcosnapAI/internal/api/detection/service"
	"EcosnapAI/internal/middleware"
	"EcosnapAI/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	utils            utils.IUtils
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	detectionService detectionService.IDetectionService,
	utils utils.IUtils,
) *DetectionHandler {
	return &DetectionHandler{
		log:              log,
		validator:        validate,
		middleware:       middleware,
		detectionService: detectionService,
		utils:            utils,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	srv.Post("/detect", h.Detect)
	srv.Post("/detect/upload", h.DetectUpload)
	srv.Get("/detections", h.GetDetections)

	srv.Use("/detect/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	srv.Get("/detect/ws", websocket.New(h.DetectStream))

	srv.Get("/model/info", h.ModelInfo)
	srv.Post("/model/train", h.middleware.NewTokenMiddleware, h.Train)
	srv.Get("/model/train/runs", h.middleware.NewTokenMiddleware, h.GetTrainingRuns)
	srv.Get("/model/train/runs/:id", h.middleware.NewTokenMiddleware, h.GetTrainingRun)
}
