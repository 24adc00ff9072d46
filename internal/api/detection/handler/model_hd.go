package detectionHandler

import (
	"EcosnapAI/internal/api/detection"
	contextPkg "EcosnapAI/pkg/context"
	"EcosnapAI/pkg/handlerUtil"
	"EcosnapAI/pkg/log"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *DetectionHandler) ModelInfo(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.detectionService.ModelInfo())
}

func (h *DetectionHandler) Train(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing train request")

	var req detection.TrainRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
	}

	run, err := h.detectionService.TriggerTraining(c, req, "api")
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "trigger_training")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusAccepted, detection.TrainResponse{
			Message: "Training started",
			Run:     run,
		})
	}
}

func (h *DetectionHandler) GetTrainingRuns(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	runs, err := h.detectionService.GetTrainingRuns(c)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_training_runs")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.TrainingRunsResponse{
			Runs: runs,
		})
	}
}

func (h *DetectionHandler) GetTrainingRun(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("training run ID is required"), ctx.Path())
	}

	run, err := h.detectionService.GetTrainingRun(c, id)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_training_run")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, run)
	}
}
