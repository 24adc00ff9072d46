package detectionHandler

import (
	"EcosnapAI/internal/api/detection"
	"EcosnapAI/internal/entity"
	"EcosnapAI/pkg/classifier"
	contextPkg "EcosnapAI/pkg/context"
	"EcosnapAI/pkg/handlerUtil"
	"EcosnapAI/pkg/log"
	"EcosnapAI/pkg/response"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const detectTimeout = 30 * time.Second

func (h *DetectionHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), detectTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing detect request")

	var req detection.DetectRequest
	if err := ctx.BodyParser(&req); err != nil {
		return h.handleDetectionError(ctx, requestID, detection.ErrNoImageProvided)
	}

	if err := h.validator.Struct(req); err != nil {
		return h.handleDetectionError(ctx, requestID, detection.ErrNoImageProvided)
	}

	result, err := h.detectionService.DetectFromURL(c, req.ImageURL)
	if err != nil {
		return h.handleDetectionError(ctx, requestID, err)
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *DetectionHandler) DetectUpload(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), detectTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing detect upload request")

	data, err := h.uploadedImage(ctx)
	if err != nil {
		return h.handleDetectionError(ctx, requestID, err)
	}

	result, err := h.detectionService.DetectFromBytes(c, data, entity.SourceUpload, "")
	if err != nil {
		return h.handleDetectionError(ctx, requestID, err)
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

// uploadedImage accepts either a multipart "image" file or a JSON body
// with a base64-encoded payload. Both paths converge on a single decode.
func (h *DetectionHandler) uploadedImage(ctx *fiber.Ctx) ([]byte, error) {
	var encoded string

	if file, err := ctx.FormFile("image"); err == nil {
		if err := h.utils.ValidateImageFile(file); err != nil {
			return nil, err
		}

		opened, err := file.Open()
		if err != nil {
			return nil, detection.ErrInvalidImage
		}
		defer opened.Close()

		encoded, err = h.utils.ConvertFileToBase64(opened)
		if err != nil {
			return nil, detection.ErrInvalidImage
		}
	} else {
		var req detection.DetectUploadRequest
		if err := ctx.BodyParser(&req); err != nil {
			return nil, detection.ErrNoFileProvided
		}
		if req.ImageBase64 == "" {
			return nil, detection.ErrNoFileProvided
		}
		encoded = req.ImageBase64
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, detection.ErrInvalidImage
	}

	return data, nil
}

// DetectStream classifies frames pushed over a websocket. Each binary
// message is treated as one image, each reply is one prediction.
func (h *DetectionHandler) DetectStream(conn *websocket.Conn) {
	requestID, _ := conn.Locals(contextPkg.RequestIDKey).(string)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
	}).Info("Detection stream opened")

	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			h.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Debug("Detection stream closed")
			return
		}

		if messageType != websocket.BinaryMessage || len(frame) == 0 {
			continue
		}

		c, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), detectTimeout)
		result, err := h.detectionService.DetectFromBytes(c, frame, entity.SourceStream, "")
		cancel()

		if err != nil {
			result = classifier.ErrorResult(err.Error())
		}

		payload, err := json.Marshal(result)
		if err != nil {
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Failed to write stream prediction")
			return
		}
	}
}

func (h *DetectionHandler) GetDetections(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			return errHandler.HandleValidationError(ctx, requestID,
				errors.New("limit must be an integer between 1 and 500"), ctx.Path())
		}
		limit = parsed
	}

	detections, err := h.detectionService.GetDetections(c, limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_detections")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.DetectionsResponse{
			Detections: detections,
		})
	}
}

// handleDetectionError keeps the detection endpoints' error contract:
// the body is always a full prediction payload with a safe fallback
// class, so clients never have to branch on the response shape.
func (h *DetectionHandler) handleDetectionError(ctx *fiber.Ctx, requestID string, err error) error {
	status := fiber.StatusInternalServerError

	var respErr *response.Error
	if errors.As(err, &respErr) {
		status = respErr.Code
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"status":     status,
		"error":      err.Error(),
	}).Warn("Detection request failed")

	return ctx.Status(status).JSON(classifier.ErrorResult(err.Error()))
}
