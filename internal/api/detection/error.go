package detection

import (
	"EcosnapAI/pkg/response"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrNoImageProvided     = response.NewError(fiber.StatusBadRequest, "no image URL provided")
	ErrNoFileProvided      = response.NewError(fiber.StatusBadRequest, "no image file provided")
	ErrInvalidImage        = response.NewError(fiber.StatusBadRequest, "image could not be decoded")
	ErrImageFetchFailed    = response.NewError(fiber.StatusBadRequest, "image could not be fetched from url")
	ErrModelNotLoaded      = response.NewError(fiber.StatusServiceUnavailable, "classification model is not loaded")
	ErrTrainingInProgress  = response.NewError(fiber.StatusConflict, "a training run is already in progress")
	ErrTrainingRunNotFound = response.NewError(fiber.StatusNotFound, "training run not found")
	ErrInternalServerError = response.NewError(fiber.StatusInternalServerError, "internal server error")
)
