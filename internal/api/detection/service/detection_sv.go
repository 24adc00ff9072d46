package detectionService

import (
	"EcosnapAI/internal/api/detection"
	"EcosnapAI/internal/entity"
	"EcosnapAI/pkg/classifier"
	contextPkg "EcosnapAI/pkg/context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const predictionCacheTTL = time.Hour

func (s *detectionService) DetectFromURL(ctx context.Context, imageURL string) (*classifier.Result, error) {
	requestID := contextPkg.GetRequestID(ctx)

	data, err := s.utils.FetchImage(ctx, imageURL)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_url":  imageURL,
			"error":      err.Error(),
		}).Warn("Failed to fetch image from URL")
		return nil, detection.ErrImageFetchFailed
	}

	return s.DetectFromBytes(ctx, data, entity.SourceURL, imageURL)
}

func (s *detectionService) DetectFromBytes(ctx context.Context, data []byte, source string, imageRef string) (*classifier.Result, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(data) == 0 {
		return nil, detection.ErrNoImageProvided
	}

	imageHash := s.utils.HashImage(data)
	if cached := s.cachedResult(ctx, imageHash); cached != nil {
		if s.metrics != nil {
			s.metrics.DetectionsTotal.WithLabelValues(cached.WasteType, "cached").Inc()
		}
		return cached, nil
	}

	pixels, err := classifier.PreprocessBytes(data)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"source":     source,
			"error":      err.Error(),
		}).Warn("Failed to decode image")
		return nil, detection.ErrInvalidImage
	}

	start := time.Now()
	result, err := s.classifier.Predict(pixels)
	if err != nil {
		if errors.Is(err, classifier.ErrNotLoaded) {
			return nil, detection.ErrModelNotLoaded
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Classifier inference failed")
		return nil, err
	}

	if s.metrics != nil {
		outcome := "classified"
		if result.WasteType == classifier.ClassUnknown {
			outcome = "unknown"
		}
		s.metrics.ObserveDetection(result.WasteType, outcome, time.Since(start))
	}

	if result.WasteType == classifier.ClassUnknown && s.gemini != nil {
		s.refineWithGemini(ctx, data, result)
	}

	s.cacheResult(ctx, imageHash, result)
	s.recordDetection(ctx, result, source, imageRef, imageHash, data)

	return result, nil
}

func (s *detectionService) GetDetections(ctx context.Context, limit int) ([]entity.WasteDetection, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.detectionRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return nil, err
	}

	detections, err := repo.Detection.GetDetections(ctx, limit)
	if err != nil {
		return nil, err
	}

	s.presignImageRefs(requestID, detections)

	return detections, nil
}

// presignImageRefs swaps stored S3 locations for short-lived signed links
// so history responses stay viewable without a public bucket.
func (s *detectionService) presignImageRefs(requestID string, detections []entity.WasteDetection) {
	if s.s3 == nil {
		return
	}

	for i := range detections {
		ref := detections[i].ImageRef
		if ref == "" || !strings.Contains(ref, ".amazonaws.com/") {
			continue
		}

		signed, err := s.s3.PresignUrl(ref)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id":   requestID,
				"detection_id": detections[i].ID,
				"error":        err.Error(),
			}).Warn("Failed to presign detection image")
			continue
		}
		detections[i].ImageRef = signed
	}
}

func (s *detectionService) ModelInfo() detection.ModelInfoResponse {
	info := detection.ModelInfoResponse{
		ModelLoaded:         s.classifier.Loaded(),
		ClassNames:          classifier.ClassNames,
		RiskLevels:          classifier.RiskLevels,
		ConfidenceThreshold: s.classifier.Threshold(),
		InputShape:          []int{1, classifier.Channels, classifier.ImageSize, classifier.ImageSize},
	}

	head := s.classifier.Head()
	if head != nil {
		info.TrainedSamples = head.TrainedSamples
		if !head.TrainedAt.IsZero() {
			info.TrainedAt = head.TrainedAt.UTC().Format(time.RFC3339)
		}
	}

	return info
}

func (s *detectionService) cachedResult(ctx context.Context, imageHash string) *classifier.Result {
	if s.redis == nil {
		return nil
	}

	payload, err := s.redis.GetPrediction(ctx, imageHash)
	if err != nil {
		return nil
	}

	var result classifier.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		s.log.WithFields(logrus.Fields{
			"image_hash": imageHash,
			"error":      err.Error(),
		}).Warn("Failed to decode cached prediction")
		return nil
	}

	return &result
}

func (s *detectionService) cacheResult(ctx context.Context, imageHash string, result *classifier.Result) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}

	if err := s.redis.SetPrediction(ctx, imageHash, payload, predictionCacheTTL); err != nil {
		s.log.WithFields(logrus.Fields{
			"image_hash": imageHash,
			"error":      err.Error(),
		}).Warn("Failed to cache prediction")
	}
}

// refineWithGemini asks the vision model for a second opinion on
// below-threshold predictions. The classifier result stays authoritative
// when the suggestion is unusable.
func (s *detectionService) refineWithGemini(ctx context.Context, data []byte, result *classifier.Result) {
	requestID := contextPkg.GetRequestID(ctx)

	suggested, err := s.gemini.SuggestWasteClass(ctx, base64.StdEncoding.EncodeToString(data), classifier.ClassNames)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Gemini suggestion failed")
		return
	}

	risk, ok := classifier.RiskLevels[suggested]
	if !ok {
		return
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"suggested":  suggested,
	}).Info("Low-confidence prediction refined by Gemini")

	result.WasteType = suggested
	result.RiskLevel = risk
	result.AssistedBy = "gemini"
}

// recordDetection stores the audit trail. Failures are logged and never
// surfaced to the caller, the prediction itself already succeeded.
func (s *detectionService) recordDetection(ctx context.Context, result *classifier.Result, source, imageRef, imageHash string, data []byte) {
	requestID := contextPkg.GetRequestID(ctx)

	var uploadedURL string
	if imageRef == "" && s.s3 != nil {
		location, err := s.s3.UploadBytes(fmt.Sprintf("detections/%s.jpg", imageHash), data, "image/jpeg")
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Failed to upload detection image to S3")
		} else {
			uploadedURL = location
			imageRef = uploadedURL
		}
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate detection ID")
		return
	}

	record := entity.WasteDetection{
		ID:         id,
		Source:     source,
		ImageRef:   imageRef,
		WasteType:  result.WasteType,
		Confidence: result.Confidence,
		RiskLevel:  result.RiskLevel,
		CreatedAt:  time.Now().UTC(),
	}

	repo, err := s.detectionRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return
	}

	if err := repo.Detection.CreateDetection(ctx, record); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id":   requestID,
			"detection_id": record.ID,
			"error":        err.Error(),
		}).Error("Failed to persist detection")

		// An image without a row is unreachable, drop it from the bucket.
		if uploadedURL != "" {
			if delErr := s.s3.DeleteFile(uploadedURL); delErr != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"error":      delErr.Error(),
				}).Warn("Failed to remove orphaned detection image")
			}
		}
		return
	}

	if result.RiskLevel == "Critical" && s.smtp != nil {
		go func(det entity.WasteDetection) {
			if err := s.smtp.SendRiskAlert(det.WasteType, det.RiskLevel, det.Confidence, det.ImageRef); err != nil {
				s.log.WithFields(logrus.Fields{
					"detection_id": det.ID,
					"error":        err.Error(),
				}).Warn("Failed to send risk alert mail")
			}
		}(record)
	}
}
