package detectionService

import (
	"EcosnapAI/internal/api/detection"
	"EcosnapAI/internal/entity"
	"EcosnapAI/pkg/classifier"
	contextPkg "EcosnapAI/pkg/context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const trainingTimeout = time.Hour

func (s *detectionService) TriggerTraining(ctx context.Context, req detection.TrainRequest, trigger string) (entity.TrainingRun, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if !s.training.CompareAndSwap(false, true) {
		return entity.TrainingRun{}, detection.ErrTrainingInProgress
	}

	opts := classifier.DefaultTrainOptions()
	if req.DataDir != "" {
		opts.DataDir = req.DataDir
	}
	if req.Epochs > 0 {
		opts.Epochs = req.Epochs
	}
	opts.Synthetic = req.Synthetic

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.training.Store(false)
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate training run ID")
		return entity.TrainingRun{}, err
	}

	run := entity.TrainingRun{
		ID:        id,
		Trigger:   trigger,
		Status:    entity.TrainingStatusRunning,
		Epochs:    opts.Epochs,
		StartedAt: time.Now().UTC(),
	}

	repo, err := s.detectionRepository.NewClient(false)
	if err != nil {
		s.training.Store(false)
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return entity.TrainingRun{}, err
	}

	if err := repo.Training.CreateTrainingRun(ctx, run); err != nil {
		s.training.Store(false)
		return entity.TrainingRun{}, err
	}

	go s.runTraining(run, opts)

	return run, nil
}

func (s *detectionService) GetTrainingRun(ctx context.Context, id string) (entity.TrainingRun, error) {
	repo, err := s.detectionRepository.NewClient(false)
	if err != nil {
		return entity.TrainingRun{}, err
	}

	return repo.Training.GetTrainingRunByID(ctx, id)
}

func (s *detectionService) GetTrainingRuns(ctx context.Context) ([]entity.TrainingRun, error) {
	repo, err := s.detectionRepository.NewClient(false)
	if err != nil {
		return nil, err
	}

	return repo.Training.GetTrainingRuns(ctx)
}

// runTraining executes the head-only training loop in the background and
// hot-swaps the serving head on success.
func (s *detectionService) runTraining(run entity.TrainingRun, opts classifier.TrainOptions) {
	defer s.training.Store(false)

	ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), run.ID), trainingTimeout)
	defer cancel()

	head, report, err := s.trainer.Run(ctx, opts)
	finishedAt := time.Now().UTC()
	run.FinishedAt = &finishedAt

	if err != nil {
		run.Status = entity.TrainingStatusFailed
		run.Error = err.Error()

		s.log.WithFields(logrus.Fields{
			"run_id": run.ID,
			"error":  err.Error(),
		}).Error("Training run failed")

		s.finishRun(ctx, run)
		return
	}

	run.Status = entity.TrainingStatusCompleted
	run.DataSource = report.DataSource
	run.Samples = report.Samples
	run.Epochs = report.EpochsRun
	run.TrainAccuracy = report.TrainAccuracy
	run.ValAccuracy = report.ValAccuracy

	if err := classifier.SaveHead(head, s.headPath); err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": run.ID,
			"path":   s.headPath,
			"error":  err.Error(),
		}).Error("Failed to persist trained head")
	} else {
		s.uploadHeadArtifact(run.ID)
	}

	s.classifier.SwapHead(head)

	s.log.WithFields(logrus.Fields{
		"run_id":         run.ID,
		"data_source":    run.DataSource,
		"samples":        run.Samples,
		"epochs":         run.Epochs,
		"train_accuracy": run.TrainAccuracy,
		"val_accuracy":   run.ValAccuracy,
		"duration":       report.Duration.String(),
	}).Info("Training run completed")

	s.finishRun(ctx, run)
}

func (s *detectionService) finishRun(ctx context.Context, run entity.TrainingRun) {
	if s.metrics != nil {
		s.metrics.TrainingRunsTotal.WithLabelValues(run.Status).Inc()
	}

	repo, err := s.detectionRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": run.ID,
			"error":  err.Error(),
		}).Error("Failed to create new client")
		return
	}

	if err := repo.Training.UpdateTrainingRun(ctx, run); err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": run.ID,
			"error":  err.Error(),
		}).Error("Failed to update training run record")
	}
}

func (s *detectionService) uploadHeadArtifact(runID string) {
	if s.s3 == nil {
		return
	}

	data, err := os.ReadFile(s.headPath)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err.Error(),
		}).Warn("Failed to read head artifact for upload")
		return
	}

	key := fmt.Sprintf("artifacts/waste_head_%s.json", runID)
	if _, err := s.s3.UploadBytes(key, data, "application/json"); err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err.Error(),
		}).Warn("Failed to upload head artifact to S3")
	}
}
