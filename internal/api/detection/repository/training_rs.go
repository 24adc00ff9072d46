package detectionRepository

import (
	"EcosnapAI/internal/api/detection"
	"EcosnapAI/internal/entity"
	contextPkg "EcosnapAI/pkg/context"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type TrainingRunDB struct {
	ID            sql.NullString  `db:"id"`
	TriggerSource sql.NullString  `db:"trigger_source"`
	DataSource    sql.NullString  `db:"data_source"`
	Status        sql.NullString  `db:"status"`
	Samples       sql.NullInt64   `db:"samples"`
	Epochs        sql.NullInt64   `db:"epochs"`
	TrainAccuracy sql.NullFloat64 `db:"train_accuracy"`
	ValAccuracy   sql.NullFloat64 `db:"val_accuracy"`
	ErrorMessage  sql.NullString  `db:"error_message"`
	StartedAt     time.Time       `db:"started_at"`
	FinishedAt    sql.NullTime    `db:"finished_at"`
}

func (r *trainingRepository) CreateTrainingRun(c context.Context, run entity.TrainingRun) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":             run.ID,
		"trigger_source": run.Trigger,
		"data_source":    run.DataSource,
		"status":         run.Status,
		"samples":        run.Samples,
		"epochs":         run.Epochs,
		"train_accuracy": run.TrainAccuracy,
		"val_accuracy":   run.ValAccuracy,
		"error_message":  run.Error,
		"started_at":     run.StartedAt,
		"finished_at":    run.FinishedAt,
	}

	query, args, err := sqlx.Named(queryCreateTrainingRun, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateTrainingRun")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating training run")

		return err
	}

	return nil
}

func (r *trainingRepository) UpdateTrainingRun(c context.Context, run entity.TrainingRun) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":             run.ID,
		"status":         run.Status,
		"samples":        run.Samples,
		"epochs":         run.Epochs,
		"train_accuracy": run.TrainAccuracy,
		"val_accuracy":   run.ValAccuracy,
		"error_message":  run.Error,
		"finished_at":    run.FinishedAt,
	}

	query, args, err := sqlx.Named(queryUpdateTrainingRun, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for UpdateTrainingRun")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when updating training run")

		return err
	}

	return nil
}

func (r *trainingRepository) GetTrainingRunByID(c context.Context, id string) (entity.TrainingRun, error) {
	requestID := contextPkg.GetRequestID(c)
	var row TrainingRunDB

	argsKV := map[string]interface{}{
		"id": id,
	}

	query, args, err := sqlx.Named(queryGetTrainingRunByID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetTrainingRunByID named query preparation err")
		return entity.TrainingRun{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.TrainingRun{}, detection.ErrTrainingRunNotFound
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when fetching training run")
		return entity.TrainingRun{}, err
	}

	return row.toEntity(), nil
}

func (r *trainingRepository) GetTrainingRuns(c context.Context) ([]entity.TrainingRun, error) {
	requestID := contextPkg.GetRequestID(c)
	var rows []TrainingRunDB

	query := r.q.Rebind(queryGetTrainingRuns)

	if err := r.q.SelectContext(c, &rows, query); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when fetching training runs")
		return nil, err
	}

	runs := make([]entity.TrainingRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, row.toEntity())
	}

	return runs, nil
}

func (t TrainingRunDB) toEntity() entity.TrainingRun {
	run := entity.TrainingRun{
		ID:            t.ID.String,
		Trigger:       t.TriggerSource.String,
		DataSource:    t.DataSource.String,
		Status:        t.Status.String,
		Samples:       int(t.Samples.Int64),
		Epochs:        int(t.Epochs.Int64),
		TrainAccuracy: t.TrainAccuracy.Float64,
		ValAccuracy:   t.ValAccuracy.Float64,
		Error:         t.ErrorMessage.String,
		StartedAt:     t.StartedAt,
	}
	if t.FinishedAt.Valid {
		finished := t.FinishedAt.Time
		run.FinishedAt = &finished
	}
	return run
}
