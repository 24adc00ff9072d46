package detectionRepository

import (
	contextPkg "EcosnapAI/pkg/context"
	"context"
	"database/sql"
	"time"

	"EcosnapAI/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type WasteDetectionDB struct {
	ID         sql.NullString  `db:"id"`
	Source     sql.NullString  `db:"source"`
	ImageRef   sql.NullString  `db:"image_ref"`
	WasteType  sql.NullString  `db:"waste_type"`
	Confidence sql.NullFloat64 `db:"confidence"`
	RiskLevel  sql.NullString  `db:"risk_level"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (r *detectionRepository) CreateDetection(c context.Context, detection entity.WasteDetection) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":         detection.ID,
		"source":     detection.Source,
		"image_ref":  detection.ImageRef,
		"waste_type": detection.WasteType,
		"confidence": detection.Confidence,
		"risk_level": detection.RiskLevel,
		"created_at": detection.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateDetection, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateDetection")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating detection")

		return err
	}

	return nil
}

func (r *detectionRepository) GetDetections(c context.Context, limit int) ([]entity.WasteDetection, error) {
	requestID := contextPkg.GetRequestID(c)
	var rows []WasteDetectionDB

	argsKV := map[string]interface{}{
		"limit": limit,
	}

	query, args, err := sqlx.Named(queryGetDetections, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetDetections named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when fetching detections")
		return nil, err
	}

	detections := make([]entity.WasteDetection, 0, len(rows))
	for _, row := range rows {
		detections = append(detections, row.toEntity())
	}

	return detections, nil
}

func (d WasteDetectionDB) toEntity() entity.WasteDetection {
	return entity.WasteDetection{
		ID:         d.ID.String,
		Source:     d.Source.String,
		ImageRef:   d.ImageRef.String,
		WasteType:  d.WasteType.String,
		Confidence: d.Confidence.Float64,
		RiskLevel:  d.RiskLevel.String,
		CreatedAt:  d.CreatedAt,
	}
}
