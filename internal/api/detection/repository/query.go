package detectionRepository

const (
	queryCreateDetection = `
		INSERT INTO waste_detections (
			id,
			source,
			image_ref,
			waste_type,
			confidence,
			risk_level,
			created_at
		) VALUES (
			:id,
			:source,
			:image_ref,
			:waste_type,
			:confidence,
			:risk_level,
			:created_at
		)
	`

	queryGetDetections = `
		SELECT
			id,
			source,
			image_ref,
			waste_type,
			confidence,
			risk_level,
			created_at
		FROM waste_detections
		ORDER BY created_at DESC
		LIMIT :limit
	`

	queryCreateTrainingRun = `
		INSERT INTO training_runs (
			id,
			trigger_source,
			data_source,
			status,
			samples,
			epochs,
			train_accuracy,
			val_accuracy,
			error_message,
			started_at,
			finished_at
		) VALUES (
			:id,
			:trigger_source,
			:data_source,
			:status,
			:samples,
			:epochs,
			:train_accuracy,
			:val_accuracy,
			:error_message,
			:started_at,
			:finished_at
		)
	`

	queryUpdateTrainingRun = `
		UPDATE training_runs
		SET
			status = :status,
			samples = :samples,
			epochs = :epochs,
			train_accuracy = :train_accuracy,
			val_accuracy = :val_accuracy,
			error_message = :error_message,
			finished_at = :finished_at
		WHERE id = :id
	`

	queryGetTrainingRunByID = `
		SELECT
			id,
			trigger_source,
			data_source,
			status,
			samples,
			epochs,
			train_accuracy,
			val_accuracy,
			error_message,
			started_at,
			finished_at
		FROM training_runs
		WHERE id = :id
	`

	queryGetTrainingRuns = `
		SELECT
			id,
			trigger_source,
			data_source,
			status,
			samples,
			epochs,
			train_accuracy,
			val_accuracy,
			error_message,
			started_at,
			finished_at
		FROM training_runs
		ORDER BY started_at DESC
	`
)
