package postgres

import (
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func New() (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		getEnv("DB_NAME", "ecosnap"),
		getEnv("DB_SSLMODE", "disable"),
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

const schema = `
CREATE TABLE IF NOT EXISTS waste_detections (
	id          VARCHAR(26) PRIMARY KEY,
	source      VARCHAR(16) NOT NULL,
	image_ref   TEXT        NOT NULL DEFAULT '',
	waste_type  VARCHAR(32) NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	risk_level  VARCHAR(16) NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_waste_detections_created_at
	ON waste_detections (created_at DESC);

CREATE TABLE IF NOT EXISTS training_runs (
	id             VARCHAR(26) PRIMARY KEY,
	trigger_source VARCHAR(16) NOT NULL,
	data_source    VARCHAR(32) NOT NULL DEFAULT '',
	status         VARCHAR(16) NOT NULL,
	samples        INTEGER     NOT NULL DEFAULT 0,
	epochs         INTEGER     NOT NULL DEFAULT 0,
	train_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
	val_accuracy   DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_message  TEXT        NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ
);
`

func migrate(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	return err
}
