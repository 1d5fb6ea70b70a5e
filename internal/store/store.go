// Package store persists labeled training samples in Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/trafficguard/botscore/internal/models"
)

type Store struct {
	db *sqlx.DB
}

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

func New(cfg Config) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendSample records one labeled observation. Features arrive as the
// JSON-encoded name→value map produced at scoring time.
func (s *Store) AppendSample(ctx context.Context, sample *models.TrainingSample) error {
	query := `
		INSERT INTO ml_training_samples (id, visitor_fingerprint, features, label, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		sample.ID, sample.Fingerprint, sample.Features,
		sample.Label, sample.Confidence, sample.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting training sample: %w", err)
	}
	return nil
}

// CountSamplesSince returns how many samples arrived within the window.
func (s *Store) CountSamplesSince(ctx context.Context, window time.Duration) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM ml_training_samples WHERE created_at > $1`

	err := s.db.GetContext(ctx, &count, query, time.Now().UTC().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("counting training samples: %w", err)
	}
	return count, nil
}

// LoadSamplesSince returns up to limit samples from the window, newest
// first.
func (s *Store) LoadSamplesSince(ctx context.Context, window time.Duration, limit int) ([]models.TrainingSample, error) {
	query := `
		SELECT id, visitor_fingerprint, features, label, confidence, created_at
		FROM ml_training_samples
		WHERE created_at > $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var samples []models.TrainingSample
	err := s.db.SelectContext(ctx, &samples, query, time.Now().UTC().Add(-window), limit)
	if err != nil {
		return nil, fmt.Errorf("loading training samples: %w", err)
	}
	return samples, nil
}
