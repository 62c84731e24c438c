/**
 * PostgreSQL Client for the feedback worker
 *
 * Persists corrected OCR documents (one sample per contact) for later training.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/newwdead/bizcard-annotator/internal/block"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// Sample is one corrected document as stored in ocr.feedback_samples
type Sample struct {
	ID              string
	ContactID       string
	ImageWidth      float64
	ImageHeight     float64
	Blocks          []block.Block
	ConfirmedFields []string
	MeanConfidence  float64
	SubmittedAt     time.Time
}

// sanitizeConfidence rounds confidence to 4 decimal places and clamps it to
// [0, 1] so it fits the NUMERIC(5,4) column.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpsertSample stores s, replacing the previous sample of the same contact.
// It returns the stored row id and whether the row is new.
func (p *PostgresClient) UpsertSample(ctx context.Context, s *Sample) (string, bool, error) {
	if s.ID == "" {
		return "", false, fmt.Errorf("sample ID is required")
	}
	if s.ContactID == "" {
		return "", false, fmt.Errorf("contact ID is required")
	}

	blocksJSON, err := json.Marshal(sanitizeBlocks(s.Blocks))
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal blocks: %w", err)
	}
	blocksJSON = sanitizeJSONForPostgres(blocksJSON)

	submittedAt := s.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	query := `
		INSERT INTO ocr.feedback_samples (
			id, contact_id, image_width, image_height,
			blocks, confirmed_fields, mean_confidence,
			submitted_at, created_at, updated_at
		) VALUES (
			$1::uuid, $2, $3, $4,
			$5::jsonb, $6, $7::NUMERIC(5,4),
			$8, NOW(), NOW()
		)
		ON CONFLICT (contact_id) DO UPDATE SET
			image_width = EXCLUDED.image_width,
			image_height = EXCLUDED.image_height,
			blocks = EXCLUDED.blocks,
			confirmed_fields = EXCLUDED.confirmed_fields,
			mean_confidence = EXCLUDED.mean_confidence,
			submitted_at = EXCLUDED.submitted_at,
			updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted
	`

	var (
		returnedID string
		inserted   bool
	)
	err = p.db.QueryRowContext(
		ctx,
		query,
		s.ID,                                 // $1
		s.ContactID,                          // $2
		s.ImageWidth,                         // $3
		s.ImageHeight,                        // $4
		blocksJSON,                           // $5
		pq.Array(s.ConfirmedFields),          // $6
		sanitizeConfidence(s.MeanConfidence), // $7
		submittedAt,                          // $8
	).Scan(&returnedID, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("failed to store feedback sample (contact=%s, blocks=%d): %w",
			s.ContactID, len(s.Blocks), err)
	}

	return returnedID, inserted, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}

func sanitizeBlocks(blocks []block.Block) []block.Block {
	out := make([]block.Block, len(blocks))
	for i, b := range blocks {
		b.Confidence = sanitizeConfidence(b.Confidence)
		out[i] = b
	}
	return out
}
