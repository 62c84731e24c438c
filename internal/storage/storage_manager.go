/**
 * Storage Manager for the feedback worker
 *
 * Coordinates storage of corrected documents across PostgreSQL (samples) and
 * Qdrant (per-block shape vectors). Vectors are written first and removed
 * again when the sample cannot be stored.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/newwdead/bizcard-annotator/internal/block"
)

// Payload keys of block vectors
const (
	keyContactID    = "contact_id"
	keySubmissionID = "submission_id"
	keyField        = "field"
	keyText         = "text"
	keyAutoDetected = "auto_detected"
	keyConfidence   = "confidence"
	keyCreatedAt    = "created_at"
)

// Vectorizer maps block text to a fixed-size vector
type Vectorizer func(text string) []float32

type sampleStore interface {
	UpsertSample(ctx context.Context, s *Sample) (string, bool, error)
	Ping(ctx context.Context) error
	GetStats() sql.DBStats
	Close() error
}

type vectorStore interface {
	UpsertVectors(ctx context.Context, points []*VectorPoint) error
	SearchVectors(ctx context.Context, queryVector []float32, limit int) ([]*VectorPoint, error)
	DeleteVectors(ctx context.Context, ids []string) error
	DeleteByKeyword(ctx context.Context, key, value, keepKey, keepValue string) error
	GetCollectionInfo(ctx context.Context) (map[string]interface{}, error)
	Close() error
}

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	samples    sampleStore
	vectors    vectorStore
	vectorize  Vectorizer
	neighbours int
}

// ManagerConfig holds storage manager configuration
type ManagerConfig struct {
	DatabaseURL      string
	QdrantURL        string
	QdrantCollection string
	Dims             int
	Vectorize        Vectorizer
	// Neighbours is how many stored blocks are consulted per new block
	// when measuring agreement. Default 3.
	Neighbours int
}

// FeedbackInput is one corrected document
type FeedbackInput struct {
	ContactID   string
	ImageWidth  float64
	ImageHeight float64
	Blocks      []block.Block
	SubmittedAt time.Time
}

// StoredFeedback describes what StoreFeedback wrote
type StoredFeedback struct {
	SampleID     string
	SubmissionID string
	Inserted     bool
	PointIDs     []string
	// FieldCounts is the number of mapped blocks per field.
	FieldCounts map[string]int
	// Confirmed counts mapped blocks whose field was chosen by the user.
	Confirmed int
	// Agreed of Compared blocks had the same field as the weighted vote of
	// their nearest stored neighbours from other contacts.
	Agreed   int
	Compared int
}

// NewStorageManager creates a new storage manager
func NewStorageManager(cfg *ManagerConfig) (*StorageManager, error) {
	if cfg.Vectorize == nil {
		return nil, fmt.Errorf("Vectorize is required")
	}

	postgres, err := NewPostgresClient(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	qdrant, err := NewQdrantClient(cfg.QdrantURL, cfg.QdrantCollection, cfg.Dims)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
	}

	return newManager(postgres, qdrant, cfg.Vectorize, cfg.Neighbours), nil
}

func newManager(samples sampleStore, vectors vectorStore, vectorize Vectorizer, neighbours int) *StorageManager {
	if neighbours <= 0 {
		neighbours = 3
	}
	return &StorageManager{
		samples:    samples,
		vectors:    vectors,
		vectorize:  vectorize,
		neighbours: neighbours,
	}
}

// StoreFeedback stores the sample of a contact and the vectors of its mapped
// blocks. Vectors of an earlier submission for the same contact are dropped
// once the new sample is stored.
func (sm *StorageManager) StoreFeedback(ctx context.Context, in *FeedbackInput) (*StoredFeedback, error) {
	if in == nil {
		return nil, fmt.Errorf("input is required")
	}
	if in.ContactID == "" {
		return nil, fmt.Errorf("contact ID is required")
	}

	out := &StoredFeedback{
		SubmissionID: uuid.New().String(),
		FieldCounts:  make(map[string]int),
	}
	now := time.Now().Unix()

	// Step 1: build points and compare with what is already stored
	var points []*VectorPoint
	for _, b := range in.Blocks {
		if !b.HasField() {
			continue
		}
		out.FieldCounts[b.Field]++
		if !b.AutoDetected {
			out.Confirmed++
		}

		vector := sm.vectorize(b.Text)
		if similar, err := sm.vectors.SearchVectors(ctx, vector, sm.neighbours); err == nil {
			if field, ok := vote(similar, in.ContactID); ok {
				out.Compared++
				if field == b.Field {
					out.Agreed++
				}
			}
		}

		points = append(points, &VectorPoint{
			ID:     uuid.New().String(),
			Vector: vector,
			Metadata: map[string]interface{}{
				keyContactID:    in.ContactID,
				keySubmissionID: out.SubmissionID,
				keyField:        b.Field,
				keyText:         b.Text,
				keyAutoDetected: b.AutoDetected,
				keyConfidence:   sanitizeConfidence(b.Confidence),
				keyCreatedAt:    now,
			},
		})
	}

	// Step 2: vectors first
	if err := sm.vectors.UpsertVectors(ctx, points); err != nil {
		return nil, fmt.Errorf("failed to store vectors in Qdrant: %w", err)
	}
	for _, p := range points {
		out.PointIDs = append(out.PointIDs, p.ID)
	}

	// Step 3: sample
	sampleID, inserted, err := sm.samples.UpsertSample(ctx, &Sample{
		ID:              uuid.New().String(),
		ContactID:       in.ContactID,
		ImageWidth:      in.ImageWidth,
		ImageHeight:     in.ImageHeight,
		Blocks:          in.Blocks,
		ConfirmedFields: confirmedFields(in.Blocks),
		MeanConfidence:  meanConfidence(in.Blocks),
		SubmittedAt:     in.SubmittedAt,
	})
	if err != nil {
		// Rollback: delete the new points
		sm.vectors.DeleteVectors(ctx, out.PointIDs)
		return nil, fmt.Errorf("failed to store sample in PostgreSQL: %w", err)
	}
	out.SampleID = sampleID
	out.Inserted = inserted

	// Step 4: drop vectors of the previous submission
	if !inserted {
		if err := sm.vectors.DeleteByKeyword(ctx, keyContactID, in.ContactID, keySubmissionID, out.SubmissionID); err != nil {
			return out, fmt.Errorf("failed to drop previous vectors: %w", err)
		}
	}

	return out, nil
}

// HealthCheck verifies that both stores are reachable
func (sm *StorageManager) HealthCheck(ctx context.Context) error {
	if err := sm.samples.Ping(ctx); err != nil {
		return fmt.Errorf("PostgreSQL health check failed: %w", err)
	}
	if _, err := sm.vectors.GetCollectionInfo(ctx); err != nil {
		return fmt.Errorf("Qdrant health check failed: %w", err)
	}
	return nil
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.samples.GetStats()

	qdrantStats, err := sm.vectors.GetCollectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
	}

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
		"qdrant": qdrantStats,
	}, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.samples != nil {
		pgErr = sm.samples.Close()
	}

	if sm.vectors != nil {
		qdErr = sm.vectors.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}

	return nil
}

// vote returns the field with the highest summed score among neighbours
// from other contacts. Ties go to the alphabetically first field.
func vote(neighbours []*VectorPoint, contactID string) (string, bool) {
	scores := make(map[string]float32)
	for _, p := range neighbours {
		if c, _ := p.Metadata[keyContactID].(string); c == contactID {
			continue
		}
		field, _ := p.Metadata[keyField].(string)
		if field == "" {
			continue
		}
		scores[field] += p.Score
	}
	if len(scores) == 0 {
		return "", false
	}

	fields := make([]string, 0, len(scores))
	for f := range scores {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	best := fields[0]
	for _, f := range fields[1:] {
		if scores[f] > scores[best] {
			best = f
		}
	}
	return best, true
}

// confirmedFields lists the distinct fields chosen by the user, sorted
func confirmedFields(blocks []block.Block) []string {
	seen := make(map[string]struct{})
	for _, b := range blocks {
		if b.HasField() && !b.AutoDetected {
			seen[b.Field] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func meanConfidence(blocks []block.Block) float64 {
	if len(blocks) == 0 {
		return 0
	}
	var sum float64
	for _, b := range blocks {
		sum += b.Confidence
	}
	return sum / float64(len(blocks))
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres removes escape sequences JSONB rejects: \u0000 is
// dropped, other control characters become a space.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
