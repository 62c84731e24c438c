/**
 * Field Mapper
 *
 * Pairs a Document with the field catalog and talks to the backend on the
 * editor's behalf: catalog load, single-block re-recognition and the batch
 * save of all mappings. Feedback for the self-learning collector is sent
 * after a successful save and never affects the save result.
 */

package mapper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newwdead/bizcard-annotator/internal/block"
	"github.com/newwdead/bizcard-annotator/internal/errors"
	"github.com/newwdead/bizcard-annotator/internal/fields"
	"github.com/newwdead/bizcard-annotator/internal/geometry"
	"github.com/newwdead/bizcard-annotator/internal/logging"
)

// Backend is the persistence side of the OCR editor API.
type Backend interface {
	FieldCatalog(ctx context.Context) ([]fields.Field, error)
	SaveMappings(ctx context.Context, req *SaveRequest) ([]string, error)
}

// Recognizer re-runs OCR on a single region of the source image.
type Recognizer interface {
	Recognize(ctx context.Context, req *RecognizeRequest) (*RecognizeResult, error)
}

// FeedbackSink receives corrected documents for future training.
type FeedbackSink interface {
	Submit(ctx context.Context, fb *Feedback) error
}

// RecognizeRequest identifies the region to re-read.
type RecognizeRequest struct {
	ContactID  string       `json:"-"`
	ImageURL   string       `json:"-"`
	Box        geometry.Box `json:"box"`
	BlockIndex int          `json:"block_index"`
}

// RecognizeResult is the new text for a region.
type RecognizeResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// SaveRequest carries the full block list of a document.
type SaveRequest struct {
	ContactID string
	Blocks    []block.Block
	// Fields is the derived contact update: field name to text, for
	// blocks that have a field.
	Fields map[string]string
}

// Feedback is the payload for the self-learning collector.
type Feedback struct {
	ContactID   string        `json:"contact_id"`
	ImageWidth  float64       `json:"image_width"`
	ImageHeight float64       `json:"image_height"`
	Blocks      []block.Block `json:"blocks"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// Config holds mapper dependencies
type Config struct {
	Backend    Backend
	Recognizer Recognizer
	// Feedback is optional; nil disables feedback submission.
	Feedback        FeedbackSink
	FeedbackTimeout time.Duration
	Language        string
	Logger          *logging.Logger
}

// Mapper is safe for concurrent use.
type Mapper struct {
	backend         Backend
	recognizer      Recognizer
	feedback        FeedbackSink
	feedbackTimeout time.Duration
	language        string
	logger          *logging.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	catalog *fields.Catalog

	inflight sync.WaitGroup
}

// New creates a mapper. The catalog is pending until LoadFieldCatalog runs.
func New(cfg *Config) (*Mapper, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("Backend is required")
	}
	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("Recognizer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("mapper")
	}
	timeout := cfg.FeedbackTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Mapper{
		backend:         cfg.Backend,
		recognizer:      cfg.Recognizer,
		feedback:        cfg.Feedback,
		feedbackTimeout: timeout,
		language:        cfg.Language,
		logger:          logger,
		pending:         make(map[string]struct{}),
		catalog:         fields.Pending(),
	}, nil
}

// Catalog returns the current catalog.
func (m *Mapper) Catalog() *fields.Catalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog
}

// Language is the label language used for display.
func (m *Mapper) Language() string { return m.language }

// LoadFieldCatalog fetches the assignable fields. On failure the catalog is
// replaced by an unavailable one and a non-fatal error is returned.
func (m *Mapper) LoadFieldCatalog(ctx context.Context) (*fields.Catalog, error) {
	list, err := m.backend.FieldCatalog(ctx)
	if err != nil {
		cat := fields.Unavailable()
		m.mu.Lock()
		m.catalog = cat
		m.mu.Unlock()
		m.logger.Warn("Field catalog unavailable", "error", err)
		return cat, errors.NewCatalogUnavailableError(err)
	}

	cat := fields.NewCatalog(list)
	m.mu.Lock()
	m.catalog = cat
	m.mu.Unlock()
	m.logger.Debug("Field catalog loaded", "fields", cat.Len())
	return cat, nil
}

// Pending reports whether a re-recognition for id is in flight.
func (m *Mapper) Pending(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[id]
	return ok
}

func (m *Mapper) acquire(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.pending[id]; busy {
		return false
	}
	m.pending[id] = struct{}{}
	return true
}

func (m *Mapper) release(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// Recognize re-reads the current box of block id. Only one request per block
// may be in flight; a second call returns a RECOGNITION_PENDING error.
func (m *Mapper) Recognize(ctx context.Context, doc *block.Document, id string) (*RecognizeResult, error) {
	idx := doc.Index(id)
	if idx < 0 {
		return nil, errors.NewRecognitionFailedError(doc.ContactID(), id, fmt.Errorf("block not found"))
	}
	if !m.acquire(id) {
		return nil, errors.NewRecognitionPendingError(doc.ContactID(), id)
	}
	defer m.release(id)

	b, _ := doc.Block(id)
	start := time.Now()
	res, err := m.recognizer.Recognize(ctx, &RecognizeRequest{
		ContactID:  doc.ContactID(),
		ImageURL:   doc.ImageURL(),
		Box:        b.Box,
		BlockIndex: idx,
	})
	if err != nil {
		m.logger.Warn("Re-recognition failed", "contact", doc.ContactID(), "block", id, "error", err)
		return nil, errors.NewRecognitionFailedError(doc.ContactID(), id, err)
	}

	m.logger.Debug("Block re-recognized", "contact", doc.ContactID(), "block", id,
		"confidence", fmt.Sprintf("%.2f", res.Confidence), "duration", time.Since(start))
	return res, nil
}

// Rerecognize is Recognize applied to doc. On failure doc is returned as is.
func (m *Mapper) Rerecognize(ctx context.Context, doc *block.Document, id string) (*block.Document, error) {
	res, err := m.Recognize(ctx, doc, id)
	if err != nil {
		return doc, err
	}
	return doc.ApplyRecognition(id, res.Text, res.Confidence), nil
}

// SaveMappings sends every block of doc in one request and returns the
// sorted, de-duplicated names of the contact fields the backend updated.
// The document itself is never modified, so a failed save can be retried.
func (m *Mapper) SaveMappings(ctx context.Context, doc *block.Document) ([]string, error) {
	blocks := doc.Blocks()
	updated, err := m.backend.SaveMappings(ctx, &SaveRequest{
		ContactID: doc.ContactID(),
		Blocks:    blocks,
		Fields:    FieldUpdates(blocks),
	})
	if err != nil {
		m.logger.Error("Save failed", "contact", doc.ContactID(), "blocks", len(blocks), "error", err)
		return nil, errors.NewSaveFailedError(doc.ContactID(), len(blocks), err)
	}

	updated = normalizeFields(updated)
	m.logger.Info("Mappings saved", "contact", doc.ContactID(), "blocks", len(blocks), "updated", len(updated))

	m.submitFeedback(doc, blocks)
	return updated, nil
}

// submitFeedback runs in the background on its own context so a cancelled
// save context or a slow collector never reaches the caller.
func (m *Mapper) submitFeedback(doc *block.Document, blocks []block.Block) {
	if m.feedback == nil {
		return
	}
	fb := &Feedback{
		ContactID:   doc.ContactID(),
		ImageWidth:  doc.ImageWidth(),
		ImageHeight: doc.ImageHeight(),
		Blocks:      blocks,
		SubmittedAt: time.Now(),
	}

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.feedbackTimeout)
		defer cancel()

		if err := m.feedback.Submit(ctx, fb); err != nil {
			m.logger.Warn("Feedback submission failed", "contact", fb.ContactID,
				"error", errors.NewFeedbackFailedError(fb.ContactID, err))
			return
		}
		m.logger.Debug("Feedback submitted", "contact", fb.ContactID, "blocks", len(fb.Blocks))
	}()
}

// Wait blocks until background feedback submissions finish.
func (m *Mapper) Wait() {
	m.inflight.Wait()
}

// FieldUpdates derives the contact update from blocks. Blocks without a
// field are skipped; several blocks mapped to one field are joined with a
// space in document order.
func FieldUpdates(blocks []block.Block) map[string]string {
	out := make(map[string]string)
	for _, b := range blocks {
		if !b.HasField() {
			continue
		}
		if prev, ok := out[b.Field]; ok && prev != "" {
			if b.Text != "" {
				out[b.Field] = prev + " " + b.Text
			}
			continue
		}
		out[b.Field] = b.Text
	}
	return out
}

func normalizeFields(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
