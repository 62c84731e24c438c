/**
 * Editing session
 *
 * Owns the one Document being edited and the interaction state, and routes
 * pointer events, edits and network operations through them. Network calls
 * run without holding the lock; their results are dropped when the document
 * was reloaded in the meantime.
 */

package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/newwdead/bizcard-annotator/internal/block"
	"github.com/newwdead/bizcard-annotator/internal/canvas"
	"github.com/newwdead/bizcard-annotator/internal/detect"
	"github.com/newwdead/bizcard-annotator/internal/errors"
	"github.com/newwdead/bizcard-annotator/internal/fields"
	"github.com/newwdead/bizcard-annotator/internal/geometry"
	"github.com/newwdead/bizcard-annotator/internal/interaction"
	"github.com/newwdead/bizcard-annotator/internal/logging"
	"github.com/newwdead/bizcard-annotator/internal/mapper"
	"github.com/newwdead/bizcard-annotator/internal/table"
)

// Loader fetches the OCR document of a contact.
type Loader interface {
	LoadDocument(ctx context.Context, contactID string) (*block.Document, error)
}

// Config holds session dependencies and layout
type Config struct {
	ContactID string
	Loader    Loader
	Mapper    *mapper.Mapper
	Detector  *detect.Detector
	Table     *table.Editor

	ContainerWidth  float64
	ContainerHeight float64
	Padding         float64
	EditMode        bool

	Logger *logging.Logger
}

// Session is safe for concurrent use.
type Session struct {
	contactID string
	loader    Loader
	mapper    *mapper.Mapper
	detector  *detect.Detector
	table     *table.Editor
	logger    *logging.Logger

	containerW, containerH, padding float64

	mu         sync.Mutex
	doc        *block.Document
	state      interaction.State
	view       canvas.View
	generation uint64
	notices    []error
}

// New creates an unloaded session. Call Open before editing.
func New(cfg *Config) (*Session, error) {
	if cfg.ContactID == "" {
		return nil, fmt.Errorf("ContactID is required")
	}
	if cfg.Loader == nil {
		return nil, fmt.Errorf("Loader is required")
	}
	if cfg.Mapper == nil {
		return nil, fmt.Errorf("Mapper is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("session")
	}
	det := cfg.Detector
	if det == nil {
		det = detect.Default()
	}
	tbl := cfg.Table
	if tbl == nil {
		tbl = table.NewEditor(nil, det, logger)
	}

	return &Session{
		contactID:  cfg.ContactID,
		loader:     cfg.Loader,
		mapper:     cfg.Mapper,
		detector:   det,
		table:      tbl,
		logger:     logger.With("contact", cfg.ContactID),
		containerW: cfg.ContainerWidth,
		containerH: cfg.ContainerHeight,
		padding:    cfg.Padding,
		state:      interaction.New(cfg.EditMode),
	}, nil
}

// Open loads the document and the field catalog concurrently. A catalog
// failure is recorded as a notice; a document failure leaves the session
// unloaded and returns a DOCUMENT_LOAD_FAILED error so the caller can retry.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	var (
		doc        *block.Document
		catalogErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.loader.LoadDocument(gctx, s.contactID)
		if err != nil {
			return errors.NewDocumentLoadError(s.contactID, err)
		}
		doc = d
		return nil
	})
	g.Go(func() error {
		_, catalogErr = s.mapper.LoadFieldCatalog(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Document load failed", "error", err)
		return err
	}

	doc, filled := s.detector.Apply(doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("Dropping stale load result", "generation", gen)
		return nil
	}
	s.install(doc)
	if catalogErr != nil {
		s.notices = append(s.notices, catalogErr)
	}
	s.logger.Info("Document opened", "blocks", doc.Len(), "auto_detected", filled)
	return nil
}

// Reload discards unsaved edits and opens the document again.
func (s *Session) Reload(ctx context.Context) error {
	return s.Open(ctx)
}

// install replaces the document and resets interaction. Caller holds mu.
func (s *Session) install(doc *block.Document) {
	s.doc = doc
	s.state = s.state.Reset()
	s.view = canvas.NewView(doc.ImageWidth(), doc.ImageHeight(), s.containerW, s.containerH, s.padding)
}

// Loaded reports whether a document is available for editing.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc != nil
}

// Document returns the current snapshot, or nil before a successful Open.
func (s *Session) Document() *block.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// State returns the interaction state.
func (s *Session) State() interaction.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Catalog returns the field catalog.
func (s *Session) Catalog() *fields.Catalog {
	return s.mapper.Catalog()
}

// Notices drains the non-fatal errors collected since the last call.
func (s *Session) Notices() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

func (s *Session) notice(err error) {
	s.mu.Lock()
	s.notices = append(s.notices, err)
	s.mu.Unlock()
}

// Frame renders the canvas.
func (s *Session) Frame() canvas.Frame {
	s.mu.Lock()
	doc, view, st := s.doc, s.view, s.state
	s.mu.Unlock()
	if doc == nil {
		return canvas.Frame{View: view}
	}
	return canvas.Render(doc, view, st, s.mapper.Catalog(), s.mapper.Language())
}

// Rows renders the table view.
func (s *Session) Rows() []table.Row {
	doc := s.Document()
	if doc == nil {
		return nil
	}
	return s.table.Rows(doc, s.mapper.Catalog(), s.mapper.Language())
}

// edit applies fn to the document under the lock. Selection entries whose
// blocks disappeared are dropped.
func (s *Session) edit(fn func(d *block.Document) *block.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return
	}
	next := fn(s.doc)
	if next == s.doc {
		return
	}
	s.doc = next
	s.state = s.state.Forget(func(id string) bool { return next.Index(id) >= 0 })
}

// SetEditMode toggles edit mode; turning it off abandons a gesture in progress.
func (s *Session) SetEditMode(on bool) {
	s.mu.Lock()
	s.state = s.state.SetEditMode(on)
	s.mu.Unlock()
}

// Select changes the selection without a pointer event, e.g. from the table.
func (s *Session) Select(id string, multi bool) {
	s.mu.Lock()
	if s.doc != nil && s.doc.Index(id) >= 0 {
		s.state = s.state.Select(id, multi)
	}
	s.mu.Unlock()
}

// PointerDown handles a press at screen position p.
func (s *Session) PointerDown(p geometry.Point, multi bool) interaction.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return interaction.Target{}
	}
	target := canvas.HitTest(s.doc, s.view, s.state, p)
	b, _ := s.doc.Block(target.BlockID)
	s.state = s.state.PointerDown(target, p, b.Box, multi)
	return target
}

// PointerMove updates an in-progress drag or resize.
func (s *Session) PointerMove(p geometry.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return
	}
	s.state = s.state.PointerMove(p, s.view.Scale, s.doc.ImageWidth(), s.doc.ImageHeight())
}

// PointerUp ends a gesture and commits the box, if it changed.
func (s *Session) PointerUp() *interaction.Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, commit := s.state.PointerUp()
	s.state = st
	if commit != nil && s.doc != nil {
		s.doc = s.doc.UpdateBox(commit.BlockID, commit.Box)
	}
	return commit
}

// AddBlock adds a manual block and selects it.
func (s *Session) AddBlock(box geometry.Box, text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ""
	}
	next, id := s.doc.AddBlock(box, text)
	s.doc = next
	if id != "" {
		s.state = s.state.Select(id, false)
	}
	return id
}

func (s *Session) RemoveBlock(id string) {
	s.edit(func(d *block.Document) *block.Document { return s.table.Delete(d, id) })
}

func (s *Session) UpdateText(id, text string) {
	s.edit(func(d *block.Document) *block.Document { return s.table.EditText(d, id, text) })
}

func (s *Session) AssignField(id, field string) {
	s.edit(func(d *block.Document) *block.Document { return s.table.AssignField(d, id, field) })
}

func (s *Session) SplitBlock(id string, sp block.SplitPoint) {
	s.edit(func(d *block.Document) *block.Document { return d.SplitBlock(id, sp) })
}

// Redetect runs the detector again on a block whose field was not chosen by
// the user, e.g. after its text was re-recognized.
func (s *Session) Redetect(id string) {
	s.edit(func(d *block.Document) *block.Document {
		b, ok := d.Block(id)
		if !ok || (b.HasField() && !b.AutoDetected) {
			return d
		}
		field := s.detector.Detect(b.Text)
		if field == b.Field {
			return d
		}
		d = d.AssignField(id, "")
		if field != "" {
			d = d.SuggestField(id, field)
		}
		return d
	})
}

func (s *Session) snapshot() (*block.Document, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, s.generation
}

// Rerecognize re-reads one block. The result is dropped after a reload, and
// reported as a failure when the block's box changed while it was pending.
func (s *Session) Rerecognize(ctx context.Context, id string) error {
	doc, gen := s.snapshot()
	if doc == nil {
		return nil
	}
	sent, _ := doc.Block(id)
	res, err := s.mapper.Recognize(ctx, doc, id)
	if err != nil {
		s.notice(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.doc == nil {
		s.logger.Debug("Dropping stale recognition result", "block", id)
		return nil
	}
	if cur, ok := s.doc.Block(id); ok && cur.Box != sent.Box {
		err := errors.NewRecognitionFailedError(s.contactID, id, fmt.Errorf("block moved while recognition was pending"))
		s.notices = append(s.notices, err)
		return err
	}
	s.doc = s.doc.ApplyRecognition(id, res.Text, res.Confidence)
	return nil
}

// Save sends the committed document. A gesture in progress is not part of it.
func (s *Session) Save(ctx context.Context) ([]string, error) {
	doc, _ := s.snapshot()
	if doc == nil {
		return nil, errors.NewSaveFailedError(s.contactID, 0, fmt.Errorf("document not loaded"))
	}
	updated, err := s.mapper.SaveMappings(ctx, doc)
	if err != nil {
		s.notice(err)
		return nil, err
	}
	return updated, nil
}

// Reprocess replaces the document with a fresh recognition from the backend.
func (s *Session) Reprocess(ctx context.Context) error {
	doc, gen := s.snapshot()
	if doc == nil {
		return nil
	}
	fresh, err := s.table.Reprocess(ctx, doc)
	if err != nil {
		s.notice(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil
	}
	s.generation++
	s.install(fresh)
	return nil
}
