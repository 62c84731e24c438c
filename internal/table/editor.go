/**
 * Table editor
 *
 * List view over the same Document the canvas edits: inline text, field
 * dropdown, delete and a full reprocess. It has no geometry of its own; the
 * box overlay it offers is read-only.
 */

package table

import (
	"context"
	"fmt"

	"github.com/newwdead/bizcard-annotator/internal/block"
	"github.com/newwdead/bizcard-annotator/internal/canvas"
	"github.com/newwdead/bizcard-annotator/internal/detect"
	"github.com/newwdead/bizcard-annotator/internal/errors"
	"github.com/newwdead/bizcard-annotator/internal/fields"
	"github.com/newwdead/bizcard-annotator/internal/interaction"
	"github.com/newwdead/bizcard-annotator/internal/logging"
)

// Reprocessor runs OCR again for a contact and returns the fresh document.
type Reprocessor interface {
	Reprocess(ctx context.Context, contactID string) (*block.Document, error)
}

// Row is one table line.
type Row struct {
	Index        int     `json:"index"`
	BlockID      string  `json:"block_id"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	Field        string  `json:"field,omitempty"`
	FieldLabel   string  `json:"field_label,omitempty"`
	AutoDetected bool    `json:"auto_detected"`
	UnknownField bool    `json:"unknown_field,omitempty"`
}

// Option is one entry of the field dropdown.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Editor is the table view. It is stateless apart from its collaborators.
type Editor struct {
	backend  Reprocessor
	detector *detect.Detector
	logger   *logging.Logger
}

// NewEditor creates a table editor. detector may be nil to skip
// auto-detection after a reprocess.
func NewEditor(backend Reprocessor, detector *detect.Detector, logger *logging.Logger) *Editor {
	if logger == nil {
		logger = logging.NewLogger("table")
	}
	return &Editor{backend: backend, detector: detector, logger: logger}
}

// Rows lists the blocks in document order with display labels.
func (e *Editor) Rows(doc *block.Document, catalog *fields.Catalog, lang string) []Row {
	blocks := doc.Blocks()
	rows := make([]Row, len(blocks))
	for i, b := range blocks {
		rows[i] = Row{
			Index:        i,
			BlockID:      b.ID,
			Text:         b.Text,
			Confidence:   b.Confidence,
			Field:        b.Field,
			AutoDetected: b.AutoDetected,
		}
		if b.HasField() {
			rows[i].FieldLabel = catalog.Label(b.Field, lang)
			rows[i].UnknownField = catalog.Loaded() && !catalog.Contains(b.Field)
		}
	}
	return rows
}

// Options builds the field dropdown: an empty choice followed by the
// catalog in order.
func (e *Editor) Options(catalog *fields.Catalog, lang string) []Option {
	opts := []Option{{Value: "", Label: "—"}}
	for _, f := range catalog.Fields() {
		opts = append(opts, Option{Value: f.Name, Label: catalog.Label(f.Name, lang)})
	}
	return opts
}

// EditText changes the text of one block.
func (e *Editor) EditText(doc *block.Document, id, text string) *block.Document {
	return doc.UpdateText(id, text)
}

// AssignField sets or clears the field of one block as a user choice.
func (e *Editor) AssignField(doc *block.Document, id, field string) *block.Document {
	return doc.AssignField(id, field)
}

// Delete removes one block.
func (e *Editor) Delete(doc *block.Document, id string) *block.Document {
	return doc.RemoveBlock(id)
}

// Reprocess discards doc and asks the backend for a new recognition of the
// same contact. Unset fields of the result are filled by the detector.
func (e *Editor) Reprocess(ctx context.Context, doc *block.Document) (*block.Document, error) {
	if e.backend == nil {
		return nil, errors.NewReprocessFailedError(doc.ContactID(), fmt.Errorf("no reprocess backend configured"))
	}
	fresh, err := e.backend.Reprocess(ctx, doc.ContactID())
	if err != nil {
		e.logger.Error("Reprocess failed", "contact", doc.ContactID(), "error", err)
		return nil, errors.NewReprocessFailedError(doc.ContactID(), err)
	}
	if e.detector != nil {
		var filled int
		fresh, filled = e.detector.Apply(fresh)
		e.logger.Info("Reprocessed", "contact", doc.ContactID(), "blocks", fresh.Len(), "auto_detected", filled)
	}
	return fresh, nil
}

// Overlay renders the boxes for cross-reference. Edit mode is forced off,
// so no handles are drawn; highlight marks the row under the cursor.
func (e *Editor) Overlay(doc *block.Document, view canvas.View, highlight string, catalog *fields.Catalog, lang string) canvas.Frame {
	st := interaction.New(false)
	if highlight != "" {
		st = st.Select(highlight, false)
	}
	return canvas.Render(doc, view, st, catalog, lang)
}
