package clients

import (
	"github.com/newwdead/bizcard-annotator/internal/block"
	"github.com/newwdead/bizcard-annotator/internal/geometry"
)

// wireBlock is a block as the backend sends and accepts it. Field is null
// when unassigned.
type wireBlock struct {
	ID           string       `json:"id,omitempty"`
	Text         string       `json:"text"`
	Confidence   float64      `json:"confidence"`
	Box          geometry.Box `json:"box"`
	Field        *string      `json:"field"`
	AutoDetected bool         `json:"auto_detected,omitempty"`
	Manual       bool         `json:"manual,omitempty"`
}

// DocumentResponse is the OCR blocks payload for one contact.
type DocumentResponse struct {
	Lines       []wireBlock `json:"lines"`
	ImageWidth  float64     `json:"image_width"`
	ImageHeight float64     `json:"image_height"`
	ImageURL    string      `json:"image_url,omitempty"`
}

type saveMappingsRequest struct {
	Blocks []wireBlock       `json:"blocks"`
	Fields map[string]string `json:"fields,omitempty"`
}

type saveMappingsResponse struct {
	UpdatedFields []string `json:"updated_fields"`
}

type feedbackRequest struct {
	ContactID   string      `json:"contact_id"`
	Blocks      []wireBlock `json:"blocks"`
	ImageWidth  float64     `json:"image_width"`
	ImageHeight float64     `json:"image_height"`
	SubmittedAt string      `json:"submitted_at,omitempty"`
}

func toWire(blocks []block.Block) []wireBlock {
	out := make([]wireBlock, len(blocks))
	for i, b := range blocks {
		w := wireBlock{
			ID:           b.ID,
			Text:         b.Text,
			Confidence:   b.Confidence,
			Box:          b.Box,
			AutoDetected: b.AutoDetected,
			Manual:       b.Manual,
		}
		if b.HasField() {
			field := b.Field
			w.Field = &field
		}
		out[i] = w
	}
	return out
}

func fromWire(lines []wireBlock) []block.Block {
	out := make([]block.Block, len(lines))
	for i, w := range lines {
		b := block.Block{
			ID:           w.ID,
			Text:         w.Text,
			Confidence:   w.Confidence,
			Box:          w.Box,
			AutoDetected: w.AutoDetected,
			Manual:       w.Manual,
		}
		if w.Field != nil {
			b.Field = *w.Field
		}
		out[i] = b
	}
	return out
}

// ToDocument builds the in-memory document for contactID.
func (r *DocumentResponse) ToDocument(contactID string) *block.Document {
	return block.NewDocument(contactID, r.ImageWidth, r.ImageHeight, r.ImageURL, fromWire(r.Lines))
}
