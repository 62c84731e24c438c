/**
 * Block Model
 *
 * A Document is the immutable set of OCR blocks for one business-card image.
 * Every edit returns a new Document and leaves the receiver untouched, so
 * snapshots can be compared directly in tests and stale references stay valid.
 */

package block

import (
	"github.com/google/uuid"

	"github.com/newwdead/bizcard-annotator/internal/geometry"
)

// Block is one recognized text region.
type Block struct {
	ID         string       `json:"id"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        geometry.Box `json:"box"`
	// Field is the assigned catalog field name, empty when unassigned.
	Field        string `json:"field,omitempty"`
	AutoDetected bool   `json:"auto_detected"`
	Manual       bool   `json:"manual,omitempty"`
}

// HasField reports whether a field is assigned.
func (b Block) HasField() bool { return b.Field != "" }

var newID = func() string { return uuid.NewString() }

// Document is the ordered block list plus the image coordinate space.
type Document struct {
	contactID   string
	imageWidth  float64
	imageHeight float64
	imageURL    string
	blocks      []Block
}

// NewDocument builds a document from loaded blocks. Blocks without an id, or
// whose id repeats an earlier block, get a fresh one.
func NewDocument(contactID string, imageWidth, imageHeight float64, imageURL string, blocks []Block) *Document {
	seen := make(map[string]bool, len(blocks))
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		if b.ID == "" || seen[b.ID] {
			b.ID = newID()
		}
		seen[b.ID] = true
		out[i] = b
	}
	return &Document{
		contactID:   contactID,
		imageWidth:  imageWidth,
		imageHeight: imageHeight,
		imageURL:    imageURL,
		blocks:      out,
	}
}

func (d *Document) ContactID() string { return d.contactID }
func (d *Document) ImageWidth() float64 { return d.imageWidth }
func (d *Document) ImageHeight() float64 { return d.imageHeight }
func (d *Document) ImageURL() string { return d.imageURL }
func (d *Document) Len() int { return len(d.blocks) }

// Blocks returns a copy of the blocks in document order.
func (d *Document) Blocks() []Block {
	out := make([]Block, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// Index returns the position of the block with the given id, or -1.
func (d *Document) Index(id string) int {
	for i := range d.blocks {
		if d.blocks[i].ID == id {
			return i
		}
	}
	return -1
}

// Block returns the block with the given id.
func (d *Document) Block(id string) (Block, bool) {
	i := d.Index(id)
	if i < 0 {
		return Block{}, false
	}
	return d.blocks[i], true
}

func (d *Document) with(blocks []Block) *Document {
	next := *d
	next.blocks = blocks
	return &next
}

// update applies fn to a copy of the block with the given id. Unknown ids
// return the receiver unchanged.
func (d *Document) update(id string, fn func(b *Block) bool) *Document {
	i := d.Index(id)
	if i < 0 {
		return d
	}
	b := d.blocks[i]
	if !fn(&b) {
		return d
	}
	blocks := d.Blocks()
	blocks[i] = b
	return d.with(blocks)
}

// AddBlock appends a manually drawn block. The box is clamped to the image;
// a box with no area is rejected and the receiver returned with an empty id.
func (d *Document) AddBlock(box geometry.Box, text string) (*Document, string) {
	box = geometry.ClampBox(box, d.imageWidth, d.imageHeight)
	if !box.Valid() {
		return d, ""
	}
	b := Block{
		ID:     newID(),
		Text:   text,
		Box:    box,
		Manual: true,
	}
	blocks := make([]Block, len(d.blocks), len(d.blocks)+1)
	copy(blocks, d.blocks)
	return d.with(append(blocks, b)), b.ID
}

// RemoveBlock drops the block with the given id.
func (d *Document) RemoveBlock(id string) *Document {
	i := d.Index(id)
	if i < 0 {
		return d
	}
	blocks := make([]Block, 0, len(d.blocks)-1)
	blocks = append(blocks, d.blocks[:i]...)
	blocks = append(blocks, d.blocks[i+1:]...)
	return d.with(blocks)
}

// UpdateText replaces the block text.
func (d *Document) UpdateText(id, text string) *Document {
	return d.update(id, func(b *Block) bool {
		if b.Text == text {
			return false
		}
		b.Text = text
		return true
	})
}

// UpdateBox replaces the block box after clamping it to the image.
// Boxes without area are ignored.
func (d *Document) UpdateBox(id string, box geometry.Box) *Document {
	box = geometry.ClampBox(box, d.imageWidth, d.imageHeight)
	if !box.Valid() {
		return d
	}
	return d.update(id, func(b *Block) bool {
		if b.Box == box {
			return false
		}
		b.Box = box
		return true
	})
}

// AssignField records a user's field choice; an empty field clears it.
// The assignment always counts as confirmed, never auto-detected.
func (d *Document) AssignField(id, field string) *Document {
	return d.update(id, func(b *Block) bool {
		if b.Field == field && !b.AutoDetected {
			return false
		}
		b.Field = field
		b.AutoDetected = false
		return true
	})
}

// SuggestField sets an auto-detected field on a block that has none.
func (d *Document) SuggestField(id, field string) *Document {
	if field == "" {
		return d
	}
	return d.update(id, func(b *Block) bool {
		if b.HasField() {
			return false
		}
		b.Field = field
		b.AutoDetected = true
		return true
	})
}

// ApplyRecognition stores a re-recognition result for a block.
func (d *Document) ApplyRecognition(id, text string, confidence float64) *Document {
	return d.update(id, func(b *Block) bool {
		b.Text = text
		b.Confidence = clampConfidence(confidence)
		return true
	})
}

func clampConfidence(c float64) float64 {
	if c < 0 || c != c {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
