/**
 * Annotation Surface
 *
 * Projects a Document and the interaction state onto screen rectangles and
 * resolves pointer positions back to blocks and resize handles. The surface
 * keeps no state of its own: every frame is rebuilt from its inputs.
 */

package canvas

import (
	"github.com/newwdead/bizcard-annotator/internal/block"
	"github.com/newwdead/bizcard-annotator/internal/fields"
	"github.com/newwdead/bizcard-annotator/internal/geometry"
	"github.com/newwdead/bizcard-annotator/internal/interaction"
)

// HandleSize is the side of a square resize handle, in screen pixels.
const HandleSize = 8.0

// View places the image inside a container.
type View struct {
	Scale  float64        `json:"scale"`
	Origin geometry.Point `json:"origin"`
}

// NewView fits the image into the container and centers it.
func NewView(imageW, imageH, containerW, containerH, padding float64) View {
	scale := geometry.FitScale(imageW, imageH, containerW, containerH, padding)
	origin := geometry.Point{}
	if containerW > 0 && imageW > 0 {
		origin.X = (containerW - imageW*scale) / 2
	}
	if containerH > 0 && imageH > 0 {
		origin.Y = (containerH - imageH*scale) / 2
	}
	return View{Scale: scale, Origin: origin}
}

// ToScreen converts an image-space box to screen space.
func (v View) ToScreen(b geometry.Box) geometry.Box {
	p := geometry.ImageToScreen(geometry.Point{X: b.X, Y: b.Y}, v.Origin, v.Scale)
	return geometry.Box{X: p.X, Y: p.Y, Width: b.Width * v.Scale, Height: b.Height * v.Scale}
}

// ToImage converts a screen point to image space.
func (v View) ToImage(p geometry.Point) geometry.Point {
	return geometry.ScreenToImage(p, v.Origin, v.Scale)
}

// Handle is one resize handle in screen space.
type Handle struct {
	Corner geometry.Corner `json:"corner"`
	Box    geometry.Box    `json:"box"`
}

// Rect is one rendered block.
type Rect struct {
	BlockID string       `json:"block_id"`
	Screen  geometry.Box `json:"screen"`
	Style   Style        `json:"style"`
	Label   string       `json:"label,omitempty"`
	// UnknownField marks a field value absent from a loaded catalog. The raw
	// value is shown as the label.
	UnknownField bool     `json:"unknown_field,omitempty"`
	Handles      []Handle `json:"handles,omitempty"`
}

// Frame is a rendered surface.
type Frame struct {
	View  View   `json:"view"`
	Rects []Rect `json:"rects"`
	// CatalogUnavailable is set when field labels are raw identifiers
	// because the catalog failed to load.
	CatalogUnavailable bool `json:"catalog_unavailable,omitempty"`
}

// Render draws one rectangle per block in document order. While a block is
// being dragged or resized its preview box is drawn instead of the stored one.
// Handles appear only on the selected block, and only in edit mode.
func Render(doc *block.Document, view View, st interaction.State, catalog *fields.Catalog, lang string) Frame {
	frame := Frame{
		View:               view,
		Rects:              make([]Rect, 0, doc.Len()),
		CatalogUnavailable: !catalog.Available(),
	}
	primary := st.Primary()

	for _, b := range doc.Blocks() {
		box := b.Box
		if st.Busy() && st.ActiveID == b.ID {
			box = st.Preview
		}
		selected := st.IsSelected(b.ID)
		r := Rect{
			BlockID: b.ID,
			Screen:  view.ToScreen(box),
			Style:   StyleFor(b, selected, st.IsDragging(b.ID), st.IsResizing(b.ID)),
		}
		if b.HasField() {
			r.Label = catalog.Label(b.Field, lang)
			r.UnknownField = catalog.Loaded() && !catalog.Contains(b.Field)
		}
		if st.EditMode && primary == b.ID {
			r.Handles = handles(r.Screen)
		}
		frame.Rects = append(frame.Rects, r)
	}
	return frame
}

func handles(screen geometry.Box) []Handle {
	out := make([]Handle, 0, len(geometry.Corners))
	for _, c := range geometry.Corners {
		p := screen.Corner(c)
		out = append(out, Handle{
			Corner: c,
			Box: geometry.Box{
				X:      p.X - HandleSize/2,
				Y:      p.Y - HandleSize/2,
				Width:  HandleSize,
				Height: HandleSize,
			},
		})
	}
	return out
}

// HitTest resolves a screen point. Handles of the selected block win over
// block bodies; among overlapping bodies the last drawn (topmost) wins.
// An empty Target means the press hit no block.
func HitTest(doc *block.Document, view View, st interaction.State, p geometry.Point) interaction.Target {
	if st.EditMode {
		if id := st.Primary(); id != "" {
			if b, ok := doc.Block(id); ok {
				for _, h := range handles(view.ToScreen(b.Box)) {
					if h.Box.Contains(p) {
						return interaction.Target{BlockID: id, Handle: true, Corner: h.Corner}
					}
				}
			}
		}
	}

	ip := view.ToImage(p)
	blocks := doc.Blocks()
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Box.Contains(ip) {
			return interaction.Target{BlockID: blocks[i].ID}
		}
	}
	return interaction.Target{}
}
