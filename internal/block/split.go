package block

import (
	"math"
	"unicode"

	"github.com/newwdead/bizcard-annotator/internal/geometry"
)

// Axis selects the direction of a split cut.
type Axis int

const (
	// AxisX cuts with a vertical line at x = At, giving left and right halves.
	AxisX Axis = iota
	// AxisY cuts with a horizontal line at y = At, giving top and bottom halves.
	AxisY
)

// SplitPoint is an axis-aligned cut in image coordinates.
type SplitPoint struct {
	Axis Axis    `json:"axis"`
	At   float64 `json:"at"`
}

// SplitBlock replaces a block with two adjacent blocks divided at sp.
// The cut must fall strictly inside the box; otherwise, and for unknown ids,
// the receiver is returned unchanged. Both fragments get fresh ids, the first
// keeps the field assignment and the second starts unassigned.
func (d *Document) SplitBlock(id string, sp SplitPoint) *Document {
	i := d.Index(id)
	if i < 0 {
		return d
	}
	orig := d.blocks[i]
	firstBox, secondBox, ok := splitBox(orig.Box, sp)
	if !ok {
		return d
	}

	frac := (sp.At - orig.Box.X) / orig.Box.Width
	if sp.Axis == AxisY {
		frac = (sp.At - orig.Box.Y) / orig.Box.Height
	}
	head, tail := SplitText(orig.Text, frac, sp.Axis == AxisY)

	first := orig
	first.ID = newID()
	first.Box = firstBox
	first.Text = head

	second := orig
	second.ID = newID()
	second.Box = secondBox
	second.Text = tail
	second.Field = ""
	second.AutoDetected = false

	blocks := make([]Block, 0, len(d.blocks)+1)
	blocks = append(blocks, d.blocks[:i]...)
	blocks = append(blocks, first, second)
	blocks = append(blocks, d.blocks[i+1:]...)
	return d.with(blocks)
}

func splitBox(b geometry.Box, sp SplitPoint) (geometry.Box, geometry.Box, bool) {
	switch sp.Axis {
	case AxisX:
		if !(sp.At > b.X && sp.At < b.Right()) {
			return b, b, false
		}
		left := geometry.Box{X: b.X, Y: b.Y, Width: sp.At - b.X, Height: b.Height}
		right := geometry.Box{X: sp.At, Y: b.Y, Width: b.Right() - sp.At, Height: b.Height}
		return left, right, true
	case AxisY:
		if !(sp.At > b.Y && sp.At < b.Bottom()) {
			return b, b, false
		}
		top := geometry.Box{X: b.X, Y: b.Y, Width: b.Width, Height: sp.At - b.Y}
		bottom := geometry.Box{X: b.X, Y: sp.At, Width: b.Width, Height: b.Bottom() - sp.At}
		return top, bottom, true
	}
	return b, b, false
}

// SplitText divides text near the proportional rune position frac (0..1).
// It cuts at the whitespace run closest to that position and drops the run;
// preferNewline restricts the choice to runs containing a line break when
// there are any. Text without whitespace is cut at the position itself.
// head + run + tail always reproduces the input.
func SplitText(text string, frac float64, preferNewline bool) (head, tail string) {
	runes := []rune(text)
	if len(runes) == 0 {
		return "", ""
	}
	frac = math.Max(0, math.Min(1, frac))
	target := int(math.Round(frac * float64(len(runes))))

	runs := whitespaceRuns(runes)
	if preferNewline {
		var nl []span
		for _, r := range runs {
			if r.newline {
				nl = append(nl, r)
			}
		}
		if len(nl) > 0 {
			runs = nl
		}
	}

	if len(runs) == 0 {
		return string(runes[:target]), string(runes[target:])
	}

	best := runs[0]
	bestDist := best.distance(target)
	for _, r := range runs[1:] {
		if dist := r.distance(target); dist < bestDist {
			best, bestDist = r, dist
		}
	}
	return string(runes[:best.start]), string(runes[best.end:])
}

type span struct {
	start, end int
	newline    bool
}

func (s span) distance(pos int) int {
	switch {
	case pos < s.start:
		return s.start - pos
	case pos > s.end:
		return pos - s.end
	}
	return 0
}

func whitespaceRuns(runes []rune) []span {
	var runs []span
	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			i++
			continue
		}
		s := span{start: i}
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			if runes[i] == '\n' {
				s.newline = true
			}
			i++
		}
		s.end = i
		runs = append(runs, s)
	}
	return runs
}
