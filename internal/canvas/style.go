package canvas

import "github.com/newwdead/bizcard-annotator/internal/block"

// Style is the visual state of one block rectangle.
type Style struct {
	Stroke      string  `json:"stroke"`
	Fill        string  `json:"fill"`
	StrokeWidth float64 `json:"stroke_width"`
	Dashed      bool    `json:"dashed,omitempty"`
	Opacity     float64 `json:"opacity"`
}

const (
	colorUnassigned = "#9e9e9e"
	colorAuto       = "#ff9800"
	colorConfirmed  = "#4caf50"
	colorManual     = "#2196f3"
	colorSelected   = "#e91e63"
)

// StyleFor derives the look of a block from its data and gesture flags.
func StyleFor(b block.Block, selected, dragging, resizing bool) Style {
	s := Style{Stroke: colorUnassigned, Fill: "transparent", StrokeWidth: 1, Opacity: 1}

	switch {
	case b.HasField() && b.AutoDetected:
		s.Stroke = colorAuto
		s.Dashed = true
	case b.HasField():
		s.Stroke = colorConfirmed
	case b.Manual:
		s.Stroke = colorManual
	}

	if selected {
		s.Stroke = colorSelected
		s.StrokeWidth = 2
		s.Fill = "rgba(233, 30, 99, 0.08)"
	}
	if dragging || resizing {
		s.Opacity = 0.6
		s.Dashed = true
	}
	return s
}
