/**
 * Interaction Controller
 *
 * Pointer-driven selection, drag and corner-resize as a state machine with
 * pure transitions. Every method takes a State value and returns the next
 * one; nothing is shared between old and new states.
 *
 *   Idle --down on block (edit mode)--> Dragging --up--> Idle (commit)
 *   Idle --down on handle (edit mode)--> Resizing --up--> Idle (commit)
 *   any --edit mode off--> Idle (gesture abandoned)
 */

package interaction

import (
	"math"
	"sort"

	"github.com/newwdead/bizcard-annotator/internal/geometry"
)

// Mode is the controller state.
type Mode int

const (
	Idle Mode = iota
	Dragging
	Resizing
)

func (m Mode) String() string {
	switch m {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	}
	return "idle"
}

// MinSize is the smallest width or height a resize may produce, in image pixels.
const MinSize = 1.0

// Anchor records where a gesture started.
type Anchor struct {
	Pointer geometry.Point
	Box     geometry.Box
}

// Target is what a pointer-down landed on.
type Target struct {
	BlockID string
	// Handle is set when a resize handle of BlockID was hit.
	Handle bool
	Corner geometry.Corner
}

// Commit is the box to write back when a gesture ends.
type Commit struct {
	BlockID string
	Box     geometry.Box
}

// State is the full interaction session state.
type State struct {
	selected map[string]struct{}
	Mode     Mode
	ActiveID string
	Corner   geometry.Corner
	Anchor   Anchor
	// Preview is the in-progress box of the active block.
	Preview  geometry.Box
	EditMode bool
}

// New returns an idle state with nothing selected.
func New(editMode bool) State {
	return State{EditMode: editMode}
}

// Selected returns the selected ids in sorted order.
func (s State) Selected() []string {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsSelected reports whether id is selected.
func (s State) IsSelected(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// Primary returns the single selected id, or "" if zero or several are selected.
func (s State) Primary() string {
	if len(s.selected) != 1 {
		return ""
	}
	for id := range s.selected {
		return id
	}
	return ""
}

// Busy reports whether a drag or resize is in progress.
func (s State) Busy() bool { return s.Mode != Idle }

// IsDragging reports whether id is being dragged.
func (s State) IsDragging(id string) bool { return s.Mode == Dragging && s.ActiveID == id }

// IsResizing reports whether id is being resized.
func (s State) IsResizing(id string) bool { return s.Mode == Resizing && s.ActiveID == id }

func (s State) withSelection(ids ...string) State {
	s.selected = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.selected[id] = struct{}{}
	}
	return s
}

// Select makes id the selection. With multi the id is toggled in the
// existing selection instead. Ignored during a gesture.
func (s State) Select(id string, multi bool) State {
	if s.Busy() || id == "" {
		return s
	}
	if !multi {
		return s.withSelection(id)
	}
	ids := make([]string, 0, len(s.selected)+1)
	found := false
	for cur := range s.selected {
		if cur == id {
			found = true
			continue
		}
		ids = append(ids, cur)
	}
	if !found {
		ids = append(ids, id)
	}
	return s.withSelection(ids...)
}

// ClearSelection deselects everything. Ignored during a gesture.
func (s State) ClearSelection() State {
	if s.Busy() {
		return s
	}
	return s.withSelection()
}

// Forget drops ids that no longer exist, e.g. after a delete or split.
func (s State) Forget(exists func(id string) bool) State {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		if exists(id) {
			ids = append(ids, id)
		}
	}
	s = s.withSelection(ids...)
	if s.Busy() && !exists(s.ActiveID) {
		s = s.abandon()
	}
	return s
}

// SetEditMode toggles edit mode. Turning it off abandons any gesture.
func (s State) SetEditMode(on bool) State {
	s.EditMode = on
	if !on {
		s = s.abandon()
	}
	return s
}

// Reset returns the state for a freshly loaded document.
func (s State) Reset() State {
	return New(s.EditMode)
}

func (s State) abandon() State {
	s.Mode = Idle
	s.ActiveID = ""
	s.Corner = geometry.TopLeft
	s.Anchor = Anchor{}
	s.Preview = geometry.Box{}
	return s
}

// PointerDown handles a press at pointer (screen space) on target. box is the
// target block's current box. A press on empty space clears the selection.
func (s State) PointerDown(target Target, pointer geometry.Point, box geometry.Box, multi bool) State {
	if s.Busy() {
		return s
	}
	if target.BlockID == "" {
		if multi {
			return s
		}
		return s.ClearSelection()
	}

	// Handles only exist on a selected block; a stale handle hit is a body hit.
	handle := target.Handle && s.IsSelected(target.BlockID)
	if !handle {
		s = s.Select(target.BlockID, multi)
	}
	if !s.EditMode || !s.IsSelected(target.BlockID) {
		return s
	}

	s.ActiveID = target.BlockID
	s.Anchor = Anchor{Pointer: pointer, Box: box}
	s.Preview = box
	if handle {
		s.Mode = Resizing
		s.Corner = target.Corner
	} else {
		s.Mode = Dragging
	}
	return s
}

// PointerMove updates the preview box. scale is the current screen/image
// scale; imageW and imageH bound the result.
func (s State) PointerMove(pointer geometry.Point, scale, imageW, imageH float64) State {
	if !s.Busy() || !(scale > 0) {
		return s
	}
	delta := pointer.Sub(s.Anchor.Pointer).Scale(1 / scale)

	switch s.Mode {
	case Dragging:
		s.Preview = geometry.ClampBox(s.Anchor.Box.Translate(delta), imageW, imageH)
	case Resizing:
		s.Preview = resize(s.Anchor.Box, s.Corner, delta, imageW, imageH)
	}
	return s
}

// PointerUp ends a gesture. A commit is returned only when the box changed.
func (s State) PointerUp() (State, *Commit) {
	if !s.Busy() {
		return s, nil
	}
	var c *Commit
	if s.Preview != s.Anchor.Box && s.Preview.Valid() {
		c = &Commit{BlockID: s.ActiveID, Box: s.Preview}
	}
	return s.abandon(), c
}

// resize moves one corner by delta while the opposite corner stays put.
// Dragging past the opposite edge flips the box; the result never drops
// below MinSize and never leaves the image.
func resize(start geometry.Box, corner geometry.Corner, delta geometry.Point, imageW, imageH float64) geometry.Box {
	fixed := start.Corner(corner.Opposite())
	moving := geometry.ClampPoint(start.Corner(corner).Add(delta), imageW, imageH)

	moving.X = keepApart(moving.X, fixed.X, imageW)
	moving.Y = keepApart(moving.Y, fixed.Y, imageH)

	return geometry.ClampBox(geometry.FromCorners(fixed, moving), imageW, imageH)
}

// keepApart pushes v at least MinSize away from fixed, staying within [0, limit].
func keepApart(v, fixed, limit float64) float64 {
	if math.Abs(v-fixed) >= MinSize {
		return v
	}
	if v >= fixed {
		if limit <= 0 || fixed+MinSize <= limit {
			return fixed + MinSize
		}
		return fixed - MinSize
	}
	if fixed-MinSize >= 0 {
		return fixed - MinSize
	}
	return fixed + MinSize
}
