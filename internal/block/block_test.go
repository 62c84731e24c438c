package block

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/newwdead/bizcard-annotator/internal/geometry"
)

func sequentialIDs(t *testing.T) {
	t.Helper()
	n := 0
	prev := newID
	newID = func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
	t.Cleanup(func() { newID = prev })
}

func sampleDoc() *Document {
	return NewDocument("c1", 1000, 600, "", []Block{
		{ID: "a", Text: "Ivan Petrov", Confidence: 0.9, Box: geometry.Box{X: 10, Y: 10, Width: 200, Height: 30}},
		{ID: "b", Text: "ivan@example.com", Confidence: 0.8, Box: geometry.Box{X: 10, Y: 50, Width: 300, Height: 30}, Field: "email", AutoDetected: true},
	})
}

func TestNewDocumentAssignsMissingIDs(t *testing.T) {
	sequentialIDs(t)
	d := NewDocument("c1", 100, 100, "", []Block{{Text: "x"}, {ID: "a"}, {ID: "a"}})
	ids := []string{}
	for _, b := range d.Blocks() {
		ids = append(ids, b.ID)
	}
	want := []string{"gen-1", "a", "gen-2"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
}

func TestOperationsDoNotMutateReceiver(t *testing.T) {
	d := sampleDoc()
	before := d.Blocks()

	d.UpdateText("a", "changed")
	d.UpdateBox("a", geometry.Box{X: 1, Y: 1, Width: 5, Height: 5})
	d.AssignField("a", "company")
	d.RemoveBlock("b")
	d.SplitBlock("a", SplitPoint{Axis: AxisX, At: 100})
	d.AddBlock(geometry.Box{X: 0, Y: 0, Width: 10, Height: 10}, "")

	if !reflect.DeepEqual(before, d.Blocks()) {
		t.Fatalf("receiver changed:\nbefore %+v\nafter  %+v", before, d.Blocks())
	}
}

func TestUnknownIDIsNoop(t *testing.T) {
	d := sampleDoc()
	ops := map[string]*Document{
		"remove": d.RemoveBlock("missing"),
		"text":   d.UpdateText("missing", "x"),
		"box":    d.UpdateBox("missing", geometry.Box{Width: 1, Height: 1}),
		"field":  d.AssignField("missing", "email"),
		"split":  d.SplitBlock("missing", SplitPoint{Axis: AxisX, At: 5}),
	}
	for name, got := range ops {
		if got != d {
			t.Errorf("%s on unknown id returned a new document", name)
		}
	}
}

func TestAssignFieldClearsAutoDetected(t *testing.T) {
	d := sampleDoc().AssignField("b", "email")
	b, _ := d.Block("b")
	if b.Field != "email" || b.AutoDetected {
		t.Fatalf("block = %+v, want confirmed email", b)
	}

	again := d.AssignField("b", "email")
	if again != d {
		t.Error("repeat assignment produced a new document")
	}

	cleared := d.AssignField("b", "")
	if b, _ := cleared.Block("b"); b.HasField() {
		t.Errorf("field not cleared: %+v", b)
	}
}

func TestSuggestFieldOnlyFillsUnset(t *testing.T) {
	d := sampleDoc()
	d2 := d.SuggestField("b", "website")
	if d2 != d {
		t.Error("suggestion overwrote an existing field")
	}
	d3 := d.SuggestField("a", "company")
	a, _ := d3.Block("a")
	if a.Field != "company" || !a.AutoDetected {
		t.Fatalf("block = %+v", a)
	}
}

func TestUpdateBoxClampsAndRejectsEmpty(t *testing.T) {
	d := sampleDoc()
	got := d.UpdateBox("a", geometry.Box{X: 900, Y: -20, Width: 200, Height: 30})
	a, _ := got.Block("a")
	want := geometry.Box{X: 800, Y: 0, Width: 200, Height: 30}
	if a.Box != want {
		t.Errorf("box = %+v, want %+v", a.Box, want)
	}

	if d.UpdateBox("a", geometry.Box{X: 5, Y: 5, Width: 0, Height: 10}) != d {
		t.Error("zero-width box was committed")
	}
}

func TestAddBlock(t *testing.T) {
	sequentialIDs(t)
	d, id := sampleDoc().AddBlock(geometry.Box{X: 20, Y: 400, Width: 100, Height: 20}, "")
	if id == "" || d.Len() != 3 {
		t.Fatalf("id=%q len=%d", id, d.Len())
	}
	b, _ := d.Block(id)
	if !b.Manual || b.HasField() {
		t.Errorf("new block = %+v", b)
	}

	same, id := d.AddBlock(geometry.Box{X: 1, Y: 1}, "")
	if same != d || id != "" {
		t.Error("empty box was added")
	}
}

func TestSplitConservation(t *testing.T) {
	sequentialIDs(t)
	d := sampleDoc().AssignField("a", "company")

	tests := []struct {
		name string
		sp   SplitPoint
	}{
		{"vertical cut", SplitPoint{Axis: AxisX, At: 110}},
		{"horizontal cut", SplitPoint{Axis: AxisY, At: 22}},
		{"near left edge", SplitPoint{Axis: AxisX, At: 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.SplitBlock("a", tt.sp)
			if got.Len() != d.Len()+1 {
				t.Fatalf("len = %d", got.Len())
			}
			blocks := got.Blocks()
			first, second := blocks[0], blocks[1]
			orig, _ := d.Block("a")

			if first.ID == "a" || second.ID == "a" || first.ID == second.ID {
				t.Errorf("fragments reuse ids: %q %q", first.ID, second.ID)
			}
			if tt.sp.Axis == AxisX {
				if first.Box.Width+second.Box.Width != orig.Box.Width || second.Box.X != first.Box.Right() {
					t.Errorf("horizontal extent not conserved: %+v %+v", first.Box, second.Box)
				}
			} else {
				if first.Box.Height+second.Box.Height != orig.Box.Height || second.Box.Y != first.Box.Bottom() {
					t.Errorf("vertical extent not conserved: %+v %+v", first.Box, second.Box)
				}
			}

			joined := strings.Join(strings.Fields(first.Text+" "+second.Text), " ")
			if joined != strings.Join(strings.Fields(orig.Text), " ") {
				t.Errorf("text %q + %q does not rebuild %q", first.Text, second.Text, orig.Text)
			}
			if first.Field != "company" || second.HasField() {
				t.Errorf("fields = %q, %q", first.Field, second.Field)
			}
		})
	}
}

func TestSplitOutsideBoxIsNoop(t *testing.T) {
	d := sampleDoc()
	for _, sp := range []SplitPoint{{Axis: AxisX, At: 10}, {Axis: AxisX, At: 210}, {Axis: AxisY, At: 500}} {
		if d.SplitBlock("a", sp) != d {
			t.Errorf("split at %+v changed the document", sp)
		}
	}
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		text       string
		frac       float64
		newline    bool
		head, tail string
	}{
		{"Ivan Petrov", 0.5, false, "Ivan", "Petrov"},
		{"one two three", 0.9, false, "one two", "three"},
		{"abcdef", 0.5, false, "abc", "def"},
		{"Main St 5\nMoscow", 0.2, true, "Main St 5", "Moscow"},
		{"a  b", 0.5, false, "a", "b"},
		{"", 0.5, false, "", ""},
	}
	for _, tt := range tests {
		head, tail := SplitText(tt.text, tt.frac, tt.newline)
		if head != tt.head || tail != tt.tail {
			t.Errorf("SplitText(%q, %v) = %q, %q; want %q, %q", tt.text, tt.frac, head, tail, tt.head, tt.tail)
		}
	}
}
