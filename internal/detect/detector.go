package detect

import (
	"unicode"

	"github.com/newwdead/bizcard-annotator/internal/block"
)

// Detector runs the rule chain over recognized text.
type Detector struct {
	rules []Rule
}

// New returns a detector using the standard rules and the given mobile plan.
func New(plan MobilePlan) *Detector {
	return &Detector{rules: Rules(plan)}
}

// NewWithRules returns a detector over a custom chain, evaluated in order.
func NewWithRules(rules []Rule) *Detector {
	r := make([]Rule, len(rules))
	copy(r, rules)
	return &Detector{rules: r}
}

// Default uses DefaultMobilePlan.
func Default() *Detector { return New(DefaultMobilePlan) }

// Detect returns the field name for text, or "" when no rule applies.
func (d *Detector) Detect(text string) string {
	field, _ := d.Explain(text)
	return field
}

// Explain is Detect plus the name of the rule that matched.
func (d *Detector) Explain(text string) (field, rule string) {
	t := Prepare(text)
	if t.Folded == "" {
		return "", ""
	}
	for _, r := range d.rules {
		if r.Match(t) {
			return r.Field, r.Name
		}
	}
	return "", ""
}

// Apply suggests a field for every block that has none. Blocks with an
// existing assignment, automatic or confirmed, are never touched, so a
// second pass over the result changes nothing.
func (d *Detector) Apply(doc *block.Document) (*block.Document, int) {
	filled := 0
	for _, b := range doc.Blocks() {
		if b.HasField() {
			continue
		}
		if field := d.Detect(b.Text); field != "" {
			doc = doc.SuggestField(b.ID, field)
			filled++
		}
	}
	return doc, filled
}

// ShapeDims is the length of a ShapeVector.
const ShapeDims = 16

// ShapeVector summarizes the character shape of a line together with the
// rule hits. It is stored next to confirmed assignments so similar lines
// can be looked up later.
func (d *Detector) ShapeVector(text string) []float32 {
	t := Prepare(text)
	v := make([]float32, ShapeDims)

	var total, digits, letters, upper, spaces, punct, cyr int
	for _, r := range text {
		total++
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
			if unicode.Is(unicode.Cyrillic, r) {
				cyr++
			}
		case unicode.IsSpace(r):
			spaces++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct++
		}
	}

	ratio := func(n, of int) float32 {
		if of == 0 {
			return 0
		}
		return float32(n) / float32(of)
	}
	capped := func(n, limit int) float32 {
		if n >= limit {
			return 1
		}
		return float32(n) / float32(limit)
	}

	v[0] = capped(total, 64)
	v[1] = ratio(digits, total)
	v[2] = ratio(letters, total)
	v[3] = ratio(upper, letters)
	v[4] = ratio(spaces, total)
	v[5] = ratio(punct, total)
	v[6] = ratio(cyr, letters)
	v[7] = capped(len(t.Tokens), 8)
	v[8] = capped(longestDigitRun(t.Folded), 12)

	// Rule hits, in chain order, fill the remaining slots.
	for i, r := range d.rules {
		if 9+i >= ShapeDims {
			break
		}
		if t.Folded != "" && r.Match(t) {
			v[9+i] = 1
		}
	}
	return v
}
