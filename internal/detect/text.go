package detect

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Text is a recognized line prepared for rule matching.
type Text struct {
	Raw    string
	Folded string
	Tokens []string
}

// Prepare normalizes OCR output to NFC, case-folds it and splits it into
// word tokens. Dots and hyphens stay inside tokens so abbreviations such as
// "ул." or "пр-т" survive. A Caser is stateful, so each call builds its own.
func Prepare(raw string) Text {
	folded := strings.TrimSpace(cases.Fold().String(norm.NFC.String(raw)))
	return Text{
		Raw:    raw,
		Folded: folded,
		Tokens: strings.FieldsFunc(folded, func(r rune) bool {
			return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-')
		}),
	}
}

// hasKeyword reports whether any token matches one of the keywords.
// Keywords ending in a dot are abbreviations and match as token prefixes
// ("ул.ленина", "д.5"), except inside initials such as "д.а." or "и. д.".
// Longer keywords also match inflected forms by prefix.
func (t Text) hasKeyword(keywords []string) bool {
	for i, tok := range t.Tokens {
		bare := strings.TrimRight(tok, ".")
		for _, kw := range keywords {
			switch {
			case strings.HasSuffix(kw, "."):
				if strings.HasPrefix(tok, kw) && !t.initialAt(i) {
					return true
				}
			case bare == kw:
				return true
			case len([]rune(kw)) >= 5 && strings.HasPrefix(bare, kw):
				return true
			}
		}
	}
	return false
}

// initialAt reports whether token i is part of a person's initials: either
// several dotted letters in one token, or a dotted letter next to another.
func (t Text) initialAt(i int) bool {
	n := initials(t.Tokens[i])
	if n != 1 {
		return n > 1
	}
	return (i > 0 && initials(t.Tokens[i-1]) > 0) ||
		(i+1 < len(t.Tokens) && initials(t.Tokens[i+1]) > 0)
}

// initials counts the letters of a token made only of dotted single
// letters ("а." is 1, "д.а." and "д.а" are 2). Any other token gives 0.
func initials(tok string) int {
	if !strings.Contains(tok, ".") {
		return 0
	}
	parts := strings.Split(strings.TrimSuffix(tok, "."), ".")
	for _, p := range parts {
		if r := []rune(p); len(r) != 1 || !unicode.IsLetter(r[0]) {
			return 0
		}
	}
	return len(parts)
}

func longestDigitRun(s string) int {
	best, cur := 0, 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			cur++
			if cur > best {
				best = cur
			}
			continue
		}
		cur = 0
	}
	return best
}

func countPhoneChars(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) || strings.ContainsRune(" +-()", r) {
			n++
		}
	}
	return n
}
