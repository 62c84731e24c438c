/**
 * Field auto-detection rules
 *
 * Ordered rule chain mapping a recognized line to a contact field.
 * The first matching rule wins. No rule ever guesses personal names.
 */

package detect

import (
	"strings"

	"github.com/newwdead/bizcard-annotator/internal/fields"
)

// Rule is one named step of the detection chain.
type Rule struct {
	Name  string
	Field string
	Match func(t Text) bool
}

// MobilePlan describes how mobile numbers look in the local numbering plan.
type MobilePlan struct {
	// Prefixes a number starts with, e.g. "+7" or a trunk "8".
	Prefixes []string
	// OperatorDigits, when set, restricts the first digit after the prefix.
	OperatorDigits string
}

// DefaultMobilePlan matches Russian mobile numbers: +7 9xx or 8 9xx.
var DefaultMobilePlan = MobilePlan{
	Prefixes:       []string{"+7", "8"},
	OperatorDigits: "9",
}

func (p MobilePlan) matches(folded string) bool {
	for _, prefix := range p.Prefixes {
		if !strings.HasPrefix(folded, prefix) {
			continue
		}
		if p.OperatorDigits == "" {
			return true
		}
		rest := strings.TrimLeft(folded[len(prefix):], " -()")
		if rest != "" && strings.ContainsRune(p.OperatorDigits, []rune(rest)[0]) {
			return true
		}
	}
	return false
}

var addressKeywords = []string{
	// ru
	"ул.", "улица", "пр.", "пр-т", "проспект", "пер.", "переулок", "бул.", "б-р", "бульвар",
	"ш.", "шоссе", "наб.", "набережная", "пл.", "площадь", "д.", "дом", "корп.", "корпус",
	"стр.", "строение", "оф.", "офис", "кв.", "г.", "мкр.", "микрорайон",
	// en
	"st.", "street", "ave.", "avenue", "rd.", "road", "blvd", "boulevard", "ln.", "lane",
	"suite", "bldg.", "building", "floor",
}

var positionKeywords = []string{
	// ru
	"директор", "генеральный", "менеджер", "руководитель", "начальник", "инженер",
	"специалист", "заместитель", "бухгалтер", "консультант", "президент", "основатель",
	"аналитик", "разработчик", "дизайнер", "координатор", "юрист", "экономист", "администратор",
	// en
	"director", "manager", "engineer", "head", "ceo", "cto", "cfo", "coo", "founder", "president",
	"specialist", "consultant", "accountant", "analyst", "developer", "designer", "officer",
	"coordinator", "assistant", "chief", "lead",
}

var companyMarkers = []string{
	"llc", "ltd", "inc", "corp", "gmbh", "llp", "plc",
	"ооо", "оао", "зао", "пао", "ао", "ип", "нко",
}

// Rules builds the detection chain in priority order.
func Rules(plan MobilePlan) []Rule {
	isPhone := func(t Text) bool {
		return longestDigitRun(t.Folded) >= 3 && countPhoneChars(t.Folded) >= 7
	}
	return []Rule{
		{Name: "email", Field: fields.Email, Match: func(t Text) bool {
			return strings.Contains(t.Folded, "@")
		}},
		{Name: "website", Field: fields.Website, Match: func(t Text) bool {
			for _, p := range []string{"http://", "https://", "www."} {
				if strings.HasPrefix(t.Folded, p) {
					return true
				}
			}
			return false
		}},
		{Name: "phone_mobile", Field: fields.PhoneMobile, Match: func(t Text) bool {
			return isPhone(t) && plan.matches(t.Folded)
		}},
		{Name: "phone", Field: fields.Phone, Match: isPhone},
		{Name: "address", Field: fields.Address, Match: func(t Text) bool {
			return t.hasKeyword(addressKeywords)
		}},
		{Name: "position", Field: fields.Position, Match: func(t Text) bool {
			return t.hasKeyword(positionKeywords)
		}},
		{Name: "company", Field: fields.Company, Match: func(t Text) bool {
			return t.hasKeyword(companyMarkers)
		}},
	}
}
