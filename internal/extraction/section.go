package extraction

import (
	"math"
	"regexp"
)

// fallbackSectionRatio bounds the item section when no footer is found.
const fallbackSectionRatio = 0.7

var (
	reSectionHeader = regexp.MustCompile(`(?i)\b(?:trans(?:action)?|trx|table|tbl|order|check|chk|invoice|inv|ticket|receipt|server|cashier|register|reg|terminal|guests?)\b\s*(?:#|no\.?|num(?:ber)?)?\s*:?\s*[A-Za-z]*\d`)
	reFooterAmount  = regexp.MustCompile(`(?i)\b(?:sub\s*-?\s*total|total|tax(?:es)?|gst|hst|pst|qst|rst|tps|tvq|vat|balance\s+due|amount\s+due)\b`)
	reFooterClosing = regexp.MustCompile(`(?i)\b(?:thank\s*you|thanks|merci|please\s+come|come\s+again|visit\s+us|have\s+a\s+(?:nice|great|good))\b`)
)

// Section is a half-open [Start, End) range of line indices.
type Section struct {
	Start, End int
}

func (s Section) Len() int {
	return s.End - s.Start
}

// LocateItems returns the span of lines most likely to hold purchased items:
// strictly between the last header marker (an identifier line or the date
// line) and the first footer line (a subtotal, tax or total line carrying an
// amount, or a closing phrase). Without a footer the span stops at 70% of the
// lines. The span is never empty when there is at least one line.
func LocateItems(lines []Line) Section {
	n := len(lines)
	if n == 0 {
		return Section{}
	}

	footer := -1
	for i, l := range lines {
		if isFooterLine(lines, i) || reFooterClosing.MatchString(l.Text) {
			footer = i
			break
		}
	}

	limit := n
	if footer >= 0 {
		limit = footer
	}
	header := -1
	for i := 0; i < limit; i++ {
		if reSectionHeader.MatchString(lines[i].Text) || isDateLine(lines[i].Text) {
			header = i
		}
	}

	start, end := header+1, footer
	if footer < 0 {
		end = int(math.Ceil(float64(n) * fallbackSectionRatio))
		if end <= start {
			end = n
		}
	}
	if end <= start {
		start = 0
	}
	if end <= start {
		end = max(1, int(math.Ceil(float64(n)*fallbackSectionRatio)))
	}
	return Section{Start: start, End: end}
}

func isFooterLine(lines []Line, i int) bool {
	text := lines[i].Text
	if !reFooterAmount.MatchString(text) {
		return false
	}
	if hasAmount(text) {
		return true
	}
	if i+1 < len(lines) {
		_, ok := bareAmount(lines[i+1].Text)
		return ok
	}
	return false
}
