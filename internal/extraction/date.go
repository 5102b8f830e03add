package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

const monthNames = `jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec`

var (
	reISODate      = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	reNumericDate  = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})\b`)
	reDayMonthName = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?[\s\-]+(` + monthNames + `)[a-z]*\.?[\s\-,]+(\d{4}|\d{2})\b`)
	reMonthNameDay = regexp.MustCompile(`(?i)\b(` + monthNames + `)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4}|\d{2})\b`)
	reDateKeyword  = regexp.MustCompile(`(?i)\b(?:date|dated|fecha)\b`)
)

// ambiguousDatePenalty scales a numeric date whose day and month could be swapped.
const ambiguousDatePenalty = 0.85

type dateParser func(m []string, dayFirst bool) (d Date, ambiguous, ok bool)

func dateRules(dayFirst bool) []lineRule[Date] {
	rule := func(id string, tier int, specificity float64, re *regexp.Regexp, parse dateParser) lineRule[Date] {
		return lineRule[Date]{
			id:          id,
			tier:        tier,
			specificity: specificity,
			match: func(lines []Line, i int) (Date, float64, bool) {
				m := re.FindStringSubmatch(lines[i].Text)
				if m == nil {
					return Date{}, 0, false
				}
				d, ambiguous, ok := parse(m, dayFirst)
				if !ok {
					return Date{}, 0, false
				}
				factor := 0.9
				if reDateKeyword.MatchString(lines[i].Text) {
					factor = 1
				}
				if ambiguous {
					factor *= ambiguousDatePenalty
				}
				return d, factor, true
			},
		}
	}

	return []lineRule[Date]{
		rule("date.iso", 0, 0.95, reISODate, parseISOParts),
		rule("date.day-month-name", 1, 0.9, reDayMonthName, parseDayMonthName),
		rule("date.month-name-day", 1, 0.9, reMonthNameDay, parseMonthNameDay),
		rule("date.numeric", 2, 0.8, reNumericDate, parseNumericParts),
	}
}

func parseISOParts(m []string, _ bool) (Date, bool, bool) {
	d, ok := NewDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	return d, false, ok
}

// parseNumericParts resolves d/m/y against m/d/y: a component above 12 must
// be the day. When both fit, dayFirst decides and the result is ambiguous.
func parseNumericParts(m []string, dayFirst bool) (Date, bool, bool) {
	a, b, year := atoi(m[1]), atoi(m[2]), expandYear(m[3])
	var day, month int
	ambiguous := false
	switch {
	case a > 12 && b > 12:
		return Date{}, false, false
	case a > 12:
		day, month = a, b
	case b > 12:
		month, day = a, b
	default:
		ambiguous = a != b
		if dayFirst {
			day, month = a, b
		} else {
			month, day = a, b
		}
	}
	d, ok := NewDate(year, month, day)
	return d, ambiguous, ok
}

func parseDayMonthName(m []string, _ bool) (Date, bool, bool) {
	d, ok := NewDate(expandYear(m[3]), monthNumber(m[2]), atoi(m[1]))
	return d, false, ok
}

func parseMonthNameDay(m []string, _ bool) (Date, bool, bool) {
	d, ok := NewDate(expandYear(m[3]), monthNumber(m[1]), atoi(m[2]))
	return d, false, ok
}

// expandYear maps two-digit years 00-69 to 20xx and 70-99 to 19xx.
func expandYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		if y < 70 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

func monthNumber(name string) int {
	name = strings.ToLower(name)
	if len(name) > 3 {
		name = name[:3]
	}
	return strings.Index(monthNames, name)/4 + 1
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// isDateLine reports whether any date rule matches the line text.
func isDateLine(text string) bool {
	return reISODate.MatchString(text) || reNumericDate.MatchString(text) ||
		reDayMonthName.MatchString(text) || reMonthNameDay.MatchString(text)
}
