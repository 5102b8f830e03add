package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// pricePattern matches a money amount with exactly two decimals, with or
// without thousands separators, in either 1,234.56 or 1.234,56 style.
const pricePattern = `-?\d{1,3}(?:,\d{3})+\.\d{2}|-?\d{1,3}(?:\.\d{3})+,\d{2}|-?\d+[.,]\d{2}`

const currencyPrefix = `(?:[$€£¥]\s?)?`

var (
	reAmountToken = regexp.MustCompile(currencyPrefix + `(` + pricePattern + `)(-)?`)
	reBareAmount  = regexp.MustCompile(`^(?:[A-Z]{3}\s?)?` + currencyPrefix + `(` + pricePattern + `)(-)?(?:\s+[A-Za-z*]{1,2})?$`)
	reCurrency    = regexp.MustCompile(`(?i)[$€£¥]|\b(?:usd|cad|eur|gbp|aud)\b`)
	rePlainNumber = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// ParseAmount parses a money string, stripping currency symbols and codes,
// thousands separators and surrounding whitespace. Parentheses, a leading
// minus or a trailing minus mark a negative amount. ok is false when the
// string is not a number; it never defaults to zero.
func ParseAmount(s string) (d decimal.Decimal, ok bool) {
	s = strings.TrimSpace(reCurrency.ReplaceAllString(s, ""))
	s = strings.NewReplacer(" ", "", "'", "", "−", "-").Replace(s)

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	} else if strings.HasSuffix(s, "-") {
		neg = !neg
		s = s[:len(s)-1]
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 == 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if !rePlainNumber.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

type amountMatch struct {
	start, end int
	value      decimal.Decimal
}

// findAmounts returns every money token in s, left to right. Percentages,
// dates and fragments of longer numbers are skipped.
func findAmounts(s string) []amountMatch {
	var out []amountMatch
	for _, loc := range reAmountToken.FindAllStringSubmatchIndex(s, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isNumberGlue(s[start-1]) {
			continue
		}
		if end < len(s) {
			next := s[end]
			if next == '%' || next == '/' || next == ':' || isDigit(next) {
				continue
			}
			if (next == '.' || next == ',') && end+1 < len(s) && isDigit(s[end+1]) {
				continue
			}
		}
		v, ok := ParseAmount(s[loc[2]:end])
		if !ok {
			continue
		}
		out = append(out, amountMatch{start: start, end: end, value: v})
	}
	return out
}

// bareAmount parses a line that holds nothing but an amount, optionally with
// a currency marker and a trailing tax flag.
func bareAmount(s string) (decimal.Decimal, bool) {
	m := reBareAmount.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero, false
	}
	return ParseAmount(m[1] + m[2])
}

func hasAmount(s string) bool {
	return len(findAmounts(s)) > 0
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isNumberGlue(b byte) bool {
	return isDigit(b) || b == '.' || b == ',' || b == '/' || b == ':'
}
