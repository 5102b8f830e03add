package extraction

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// candidate is one extracted value before the best one is chosen.
type candidate[T any] struct {
	value      T
	confidence float64
	strategy   string
	line       int
}

// lineRule is one ordered pattern rule of a field extractor. match returns
// the value found on line i and a factor for cues on the same line that
// weaken it (1 when there are none).
type lineRule[T any] struct {
	id          string
	tier        int
	specificity float64
	match       func(lines []Line, i int) (T, float64, bool)
}

// extractor produces candidates for one field from the normalized lines.
type extractor[T any] interface {
	candidates(lines []Line) []candidate[T]
}

// ruleExtractor tries its rules in order. Within a tier the first rule that
// matches any line wins the tier; every tier is evaluated.
type ruleExtractor[T any] struct {
	rules    []lineRule[T]
	position func(i, n int) float64
}

func (e ruleExtractor[T]) candidates(lines []Line) []candidate[T] {
	var out []candidate[T]
	won := make(map[int]bool)
	for _, r := range e.rules {
		if won[r.tier] {
			continue
		}
		for i := range lines {
			v, factor, ok := r.match(lines, i)
			if !ok {
				continue
			}
			won[r.tier] = true
			out = append(out, candidate[T]{
				value:      v,
				confidence: clamp01(r.specificity * e.position(i, len(lines)) * factor),
				strategy:   r.id,
				line:       i,
			})
		}
	}
	return out
}

// best returns the highest-confidence candidate; earlier candidates win ties.
func best[T any](cs []candidate[T]) (candidate[T], bool) {
	if len(cs) == 0 {
		var zero candidate[T]
		return zero, false
	}
	top := cs[0]
	for _, c := range cs[1:] {
		if c.confidence > top.confidence {
			top = c
		}
	}
	return top, true
}

func extractBest[T any](e extractor[T], lines []Line) (candidate[T], bool) {
	return best(e.candidates(lines))
}

// Position weights.

func flat(int, int) float64 { return 1 }

// towardEnd favours lines near the bottom of the receipt.
func towardEnd(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	return 0.75 + 0.25*float64(i)/float64(n-1)
}

// towardTop favours the first lines.
func towardTop(i, _ int) float64 {
	return math.Max(0.4, 1-0.1*float64(i))
}

// Cue penalties.
const (
	conflictPenalty = 0.5
	nextLinePenalty = 0.85
)

var (
	reSubtotalKw   = regexp.MustCompile(`(?i)\bsub\s*-?\s*total\b`)
	reTotalKw      = regexp.MustCompile(`(?i)\btotal\b`)
	reTaxKw        = regexp.MustCompile(`(?i)\b(?:tax(?:es)?|gst|hst|pst|qst|rst|tps|tvq|tvp|vat|tva)\b`)
	reNamedTaxKw   = regexp.MustCompile(`(?i)\b(?:gst|hst|pst|qst|rst|tps|tvq|tvp)\b`)
	reTotalNoiseKw = regexp.MustCompile(`(?i)\b(?:savings|saved|discount|items?|qty|change|tendered|points|tip|gratuity)\b`)
	reTenderKw     = regexp.MustCompile(`(?i)\b(?:cash|change|tendered|visa|mastercard|amex|debit|credit|card)\b`)
)

// conflicts reports whether any cue matches text outside the keyword span.
func conflicts(text string, span []int, cues []*regexp.Regexp) bool {
	for _, cue := range cues {
		for _, loc := range cue.FindAllStringIndex(text, -1) {
			if loc[0] < span[0] || loc[1] > span[1] {
				return true
			}
		}
	}
	return false
}

// keywordAmountRule matches a label followed by an amount on the same line,
// or a label alone with the amount by itself on the next line.
func keywordAmountRule(id string, tier int, specificity float64, kw *regexp.Regexp, cues ...*regexp.Regexp) lineRule[decimal.Decimal] {
	return lineRule[decimal.Decimal]{
		id:          id,
		tier:        tier,
		specificity: specificity,
		match: func(lines []Line, i int) (decimal.Decimal, float64, bool) {
			text := lines[i].Text
			span := kw.FindStringIndex(text)
			if span == nil {
				return decimal.Zero, 0, false
			}
			factor := 1.0
			if conflicts(text, span, cues) {
				factor = conflictPenalty
			}
			if amts := findAmounts(text[span[1]:]); len(amts) > 0 {
				if amts[0].value.IsNegative() {
					return decimal.Zero, 0, false
				}
				return amts[0].value, factor, true
			}
			if hasAmount(text) || i+1 >= len(lines) {
				return decimal.Zero, 0, false
			}
			if v, ok := bareAmount(lines[i+1].Text); ok && !v.IsNegative() {
				return v, factor * nextLinePenalty, true
			}
			return decimal.Zero, 0, false
		},
	}
}

func totalExtractor() extractor[decimal.Decimal] {
	cues := []*regexp.Regexp{reSubtotalKw, reTaxKw, reTotalNoiseKw}
	return ruleExtractor[decimal.Decimal]{
		position: towardEnd,
		rules: []lineRule[decimal.Decimal]{
			keywordAmountRule("total.grand", 0, 0.95,
				regexp.MustCompile(`(?i)\b(?:grand\s*total|total\s+(?:due|amount|payable|to\s+pay|ttc)|amount\s+(?:due|payable)|balance\s+due)\b`), cues...),
			keywordAmountRule("total.keyword", 1, 0.85, reTotalKw, cues...),
			keywordAmountRule("total.balance", 2, 0.6,
				regexp.MustCompile(`(?i)\b(?:balance|amount|montant|sum)\b`), append(cues, reTenderKw)...),
			bottomLargestAmountRule("total.largest-bottom", 3, 0.3),
		},
	}
}

// bottomLargestAmountRule picks the largest amount in the last 40% of the
// lines, ignoring tender, tax and subtotal lines.
func bottomLargestAmountRule(id string, tier int, specificity float64) lineRule[decimal.Decimal] {
	eligible := func(l Line) bool {
		return !reTenderKw.MatchString(l.Text) && !reTaxKw.MatchString(l.Text) &&
			!reSubtotalKw.MatchString(l.Text) && !reTotalNoiseKw.MatchString(l.Text)
	}
	lastAmount := func(l Line) (decimal.Decimal, bool) {
		amts := findAmounts(l.Text)
		if len(amts) == 0 {
			return decimal.Zero, false
		}
		return amts[len(amts)-1].value, true
	}
	return lineRule[decimal.Decimal]{
		id:          id,
		tier:        tier,
		specificity: specificity,
		match: func(lines []Line, i int) (decimal.Decimal, float64, bool) {
			from := int(math.Floor(float64(len(lines)) * 0.6))
			if i < from || !eligible(lines[i]) {
				return decimal.Zero, 0, false
			}
			v, ok := lastAmount(lines[i])
			if !ok || v.IsNegative() {
				return decimal.Zero, 0, false
			}
			for j := from; j < len(lines); j++ {
				if j == i || !eligible(lines[j]) {
					continue
				}
				if other, ok := lastAmount(lines[j]); ok && (other.GreaterThan(v) || (other.Equal(v) && j < i)) {
					return decimal.Zero, 0, false
				}
			}
			return v, 1, true
		},
	}
}

func subtotalExtractor() extractor[decimal.Decimal] {
	cues := []*regexp.Regexp{reTotalKw, reTaxKw}
	return ruleExtractor[decimal.Decimal]{
		position: towardEnd,
		rules: []lineRule[decimal.Decimal]{
			keywordAmountRule("subtotal.keyword", 0, 0.95, reSubtotalKw, cues...),
			keywordAmountRule("subtotal.pretax", 1, 0.8,
				regexp.MustCompile(`(?i)\b(?:net\s+(?:total|amount)|merchandise\s+total|(?:amount|total)\s+before\s+tax|pre-?tax\s+total)\b`), cues...),
		},
	}
}

// taxComponent selects one bucket of a TaxBreakdown.
type taxComponent struct {
	name string
	set  func(t *TaxBreakdown, v decimal.Decimal)
	ext  extractor[decimal.Decimal]
}

func taxComponents() []taxComponent {
	named := func(id string, kw *regexp.Regexp) extractor[decimal.Decimal] {
		return ruleExtractor[decimal.Decimal]{
			position: flat,
			rules:    []lineRule[decimal.Decimal]{keywordAmountRule(id, 0, 0.9, kw, reSubtotalKw)},
		}
	}
	aggregateCues := []*regexp.Regexp{reNamedTaxKw, reSubtotalKw}
	return []taxComponent{
		{name: "gst", set: func(t *TaxBreakdown, v decimal.Decimal) { t.GST = &v },
			ext: named("tax.gst", regexp.MustCompile(`(?i)\b(?:gst|tps)\b`))},
		{name: "pst", set: func(t *TaxBreakdown, v decimal.Decimal) { t.PST = &v },
			ext: named("tax.pst", regexp.MustCompile(`(?i)\b(?:pst|rst|tvp)\b`))},
		{name: "hst", set: func(t *TaxBreakdown, v decimal.Decimal) { t.HST = &v },
			ext: named("tax.hst", regexp.MustCompile(`(?i)\bhst\b`))},
		{name: "qst", set: func(t *TaxBreakdown, v decimal.Decimal) { t.QST = &v },
			ext: named("tax.qst", regexp.MustCompile(`(?i)\b(?:qst|tvq)\b`))},
		{name: "total", set: func(t *TaxBreakdown, v decimal.Decimal) { t.Total = &v },
			ext: ruleExtractor[decimal.Decimal]{
				position: flat,
				rules: []lineRule[decimal.Decimal]{
					keywordAmountRule("tax.total", 0, 0.9,
						regexp.MustCompile(`(?i)\b(?:total\s+tax(?:es)?|tax(?:es)?\s+total|sales\s+tax|total\s+vat)\b`), aggregateCues...),
					keywordAmountRule("tax.generic", 1, 0.8,
						regexp.MustCompile(`(?i)\b(?:tax(?:es)?|vat|tva)\b`), aggregateCues...),
				},
			}},
	}
}

var (
	reWelcome     = regexp.MustCompile(`(?i)^(?:welcome\s+to|bienvenue\s+(?:chez|à))\s+(.+?)[!.]*$`)
	rePhone       = regexp.MustCompile(`\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)
	reStreet      = regexp.MustCompile(`^\d+[A-Za-z]?\s+\S+`)
	reWeb         = regexp.MustCompile(`(?i)(?:www\.|https?://|\.com\b|@)`)
	reHeaderNoise = regexp.MustCompile(`(?i)\b(?:receipt|invoice|welcome|tel|phone|fax|store\s*#|cashier|server|table|date|time|order|trans(?:action)?|register|terminal|copy)\b`)
)

func merchantExtractor() extractor[string] {
	return ruleExtractor[string]{
		position: towardTop,
		rules: []lineRule[string]{
			{
				id: "merchant.welcome", tier: 0, specificity: 0.9,
				match: func(lines []Line, i int) (string, float64, bool) {
					if i >= 8 {
						return "", 0, false
					}
					m := reWelcome.FindStringSubmatch(lines[i].Text)
					if m == nil {
						return "", 0, false
					}
					name := cleanName(m[1])
					return name, 1, name != "" && hasLetter(name)
				},
			},
			{
				id: "merchant.header", tier: 1, specificity: 0.75,
				match: func(lines []Line, i int) (string, float64, bool) {
					if i >= 6 {
						return "", 0, false
					}
					text := lines[i].Text
					if hasAmount(text) || isDateLine(text) || rePhone.MatchString(text) ||
						reStreet.MatchString(text) || reWeb.MatchString(text) || reHeaderNoise.MatchString(text) {
						return "", 0, false
					}
					if letterRatio(text) < 0.5 {
						return "", 0, false
					}
					name := cleanName(text)
					if countLetters(name) < 3 {
						return "", 0, false
					}
					return name, 1, true
				},
			},
		},
	}
}

func dateExtractor(dayFirst bool) extractor[Date] {
	return ruleExtractor[Date]{position: flat, rules: dateRules(dayFirst)}
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func letterRatio(s string) float64 {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0
	}
	return float64(countLetters(s)) / float64(len([]rune(s)))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// extractFields runs every field extractor over the lines and fills the
// header and footer fields of a draft.
func extractFields(lines []Line, dayFirst bool) Draft {
	var d Draft
	if c, ok := extractBest(merchantExtractor(), lines); ok {
		d.Merchant = ptr(c.value)
		d.setConfidence(FieldMerchant, c.confidence)
	}
	if c, ok := extractBest(dateExtractor(dayFirst), lines); ok {
		d.Date = ptr(c.value)
		d.setConfidence(FieldDate, c.confidence)
	}
	if c, ok := extractBest(subtotalExtractor(), lines); ok {
		d.Subtotal = ptr(c.value)
		d.setConfidence(FieldSubtotal, c.confidence)
	}
	if c, ok := extractBest(totalExtractor(), lines); ok {
		d.Total = ptr(c.value)
		d.setConfidence(FieldTotal, c.confidence)
	}
	taxConfidence := 0.0
	for _, comp := range taxComponents() {
		if c, ok := extractBest(comp.ext, lines); ok {
			comp.set(&d.Tax, c.value)
			taxConfidence = math.Max(taxConfidence, c.confidence)
		}
	}
	if !d.Tax.IsEmpty() {
		d.setConfidence(FieldTax, taxConfidence)
	}
	return d
}
