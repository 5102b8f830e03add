package extraction

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reSameLine = regexp.MustCompile(`^(?:(\d{1,3})\s*[xX*]?\s+)?(.*?\S)\s+` + currencyPrefix + `(` + pricePattern + `)(-)?(?:\s+[A-Za-z*]{1,2})?$`)
	// "name 2 @ 1.50" or "name 2 x 1.50" left in front of the line price.
	reInlineUnit = regexp.MustCompile(`^(.*?\S)\s+(\d{1,3})\s*[@xX]\s*` + currencyPrefix + `(` + pricePattern + `)(?:\s*(?:ea|each|/ea))?$`)
	// "name @ 1.50 ea" left in front of the line price.
	reInlineEach = regexp.MustCompile(`(?i)^(.*?\S)\s+@\s*` + currencyPrefix + `(` + pricePattern + `)(?:\s*(?:ea|each|/ea))?$`)
	reQtyName    = regexp.MustCompile(`^(\d{1,3})\s*[xX*]?\s+(.*\S)$`)
	reQtyPrice   = regexp.MustCompile(`(?i)^(\d{1,3})(?:\s*([xX*@])\s*|\s+(?:pcs?|ea)?\s*)` + currencyPrefix + `(` + pricePattern + `)(?:\s+` + currencyPrefix + `(` + pricePattern + `))?(?:\s+[A-Za-z*]{1,2})?$`)
	reLeadingQty = regexp.MustCompile(`^\d{1,3}\s*[xX*]?\s+\S`)
	reDecorative = regexp.MustCompile(`[.\-_=*~·]{3,}`)
	reLeader     = regexp.MustCompile(`\s*[.\-_=*~·]{3,}\s*`)
	reInteger    = regexp.MustCompile(`^\d{1,3}$`)
	reNonItem    = regexp.MustCompile(`(?i)\b(?:sub\s*-?\s*total|total|tax(?:es)?|gst|hst|pst|qst|rst|tps|tvq|vat|balance|change|cash|tender(?:ed)?|visa|mastercard|amex|(?:credit|debit)\s*card|debit|payment|paid|amount\s+due|thank\s*you|thanks|merci|welcome|come\s+again|visit|table|tbl|server|cashier|guests?|order\s*#|check\s*#|trans(?:action)?|rounding|tip|gratuity|savings|you\s+saved|discount|coupon|auth(?:orization)?|approved)\b`)
)

// itemCandidate is a line item recovered by one strategy from lines
// first..last inclusive.
type itemCandidate struct {
	item        LineItem
	strategy    string
	first, last int
}

// itemStrategy recognizes one line shape. span is the number of consecutive
// lines the shape occupies.
type itemStrategy struct {
	id    string
	span  int
	match func(lines []Line, i int) (LineItem, bool)
}

// itemStrategies is the ordered chain tried by ParseItems. Appending a
// strategy is how a new receipt layout is supported.
var itemStrategies = []itemStrategy{
	{id: "same-line", span: 1, match: matchSameLine},
	{id: "qty-name/price", span: 2, match: matchQtyNameThenPrice},
	{id: "name/qty-price", span: 2, match: matchNameThenQtyPrice},
	{id: "name/price", span: 2, match: matchNameThenPrice},
	{id: "wide-gap", span: 1, match: matchWideGap},
}

// arena records which lines an earlier strategy already consumed.
type arena struct {
	used []bool
}

func newArena(n int) *arena {
	return &arena{used: make([]bool, n)}
}

func (a *arena) free(i, span int) bool {
	for j := i; j < i+span; j++ {
		if a.used[j] {
			return false
		}
	}
	return true
}

func (a *arena) take(i, span int) {
	for j := i; j < i+span; j++ {
		a.used[j] = true
	}
}

// ParseItems runs the strategy chain over the item-section lines and returns
// the surviving items in document order. A line consumed by an earlier
// strategy is not offered to a later one, so an item that fits several
// shapes is kept once, as the highest-priority strategy read it.
func ParseItems(lines []Line) []LineItem {
	a := newArena(len(lines))
	var found []itemCandidate
	for _, s := range itemStrategies {
		for i := 0; i+s.span <= len(lines); i++ {
			if !a.free(i, s.span) {
				continue
			}
			item, ok := s.match(lines, i)
			if !ok {
				continue
			}
			a.take(i, s.span)
			found = append(found, itemCandidate{item: item, strategy: s.id, first: i, last: i + s.span - 1})
		}
	}

	found = filterItems(found)
	sort.SliceStable(found, func(i, j int) bool { return found[i].first < found[j].first })

	items := make([]LineItem, 0, len(found))
	for _, c := range found {
		items = append(items, c.item)
	}
	return items
}

// filterItems drops candidates named like totals, taxes, tenders or footer
// text, and candidates whose name has no letters. Zero-price items stay.
func filterItems(cs []itemCandidate) []itemCandidate {
	out := cs[:0:0]
	for _, c := range cs {
		if !hasLetter(c.item.Name) || reNonItem.MatchString(c.item.Name) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// newItem validates the pieces of an item. The name needs at least two
// letters and no amounts or decorative runs; the price must not be negative.
func newItem(name string, price decimal.Decimal, qty int, unit *decimal.Decimal) (LineItem, bool) {
	if reDecorative.MatchString(name) || hasAmount(name) {
		return LineItem{}, false
	}
	name = cleanName(name)
	if countLetters(name) < 2 || price.IsNegative() {
		return LineItem{}, false
	}
	it := LineItem{Name: name, Price: price}
	if qty > 0 {
		it.Quantity = ptr(qty)
	}
	if unit != nil && !unit.IsNegative() && (qty > 1 || !unit.Equal(price)) {
		it.UnitPrice = unit
	}
	return it, true
}

// tabular reports whether a line has a bare quantity or amount column between
// its name and its price. Such rows belong to the wide-gap strategy.
func tabular(l Line) bool {
	if len(l.Columns) <= 2 {
		return false
	}
	for _, col := range l.Columns[1 : len(l.Columns)-1] {
		if reInteger.MatchString(col) {
			return true
		}
		if _, ok := bareAmount(col); ok {
			return true
		}
	}
	return false
}

func matchSameLine(lines []Line, i int) (LineItem, bool) {
	if tabular(lines[i]) {
		return LineItem{}, false
	}
	m := reSameLine.FindStringSubmatch(lines[i].Text)
	if m == nil {
		return LineItem{}, false
	}
	price, ok := ParseAmount(m[3] + m[4])
	if !ok {
		return LineItem{}, false
	}
	qty := atoi(m[1])
	name := m[2]

	var unit *decimal.Decimal
	if u := reInlineUnit.FindStringSubmatch(name); u != nil {
		if v, ok := ParseAmount(u[3]); ok {
			name, qty, unit = u[1], atoi(u[2]), &v
		}
	} else if u := reInlineEach.FindStringSubmatch(name); u != nil {
		if v, ok := ParseAmount(u[2]); ok {
			name, unit = u[1], &v
		}
	}
	return newItem(name, price, qty, unit)
}

func matchQtyNameThenPrice(lines []Line, i int) (LineItem, bool) {
	text := lines[i].Text
	m := reQtyName.FindStringSubmatch(text)
	if m == nil || hasAmount(text) {
		return LineItem{}, false
	}
	price, ok := bareAmount(lines[i+1].Text)
	if !ok {
		return LineItem{}, false
	}
	qty := atoi(m[1])
	if qty <= 0 {
		return LineItem{}, false
	}
	return newItem(m[2], price, qty, nil)
}

// isNameOnly reports whether a line can stand alone as an item name.
func isNameOnly(text string) bool {
	return hasLetter(text) && !hasAmount(text) && !reLeadingQty.MatchString(text) &&
		!isDateLine(text) && !reDecorative.MatchString(text)
}

func matchNameThenQtyPrice(lines []Line, i int) (LineItem, bool) {
	if !isNameOnly(lines[i].Text) {
		return LineItem{}, false
	}
	m := reQtyPrice.FindStringSubmatch(lines[i+1].Text)
	if m == nil {
		return LineItem{}, false
	}
	qty := atoi(m[1])
	first, ok := ParseAmount(m[3])
	if qty <= 0 || !ok {
		return LineItem{}, false
	}
	switch {
	case m[4] != "":
		price, ok := ParseAmount(m[4])
		if !ok {
			return LineItem{}, false
		}
		return newItem(lines[i].Text, price, qty, &first)
	case m[2] != "":
		return newItem(lines[i].Text, first.Mul(decimal.NewFromInt(int64(qty))), qty, &first)
	default:
		return newItem(lines[i].Text, first, qty, nil)
	}
}

func matchNameThenPrice(lines []Line, i int) (LineItem, bool) {
	if !isNameOnly(lines[i].Text) {
		return LineItem{}, false
	}
	price, ok := bareAmount(lines[i+1].Text)
	if !ok {
		return LineItem{}, false
	}
	return newItem(lines[i].Text, price, 0, nil)
}

// wideColumns splits a line on wide gaps, or on dotted/dashed leaders when
// the OCR text kept no wide gap.
func wideColumns(l Line) []string {
	if len(l.Columns) > 1 {
		return l.Columns
	}
	var cols []string
	for _, c := range reLeader.Split(l.Text, -1) {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

func matchWideGap(lines []Line, i int) (LineItem, bool) {
	cols := wideColumns(lines[i])
	if len(cols) < 2 {
		return LineItem{}, false
	}
	price, ok := bareAmount(cols[len(cols)-1])
	if !ok {
		return LineItem{}, false
	}

	qty := 0
	rest := cols[:len(cols)-1]
	if len(rest) >= 2 && reInteger.MatchString(rest[0]) {
		qty, _ = strconv.Atoi(rest[0])
		rest = rest[1:]
	}
	name := reLeader.ReplaceAllString(rest[0], " ")

	var unit *decimal.Decimal
	for _, col := range rest[1:] {
		switch {
		case strings.Trim(col, ".-_=*~· ") == "":
		case qty == 0 && reInteger.MatchString(col):
			qty, _ = strconv.Atoi(col)
		case unit == nil:
			v, ok := bareAmount(col)
			if !ok {
				return LineItem{}, false
			}
			unit = &v
		default:
			return LineItem{}, false
		}
	}
	return newItem(name, price, qty, unit)
}
