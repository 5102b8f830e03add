package extraction

import (
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Draft is the working shape of a receipt between extraction and assembly.
// Enhancement collaborators return the same shape.
type Draft struct {
	Merchant   *string           `json:"merchant,omitempty"`
	Date       *Date             `json:"date,omitempty"`
	Subtotal   *decimal.Decimal  `json:"subtotal,omitempty"`
	Tax        TaxBreakdown      `json:"tax"`
	Total      *decimal.Decimal  `json:"total,omitempty"`
	Items      []LineItem        `json:"items"`
	Confidence map[Field]float64 `json:"confidence,omitempty"`

	// Enhanced lists the fields taken from an enhancement result.
	Enhanced []Field `json:"-"`
	// SourceConfidence is the OCR engine's confidence in the raw text.
	SourceConfidence float64 `json:"-"`
}

func (d Draft) clone() Draft {
	out := d
	out.Items = slices.Clone(d.Items)
	out.Confidence = maps.Clone(d.Confidence)
	out.Enhanced = slices.Clone(d.Enhanced)
	return out
}

func (d *Draft) setConfidence(f Field, c float64) {
	if d.Confidence == nil {
		d.Confidence = make(map[Field]float64)
	}
	d.Confidence[f] = c
}

func (d Draft) confidenceOf(f Field) float64 {
	return d.Confidence[f]
}

// Sanitize drops values that break record invariants: items without a name
// or with a negative price, non-positive quantities, negative amounts. Names
// are trimmed and capped. Each bad item is dropped on its own.
func (d Draft) Sanitize() Draft {
	out := d.clone()
	if out.Merchant != nil {
		if name := cleanName(*out.Merchant); name != "" {
			out.Merchant = &name
		} else {
			out.Merchant = nil
		}
	}
	out.Subtotal = nonNegative(out.Subtotal)
	out.Total = nonNegative(out.Total)
	out.Tax = TaxBreakdown{
		GST:   nonNegative(out.Tax.GST),
		PST:   nonNegative(out.Tax.PST),
		HST:   nonNegative(out.Tax.HST),
		QST:   nonNegative(out.Tax.QST),
		Total: nonNegative(out.Tax.Total),
	}

	items := make([]LineItem, 0, len(out.Items))
	for _, it := range out.Items {
		it.Name = cleanName(it.Name)
		if it.Name == "" || !hasLetter(it.Name) || it.Price.IsNegative() {
			continue
		}
		if it.Quantity != nil && *it.Quantity <= 0 {
			it.Quantity = nil
		}
		it.UnitPrice = nonNegative(it.UnitPrice)
		if it.UnitPrice != nil && it.UnitPrice.Equal(it.Price) && it.Quantity == nil {
			it.UnitPrice = nil
		}
		items = append(items, it)
	}
	out.Items = items
	return out
}

func nonNegative(v *decimal.Decimal) *decimal.Decimal {
	if v == nil || v.IsNegative() {
		return nil
	}
	return v
}

// cleanName trims decoration from a display name and caps its length.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "@#*-=~_>:|. ")
	s = strings.TrimRight(s, ".,;:-_*#=~|@ ")
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxNameLength {
		s = strings.TrimSpace(string([]rune(s)[:maxNameLength]))
	}
	return s
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func ptr[T any](v T) *T {
	return &v
}
