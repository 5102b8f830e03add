package extraction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SchemaVersion identifies the layout of ReceiptRecord. Consumers store records
// verbatim, so any change to field names or meaning bumps this value.
const SchemaVersion = 1

// maxNameLength is the longest item or merchant name kept, in runes.
const maxNameLength = 150

// Field names a scored field of a receipt.
type Field string

const (
	FieldMerchant Field = "merchant"
	FieldDate     Field = "date"
	FieldSubtotal Field = "subtotal"
	FieldTax      Field = "tax"
	FieldTotal    Field = "total"
	FieldItems    Field = "items"
)

// Date is a calendar date without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the date if year, month and day form a real calendar day.
func NewDate(year, month, day int) (Date, bool) {
	if month < 1 || month > 12 || day < 1 || year < 1 {
		return Date{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return Date{}, false
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, true
}

// ParseISODate parses a YYYY-MM-DD string.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseISODate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LineItem is one purchased entry on a receipt.
type LineItem struct {
	Name      string           `json:"name"`
	Price     decimal.Decimal  `json:"price"`                // aggregate price for the line
	Quantity  *int             `json:"quantity,omitempty"`   // positive when present
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"` // only when distinct from Price
}

// TaxBreakdown holds the named tax components plus an optional aggregate.
// GST and PST are the federal and provincial components, HST and QST the
// harmonized and Quebec alternates. Total alone, with no named component,
// is unclassified tax.
type TaxBreakdown struct {
	GST   *decimal.Decimal `json:"gst,omitempty"`
	PST   *decimal.Decimal `json:"pst,omitempty"`
	HST   *decimal.Decimal `json:"hst,omitempty"`
	QST   *decimal.Decimal `json:"qst,omitempty"`
	Total *decimal.Decimal `json:"total,omitempty"`
}

func (t TaxBreakdown) named() []*decimal.Decimal {
	return []*decimal.Decimal{t.GST, t.PST, t.HST, t.QST}
}

// HasNamed reports whether any named component is present.
func (t TaxBreakdown) HasNamed() bool {
	for _, v := range t.named() {
		if v != nil {
			return true
		}
	}
	return false
}

// NamedSum adds up the named components that are present.
func (t TaxBreakdown) NamedSum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t.named() {
		if v != nil {
			sum = sum.Add(*v)
		}
	}
	return sum
}

// Sum is the tax to add to a subtotal: the named components when any are
// present, otherwise the aggregate. ok is false when no tax was found.
func (t TaxBreakdown) Sum() (sum decimal.Decimal, ok bool) {
	if t.HasNamed() {
		return t.NamedSum(), true
	}
	if t.Total != nil {
		return *t.Total, true
	}
	return decimal.Zero, false
}

// IsEmpty reports whether no tax value at all was found.
func (t TaxBreakdown) IsEmpty() bool {
	return !t.HasNamed() && t.Total == nil
}

// Issue is an inconsistency flagged by the reconciler. Flagged values are
// never corrected in the record.
type Issue struct {
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Expected *decimal.Decimal `json:"expected,omitempty"`
	Actual   *decimal.Decimal `json:"actual,omitempty"`
}

// ReceiptRecord is the assembled result of one pipeline run. It is not
// modified after assembly.
type ReceiptRecord struct {
	SchemaVersion   int               `json:"schema_version"`
	Merchant        *string           `json:"merchant,omitempty"`
	Date            *Date             `json:"date,omitempty"`
	Subtotal        *decimal.Decimal  `json:"subtotal,omitempty"`
	Tax             TaxBreakdown      `json:"tax"`
	Total           *decimal.Decimal  `json:"total,omitempty"`
	Items           []LineItem        `json:"items"`
	RawText         string            `json:"raw_text"`
	Confidence      float64           `json:"confidence"`
	FieldConfidence map[Field]float64 `json:"field_confidence,omitempty"`
	Issues          []Issue           `json:"issues,omitempty"`
	EnhancedFields  []Field           `json:"enhanced_fields,omitempty"`
}

// NeedsReview reports whether the record should be confirmed by a person
// before it is used, given the caller's auto-accept threshold.
func (r ReceiptRecord) NeedsReview(threshold float64) bool {
	return r.Confidence < threshold
}

// ItemsSum adds up the aggregate price of every item.
func ItemsSum(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price)
	}
	return sum
}

// Input is what the OCR collaborator hands the pipeline.
type Input struct {
	Text       string
	Confidence float64 // OCR engine confidence in [0,1]
	Success    bool
}
