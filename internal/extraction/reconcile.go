package extraction

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Issue codes.
const (
	IssueItemsSubtotal    = "items_subtotal_mismatch"
	IssueSubtotalTaxTotal = "subtotal_tax_total_mismatch"
	IssueItemsTotal       = "items_total_mismatch"
	IssueTaxComponents    = "tax_components_mismatch"
)

// Confidence multipliers applied per inconsistency.
const (
	itemsSubtotalPenalty    = 0.75
	subtotalTaxTotalPenalty = 0.7
	itemsTotalPenalty       = 0.85
	taxComponentsPenalty    = 0.9
)

// fieldWeights sum to 1.
var fieldWeights = []struct {
	field  Field
	weight float64
}{
	{FieldTotal, 0.30},
	{FieldItems, 0.20},
	{FieldMerchant, 0.15},
	{FieldSubtotal, 0.15},
	{FieldDate, 0.10},
	{FieldTax, 0.10},
}

// Tolerance is how far two amounts may differ and still agree: the larger
// of Ratio times the reference amount and Absolute.
type Tolerance struct {
	Ratio    decimal.Decimal
	Absolute decimal.Decimal
}

// DefaultTolerance allows the greater of 1% or 0.05.
func DefaultTolerance() Tolerance {
	return Tolerance{
		Ratio:    decimal.RequireFromString("0.01"),
		Absolute: decimal.RequireFromString("0.05"),
	}
}

// Allowance returns the permitted difference around reference.
func (t Tolerance) Allowance(reference decimal.Decimal) decimal.Decimal {
	return decimal.Max(reference.Abs().Mul(t.Ratio), t.Absolute)
}

// Agree reports whether actual is within tolerance of expected.
func (t Tolerance) Agree(expected, actual decimal.Decimal) bool {
	return expected.Sub(actual).Abs().LessThanOrEqual(t.Allowance(expected))
}

// Reconciler cross-checks draft values against each other. It scores and
// flags; it never changes a value.
type Reconciler struct {
	tolerance Tolerance
}

func NewReconciler(t Tolerance) Reconciler {
	return Reconciler{tolerance: t}
}

// Reconcile returns the overall confidence of the draft and the
// inconsistencies found in it.
func (r Reconciler) Reconcile(d Draft) (float64, []Issue) {
	score := 0.0
	for _, fw := range fieldWeights {
		if r.present(d, fw.field) {
			score += fw.weight * d.confidenceOf(fw.field)
		}
	}

	var issues []Issue
	flag := func(code, msg string, expected, actual decimal.Decimal, penalty float64) {
		issues = append(issues, Issue{Code: code, Message: msg, Expected: ptr(expected), Actual: ptr(actual)})
		score *= penalty
	}

	itemsSum := ItemsSum(d.Items)
	taxSum, _ := d.Tax.Sum()

	if len(d.Items) > 0 && d.Subtotal != nil && !r.tolerance.Agree(*d.Subtotal, itemsSum) {
		flag(IssueItemsSubtotal,
			fmt.Sprintf("items add up to %s, subtotal is %s", itemsSum.StringFixed(2), d.Subtotal.StringFixed(2)),
			*d.Subtotal, itemsSum, itemsSubtotalPenalty)
	}
	if d.Subtotal != nil && d.Total != nil {
		expected := d.Subtotal.Add(taxSum)
		if !r.tolerance.Agree(*d.Total, expected) {
			flag(IssueSubtotalTaxTotal,
				fmt.Sprintf("subtotal plus tax is %s, total is %s", expected.StringFixed(2), d.Total.StringFixed(2)),
				expected, *d.Total, subtotalTaxTotalPenalty)
		}
	}
	if d.Subtotal == nil && d.Total != nil && len(d.Items) > 0 {
		expected := itemsSum.Add(taxSum)
		if !r.tolerance.Agree(*d.Total, expected) {
			flag(IssueItemsTotal,
				fmt.Sprintf("items plus tax is %s, total is %s", expected.StringFixed(2), d.Total.StringFixed(2)),
				expected, *d.Total, itemsTotalPenalty)
		}
	}
	if d.Tax.HasNamed() && d.Tax.Total != nil && !r.tolerance.Agree(*d.Tax.Total, d.Tax.NamedSum()) {
		flag(IssueTaxComponents,
			fmt.Sprintf("tax components add up to %s, tax total is %s", d.Tax.NamedSum().StringFixed(2), d.Tax.Total.StringFixed(2)),
			*d.Tax.Total, d.Tax.NamedSum(), taxComponentsPenalty)
	}

	score *= sourceFactor(d.SourceConfidence)
	return roundConfidence(score), issues
}

func (r Reconciler) present(d Draft, f Field) bool {
	switch f {
	case FieldMerchant:
		return d.Merchant != nil
	case FieldDate:
		return d.Date != nil
	case FieldSubtotal:
		return d.Subtotal != nil
	case FieldTax:
		return !d.Tax.IsEmpty()
	case FieldTotal:
		return d.Total != nil
	case FieldItems:
		return len(d.Items) > 0
	}
	return false
}

// sourceFactor maps the OCR engine's confidence onto [0.5, 1].
func sourceFactor(ocr float64) float64 {
	return 0.5 + 0.5*clamp01(ocr)
}

func roundConfidence(v float64) float64 {
	return math.Round(clamp01(v)*10000) / 10000
}
