package extraction

import (
	"slices"

	"github.com/shopspring/decimal"
)

// enhancedConfidence is the field confidence given to values adopted from an
// enhancement result.
const enhancedConfidence = 0.7

// Merge folds an enhancement result into the deterministic draft. A field is
// taken from the enhancement only when the draft lacks it; merchant, date and
// total found by the deterministic pass are never replaced. Items are
// replaced only by a strictly longer list. Neither argument is modified.
func Merge(draft, enhanced Draft) Draft {
	out := draft.clone()
	take := func(f Field) {
		out.setConfidence(f, enhancedConfidence)
		out.Enhanced = append(out.Enhanced, f)
	}

	if out.Merchant == nil && enhanced.Merchant != nil {
		out.Merchant = enhanced.Merchant
		take(FieldMerchant)
	}
	if out.Date == nil && enhanced.Date != nil {
		out.Date = enhanced.Date
		take(FieldDate)
	}
	if out.Total == nil && enhanced.Total != nil {
		out.Total = enhanced.Total
		take(FieldTotal)
	}
	if out.Subtotal == nil && enhanced.Subtotal != nil {
		out.Subtotal = enhanced.Subtotal
		take(FieldSubtotal)
	}

	tookTax := false
	fill := func(dst **decimal.Decimal, src *decimal.Decimal) {
		if *dst == nil && src != nil {
			*dst = src
			tookTax = true
		}
	}
	fill(&out.Tax.GST, enhanced.Tax.GST)
	fill(&out.Tax.PST, enhanced.Tax.PST)
	fill(&out.Tax.HST, enhanced.Tax.HST)
	fill(&out.Tax.QST, enhanced.Tax.QST)
	fill(&out.Tax.Total, enhanced.Tax.Total)
	if tookTax {
		if _, found := draft.Confidence[FieldTax]; found {
			out.Enhanced = append(out.Enhanced, FieldTax)
		} else {
			take(FieldTax)
		}
	}

	if len(enhanced.Items) > len(out.Items) {
		out.Items = slices.Clone(enhanced.Items)
		take(FieldItems)
	}
	return out
}
