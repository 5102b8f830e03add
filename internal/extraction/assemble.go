package extraction

import (
	"maps"
	"slices"
)

// Assemble packages a draft into a ReceiptRecord. It accepts any draft,
// including an empty one, and always yields a non-nil item list.
func Assemble(d Draft, raw string, confidence float64, issues []Issue) ReceiptRecord {
	items := slices.Clone(d.Items)
	if items == nil {
		items = []LineItem{}
	}
	return ReceiptRecord{
		SchemaVersion:   SchemaVersion,
		Merchant:        d.Merchant,
		Date:            d.Date,
		Subtotal:        d.Subtotal,
		Tax:             d.Tax,
		Total:           d.Total,
		Items:           items,
		RawText:         raw,
		Confidence:      roundConfidence(confidence),
		FieldConfidence: roundFieldConfidence(d.Confidence),
		Issues:          slices.Clone(issues),
		EnhancedFields:  slices.Clone(d.Enhanced),
	}
}

func roundFieldConfidence(c map[Field]float64) map[Field]float64 {
	if c == nil {
		return nil
	}
	out := make(map[Field]float64, len(c))
	for f, v := range c {
		out[f] = roundConfidence(v)
	}
	return out
}

// Empty is the record for input that carries no usable signal.
func Empty(raw string) ReceiptRecord {
	return Assemble(Draft{}, raw, 0, nil)
}

// Draft returns the record's values as a draft, for handing to an
// enhancement collaborator or comparing runs.
func (r ReceiptRecord) Draft() Draft {
	return Draft{
		Merchant:   r.Merchant,
		Date:       r.Date,
		Subtotal:   r.Subtotal,
		Tax:        r.Tax,
		Total:      r.Total,
		Items:      slices.Clone(r.Items),
		Confidence: maps.Clone(r.FieldConfidence),
	}
}
