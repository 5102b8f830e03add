package enhance

import (
	"encoding/json"
	"fmt"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

// enhancePrompt is the shared prompt used by all providers. It takes the
// partial record as JSON and the raw OCR text.
const enhancePrompt = `You are reading the OCR text of a store receipt. A rule-based parser has already extracted the fields below; some may be missing or wrong.

Partial extraction:
%s

Return ONLY valid JSON in this exact shape, using null for anything you cannot read from the text:
{
  "merchant": "Store Name",
  "date": "YYYY-MM-DD",
  "subtotal": 0.00,
  "tax": {"gst": null, "pst": null, "hst": null, "qst": null, "total": 0.00},
  "total": 0.00,
  "items": [{"name": "Item", "price": 0.00, "quantity": 1, "unit_price": null}]
}

Important:
- Amounts are numbers in the receipt's currency, without symbols
- "price" is the line total for the item, "unit_price" the price of one unit when shown
- Put unlabeled or combined tax in "total" of "tax"; use gst, pst, hst or qst only when the receipt names them
- Never invent items, subtotals or totals that are not printed on the receipt
- Do not include any text before or after the JSON
- Do not use markdown code blocks

OCR text:
%s`

func buildPrompt(req extraction.EnhanceRequest) (string, error) {
	draft, err := json.MarshalIndent(req.Draft.Draft(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling draft: %w", err)
	}
	return fmt.Sprintf(enhancePrompt, draft, req.RawText), nil
}
