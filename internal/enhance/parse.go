package enhance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

var maxQuantity = decimal.NewFromInt(math.MaxInt32)

// responseSchema leaves item entries untyped; parseItem drops bad ones.
const responseSchema = `{
  "type": "object",
  "properties": {
    "merchant": {"type": ["string", "null"]},
    "date": {"type": ["string", "null"]},
    "subtotal": {"$ref": "#/$defs/amount"},
    "total": {"$ref": "#/$defs/amount"},
    "tax": {
      "type": ["object", "null"],
      "properties": {
        "gst": {"$ref": "#/$defs/amount"},
        "pst": {"$ref": "#/$defs/amount"},
        "hst": {"$ref": "#/$defs/amount"},
        "qst": {"$ref": "#/$defs/amount"},
        "total": {"$ref": "#/$defs/amount"}
      }
    },
    "items": {"type": ["array", "null"], "items": {"type": "object"}}
  },
  "$defs": {
    "amount": {"type": ["number", "string", "null"]}
  }
}`

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("response.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

type response struct {
	Merchant *string `json:"merchant"`
	Date     *string `json:"date"`
	Subtotal any     `json:"subtotal"`
	Total    any     `json:"total"`
	Tax      *struct {
		GST   any `json:"gst"`
		PST   any `json:"pst"`
		HST   any `json:"hst"`
		QST   any `json:"qst"`
		Total any `json:"total"`
	} `json:"tax"`
	Items []json.RawMessage `json:"items"`
}

type responseItem struct {
	Name      string `json:"name"`
	Price     any    `json:"price"`
	Quantity  any    `json:"quantity"`
	UnitPrice any    `json:"unit_price"`
}

// extractJSON strips code fences and any text around the outermost object.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[startIdx : endIdx+1], nil
}

// ParseResponse turns a model answer into a draft. The answer must be a JSON
// object matching the response schema; within it, unreadable amounts and
// dates are treated as absent and malformed items are skipped one by one.
func ParseResponse(text string) (*extraction.Draft, error) {
	body, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	var resp response
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	d := &extraction.Draft{
		Merchant: resp.Merchant,
		Subtotal: amount(resp.Subtotal),
		Total:    amount(resp.Total),
		Items:    []extraction.LineItem{},
	}
	if resp.Date != nil {
		if date, err := extraction.ParseISODate(strings.TrimSpace(*resp.Date)); err == nil {
			d.Date = &date
		}
	}
	if resp.Tax != nil {
		d.Tax = extraction.TaxBreakdown{
			GST:   amount(resp.Tax.GST),
			PST:   amount(resp.Tax.PST),
			HST:   amount(resp.Tax.HST),
			QST:   amount(resp.Tax.QST),
			Total: amount(resp.Tax.Total),
		}
	}
	for _, raw := range resp.Items {
		if it, ok := parseItem(raw); ok {
			d.Items = append(d.Items, it)
		}
	}

	sanitized := d.Sanitize()
	return &sanitized, nil
}

func parseItem(raw json.RawMessage) (extraction.LineItem, bool) {
	var ri responseItem
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&ri); err != nil {
		return extraction.LineItem{}, false
	}
	price := amount(ri.Price)
	if strings.TrimSpace(ri.Name) == "" || price == nil {
		return extraction.LineItem{}, false
	}
	it := extraction.LineItem{Name: ri.Name, Price: *price, UnitPrice: amount(ri.UnitPrice)}
	if q := amount(ri.Quantity); q != nil && q.IsInteger() && q.IsPositive() && q.LessThanOrEqual(maxQuantity) {
		n := int(q.IntPart())
		it.Quantity = &n
	}
	return it, true
}

// amount reads a JSON number or a money string. Anything else is absent.
func amount(v any) *decimal.Decimal {
	var (
		d  decimal.Decimal
		ok bool
	)
	switch t := v.(type) {
	case json.Number:
		var err error
		d, err = decimal.NewFromString(t.String())
		ok = err == nil
	case string:
		d, ok = extraction.ParseAmount(t)
	}
	if !ok {
		return nil
	}
	return &d
}
