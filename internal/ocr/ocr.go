// Package ocr turns receipt images and PDFs into the raw text the extraction
// pipeline reads.
package ocr

import (
	"context"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

// Recognizer defines the interface for turning a receipt file into text
type Recognizer interface {
	// Recognize reads the text of a receipt image or PDF
	Recognize(ctx context.Context, data []byte, contentType string) (extraction.Input, error)
	// Close releases resources
	Close() error
}

// transcribePrompt is the shared prompt used by vision providers
const transcribePrompt = `Transcribe every line of text on this receipt exactly as printed, top to bottom.

Important:
- Keep one printed line per output line
- Keep item names and their prices on the same line, separated by at least three spaces
- Copy numbers, currency symbols and labels exactly; do not correct, total or reformat anything
- Do not add commentary, headings or markdown
- If the image contains no receipt text, return nothing`
