package ocr

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

// minTextLayerLetters is how many letters a PDF text layer needs before it
// is trusted over vision transcription.
const minTextLayerLetters = 20

// Extractor reads a PDF's text layer when it has one and sends everything
// else to a vision Recognizer.
type Extractor struct {
	vision Recognizer
	logger *slog.Logger
}

// NewExtractor creates an Extractor. vision may be nil, in which case images
// and scanned PDFs yield no usable text.
func NewExtractor(vision Recognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{vision: vision, logger: logger}
}

// Recognize implements Recognizer
func (e *Extractor) Recognize(ctx context.Context, data []byte, contentType string) (extraction.Input, error) {
	mimeType := normalizeContentType(contentType)
	if isPDF(data, mimeType) {
		text, err := pdfText(data)
		switch {
		case err != nil:
			e.logger.Warn("Failed to read PDF text layer", "error", err)
		case countLetters(text) >= minTextLayerLetters:
			e.logger.Debug("Using PDF text layer", "length", len(text))
			return extraction.Input{
				Text:       text,
				Confidence: blendConfidence(textLayerConfidence, text),
				Success:    true,
			}, nil
		}
	}

	if e.vision == nil {
		e.logger.Info("No vision recognizer configured", "content_type", mimeType)
		return extraction.Input{}, nil
	}
	return e.vision.Recognize(ctx, data, mimeType)
}

// Close closes the vision recognizer
func (e *Extractor) Close() error {
	if e.vision == nil {
		return nil
	}
	return e.vision.Close()
}

// transcribed wraps a vision model's answer as pipeline input.
func transcribed(text string) extraction.Input {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return extraction.Input{}
	}
	return extraction.Input{
		Text:       text,
		Confidence: heuristicConfidence(text),
		Success:    true,
	}
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
