package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate     = regexp.MustCompile(`\b\d{1,4}[-/.]\d{1,2}[-/.]\d{2,4}\b`)
	reCurrency = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud)\b|[$£€]`)
	reAmount   = regexp.MustCompile(`\b\d{1,3}(,\d{3})*\.\d{2}\b|\b\d+\.\d{2}\b`)
	reTotal    = regexp.MustCompile(`\btotal\b`)
)

// textLayerConfidence is the confidence of text read from a PDF text layer
// rather than recognized from pixels.
const textLayerConfidence = 1.0

// heuristicConfidence scores transcribed text by the receipt cues it contains.
func heuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurrency.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if reTotal.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	return min(score, 1.0)
}

// blendConfidence weights an engine confidence over the heuristic.
func blendConfidence(engine float64, txt string) float64 {
	return min(0.7*engine+0.3*heuristicConfidence(txt), 1.0)
}
