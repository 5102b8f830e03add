package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF    = regexp.MustCompile(`\r\n?`)
	reSpaces  = regexp.MustCompile(`\s+`)
	reWideGap = regexp.MustCompile(`[ ]*\t[\t ]*|[ ]{3,}`)
)

// Line is one normalized OCR line.
type Line struct {
	// Text is the trimmed line with every whitespace run collapsed to one space.
	Text string
	// Columns splits the line on tabs and runs of three or more spaces.
	// A line without a wide gap has a single column.
	Columns []string
}

// Normalize turns raw OCR text into non-empty, trimmed lines in their
// original order. Empty input yields an empty slice.
func Normalize(raw string) []Line {
	lines := make([]Line, 0)
	if strings.TrimSpace(raw) == "" {
		return lines
	}

	raw = norm.NFKC.String(raw)
	raw = reCRLF.ReplaceAllString(raw, "\n")

	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(stripControl(l))
		if l == "" {
			continue
		}
		lines = append(lines, Line{
			Text:    reSpaces.ReplaceAllString(l, " "),
			Columns: splitColumns(l),
		})
	}
	return lines
}

// NormalizeLines is Normalize reduced to the collapsed line texts.
func NormalizeLines(raw string) []string {
	lines := Normalize(raw)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// stripControl removes control and format characters, keeping tabs.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return r
		case r == unicode.ReplacementChar:
			return -1
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
}

func splitColumns(s string) []string {
	parts := reWideGap.Split(s, -1)
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = reSpaces.ReplaceAllString(strings.TrimSpace(p), " "); p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}
