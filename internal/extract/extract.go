// Package extract finds 16-digit voucher codes in recognized text and
// normalizes them into their canonical digits-only form.
package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// codeLength is the canonical voucher code length after normalization.
const codeLength = 16

// codePattern matches four groups of four decimal digits separated by
// optional whitespace, anchored at word boundaries.
var codePattern = regexp.MustCompile(`\b\d{4}\s*\d{4}\s*\d{4}\s*\d{4}\b`)

// bannedCodes are placeholder codes that vouchers print as samples. They are
// rejected after normalization.
var bannedCodes = map[string]struct{}{
	"1234123412341234": {},
}

// Extractor scans text blobs for voucher codes.
type Extractor struct {
	debugDir string
	log      *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithDebugDir writes the input text, the pattern and the extracted codes to
// the given directory for every call. Write failures are logged, never
// propagated.
func WithDebugDir(dir string) Option {
	return func(e *Extractor) { e.debugDir = dir }
}

// WithLogger sets the logger used for debug artifact failures.
func WithLogger(log *slog.Logger) Option {
	return func(e *Extractor) { e.log = log }
}

// New creates an extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Codes returns the ordered, duplicate-free voucher codes found in text.
// Full-width digits are folded to their ASCII forms before matching, since
// OCR output on CJK-locale vouchers frequently contains them.
func (e *Extractor) Codes(text string) []string {
	folded := width.Fold.String(text)

	var codes []string
	seen := make(map[string]struct{})
	for _, match := range codePattern.FindAllString(folded, -1) {
		code := stripSpace(match)
		if len(code) != codeLength {
			continue
		}
		if _, banned := bannedCodes[code]; banned {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	if e.debugDir != "" {
		e.dumpArtifact(text, codes)
	}
	return codes
}

// CodesFromLines extracts from merged recognition lines joined by newlines.
func (e *Extractor) CodesFromLines(lines []string) []string {
	return e.Codes(strings.Join(lines, "\n"))
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
