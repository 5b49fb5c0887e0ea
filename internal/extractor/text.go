// Package extractor supplies the ordered page texts of a statement, either
// from a PDF or from a text file produced by an earlier extraction.
package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Load returns the pages of a .pdf or .txt document.
func Load(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return ExtractText(path)
	case ".txt":
		return ReadTextPages(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q (expected .pdf or .txt)", filepath.Ext(path))
	}
}

// Supported reports whether Load can read the file, judging by its extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt":
		return true
	}
	return false
}

// ReadTextPages reads a text file whose pages are separated by form feeds,
// the format pdftotext writes.
func ReadTextPages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	pages := splitPages(string(data))
	if len(pages) == 0 {
		return nil, fmt.Errorf("%q contains no text", path)
	}
	return pages, nil
}

// splitPages splits on form feeds, normalises line endings and drops blank
// pages.
func splitPages(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var pages []string
	for _, page := range strings.Split(text, "\f") {
		if strings.TrimSpace(page) == "" {
			continue
		}
		pages = append(pages, ensureTrailingNewline(page))
	}
	return pages
}

// textQuality returns the ratio of readable characters (Latin letters,
// digits, whitespace, punctuation and currency symbols) to total characters.
func textQuality(pages []string) float64 {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if unicode.In(r, unicode.Latin, unicode.Nd, unicode.White_Space, unicode.P, unicode.Sc) ||
				r == '°' || r == '¤' || r == '+' || r == '=' {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords appear on virtually every French bank statement page.
var commonWords = []string{
	"relevé", "releve", "compte", "solde", "opérations", "operations",
	"banque", "virement", "prélèvement", "prelevement", "date",
	"crédit", "credit", "débit", "debit", "total", "page",
}

func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires more than 50 characters of text, over 60% of them
// readable, and at least one common statement word.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	return containsCommonWords(pages)
}

// IsReadableText is the exported version for use by other packages.
func IsReadableText(pages []string) bool {
	return isReadableText(pages)
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
