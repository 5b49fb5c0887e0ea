package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var (
	// "Relevé de vos comptes - n°12". Without (?s) the wildcard stays on one line.
	statementMarkerPattern = regexp.MustCompile(`Relevé de vo.* - n°.*`)

	headersPattern = regexp.MustCompile(`(?s)Vos opérations[ \t]*\n(.*?)\n[ \t]*Ancien solde`)
)

// IsStatement reports whether the first page carries the statement marker
// line. It is the only gate deciding whether a document is parsed at all.
func IsStatement(firstPage string) bool {
	return statementMarkerPattern.MatchString(norm.NFC.String(firstPage))
}

// ExtractHeaders returns the column labels printed between "Vos opérations"
// and "Ancien solde" on the first page, one per line.
func ExtractHeaders(firstPage string) ([]string, error) {
	m := headersPattern.FindStringSubmatch(norm.NFC.String(firstPage))
	if m == nil {
		return nil, fmt.Errorf("%w: \"Vos opérations\" / \"Ancien solde\" markers not found", ErrHeaderParse)
	}

	var headers []string
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			headers = append(headers, line)
		}
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: empty header block", ErrHeaderParse)
	}
	return headers, nil
}

// EmissionDate is a lenient probe used when listing an archive: it returns
// false for documents that are not statements or carry no readable date,
// instead of an error.
func EmissionDate(pages []string) (time.Time, bool) {
	if len(pages) == 0 || !IsStatement(pages[0]) {
		return time.Time{}, false
	}
	date, err := ExtractEmissionDate(pages[0])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
