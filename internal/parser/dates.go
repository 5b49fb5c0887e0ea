package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// "Relevé édité le 15 janvier 2023". The day may be written "1er".
var emissionDatePattern = regexp.MustCompile(`Relevé édité le (\d{1,2})(?:er)?\s+(\pL+)\s+(\d{4})`)

// frenchMonths is keyed by the folded, NFC-normalised full month name.
// Lookups never depend on the process locale.
var frenchMonths = func() map[string]time.Month {
	names := []string{
		"janvier", "février", "mars", "avril", "mai", "juin",
		"juillet", "août", "septembre", "octobre", "novembre", "décembre",
	}
	m := make(map[string]time.Month, len(names))
	for i, name := range names {
		m[foldText(name)] = time.Month(i + 1)
	}
	return m
}()

// foldText returns a caseless, composed form of s suitable for comparisons.
// A new Caser is built per call: Casers carry state and are not safe to share.
func foldText(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// ExtractEmissionDate finds the "Relevé édité le ..." phrase on the first
// page and returns the issue date at day precision (UTC).
func ExtractEmissionDate(firstPage string) (time.Time, error) {
	m := emissionDatePattern.FindStringSubmatch(norm.NFC.String(firstPage))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: emission date phrase not found", ErrDateParse)
	}

	day, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid day %q", ErrDateParse, m[1])
	}
	month, ok := frenchMonths[foldText(m[2])]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month name %q", ErrDateParse, m[2])
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid year %q", ErrDateParse, m[3])
	}

	date, ok := calendarDate(year, month, day)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s is not a calendar date", ErrDateParse, m[0])
	}
	return date, nil
}

// calendarDate builds a UTC date, rejecting values time.Date would normalise
// (31 February becoming 3 March, and so on).
func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}
