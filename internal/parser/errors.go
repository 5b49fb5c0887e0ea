package parser

import (
	"errors"
	"fmt"
)

// Error kinds returned by Parse, always wrapped in a *DocumentError.
var (
	ErrNotAStatement = errors.New("not a La Banque Postale statement (or not properly formatted)")
	ErrDateParse     = errors.New("emission date parse error")
	ErrHeaderParse   = errors.New("transaction headers parse error")
	ErrStructure     = errors.New("structural parse error")
)

// DocumentError ties a parse failure to the document that caused it, so a
// batch caller can report it and move on to the next file.
type DocumentError struct {
	Document string
	Err      error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %q: %v", e.Document, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Kind is a short machine-readable name for the failure, used in logs and
// API responses.
func (e *DocumentError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrNotAStatement):
		return "not_a_statement"
	case errors.Is(e.Err, ErrDateParse):
		return "date"
	case errors.Is(e.Err, ErrHeaderParse):
		return "headers"
	case errors.Is(e.Err, ErrStructure):
		return "structure"
	default:
		return "unknown"
	}
}
