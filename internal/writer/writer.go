// Package writer renders parsed statements as CSV or XLSX.
package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/insightdelivered/releve-parser/internal/models"
)

// Writer renders a statement to a stream or a file.
type Writer interface {
	Write(out io.Writer, stmt *models.Statement) error
	WriteToFile(path string, stmt *models.Statement) error
}

// New returns the writer for format ("csv" or "xlsx").
func New(format string, includeHeader bool) (Writer, error) {
	switch strings.ToLower(format) {
	case "", "csv":
		return &CSVWriter{IncludeHeader: includeHeader}, nil
	case "xlsx":
		return &XLSXWriter{IncludeHeader: includeHeader}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (expected csv or xlsx)", format)
	}
}

// Extension returns the file extension, with dot, for format.
func Extension(format string) string {
	if strings.ToLower(format) == "xlsx" {
		return ".xlsx"
	}
	return ".csv"
}
