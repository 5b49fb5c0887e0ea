package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/insightdelivered/releve-parser/internal/models"
)

const dateLayout = "2006-01-02"

// columns shared by every output format.
var columns = []string{"Date", "Account", "Account Name", "Description", "Sign", "Keyword", "Amount", "Signed Amount"}

// CSVWriter renders one row per transaction. With IncludeHeader, "#"
// prefixed rows describing the statement and its accounts come first.
type CSVWriter struct {
	IncludeHeader bool
}

func (w *CSVWriter) WriteToFile(path string, stmt *models.Statement) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, stmt); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (w *CSVWriter) Write(out io.Writer, stmt *models.Statement) error {
	writer := csv.NewWriter(out)

	if w.IncludeHeader {
		for _, row := range metadataRows(stmt) {
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, txn := range stmt.Transactions {
		if err := writer.Write(transactionRow(txn)); err != nil {
			return fmt.Errorf("failed to write transaction at offset %d: %w", txn.Offset, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func metadataRows(stmt *models.Statement) [][]string {
	rows := [][]string{{"# Bank", "La Banque Postale"}}
	if stmt.Document != "" {
		rows = append(rows, []string{"# Document", stmt.Document})
	}
	if !stmt.EmissionDate.IsZero() {
		rows = append(rows, []string{"# Emission Date", stmt.EmissionDate.Format(dateLayout)})
	}
	for _, acc := range stmt.Accounts {
		rows = append(rows, []string{"# Account", acc.ID, acc.Name})
	}
	return rows
}

func transactionRow(txn models.Transaction) []string {
	return []string{
		txn.Date.Format(dateLayout),
		txn.AccountID,
		txn.AccountName,
		flattenDescription(txn.Description),
		txn.Sign.String(),
		txn.Keyword,
		txn.Amount.StringFixed(2),
		txn.SignedAmount.StringFixed(2),
	}
}

// flattenDescription joins the lines of a multi-line description.
func flattenDescription(desc string) string {
	return strings.Join(strings.Fields(desc), " ")
}
