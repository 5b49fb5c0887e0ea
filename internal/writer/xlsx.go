package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/releve-parser/internal/models"
)

const sheetName = "Transactions"

// XLSXWriter writes transactions to an Excel workbook, one row per
// transaction. Amounts are stored as numbers so they can be summed.
type XLSXWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the workbook to path.
func (w *XLSXWriter) WriteToFile(path string, stmt *models.Statement) error {
	f, err := w.build(stmt)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %q: %w", path, err)
	}
	return nil
}

// Write writes the workbook to out.
func (w *XLSXWriter) Write(out io.Writer, stmt *models.Statement) error {
	f, err := w.build(stmt)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *XLSXWriter) build(stmt *models.Statement) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	row := 1
	if w.IncludeHeader {
		for _, meta := range metadataRows(stmt) {
			if err := setRow(f, row, toAny(meta)); err != nil {
				f.Close()
				return nil, err
			}
			row++
		}
	}

	if err := setRow(f, row, toAny(columns)); err != nil {
		f.Close()
		return nil, err
	}
	row++

	for _, txn := range stmt.Transactions {
		amount, _ := txn.Amount.Float64()
		signed, _ := txn.SignedAmount.Float64()
		values := []any{
			txn.Date.Format(dateLayout),
			txn.AccountID,
			txn.AccountName,
			flattenDescription(txn.Description),
			txn.Sign.String(),
			txn.Keyword,
			amount,
			signed,
		}
		if err := setRow(f, row, values); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}
	return f, nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
