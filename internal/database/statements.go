package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/releve-parser/internal/models"
)

const dateLayout = "2006-01-02"

// StatementSummary is one row of the statements table.
type StatementSummary struct {
	ID           int64
	Document     string
	EmissionDate time.Time
	Transactions int
}

// SaveStatement stores a parsed statement with its accounts and
// transactions. A statement already stored under the same document name is
// replaced.
func (db *DB) SaveStatement(ctx context.Context, stmt *models.Statement) (int64, error) {
	headers, err := json.Marshal(stmt.Headers)
	if err != nil {
		return 0, fmt.Errorf("encode headers: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM statements WHERE document = ?`, stmt.Document); err != nil {
		return 0, fmt.Errorf("delete previous statement: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO statements (document, emission_date, headers) VALUES (?, ?, ?)
	`, stmt.Document, stmt.EmissionDate.Format(dateLayout), string(headers))
	if err != nil {
		return 0, fmt.Errorf("insert statement: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("statement id: %w", err)
	}

	for _, acc := range stmt.Accounts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (statement_id, text_offset, account_id, name) VALUES (?, ?, ?, ?)
		`, id, acc.Offset, acc.ID, acc.Name); err != nil {
			return 0, fmt.Errorf("insert account: %w", err)
		}
	}

	for _, txn := range stmt.Transactions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (
				statement_id, text_offset, date, description, amount, signed_amount,
				sign, keyword, account_id, account_name
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, txn.Offset, txn.Date.Format(dateLayout), txn.Description,
			txn.Amount.StringFixed(2), txn.SignedAmount.StringFixed(2), int(txn.Sign),
			nullString(txn.Keyword), nullString(txn.AccountID), nullString(txn.AccountName)); err != nil {
			return 0, fmt.Errorf("insert transaction at offset %d: %w", txn.Offset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit statement: %w", err)
	}
	return id, nil
}

// ListStatements returns every stored statement, oldest emission first.
func (db *DB) ListStatements(ctx context.Context) ([]StatementSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, s.document, date(s.emission_date), COUNT(t.text_offset)
		FROM statements s
		LEFT JOIN transactions t ON t.statement_id = s.id
		GROUP BY s.id
		ORDER BY s.emission_date, s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	var out []StatementSummary
	for rows.Next() {
		var s StatementSummary
		var emission string
		if err := rows.Scan(&s.ID, &s.Document, &emission, &s.Transactions); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		if s.EmissionDate, err = time.Parse(dateLayout, emission); err != nil {
			return nil, fmt.Errorf("parse emission date %q: %w", emission, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListTransactions returns stored transactions in date order across all
// statements. An empty accountID returns every account, including
// unmatched transactions.
func (db *DB) ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	query := `
		SELECT text_offset, date(date), description, amount, signed_amount, sign,
			   COALESCE(keyword, ''), COALESCE(account_id, ''), COALESCE(account_name, '')
		FROM transactions`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY date, statement_id, text_offset`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var date, amount, signed string
		var sign int
		if err := rows.Scan(&t.Offset, &date, &t.Description, &amount, &signed, &sign,
			&t.Keyword, &t.AccountID, &t.AccountName); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		t.Day, t.Month = t.Date.Day(), int(t.Date.Month())
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		if t.SignedAmount, err = decimal.NewFromString(signed); err != nil {
			return nil, fmt.Errorf("parse signed amount %q: %w", signed, err)
		}
		t.Sign = models.Sign(sign)
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
