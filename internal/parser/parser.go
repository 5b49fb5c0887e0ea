// Package parser turns the page texts of a La Banque Postale account
// statement into a classified, account-attributed transaction table.
package parser

import (
	"cmp"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/releve-parser/internal/models"
)

// BankName is the only layout this package understands.
const BankName = "La Banque Postale"

// Config configures a Parser.
type Config struct {
	Keywords Keywords
	// Logger receives per-document diagnostics. The zero value discards them.
	Logger zerolog.Logger
}

// Parser holds the immutable parsing configuration. A single Parser may be
// shared by any number of goroutines.
type Parser struct {
	classifier *Classifier
	log        zerolog.Logger
}

// New returns a Parser. An empty keyword configuration falls back to
// DefaultKeywords.
func New(cfg Config) *Parser {
	kw := cfg.Keywords
	if len(kw.Credit) == 0 && len(kw.Debit) == 0 {
		kw = DefaultKeywords()
	}
	return &Parser{
		classifier: NewClassifier(kw),
		log:        cfg.Logger,
	}
}

// BankName returns the human-readable bank name.
func (p *Parser) BankName() string {
	return BankName
}

// Parse runs the whole pipeline over one document. document identifies the
// source (usually its file name) in errors and logs. Either a fully built
// Statement or a *DocumentError is returned, never both.
func (p *Parser) Parse(document string, pages []string) (*models.Statement, error) {
	stmt, err := p.parse(pages)
	if err != nil {
		return nil, &DocumentError{Document: document, Err: err}
	}
	stmt.Document = document

	log := p.log.With().Str("document", document).Logger()
	var unmatched, unknown int
	for _, txn := range stmt.Transactions {
		if !txn.Matched() {
			unmatched++
		}
		if txn.Sign == models.SignUnknown {
			unknown++
		}
	}
	log.Debug().
		Time("emission_date", stmt.EmissionDate).
		Int("accounts", len(stmt.Accounts)).
		Int("transactions", len(stmt.Transactions)).
		Msg("statement parsed")
	if unmatched > 0 {
		log.Warn().Int("count", unmatched).Msg("transactions without a preceding account header")
	}
	if unknown > 0 {
		log.Warn().Int("count", unknown).Msg("transactions with no matching keyword")
	}
	return stmt, nil
}

func (p *Parser) parse(pages []string) (*models.Statement, error) {
	if len(pages) == 0 || !IsStatement(pages[0]) {
		return nil, ErrNotAStatement
	}
	firstPage := pages[0]

	emission, err := ExtractEmissionDate(firstPage)
	if err != nil {
		return nil, err
	}
	headers, err := ExtractHeaders(firstPage)
	if err != nil {
		return nil, err
	}

	fullText := strings.Join(pages, "")

	accounts := ScanAccounts(fullText)
	transactions, rejected, err := ScanTransactions(fullText)
	if err != nil {
		return nil, err
	}
	for _, tok := range rejected {
		p.log.Warn().Str("token", tok.Text).Int("offset", tok.Offset).Msg("skipping invalid date token")
	}
	if err := ResolveDates(transactions, emission); err != nil {
		return nil, err
	}
	MatchAccounts(transactions, accounts)
	p.classifier.ClassifyAll(transactions)

	SortTransactions(transactions)
	slices.SortFunc(accounts, func(a, b models.AccountBlock) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	if transactions == nil {
		transactions = []models.Transaction{}
	}
	if accounts == nil {
		accounts = []models.AccountBlock{}
	}
	return &models.Statement{
		EmissionDate: emission,
		Headers:      headers,
		Accounts:     accounts,
		Transactions: transactions,
	}, nil
}

// SortTransactions orders transactions by date, then by offset. Offsets are
// unique within a document so the order is total.
func SortTransactions(transactions []models.Transaction) {
	slices.SortStableFunc(transactions, func(a, b models.Transaction) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Offset, b.Offset)
	})
}
