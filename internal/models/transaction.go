package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sign is the credit/debit outcome of classifying a transaction.
type Sign int8

const (
	SignDebit   Sign = -1
	SignUnknown Sign = 0
	SignCredit  Sign = 1
)

func (s Sign) String() string {
	switch s {
	case SignCredit:
		return "credit"
	case SignDebit:
		return "debit"
	default:
		return "unknown"
	}
}

// Decimal returns the sign as a multiplier.
func (s Sign) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(s))
}

// Transaction represents a single statement line.
//
// Offset, Day, Month, Description and Amount come from the text scan.
// Date, AccountID/AccountName and Sign/Keyword/SignedAmount are filled by
// the later pipeline stages.
type Transaction struct {
	Offset      int       `json:"offset"`
	Day         int       `json:"day"`
	Month       int       `json:"month"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`

	// Amount is the unsigned amount as printed on the statement.
	Amount       decimal.Decimal `json:"rawAmount"`
	SignedAmount decimal.Decimal `json:"signedAmount"`

	AccountID   string `json:"accountId,omitempty"` // empty when no account precedes the line
	AccountName string `json:"accountName,omitempty"`

	Sign    Sign   `json:"sign"`
	Keyword string `json:"keyword,omitempty"` // empty when unclassified
}

// Matched reports whether the transaction was attributed to an account.
func (t Transaction) Matched() bool {
	return t.AccountID != ""
}

// AccountBlock is an account header occurrence in the document text.
type AccountBlock struct {
	Offset int    `json:"offset"`
	Name   string `json:"name"`
	ID     string `json:"id"`
}

// Statement holds everything extracted from one document.
type Statement struct {
	Document     string         `json:"document"`
	EmissionDate time.Time      `json:"emissionDate"`
	Headers      []string       `json:"headers"`
	Accounts     []AccountBlock `json:"accounts"`
	Transactions []Transaction  `json:"transactions"`
}

// Totals sums signed amounts per sign. Unknown-sign transactions are summed
// on their raw amount, since their signed amount is always zero.
func (s *Statement) Totals() (credit, debit, unknown decimal.Decimal) {
	for _, txn := range s.Transactions {
		switch txn.Sign {
		case SignCredit:
			credit = credit.Add(txn.SignedAmount)
		case SignDebit:
			debit = debit.Add(txn.SignedAmount)
		default:
			unknown = unknown.Add(txn.Amount)
		}
	}
	return credit, debit, unknown
}
