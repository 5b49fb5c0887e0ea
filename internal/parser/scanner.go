package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/releve-parser/internal/models"
)

// Both scans run over the concatenation of all pages: an account header and
// the lines that follow it may sit on either side of a page break.
var (
	// "\nCompte Courant Postal n°12 345 67A 020\n"
	accountPattern = regexp.MustCompile(`\n([a-zA-Z ]+) n°([\w ]+)\n`)

	// "05/01\nACHAT CB CARREFOUR\n04.01.23 CARTE NUMERO 123\n1 234,56"
	// The description is non-greedy: it stops at the first line break that
	// is followed by an amount.
	transactionPattern = regexp.MustCompile(`(?s)(\d\d)/(\d\d)\s(.*?)\n([\d ]+,\d{2})`)
)

// ScanAccounts returns every account header occurrence in text order.
func ScanAccounts(fullText string) []models.AccountBlock {
	var accounts []models.AccountBlock
	for _, loc := range accountPattern.FindAllStringSubmatchIndex(fullText, -1) {
		accounts = append(accounts, models.AccountBlock{
			Offset: loc[0],
			Name:   fullText[loc[2]:loc[3]],
			ID:     stripSpaces(fullText[loc[4]:loc[5]]),
		})
	}
	return accounts
}

// RejectedToken is a dd/mm lookalike that is not a calendar day and month,
// such as a reference number inside a description.
type RejectedToken struct {
	Offset int
	Text   string
}

// ScanTransactions returns the raw transaction lines in text order with
// offset, day, month, description and amount populated. A date token with an
// impossible day or month is reported as rejected and scanning resumes right
// after it, so the transaction that follows is still found.
func ScanTransactions(fullText string) ([]models.Transaction, []RejectedToken, error) {
	var transactions []models.Transaction
	var rejected []RejectedToken

	for pos := 0; pos < len(fullText); {
		loc := transactionPattern.FindStringSubmatchIndex(fullText[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			loc[i] += pos
		}
		offset := loc[0]

		day, _ := strconv.Atoi(fullText[loc[2]:loc[3]])
		month, _ := strconv.Atoi(fullText[loc[4]:loc[5]])
		if day < 1 || day > 31 || month < 1 || month > 12 {
			rejected = append(rejected, RejectedToken{Offset: offset, Text: fullText[loc[2]:loc[5]]})
			pos = loc[5]
			continue
		}

		amount, err := parseAmount(fullText[loc[8]:loc[9]])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: amount at offset %d: %v", ErrStructure, offset, err)
		}

		transactions = append(transactions, models.Transaction{
			Offset:      offset,
			Day:         day,
			Month:       month,
			Description: fullText[loc[6]:loc[7]],
			Amount:      amount,
		})
		pos = loc[1]
	}
	return transactions, rejected, nil
}

// parseAmount converts a French-formatted amount such as "1 234,56" to a
// decimal. Spaces are thousands separators and the comma is the decimal mark.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(stripSpaces(s), ",", ".")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

// stripSpaces removes every whitespace rune, including the non-breaking
// spaces PDF extraction produces between thousands groups.
func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
