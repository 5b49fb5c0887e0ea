package parser

import (
	"github.com/insightdelivered/releve-parser/internal/models"
)

// MatchAccounts attributes each transaction to the nearest account header at
// or before its offset. Transactions with no preceding header stay
// unmatched; that is not an error.
func MatchAccounts(transactions []models.Transaction, accounts []models.AccountBlock) {
	for i := range transactions {
		txn := &transactions[i]

		best := -1
		for j, acc := range accounts {
			distance := txn.Offset - acc.Offset
			if distance < 0 {
				continue
			}
			if best < 0 || distance < txn.Offset-accounts[best].Offset {
				best = j
			}
		}

		if best >= 0 {
			txn.AccountID = accounts[best].ID
			txn.AccountName = accounts[best].Name
		}
	}
}
