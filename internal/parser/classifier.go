package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/insightdelivered/releve-parser/internal/models"
)

// Keywords are the ordered phrases used to decide the sign of a transaction.
// Order matters: the first matching phrase of a list wins, and the credit
// list is always checked before the debit list.
type Keywords struct {
	Credit []string `mapstructure:"credit_keywords" json:"credit"`
	Debit  []string `mapstructure:"debit_keywords" json:"debit"`
}

// DefaultKeywords returns the wording La Banque Postale uses on its
// statements. Callers get a fresh copy they are free to modify.
func DefaultKeywords() Keywords {
	return Keywords{
		Credit: []string{
			"VIREMENT DE",
			"VIREMENT INSTANTANE DE",
			"VIREMENT PERMANENT DE",
			"REMISE DE CHEQUE",
			"REMISE CHEQUE",
			"VERSEMENT",
			"INTERETS CREDITEURS",
			"REMBOURSEMENT CB",
			"REMBOURSEMENT ACHAT",
			"AVOIR",
		},
		Debit: []string{
			"INTERETS DEBITEURS",
			"REMBOURSEMENT PRET",
			"ECHEANCE PRET",
			"ACHAT CB",
			"PRELEVEMENT",
			"VIREMENT POUR",
			"VIREMENT INSTANTANE A",
			"VIREMENT PERMANENT POUR",
			"VIREMENT A",
			"RETRAIT",
			"CHEQUE N",
			"COTISATION",
			"FRAIS",
			"COMMISSION",
			"ACHAT",
		},
	}
}

// Classifier assigns signs from a description. It is immutable once built
// and safe for concurrent use.
type Classifier struct {
	credit []keyword
	debit  []keyword
}

type keyword struct {
	phrase string
	folded string
}

// NewClassifier prepares the keyword lists for case-insensitive matching.
// Empty phrases are ignored: they would match every description.
func NewClassifier(kw Keywords) *Classifier {
	return &Classifier{
		credit: prepareKeywords(kw.Credit),
		debit:  prepareKeywords(kw.Debit),
	}
}

func prepareKeywords(phrases []string) []keyword {
	out := make([]keyword, 0, len(phrases))
	for _, p := range phrases {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, keyword{phrase: p, folded: matchKey(p)})
	}
	return out
}

// Classify returns the sign and the literal keyword that triggered it.
func (c *Classifier) Classify(description string) (models.Sign, string) {
	folded := matchKey(description)
	if kw, ok := firstMatch(c.credit, folded); ok {
		return models.SignCredit, kw
	}
	if kw, ok := firstMatch(c.debit, folded); ok {
		return models.SignDebit, kw
	}
	return models.SignUnknown, ""
}

// matchKey folds case and drops accents, so "Prélèvement" matches
// "PRELEVEMENT".
func matchKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return foldText(stripped)
}

func firstMatch(keywords []keyword, folded string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(folded, kw.folded) {
			return kw.phrase, true
		}
	}
	return "", false
}

// ClassifyAll fills Sign, Keyword and SignedAmount on every transaction.
func (c *Classifier) ClassifyAll(transactions []models.Transaction) {
	for i := range transactions {
		txn := &transactions[i]
		txn.Sign, txn.Keyword = c.Classify(txn.Description)
		txn.SignedAmount = txn.Amount.Mul(txn.Sign.Decimal())
	}
}
