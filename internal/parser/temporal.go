package parser

import (
	"fmt"
	"time"

	"github.com/insightdelivered/releve-parser/internal/models"
)

// ResolveDates gives every transaction a full date using the emission year.
//
// Statements issued in January list the last days of December of the
// previous year; those lines are moved back one year. This is the bank's
// reporting convention, not a general calendar rule: a December line in a
// statement issued any other month keeps the emission year.
func ResolveDates(transactions []models.Transaction, emission time.Time) error {
	for i := range transactions {
		txn := &transactions[i]

		year := emission.Year()
		if emission.Month() == time.January && txn.Month == int(time.December) {
			year--
		}

		date, ok := calendarDate(year, time.Month(txn.Month), txn.Day)
		if !ok {
			return fmt.Errorf("%w: %02d/%02d at offset %d is not a date in %d",
				ErrStructure, txn.Day, txn.Month, txn.Offset, year)
		}
		txn.Date = date
	}
	return nil
}
