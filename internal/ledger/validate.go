package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// ValidationError describes a single rule violation in a month file.
type ValidationError struct {
	Rule          string
	TransactionID string
	Description   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Rule, e.TransactionID, e.Description)
}

// AccountChecker tests whether an account ID exists.
type AccountChecker interface {
	Exists(id string) bool
}

var hundred = decimal.NewFromInt(100)

// ValidateTransactions checks the rules every row of a month file must
// satisfy. accounts may be nil to skip the account check.
func ValidateTransactions(txns []model.Transaction, accounts AccountChecker, year, month int) []ValidationError {
	var errs []ValidationError
	add := func(rule string, txn model.Transaction, format string, args ...any) {
		errs = append(errs, ValidationError{Rule: rule, TransactionID: txn.ID, Description: fmt.Sprintf(format, args...)})
	}

	seen := make(map[string]bool, len(txns))
	for _, txn := range txns {
		if !txn.Amount.IsPositive() {
			add("positive-amount", txn, "amount %s must be greater than zero", txn.Amount.StringFixed(2))
		}
		if !txn.Type.Valid() {
			add("type", txn, "unknown type %q", txn.Type)
		}
		if accounts != nil && !accounts.Exists(txn.AccountID) {
			add("account", txn, "unknown account %q", txn.AccountID)
		}
		if txn.Date.Year() != year || int(txn.Date.Month()) != month {
			add("month", txn, "date %s not in %04d-%02d", txn.DateString(), year, month)
		}
		if !hasCents(txn.Amount) {
			add("decimals", txn, "amount %s has more than 2 decimal places", txn.Amount)
		}
		if txn.Balance != nil && !hasCents(*txn.Balance) {
			add("decimals", txn, "balance %s has more than 2 decimal places", txn.Balance)
		}
		if txn.Fingerprint == "" {
			add("fingerprint", txn, "missing fingerprint")
		}
		if txn.ID == "" {
			add("unique-id", txn, "missing id")
			continue
		}
		key := txn.UserID + "/" + txn.ID
		if seen[key] {
			add("unique-id", txn, "duplicate id for user %q", txn.UserID)
		}
		seen[key] = true
	}
	return errs
}

func hasCents(d decimal.Decimal) bool {
	scaled := d.Mul(hundred)
	return scaled.Equal(scaled.Floor())
}
