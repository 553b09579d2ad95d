package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the ISO-8601 calendar date layout used for transaction dates.
const DateFormat = "2006-01-02"

// DefaultCurrency is applied when an import has no currency column.
const DefaultCurrency = "CAD"

// TransactionType says which way money moved.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Transaction is one imported bank transaction. Until a batch is committed
// it is only a candidate.
type Transaction struct {
	ID          string      // row-scoped identity, see id.Transaction
	Fingerprint Fingerprint // content identity, see id.Fingerprint
	UserID      string
	AccountID   string
	BatchID     string
	Date        time.Time
	Description string
	Merchant    string
	Amount      decimal.Decimal // never negative; Type carries the direction
	Type        TransactionType
	Currency    string
	Balance     *decimal.Decimal
	Category    string
	RowIndex    int
}

// DateString returns the ISO calendar date of the transaction.
func (t Transaction) DateString() string {
	return t.Date.Format(DateFormat)
}

// Signed returns the amount with expenses negated.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}
