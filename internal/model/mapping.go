package model

import (
	"fmt"
	"strings"
)

// Field is a semantic transaction field a file column can be mapped to.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
	FieldDebit       Field = "debit"
	FieldCredit      Field = "credit"
	FieldBalance     Field = "balance"
	FieldCurrency    Field = "currency"
	FieldMerchant    Field = "merchant"
)

// Fields lists every mappable field in display order.
func Fields() []Field {
	return []Field{FieldDate, FieldDescription, FieldAmount, FieldDebit, FieldCredit, FieldBalance, FieldCurrency, FieldMerchant}
}

// ParseField converts a field name like "Debit" to a Field.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Fields() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// SignConvention decides how a single signed amount column is read.
type SignConvention string

const (
	// SignPositiveIncome reads positive values as money in (bank accounts).
	SignPositiveIncome SignConvention = "positive-income"
	// SignPositiveExpense reads positive values as money out (most card statements).
	SignPositiveExpense SignConvention = "positive-expense"
)

// Valid reports whether c is a known convention. Empty is not valid.
func (c SignConvention) Valid() bool {
	return c == SignPositiveIncome || c == SignPositiveExpense
}

// FieldMapping maps transaction fields to column header names.
// Either Amount is set, or both Debit and Credit are.
type FieldMapping struct {
	Date        string         `json:"date" yaml:"date"`
	Description string         `json:"description" yaml:"description"`
	Amount      string         `json:"amount,omitempty" yaml:"amount,omitempty"`
	Debit       string         `json:"debit,omitempty" yaml:"debit,omitempty"`
	Credit      string         `json:"credit,omitempty" yaml:"credit,omitempty"`
	Balance     string         `json:"balance,omitempty" yaml:"balance,omitempty"`
	Currency    string         `json:"currency,omitempty" yaml:"currency,omitempty"`
	Merchant    string         `json:"merchant,omitempty" yaml:"merchant,omitempty"`
	DateFormat  string         `json:"date_format,omitempty" yaml:"date_format,omitempty"`
	Sign        SignConvention `json:"sign,omitempty" yaml:"sign,omitempty"`
}

// Get returns the column mapped to f, or "".
func (m FieldMapping) Get(f Field) string {
	switch f {
	case FieldDate:
		return m.Date
	case FieldDescription:
		return m.Description
	case FieldAmount:
		return m.Amount
	case FieldDebit:
		return m.Debit
	case FieldCredit:
		return m.Credit
	case FieldBalance:
		return m.Balance
	case FieldCurrency:
		return m.Currency
	case FieldMerchant:
		return m.Merchant
	}
	return ""
}

// Set maps f to column. An empty column unmaps the field.
func (m *FieldMapping) Set(f Field, column string) {
	switch f {
	case FieldDate:
		m.Date = column
	case FieldDescription:
		m.Description = column
	case FieldAmount:
		m.Amount = column
	case FieldDebit:
		m.Debit = column
	case FieldCredit:
		m.Credit = column
	case FieldBalance:
		m.Balance = column
	case FieldCurrency:
		m.Currency = column
	case FieldMerchant:
		m.Merchant = column
	}
}

// HasDebitCredit reports whether both halves of the debit/credit pair are mapped.
func (m FieldMapping) HasDebitCredit() bool {
	return m.Debit != "" && m.Credit != ""
}
