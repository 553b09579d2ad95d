package importer

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack-dev/fintrack/internal/id"
	"github.com/fintrack-dev/fintrack/internal/model"
)

// dateLayouts are tried in order when the mapping has no DateFormat.
// Day-first numeric dates are ambiguous with month-first ones; month-first
// wins unless a DateFormat says otherwise.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"1-2-2006",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
}

// Categorizer assigns a category to a normalized transaction, or "".
type Categorizer interface {
	Categorize(txn model.Transaction) string
}

// NormalizeOptions carries the per-import context rows are normalized in.
type NormalizeOptions struct {
	UserID      string
	AccountID   string
	Currency    string // default for rows without a currency column; "" means CAD
	Categorizer Categorizer
}

// Normalizer turns raw records into candidate transactions. Build one per
// mapping; it is safe for concurrent use.
type Normalizer struct {
	mapping model.FieldMapping
	binding Binding
	headers []string
	opts    NormalizeOptions
}

// NewNormalizer validates m and binds it to headers.
func NewNormalizer(m model.FieldMapping, headers []string, opts NormalizeOptions) (*Normalizer, error) {
	m, err := Validate(m)
	if err != nil {
		return nil, err
	}
	b, err := Bind(m, headers)
	if err != nil {
		return nil, err
	}
	if opts.Currency == "" {
		opts.Currency = model.DefaultCurrency
	}
	return &Normalizer{mapping: m, binding: b, headers: headers, opts: opts}, nil
}

// Mapping returns the validated mapping.
func (n *Normalizer) Mapping() model.FieldMapping { return n.mapping }

// Normalize converts one record. It reports false when the row carries no
// money movement and should be dropped. A row whose date cannot be read
// returns a ParseError.
func (n *Normalizer) Normalize(record []string, rowIndex int) (model.Transaction, bool, error) {
	b := n.binding
	description := cell(record, b.Description)

	var amount decimal.Decimal
	var typ model.TransactionType
	if b.Amount >= 0 {
		amount, typ = ClassifySigned(ParseAmount(cell(record, b.Amount)), n.mapping.Sign)
	} else {
		amount, typ = Classify(ParseAmount(cell(record, b.Debit)), ParseAmount(cell(record, b.Credit)), description)
	}
	// Ledgers hold cents; sub-cent amounts such as FX fees are rounded.
	amount = amount.Round(2)
	if amount.IsZero() {
		return model.Transaction{}, false, nil
	}

	rawDate := cell(record, b.Date)
	date, err := parseDate(rawDate, n.mapping.DateFormat)
	if err != nil {
		return model.Transaction{}, false, ParseError{
			Row:    rowIndex,
			Column: n.headers[b.Date],
			Reason: err.Error(),
		}
	}

	txn := model.Transaction{
		UserID:      n.opts.UserID,
		AccountID:   n.opts.AccountID,
		Date:        date,
		Description: description,
		Merchant:    cell(record, b.Merchant),
		Amount:      amount,
		Type:        typ,
		Currency:    n.opts.Currency,
		RowIndex:    rowIndex,
	}
	if c := strings.ToUpper(cell(record, b.Currency)); c != "" {
		txn.Currency = c
	}
	if raw := cell(record, b.Balance); raw != "" {
		bal := ParseAmount(raw).Round(2)
		txn.Balance = &bal
	}

	ds := txn.DateString()
	txn.ID = id.Transaction(ds, description, amount, rowIndex)
	txn.Fingerprint = id.Fingerprint(ds, description, amount)
	if n.opts.Categorizer != nil {
		txn.Category = n.opts.Categorizer.Categorize(txn)
	}
	return txn, true, nil
}

// NormalizeTable normalizes every row of t. Rows with unreadable dates are
// returned as ParseErrors with their file line set; zero-amount rows are
// silently dropped.
func (n *Normalizer) NormalizeTable(t *RawTable) ([]model.Transaction, []ParseError) {
	var txns []model.Transaction
	var skipped []ParseError
	for i := 0; i < t.RowCount(); i++ {
		txn, ok, err := n.Normalize(t.records[i], i)
		if err != nil {
			pe := err.(ParseError)
			pe.Line = t.Line(i)
			skipped = append(skipped, pe)
			continue
		}
		if ok {
			txns = append(txns, txn)
		}
	}
	return txns, skipped
}

// Normalize converts a header-keyed row under mapping m into a candidate for
// account. It is the one-shot form of Normalizer.Normalize; a nil result
// with a nil error means the row was dropped.
func Normalize(row map[string]string, m model.FieldMapping, rowIndex int, account string) (*model.Transaction, error) {
	headers := make([]string, 0, len(row))
	record := make([]string, 0, len(row))
	for _, f := range model.Fields() {
		col := m.Get(f)
		if col == "" || slices.Contains(headers, col) {
			continue
		}
		headers = append(headers, col)
		record = append(record, strings.TrimSpace(row[col]))
	}

	n, err := NewNormalizer(m, headers, NormalizeOptions{AccountID: account})
	if err != nil {
		return nil, err
	}
	txn, ok, err := n.Normalize(record, rowIndex)
	if err != nil || !ok {
		return nil, err
	}
	return &txn, nil
}

// Classify applies the debit/credit policy: credit is money in, debit is
// money out. When neither is positive, a payment-looking description is
// income of whichever value is non-zero; anything else is a zero expense.
func Classify(debit, credit decimal.Decimal, description string) (decimal.Decimal, model.TransactionType) {
	switch {
	case credit.IsPositive():
		return credit, model.TypeIncome
	case debit.IsPositive():
		return debit, model.TypeExpense
	case isPayment(description):
		if !credit.IsZero() {
			return credit.Abs(), model.TypeIncome
		}
		return debit.Abs(), model.TypeIncome
	}
	return decimal.Zero, model.TypeExpense
}

// ClassifySigned reads a single signed amount under the given convention.
// The returned amount is always the magnitude.
func ClassifySigned(amount decimal.Decimal, sign model.SignConvention) (decimal.Decimal, model.TransactionType) {
	if amount.IsZero() {
		return decimal.Zero, model.TypeExpense
	}
	positive := amount.IsPositive()
	if sign == model.SignPositiveExpense {
		positive = !positive
	}
	if positive {
		return amount.Abs(), model.TypeIncome
	}
	return amount.Abs(), model.TypeExpense
}

func isPayment(description string) bool {
	upper := strings.ToUpper(description)
	return strings.Contains(upper, "PAYMENT") || strings.Contains(upper, "THANK YOU")
}

func parseDate(raw, layout string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty date")
	}
	layouts := dateLayouts
	if layout != "" {
		layouts = []string{layout}
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", raw)
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}
