package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// Header is the CSV header for transactions.csv.
const Header = "id,fingerprint,date,account_id,description,merchant,amount,type,currency,balance,category,batch_id,user_id,row_index"

const (
	numFields      = 14
	colID          = 0
	colFingerprint = 1
	colDate        = 2
	colAcctID      = 3
	colDesc        = 4
	colMerchant    = 5
	colAmount      = 6
	colType        = 7
	colCurrency    = 8
	colBalance     = 9
	colCategory    = 10
	colBatchID     = 11
	colUserID      = 12
	colRowIndex    = 13
)

// ReadTransactions reads all transactions from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var txns []model.Transaction
	for i, rec := range records[1:] {
		txn, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// WriteTransactions writes txns to w, header first.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, txn := range txns {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(txn model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = txn.ID
	row[colFingerprint] = string(txn.Fingerprint)
	row[colDate] = txn.DateString()
	row[colAcctID] = txn.AccountID
	row[colDesc] = txn.Description
	row[colMerchant] = txn.Merchant
	row[colAmount] = txn.Amount.StringFixed(2)
	row[colType] = string(txn.Type)
	row[colCurrency] = txn.Currency
	if txn.Balance != nil {
		row[colBalance] = txn.Balance.StringFixed(2)
	}
	row[colCategory] = txn.Category
	row[colBatchID] = txn.BatchID
	row[colUserID] = txn.UserID
	row[colRowIndex] = strconv.Itoa(txn.RowIndex)
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(model.DateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	var balance *decimal.Decimal
	if record[colBalance] != "" {
		b, err := decimal.NewFromString(record[colBalance])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing balance %q: %w", record[colBalance], err)
		}
		balance = &b
	}

	rowIndex, err := strconv.Atoi(record[colRowIndex])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing row_index %q: %w", record[colRowIndex], err)
	}

	return model.Transaction{
		ID:          record[colID],
		Fingerprint: model.Fingerprint(record[colFingerprint]),
		UserID:      record[colUserID],
		AccountID:   record[colAcctID],
		BatchID:     record[colBatchID],
		Date:        date,
		Description: record[colDesc],
		Merchant:    record[colMerchant],
		Amount:      amount,
		Type:        model.TransactionType(record[colType]),
		Currency:    record[colCurrency],
		Balance:     balance,
		Category:    record[colCategory],
		RowIndex:    rowIndex,
	}, nil
}
