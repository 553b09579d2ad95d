package accounts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// Column names of accounts.csv. Columns are located by name, so hand-edited
// files may reorder them or omit the optional ones.
const (
	colID          = "account_id"
	colName        = "account_name"
	colType        = "account_type"
	colInstitution = "institution"
	colCurrency    = "currency"
)

var header = []string{colID, colName, colType, colInstitution, colCurrency}

var requiredColumns = []string{colID, colType}

// ReadAccounts reads accounts.csv. An empty input yields no accounts.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading accounts header: %w", err)
	}
	col := toIndex(head)
	for _, k := range requiredColumns {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("accounts: missing column %s", k)
		}
	}

	var out []model.Account
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading accounts: %w", err)
		}
		acct, err := unmarshalAccount(rec, col)
		if err != nil {
			return nil, fmt.Errorf("accounts line %d: %w", line, err)
		}
		out = append(out, acct)
	}
	return out, nil
}

// WriteAccounts writes accounts in the canonical column order.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing accounts header: %w", err)
	}
	for _, a := range accounts {
		if err := cw.Write([]string{a.ID, a.Name, string(a.Type), a.Institution, a.Currency}); err != nil {
			return fmt.Errorf("writing account %s: %w", a.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func unmarshalAccount(rec []string, col map[string]int) (model.Account, error) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	a := model.Account{
		ID:          field(colID),
		Name:        field(colName),
		Type:        model.AccountType(field(colType)),
		Institution: field(colInstitution),
		Currency:    strings.ToUpper(field(colCurrency)),
	}
	if a.ID == "" {
		return a, errors.New("empty account_id")
	}
	if !a.Type.Valid() {
		return a, fmt.Errorf("unknown account_type %q", a.Type)
	}
	if a.Name == "" {
		a.Name = a.ID
	}
	return a, nil
}

func toIndex(headers []string) map[string]int {
	m := make(map[string]int, len(headers))
	for i, h := range headers {
		m[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return m
}
