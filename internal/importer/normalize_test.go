package importer

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack-dev/fintrack/internal/model"
)

var debitCreditMapping = model.FieldMapping{Date: "Date", Description: "Description", Debit: "Debit", Credit: "Credit"}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalize_DebitCreditScenario(t *testing.T) {
	tbl, err := Detect("Date,Description,Debit,Credit\n2024-01-15,LOBLAWS,156.42,\n2024-01-13,E-TRANSFER,,500.00")
	require.NoError(t, err)

	m := AutoDetect(tbl)
	n, err := NewNormalizer(m, tbl.Headers, NormalizeOptions{AccountID: "chequing", UserID: "u1"})
	require.NoError(t, err)

	txns, skipped := n.NormalizeTable(tbl)
	assert.Empty(t, skipped)
	require.Len(t, txns, 2)

	assert.Equal(t, model.TypeExpense, txns[0].Type)
	assert.True(t, dec("156.42").Equal(txns[0].Amount))
	assert.Equal(t, "2024-01-15", txns[0].DateString())
	assert.Equal(t, "LOBLAWS", txns[0].Description)
	assert.Equal(t, "CAD", txns[0].Currency)
	assert.Equal(t, "chequing", txns[0].AccountID)
	assert.Equal(t, "u1", txns[0].UserID)

	assert.Equal(t, model.TypeIncome, txns[1].Type)
	assert.Equal(t, "500.00", txns[1].Amount.StringFixed(2))
	assert.Equal(t, 1, txns[1].RowIndex)
}

func TestNormalize_PaymentWithZeroAmountsDropped(t *testing.T) {
	row := map[string]string{"Date": "2024-02-01", "Description": "PAYMENT THANK YOU", "Debit": "0", "Credit": "0"}

	amount, typ := Classify(dec("0"), dec("0"), row["Description"])
	assert.Equal(t, model.TypeIncome, typ)
	assert.True(t, amount.IsZero())

	txn, err := Normalize(row, debitCreditMapping, 0, "visa")
	require.NoError(t, err)
	assert.Nil(t, txn)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		debit, credit string
		description   string
		wantAmount    string
		wantType      model.TransactionType
	}{
		{"credit is income", "", "500.00", "E-TRANSFER", "500", model.TypeIncome},
		{"debit is expense", "156.42", "", "LOBLAWS", "156.42", model.TypeExpense},
		{"credit wins over debit", "10", "20", "ODD ROW", "20", model.TypeIncome},
		{"negative credit payment", "0", "-250.00", "Payment - Thank you", "250", model.TypeIncome},
		{"negative debit payment", "-75", "0", "AUTOPAYMENT", "75", model.TypeIncome},
		{"negative values otherwise", "-75", "0", "REVERSAL", "0", model.TypeExpense},
		{"nothing", "", "", "NOTE", "0", model.TypeExpense},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, typ := Classify(ParseAmount(tt.debit), ParseAmount(tt.credit), tt.description)
			assert.Equal(t, tt.wantType, typ)
			assert.True(t, dec(tt.wantAmount).Equal(amount), "got %s", amount)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	debit, credit := dec("12.34"), dec("0")
	amount, typ := Classify(debit, credit, "SHELL")
	for i := 0; i < 50; i++ {
		a, ty := Classify(debit, credit, "SHELL")
		assert.Equal(t, typ, ty)
		assert.True(t, amount.Equal(a))
	}
}

func TestClassifySigned(t *testing.T) {
	amount, typ := ClassifySigned(dec("-4.00"), model.SignPositiveIncome)
	assert.Equal(t, model.TypeExpense, typ)
	assert.Equal(t, "4.00", amount.StringFixed(2))

	amount, typ = ClassifySigned(dec("3500"), model.SignPositiveIncome)
	assert.Equal(t, model.TypeIncome, typ)
	assert.Equal(t, "3500.00", amount.StringFixed(2))

	amount, typ = ClassifySigned(dec("25.10"), model.SignPositiveExpense)
	assert.Equal(t, model.TypeExpense, typ)
	assert.Equal(t, "25.10", amount.StringFixed(2))

	_, typ = ClassifySigned(dec("-25.10"), model.SignPositiveExpense)
	assert.Equal(t, model.TypeIncome, typ)

	amount, _ = ClassifySigned(decimal.Zero, model.SignPositiveIncome)
	assert.True(t, amount.IsZero())
}

func TestNormalizer_Chase(t *testing.T) {
	tbl := detectFile(t, "../../testdata/chase_checking.csv", DetectOptions{})
	n, err := NewNormalizer(AutoDetect(tbl), tbl.Headers, NormalizeOptions{AccountID: "chase-checking"})
	require.NoError(t, err)

	txns, skipped := n.NormalizeTable(tbl)
	require.Empty(t, skipped)
	require.Len(t, txns, 6)

	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", txns[0].Description)
	assert.Equal(t, "2025-01-03", txns[0].DateString())
	assert.Equal(t, model.TypeExpense, txns[0].Type)
	assert.Equal(t, "4.00", txns[0].Amount.StringFixed(2))
	require.NotNil(t, txns[0].Balance)
	assert.Equal(t, "12496.00", txns[0].Balance.StringFixed(2))

	assert.Equal(t, "ACME CONSULTING INVOICE 1042", txns[3].Description)
	assert.Equal(t, model.TypeIncome, txns[3].Type)
	assert.Equal(t, "3500.00", txns[3].Signed().StringFixed(2))
	assert.Equal(t, "-4.00", txns[0].Signed().StringFixed(2))

	assert.Equal(t, "CANADA POST, ONLINE", txns[4].Description)
	assert.Equal(t, time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC), txns[5].Date)

	for _, txn := range txns {
		assert.False(t, txn.Amount.IsNegative(), txn.Description)
		assert.NotEmpty(t, txn.ID)
		assert.NotEmpty(t, txn.Fingerprint)
	}
}

func TestNormalizer_DebitCreditFile(t *testing.T) {
	tbl := detectFile(t, "../../testdata/debit_credit.csv", DetectOptions{})
	n, err := NewNormalizer(AutoDetect(tbl), tbl.Headers, NormalizeOptions{})
	require.NoError(t, err)

	txns, skipped := n.NormalizeTable(tbl)
	assert.Empty(t, skipped)

	var got []string
	for _, txn := range txns {
		got = append(got, string(txn.Type)+" "+txn.Amount.StringFixed(2)+" "+txn.Description)
	}
	// The zero payment row and the negative-only refund row carry no amount.
	assert.Equal(t, []string{
		"expense 156.42 LOBLAWS #1021",
		"income 500.00 E-TRANSFER FROM J SMITH",
		"expense 1204.10 TIM HORTONS 4411",
	}, got)
}

func TestNormalizer_BadDateIsParseError(t *testing.T) {
	tbl, err := Detect("Date,Description,Amount\nNOTADATE,desc,-4.00\n2024-01-02,ok,-1.00\n")
	require.NoError(t, err)
	n, err := NewNormalizer(AutoDetect(tbl), tbl.Headers, NormalizeOptions{})
	require.NoError(t, err)

	txns, skipped := n.NormalizeTable(tbl)
	require.Len(t, txns, 1)
	require.Len(t, skipped, 1)
	assert.Equal(t, 0, skipped[0].Row)
	assert.Equal(t, 2, skipped[0].Line)
	assert.Equal(t, "Date", skipped[0].Column)
	assert.Contains(t, skipped[0].Error(), "parsing date")
}

func TestNormalizer_DateFormatOverride(t *testing.T) {
	m := model.FieldMapping{Date: "Date", Description: "Description", Amount: "Amount", DateFormat: "02/01/2006"}
	n, err := NewNormalizer(m, []string{"Date", "Description", "Amount"}, NormalizeOptions{})
	require.NoError(t, err)

	txn, ok, err := n.Normalize([]string{"13/03/2024", "Bakery", "-8"}, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03-13", txn.DateString())

	_, _, err = n.Normalize([]string{"2024-03-13", "Bakery", "-8"}, 1)
	assert.Error(t, err)
}

func TestNormalizer_DateLayouts(t *testing.T) {
	for _, raw := range []string{"2024-03-05", "2024/03/05", "03/05/2024", "3/5/2024", "03/05/24", "05 Mar 2024", "5-Mar-2024", "Mar 5, 2024", "March 5, 2024", "2024-03-05 17:45:00", "2024-03-05T17:45:00Z"} {
		d, err := parseDate(raw, "")
		require.NoError(t, err, raw)
		assert.Equal(t, "2024-03-05", d.Format(model.DateFormat), raw)
	}
	_, err := parseDate("", "")
	assert.Error(t, err)
}

func TestNormalizer_CurrencyMerchantBalance(t *testing.T) {
	m := model.FieldMapping{
		Date: "Date", Description: "Description", Amount: "Amount",
		Currency: "Ccy", Merchant: "Merchant", Balance: "Balance",
	}
	headers := []string{"Date", "Description", "Amount", "Ccy", "Merchant", "Balance"}
	n, err := NewNormalizer(m, headers, NormalizeOptions{Currency: "USD"})
	require.NoError(t, err)

	txn, ok, err := n.Normalize([]string{"2024-01-01", "POS 123 STARBUCKS", "-5.25", "eur", "Starbucks", ""}, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "EUR", txn.Currency)
	assert.Equal(t, "Starbucks", txn.Merchant)
	assert.Nil(t, txn.Balance)

	txn, _, err = n.Normalize([]string{"2024-01-01", "POS 123 STARBUCKS", "-5.25", "", "", "(10.00)"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "USD", txn.Currency)
	require.NotNil(t, txn.Balance)
	assert.Equal(t, "-10.00", txn.Balance.StringFixed(2))
}

type groceryCategorizer struct{}

func (groceryCategorizer) Categorize(txn model.Transaction) string {
	if strings.Contains(txn.Description, "LOBLAWS") {
		return "Groceries"
	}
	return ""
}

func TestNormalizer_Categorizer(t *testing.T) {
	n, err := NewNormalizer(debitCreditMapping, []string{"Date", "Description", "Debit", "Credit"}, NormalizeOptions{Categorizer: groceryCategorizer{}})
	require.NoError(t, err)

	txn, _, err := n.Normalize([]string{"2024-01-15", "LOBLAWS", "156.42", ""}, 0)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", txn.Category)

	txn, _, err = n.Normalize([]string{"2024-01-15", "SHELL", "40.00", ""}, 1)
	require.NoError(t, err)
	assert.Empty(t, txn.Category)
}

func TestNewNormalizer_InvalidMapping(t *testing.T) {
	_, err := NewNormalizer(model.FieldMapping{Date: "Date", Description: "Description"}, []string{"Date", "Description"}, NormalizeOptions{})
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, AmbiguousAmount, me.Kind)

	_, err = NewNormalizer(debitCreditMapping, []string{"Date", "Description", "Debit"}, NormalizeOptions{})
	require.ErrorAs(t, err, &me)
	assert.Equal(t, UnknownColumn, me.Kind)
}

func TestNormalize_RepeatedRowsGetDistinctIDs(t *testing.T) {
	row := map[string]string{"Date": "2024-01-15", "Description": "COFFEE", "Debit": "3.50", "Credit": ""}

	a, err := Normalize(row, debitCreditMapping, 4, "visa")
	require.NoError(t, err)
	b, err := Normalize(row, debitCreditMapping, 5, "visa")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, "visa", a.AccountID)
}

func TestNormalizer_RoundsToCents(t *testing.T) {
	tbl, err := Detect("Date,Description,Amount,Balance\n2024-01-15,FX FEE,-1.234,98.7651\n2024-01-16,ROUNDING,0.004,98.77")
	require.NoError(t, err)

	n, err := NewNormalizer(AutoDetect(tbl), tbl.Headers, NormalizeOptions{AccountID: "visa"})
	require.NoError(t, err)

	txns, skipped := n.NormalizeTable(tbl)
	assert.Empty(t, skipped)
	require.Len(t, txns, 1, "a row that rounds to zero is dropped")
	assert.Equal(t, "1.23", txns[0].Amount.String())
	assert.Equal(t, model.TypeExpense, txns[0].Type)
	require.NotNil(t, txns[0].Balance)
	assert.Equal(t, "98.77", txns[0].Balance.String())
}
