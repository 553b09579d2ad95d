package importer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack-dev/fintrack/internal/model"
)

func detectFile(t *testing.T, path string, opts DetectOptions) *RawTable {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tbl, err := DetectWith(string(data), opts)
	require.NoError(t, err)
	return tbl
}

func TestAutoDetect_Chase(t *testing.T) {
	tbl := detectFile(t, "../../testdata/chase_checking.csv", DetectOptions{})

	m := AutoDetect(tbl)
	assert.Equal(t, model.FieldMapping{
		Date:        "Posting Date",
		Description: "Description",
		Amount:      "Amount",
		Balance:     "Balance",
	}, m)
}

func TestAutoDetect_DebitCreditKeywords(t *testing.T) {
	tbl := detectFile(t, "../../testdata/debit_credit.csv", DetectOptions{})

	m := AutoDetect(tbl)
	assert.Equal(t, model.FieldMapping{
		Date:        "Date",
		Description: "Description",
		Debit:       "Withdrawals",
		Credit:      "Deposits",
		Balance:     "Balance",
	}, m)

	_, err := Validate(m)
	assert.NoError(t, err)
}

func TestAutoDetect_ContentShapeOnly(t *testing.T) {
	tbl := detectFile(t, "../../testdata/headerless.tsv", DetectOptions{Header: HeaderAbsent})

	m := AutoDetect(tbl)
	assert.Equal(t, model.FieldMapping{
		Date:        "Column 1",
		Description: "Column 2",
		Amount:      "Column 3",
	}, m)
}

func TestAutoDetect_NumericColumnCounts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.FieldMapping
	}{
		{
			name: "two numeric columns become debit and credit",
			text: "A,B,C,D\n2024-01-01,Grocery store,10.00,\n2024-01-02,Paycheque,,900.00\n",
			want: model.FieldMapping{Date: "A", Description: "B", Debit: "C", Credit: "D"},
		},
		{
			name: "three numeric columns add a balance",
			text: "A,B,C,D,E\n2024-01-01,Grocery store,10.00,,90.00\n2024-01-02,Paycheque,,900.00,990.00\n",
			want: model.FieldMapping{Date: "A", Description: "B", Debit: "C", Credit: "D", Balance: "E"},
		},
		{
			name: "keyword amount leaves the numeric column for balance",
			text: "When,What,Amount,X\n2024-01-01,Grocery store,-10.00,90.00\n",
			want: model.FieldMapping{Date: "When", Description: "What", Amount: "Amount", Balance: "X"},
		},
		{
			name: "lone debit keyword is completed from content",
			text: "Date,Payee,Debit,X\n2024-01-01,Grocery store,10.00,\n2024-01-02,Paycheque,,900.00\n",
			want: model.FieldMapping{Date: "Date", Description: "Payee", Debit: "Debit", Credit: "X"},
		},
		{
			name: "short text is not a description",
			text: "A,B,C\n2024-01-01,DR,10.00\n",
			want: model.FieldMapping{Date: "A", Amount: "C"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Detect(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, AutoDetect(tbl))
		})
	}
}

func TestAutoDetect_ColumnsNotReused(t *testing.T) {
	// "Transaction Date" matches both date keywords; it must only be used once.
	tbl, err := Detect("Transaction Date,Transaction Details,Amount\n2024-01-01,Coffee shop,-3.00\n")
	require.NoError(t, err)

	m := AutoDetect(tbl)
	assert.Equal(t, "Transaction Date", m.Date)
	assert.Equal(t, "Transaction Details", m.Description)
	assert.Equal(t, "Amount", m.Amount)
}

func TestAutoDetect_ClearsConflictingRepresentation(t *testing.T) {
	tbl, err := Detect("Date,Description,Amount,Debit,Credit\n2024-01-01,Coffee shop,-3.00,3.00,\n")
	require.NoError(t, err)

	m := AutoDetect(tbl)
	assert.Empty(t, m.Amount)
	assert.Equal(t, "Debit", m.Debit)
	assert.Equal(t, "Credit", m.Credit)

	tbl, err = Detect("Date,Description,Amount,Credit\n2024-01-01,Coffee shop,-3.00,\n")
	require.NoError(t, err)
	m = AutoDetect(tbl)
	assert.Equal(t, "Amount", m.Amount)
	assert.Empty(t, m.Credit)
}

func TestAutoDetect_Idempotent(t *testing.T) {
	for _, path := range []string{
		"../../testdata/chase_checking.csv",
		"../../testdata/debit_credit.csv",
		"../../testdata/headerless.tsv",
	} {
		tbl := detectFile(t, path, DetectOptions{})
		first := AutoDetect(tbl)
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, AutoDetect(tbl), path)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       model.FieldMapping
		kind    MappingErrorKind
		field   model.Field
		wantErr bool
	}{
		{
			name: "amount",
			m:    model.FieldMapping{Date: "D", Description: "Desc", Amount: "A"},
		},
		{
			name: "debit and credit",
			m:    model.FieldMapping{Date: "D", Description: "Desc", Debit: "Dr", Credit: "Cr"},
		},
		{
			name: "missing date", wantErr: true, kind: MissingRequired, field: model.FieldDate,
			m: model.FieldMapping{Description: "Desc", Amount: "A"},
		},
		{
			name: "blank description", wantErr: true, kind: MissingRequired, field: model.FieldDescription,
			m: model.FieldMapping{Date: "D", Description: "  ", Amount: "A"},
		},
		{
			name: "no amount at all", wantErr: true, kind: AmbiguousAmount,
			m: model.FieldMapping{Date: "D", Description: "Desc"},
		},
		{
			name: "debit without credit", wantErr: true, kind: AmbiguousAmount,
			m: model.FieldMapping{Date: "D", Description: "Desc", Debit: "Dr"},
		},
		{
			name: "both representations", wantErr: true, kind: AmbiguousAmount,
			m: model.FieldMapping{Date: "D", Description: "Desc", Amount: "A", Debit: "Dr", Credit: "Cr"},
		},
		{
			name: "amount plus half a pair", wantErr: true, kind: AmbiguousAmount,
			m: model.FieldMapping{Date: "D", Description: "Desc", Amount: "A", Credit: "Cr"},
		},
		{
			name: "bad sign", wantErr: true, kind: InvalidSign,
			m: model.FieldMapping{Date: "D", Description: "Desc", Amount: "A", Sign: "sideways"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.m)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var me *MappingError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.kind, me.Kind)
			if tt.field != "" {
				assert.Equal(t, tt.field, me.Field)
			}
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	m, err := Validate(model.FieldMapping{Date: " Date ", Description: "Description", Amount: "Amount"})
	require.NoError(t, err)
	assert.Equal(t, "Date", m.Date)
	assert.Equal(t, model.SignPositiveIncome, m.Sign)
}

func TestBind(t *testing.T) {
	headers := []string{"Date", "Description", "Amount", "Balance"}

	b, err := Bind(model.FieldMapping{Date: "Date", Description: "Description", Amount: "Amount", Merchant: "Description"}, headers)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Date)
	assert.Equal(t, 1, b.Description)
	assert.Equal(t, 2, b.Amount)
	assert.Equal(t, -1, b.Balance)
	assert.Equal(t, -1, b.Debit)
	assert.Equal(t, 1, b.Merchant)

	_, err = Bind(model.FieldMapping{Date: "Date", Description: "Memo", Amount: "Amount"}, headers)
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, UnknownColumn, me.Kind)
	assert.Equal(t, "Memo", me.Column)

	_, err = Bind(model.FieldMapping{Date: "Date", Description: "Description", Amount: "Amount", Balance: "Amount"}, headers)
	require.ErrorAs(t, err, &me)
	assert.Equal(t, DuplicateColumn, me.Kind)
	assert.Equal(t, model.FieldBalance, me.Field)
}
