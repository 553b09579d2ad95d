package importer

import (
	"strings"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// sampleRows is how many data rows AutoDetect inspects per column.
const sampleRows = 5

// headerKeywords lists, per field, lower-case substrings that identify a
// header. Keywords are tried in order across all columns, so "Posting Date"
// beats "Transaction Type" for the date field.
var headerKeywords = []struct {
	field    model.Field
	keywords []string
}{
	{model.FieldDate, []string{"date", "trans"}},
	{model.FieldDescription, []string{"desc", "memo", "payee", "merchant", "details", "narrative", "name"}},
	{model.FieldDebit, []string{"debit", "withdrawal", "spent"}},
	{model.FieldCredit, []string{"credit", "deposit", "received"}},
	{model.FieldBalance, []string{"balance", "running"}},
	{model.FieldAmount, []string{"amount", "value"}},
	{model.FieldCurrency, []string{"currency", "ccy"}},
}

// AutoDetect suggests a mapping for t. It never fails; fields it cannot
// place are left empty. The result depends only on t.
func AutoDetect(t *RawTable) model.FieldMapping {
	var m model.FieldMapping
	used := make([]bool, len(t.Headers))

	assign := func(f model.Field, col int) {
		m.Set(f, t.Headers[col])
		used[col] = true
	}

	lower := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		lower[i] = strings.ToLower(h)
	}

	if t.HasHeader {
		for _, fk := range headerKeywords {
		keywords:
			for _, kw := range fk.keywords {
				for col, h := range lower {
					if !used[col] && strings.Contains(h, kw) {
						assign(fk.field, col)
						break keywords
					}
				}
			}
		}
	}

	// Content-shape pass for whatever the headers did not give away.
	shapes := make([]columnShape, len(t.Headers))
	for col := range t.Headers {
		shapes[col] = shapeOf(t.Sample(col, sampleRows))
	}

	if m.Date == "" {
		for col, s := range shapes {
			if !used[col] && s == shapeDate {
				assign(model.FieldDate, col)
				break
			}
		}
	}
	if m.Description == "" {
		for col, s := range shapes {
			if !used[col] && s == shapeText {
				assign(model.FieldDescription, col)
				break
			}
		}
	}

	var numeric []int
	for col, s := range shapes {
		if !used[col] && s == shapeNumeric {
			numeric = append(numeric, col)
		}
	}
	next := func() (int, bool) {
		if len(numeric) == 0 {
			return 0, false
		}
		col := numeric[0]
		numeric = numeric[1:]
		return col, true
	}

	switch {
	case m.Amount == "" && m.Debit == "" && m.Credit == "":
		switch len(numeric) {
		case 0:
		case 1:
			col, _ := next()
			assign(model.FieldAmount, col)
		default:
			col, _ := next()
			assign(model.FieldDebit, col)
			col, _ = next()
			assign(model.FieldCredit, col)
		}
	case m.Amount == "" && m.Debit == "":
		if col, ok := next(); ok {
			assign(model.FieldDebit, col)
		}
	case m.Amount == "" && m.Credit == "":
		if col, ok := next(); ok {
			assign(model.FieldCredit, col)
		}
	}
	if m.Balance == "" {
		if col, ok := next(); ok {
			assign(model.FieldBalance, col)
		}
	}

	// Keep the amount representations mutually exclusive.
	if m.HasDebitCredit() {
		m.Amount = ""
	} else if m.Amount != "" {
		m.Debit, m.Credit = "", ""
	}
	return m
}

type columnShape int

const (
	shapeEmpty columnShape = iota
	shapeDate
	shapeNumeric
	shapeText
	shapeMixed
)

// shapeOf classifies sampled values, ignoring blanks. Text needs every
// value to be non-numeric, non-date and longer than three characters.
func shapeOf(values []string) columnShape {
	shape := shapeEmpty
	for _, v := range values {
		if v == "" {
			continue
		}
		var s columnShape
		switch {
		case isDateLike(v):
			s = shapeDate
		case isNumeric(v):
			s = shapeNumeric
		case len([]rune(v)) > 3:
			s = shapeText
		default:
			return shapeMixed
		}
		if shape != shapeEmpty && shape != s {
			return shapeMixed
		}
		shape = s
	}
	return shape
}

// Validate checks the mapping invariants and fills defaults.
func Validate(m model.FieldMapping) (model.FieldMapping, error) {
	for _, f := range model.Fields() {
		m.Set(f, strings.TrimSpace(m.Get(f)))
	}

	if m.Date == "" {
		return m, &MappingError{Kind: MissingRequired, Field: model.FieldDate}
	}
	if m.Description == "" {
		return m, &MappingError{Kind: MissingRequired, Field: model.FieldDescription}
	}

	hasAmount := m.Amount != ""
	hasPair := m.HasDebitCredit()
	partial := !hasPair && (m.Debit != "" || m.Credit != "")
	if hasAmount == hasPair || (hasAmount && partial) {
		return m, &MappingError{Kind: AmbiguousAmount, Field: model.FieldAmount}
	}

	if m.Sign == "" {
		m.Sign = model.SignPositiveIncome
	}
	if !m.Sign.Valid() {
		return m, &MappingError{Kind: InvalidSign, Field: model.FieldAmount}
	}
	return m, nil
}

// Binding holds the column index of each mapped field, -1 when unmapped.
type Binding struct {
	Date, Description, Amount, Debit, Credit, Balance, Currency, Merchant int
}

// Bind resolves a validated mapping against headers once, so rows can be
// read by index afterwards.
func Bind(m model.FieldMapping, headers []string) (Binding, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}

	b := Binding{-1, -1, -1, -1, -1, -1, -1, -1}
	targets := map[model.Field]*int{
		model.FieldDate:        &b.Date,
		model.FieldDescription: &b.Description,
		model.FieldAmount:      &b.Amount,
		model.FieldDebit:       &b.Debit,
		model.FieldCredit:      &b.Credit,
		model.FieldBalance:     &b.Balance,
		model.FieldCurrency:    &b.Currency,
		model.FieldMerchant:    &b.Merchant,
	}

	owner := make(map[int]model.Field)
	for _, f := range model.Fields() {
		col := m.Get(f)
		if col == "" {
			continue
		}
		i, ok := index[col]
		if !ok {
			return b, &MappingError{Kind: UnknownColumn, Field: f, Column: col}
		}
		// Currency and merchant may share a column with another field.
		if f != model.FieldCurrency && f != model.FieldMerchant {
			if _, taken := owner[i]; taken {
				return b, &MappingError{Kind: DuplicateColumn, Field: f, Column: col}
			}
			owner[i] = f
		}
		*targets[f] = i
	}
	return b, nil
}
