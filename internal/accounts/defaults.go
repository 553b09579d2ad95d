package accounts

import "github.com/fintrack-dev/fintrack/internal/model"

// DefaultAccounts returns the starter accounts written by `fintrack init`.
func DefaultAccounts(currency string) []model.Account {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return []model.Account{
		{ID: "chequing", Name: "Chequing", Type: model.AccountTypeChecking, Currency: currency},
		{ID: "savings", Name: "Savings", Type: model.AccountTypeSavings, Currency: currency},
		{ID: "credit-card", Name: "Credit Card", Type: model.AccountTypeCreditCard, Currency: currency},
		{ID: "cash", Name: "Cash", Type: model.AccountTypeCash, Currency: currency},
	}
}
