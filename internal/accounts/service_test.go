package accounts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack-dev/fintrack/internal/model"
)

func TestGetExists(t *testing.T) {
	svc := NewService(DefaultAccounts(""))
	assert.Len(t, svc.All(), 4)

	acct, ok := svc.Get("chequing")
	assert.True(t, ok)
	assert.Equal(t, "Chequing", acct.Name)
	assert.Equal(t, "CAD", acct.Currency)

	_, ok = svc.Get("nope")
	assert.False(t, ok)

	assert.True(t, svc.Exists("credit-card"))
	assert.False(t, svc.Exists("nope"))
}

func TestCurrency(t *testing.T) {
	svc := NewService([]model.Account{
		{ID: "usd", Type: model.AccountTypeChecking, Currency: "USD"},
		{ID: "bare", Type: model.AccountTypeCash},
	})

	assert.Equal(t, "USD", svc.Currency("usd", "CAD"))
	assert.Equal(t, "CAD", svc.Currency("bare", "CAD"))
	assert.Equal(t, "CAD", svc.Currency("missing", "CAD"))
}

func TestAllIsACopy(t *testing.T) {
	svc := NewService(DefaultAccounts(""))
	all := svc.All()
	all[0].Name = "changed"

	acct, _ := svc.Get(all[0].ID)
	assert.Equal(t, "Chequing", acct.Name)
}

func TestAdd(t *testing.T) {
	svc := NewService(DefaultAccounts(""))

	require.NoError(t, svc.Add(model.Account{ID: "tfsa", Name: "TFSA", Type: model.AccountTypeInvestment}))
	assert.True(t, svc.Exists("tfsa"))

	assert.Error(t, svc.Add(model.Account{ID: "tfsa", Name: "Again", Type: model.AccountTypeInvestment}))
	assert.Error(t, svc.Add(model.Account{Name: "No ID", Type: model.AccountTypeCash}))
	assert.Error(t, svc.Add(model.Account{ID: "x", Type: "piggy_bank"}))
}

func TestLoadFromTestdata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "accounts"), 0o755))

	src, err := os.ReadFile("../../testdata/accounts.csv")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, File), src, 0o644))

	svc, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, svc.All(), 4)
	assert.True(t, svc.Exists("td-visa"))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveRoundTrip(t *testing.T) {
	svc := NewService(DefaultAccounts(""))
	dir := t.TempDir()
	require.NoError(t, svc.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, svc.All(), loaded.All())
}
