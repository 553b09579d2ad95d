package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack-dev/fintrack/internal/id"
	"github.com/fintrack-dev/fintrack/internal/importer"
	"github.com/fintrack-dev/fintrack/internal/model"
)

var (
	_ importer.Store       = (*Store)(nil)
	_ importer.BatchLister = (*Store)(nil)
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "fintrack.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sample(user, desc, amount string, row int) model.Transaction {
	d := time.Date(2025, 1, 2+row, 0, 0, 0, 0, time.UTC)
	a := decimal.RequireFromString(amount)
	ds := d.Format(model.DateFormat)
	return model.Transaction{
		ID:          id.Transaction(ds, desc, a, row),
		Fingerprint: id.Fingerprint(ds, desc, a),
		UserID:      user,
		AccountID:   "td-chequing",
		Date:        d,
		Description: desc,
		Amount:      a,
		Type:        model.TypeExpense,
		Currency:    "CAD",
		RowIndex:    row,
	}
}

func batch(id, user string) model.ImportBatch {
	return model.ImportBatch{
		ID:          id,
		UserID:      user,
		AccountID:   "td-chequing",
		FileName:    "jan.csv",
		Status:      model.BatchCompleted,
		Mapping:     model.FieldMapping{Date: "Date", Description: "Description", Amount: "Amount"},
		CreatedAt:   time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2025, 2, 1, 9, 0, 1, 0, time.UTC),
	}
}

func TestStore_CommitAndRead(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	withBalance := sample("u1", "LOBLAWS", "156.42", 0)
	bal := decimal.RequireFromString("843.58")
	withBalance.Balance = &bal
	txns := []model.Transaction{withBalance, sample("u1", "SHELL", "60.00", 1)}

	require.NoError(t, s.CommitBatch(ctx, "u1", "td-chequing", batch("b1", "u1"), txns))

	fps, err := s.ListFingerprints(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, fps, 2)
	assert.True(t, fps.Has(txns[0].Fingerprint))

	got, err := s.Transactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "LOBLAWS", got[0].Description)
	assert.True(t, got[0].Amount.Equal(txns[0].Amount))
	require.NotNil(t, got[0].Balance)
	assert.True(t, got[0].Balance.Equal(bal))
	assert.Nil(t, got[1].Balance)
	assert.Equal(t, "2025-01-02", got[0].DateString())

	batches, err := s.Batches(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "Description", batches[0].Mapping.Description)
	assert.Equal(t, model.BatchCompleted, batches[0].Status)
	assert.False(t, batches[0].CompletedAt.IsZero())
}

func TestStore_CommitIsAtomic(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	first := sample("u1", "NETFLIX", "16.99", 0)
	require.NoError(t, s.CommitBatch(ctx, "u1", "td-chequing", batch("b1", "u1"), []model.Transaction{first}))

	// Re-inserting first violates the primary key, so the new row and the
	// batch record must roll back too.
	err := s.CommitBatch(ctx, "u1", "td-chequing", batch("b2", "u1"),
		[]model.Transaction{sample("u1", "SPOTIFY", "11.99", 1), first})
	require.Error(t, err)

	got, err := s.Transactions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	batches, err := s.Batches(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, batches, 1)
}

func TestStore_ScopedByUser(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.CommitBatch(ctx, "u1", "td-chequing", batch("b1", "u1"), []model.Transaction{sample("u1", "X", "1.00", 0)}))

	fps, err := s.ListFingerprints(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, fps)

	batches, err := s.Batches(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestStore_EmptyBatch(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.CommitBatch(ctx, "u1", "td-chequing", batch("b1", "u1"), nil))
	batches, err := s.Batches(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, batches, 1)
}
