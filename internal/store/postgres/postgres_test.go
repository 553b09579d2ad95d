package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
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

func TestNumeric(t *testing.T) {
	for _, s := range []string{"156.42", "0.05", "1204.1", "3500"} {
		d := decimal.RequireFromString(s)
		assert.True(t, fromNumeric(numeric(d)).Equal(d), s)
	}
	assert.False(t, nullNumeric(nil).Valid)
	assert.True(t, fromNumeric(nullNumeric(nil)).IsZero())
}

func TestNullTime(t *testing.T) {
	assert.False(t, nullTime(time.Time{}).Valid)
	assert.True(t, nullTime(time.Now()).Valid)
}

// connect returns a store on FINTRACK_TEST_POSTGRES_DSN, skipping the test
// when it is not set.
func connect(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FINTRACK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FINTRACK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestStore_CommitAndRead(t *testing.T) {
	s := connect(t)
	ctx := context.Background()
	user := "test-" + uuid.NewString()

	d := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	amt := decimal.RequireFromString("156.42")
	bal := decimal.RequireFromString("843.58")
	txn := model.Transaction{
		ID:          id.Transaction("2025-01-02", "LOBLAWS", amt, 0),
		Fingerprint: id.Fingerprint("2025-01-02", "LOBLAWS", amt),
		UserID:      user,
		AccountID:   "td-chequing",
		Date:        d,
		Description: "LOBLAWS",
		Amount:      amt,
		Type:        model.TypeExpense,
		Currency:    "CAD",
		Balance:     &bal,
	}
	batch := model.ImportBatch{
		ID:        uuid.NewString(),
		UserID:    user,
		AccountID: "td-chequing",
		Status:    model.BatchCompleted,
		Mapping:   model.FieldMapping{Date: "Date", Description: "Description", Amount: "Amount"},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	txn.BatchID = batch.ID

	require.NoError(t, s.CommitBatch(ctx, user, "td-chequing", batch, []model.Transaction{txn}))

	fps, err := s.ListFingerprints(ctx, user)
	require.NoError(t, err)
	assert.True(t, fps.Has(txn.Fingerprint))

	got, err := s.Transactions(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(amt))
	require.NotNil(t, got[0].Balance)
	assert.True(t, got[0].Balance.Equal(bal))

	batches, err := s.Batches(ctx, user)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "Amount", batches[0].Mapping.Amount)
	assert.True(t, batches[0].CompletedAt.IsZero())

	// Same transaction again violates the primary key; the second batch
	// must not be recorded.
	again := batch
	again.ID = uuid.NewString()
	require.Error(t, s.CommitBatch(ctx, user, "td-chequing", again, []model.Transaction{txn}))
	batches, err = s.Batches(ctx, user)
	require.NoError(t, err)
	assert.Len(t, batches, 1)
}
