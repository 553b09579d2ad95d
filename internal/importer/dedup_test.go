package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack-dev/fintrack/internal/id"
	"github.com/fintrack-dev/fintrack/internal/model"
)

func candidate(date, description, amount string, row int) model.Transaction {
	d, _ := time.Parse(model.DateFormat, date)
	a := dec(amount)
	return model.Transaction{
		ID:          id.Transaction(date, description, a, row),
		Fingerprint: id.Fingerprint(date, description, a),
		Date:        d,
		Description: description,
		Amount:      a,
		Type:        model.TypeExpense,
		RowIndex:    row,
	}
}

func TestPartition_WithinBatchKeepsFirst(t *testing.T) {
	in := []model.Transaction{
		candidate("2024-01-05", "COFFEE", "3.50", 0),
		candidate("2024-01-05", "coffee ", "3.5", 1),
		candidate("2024-01-06", "COFFEE", "3.50", 2),
	}
	unique, dups := Partition(in, nil)
	assert.Equal(t, 1, dups)
	require.Len(t, unique, 2)
	assert.Equal(t, 0, unique[0].RowIndex)
	assert.Equal(t, 2, unique[1].RowIndex)
}

func TestPartition_AgainstExisting(t *testing.T) {
	in := []model.Transaction{
		candidate("2024-01-05", "COFFEE", "3.50", 0),
		candidate("2024-01-07", "RENT", "1800.00", 1),
	}
	existing := model.NewFingerprintSet(id.Fingerprint("2024-01-07", "rent", dec("1800")))

	unique, dups := Partition(in, existing)
	assert.Equal(t, 1, dups)
	require.Len(t, unique, 1)
	assert.Equal(t, "COFFEE", unique[0].Description)
	assert.Len(t, existing, 1, "caller's set must not change")
}

func TestPartition_SecondImportIsAllDuplicates(t *testing.T) {
	in := []model.Transaction{
		candidate("2024-01-05", "COFFEE", "3.50", 0),
		candidate("2024-01-05", "COFFEE", "3.50", 1),
		candidate("2024-01-09", "BOOKS", "22.00", 2),
	}
	assert.NotEqual(t, in[0].ID, in[1].ID)
	assert.Equal(t, in[0].Fingerprint, in[1].Fingerprint)

	first, _ := Partition(in, nil)
	store := model.NewFingerprintSet()
	for _, txn := range first {
		store.Add(txn.Fingerprint)
	}

	second, dups := Partition(in, store)
	assert.Empty(t, second)
	assert.Equal(t, 3, dups)
}

func TestPartition_ComputesMissingFingerprint(t *testing.T) {
	c := candidate("2024-01-05", "COFFEE", "3.50", 0)
	c.Fingerprint = ""
	existing := model.NewFingerprintSet(id.Fingerprint("2024-01-05", "COFFEE", dec("3.50")))

	unique, dups := Partition([]model.Transaction{c}, existing)
	assert.Empty(t, unique)
	assert.Equal(t, 1, dups)
}
