// Package memory is an in-process import store. It backs the `memory`
// store driver, which keeps nothing across runs, and the tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// Store keeps transactions and batches in maps keyed by user.
type Store struct {
	mu      sync.RWMutex
	txns    map[string][]model.Transaction
	batches map[string][]model.ImportBatch
}

// New returns an empty store.
func New() *Store {
	return &Store{
		txns:    make(map[string][]model.Transaction),
		batches: make(map[string][]model.ImportBatch),
	}
}

// Seed adds transactions without a batch record.
func (s *Store) Seed(txns ...model.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range txns {
		s.txns[t.UserID] = append(s.txns[t.UserID], t)
	}
}

func (s *Store) ListFingerprints(ctx context.Context, userID string) (model.FingerprintSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fps := model.NewFingerprintSet()
	for _, t := range s.txns[userID] {
		fps.Add(t.Fingerprint)
	}
	return fps, nil
}

func (s *Store) CommitBatch(ctx context.Context, userID, accountID string, batch model.ImportBatch, txns []model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[userID] = append(s.txns[userID], txns...)
	s.batches[userID] = append(s.batches[userID], batch)
	return nil
}

func (s *Store) Batches(ctx context.Context, userID string) ([]model.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.batches[userID]), nil
}

// Transactions returns a copy of the stored transactions of userID.
func (s *Store) Transactions(userID string) []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.txns[userID])
}
