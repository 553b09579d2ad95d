package importer

import (
	"context"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// Store is the persistence collaborator an import commits into.
type Store interface {
	// ListFingerprints returns the fingerprints of every transaction the
	// user already has. The result seeds duplicate detection.
	ListFingerprints(ctx context.Context, userID string) (model.FingerprintSet, error)

	// CommitBatch writes the batch record and all of txns atomically:
	// on error none of them may be visible.
	CommitBatch(ctx context.Context, userID, accountID string, batch model.ImportBatch, txns []model.Transaction) error
}

// BatchLister is implemented by stores that keep import history.
type BatchLister interface {
	Batches(ctx context.Context, userID string) ([]model.ImportBatch, error)
}

// AccountChecker reports whether an account exists.
type AccountChecker interface {
	Exists(accountID string) bool
}
