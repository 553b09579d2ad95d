// Package ledger stores imported transactions as plain CSV files in a
// repository directory, one file per calendar month, with an append-only
// log of import batches.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// Store reads and writes <repoRoot>/<yyyy>/<mm>/transactions.csv and
// <repoRoot>/logs/import-log.csv.
type Store struct {
	mu       sync.Mutex
	repoRoot string
	accounts AccountChecker

	rename func(oldpath, newpath string) error
}

// NewStore creates a ledger store rooted at repoRoot. accounts may be nil.
func NewStore(repoRoot string, accounts AccountChecker) *Store {
	return &Store{repoRoot: repoRoot, accounts: accounts, rename: os.Rename}
}

// ListFingerprints returns the fingerprints of every stored transaction
// belonging to userID.
func (s *Store) ListFingerprints(ctx context.Context, userID string) (model.FingerprintSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := s.monthFiles()
	if err != nil {
		return nil, err
	}

	fps := model.NewFingerprintSet()
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txns, err := readFile(p)
		if err != nil {
			return nil, err
		}
		for _, txn := range txns {
			if txn.UserID == userID {
				fps.Add(txn.Fingerprint)
			}
		}
	}
	return fps, nil
}

// ReadMonth reads all transactions for a given month.
func (s *Store) ReadMonth(year, month int) ([]model.Transaction, error) {
	return readFile(s.monthPath(year, month))
}

// Batches returns the import log entries of userID, oldest first.
func (s *Store) Batches(ctx context.Context, userID string) ([]model.ImportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readLog()
	if err != nil {
		return nil, err
	}
	var out []model.ImportBatch
	for _, b := range all {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

// CommitBatch appends txns to their month files and batch to the import
// log. Every touched file is written to a temporary sibling first and then
// renamed into place; if any rename fails the originals are restored.
func (s *Store) CommitBatch(ctx context.Context, userID, accountID string, batch model.ImportBatch, txns []model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	byMonth := make(map[string][]model.Transaction)
	for _, txn := range txns {
		if txn.UserID != userID || txn.AccountID != accountID {
			return fmt.Errorf("transaction %s belongs to %s/%s, not %s/%s", txn.ID, txn.UserID, txn.AccountID, userID, accountID)
		}
		key := txn.Date.Format("2006-01")
		byMonth[key] = append(byMonth[key], txn)
	}

	months := make([]string, 0, len(byMonth))
	for k := range byMonth {
		months = append(months, k)
	}
	slices.Sort(months)

	var staged []stagedFile
	for _, key := range months {
		added := byMonth[key]
		year, month := added[0].Date.Year(), int(added[0].Date.Month())
		path := s.monthPath(year, month)

		existing, err := readFile(path)
		if err != nil {
			return err
		}
		all := append(existing, added...)
		if errs := ValidateTransactions(all, s.accounts, year, month); len(errs) > 0 {
			return validationFailed(errs)
		}

		var buf bytes.Buffer
		if err := WriteTransactions(&buf, all); err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		staged = append(staged, stagedFile{path: path, data: buf.Bytes()})
	}

	batches, err := s.readLog()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := writeBatches(&buf, append(batches, batch)); err != nil {
		return fmt.Errorf("encoding import log: %w", err)
	}
	staged = append(staged, stagedFile{path: filepath.Join(s.repoRoot, logFile), data: buf.Bytes()})

	return s.replace(staged)
}

type stagedFile struct {
	path string
	data []byte
	prev bool // an original existed and was moved to path.bak
}

// replace writes every staged file to path.tmp, then swaps them in.
func (s *Store) replace(files []stagedFile) error {
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		if err := os.WriteFile(f.path+".tmp", f.data, 0o644); err != nil {
			removeTemps(files)
			return fmt.Errorf("staging %s: %w", f.path, err)
		}
	}

	for i := range files {
		f := &files[i]
		if _, err := os.Stat(f.path); err == nil {
			if err := s.rename(f.path, f.path+".bak"); err != nil {
				s.rollback(files[:i])
				removeTemps(files)
				return fmt.Errorf("backing up %s: %w", f.path, err)
			}
			f.prev = true
		}
		if err := s.rename(f.path+".tmp", f.path); err != nil {
			s.rollback(files[:i+1])
			removeTemps(files)
			return fmt.Errorf("replacing %s: %w", f.path, err)
		}
	}

	for _, f := range files {
		if f.prev {
			_ = os.Remove(f.path + ".bak")
		}
	}
	return nil
}

// rollback restores the originals of files that were already swapped.
func (s *Store) rollback(files []stagedFile) {
	for _, f := range files {
		if f.prev {
			_ = os.Rename(f.path+".bak", f.path)
		} else {
			_ = os.Remove(f.path)
		}
	}
}

func removeTemps(files []stagedFile) {
	for _, f := range files {
		_ = os.Remove(f.path + ".tmp")
	}
}

func (s *Store) readLog() ([]model.ImportBatch, error) {
	f, err := os.Open(filepath.Join(s.repoRoot, logFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()
	return readBatches(f)
}

// monthFiles lists every transactions.csv under the repository, sorted.
func (s *Store) monthFiles() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.repoRoot, "[0-9][0-9][0-9][0-9]", "[0-9][0-9]", "transactions.csv"))
	if err != nil {
		return nil, fmt.Errorf("listing month files: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}

func (s *Store) monthPath(year, month int) string {
	return filepath.Join(s.repoRoot, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "transactions.csv")
}

func readFile(path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return txns, nil
}

// ErrValidation is wrapped by CommitBatch when the resulting month file
// would break a ledger rule.
var ErrValidation = errors.New("ledger validation failed")

func validationFailed(errs []ValidationError) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%w:\n  %s", ErrValidation, strings.Join(msgs, "\n  "))
}
