// Package accounts manages the user's bank accounts, which imported
// transactions are attached to.
package accounts

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// File is the accounts file location relative to the repo root.
const File = "accounts/accounts.csv"

// Service is a lookup table over accounts, kept in file order. It is not
// safe for concurrent mutation; readers may share it once loaded.
type Service struct {
	list  []model.Account
	index map[string]int
}

// NewService indexes accounts by ID. Later duplicates shadow earlier ones.
func NewService(accounts []model.Account) *Service {
	s := &Service{list: slices.Clone(accounts), index: make(map[string]int, len(accounts))}
	for i, a := range s.list {
		s.index[a.ID] = i
	}
	return s
}

// Load reads the accounts file under repoRoot.
func Load(repoRoot string) (*Service, error) {
	f, err := os.Open(filepath.Join(repoRoot, File))
	if err != nil {
		return nil, fmt.Errorf("opening accounts: %w", err)
	}
	defer f.Close()

	list, err := ReadAccounts(f)
	if err != nil {
		return nil, err
	}
	return NewService(list), nil
}

// All returns a copy of the accounts in file order.
func (s *Service) All() []model.Account { return slices.Clone(s.list) }

// Get returns the account with the given ID.
func (s *Service) Get(id string) (model.Account, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Account{}, false
	}
	return s.list[i], true
}

// Exists reports whether id names an account. It makes Service usable as
// the account checker of the importer and the ledger.
func (s *Service) Exists(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Currency returns the account's currency, or fallback when the account is
// unknown or has none.
func (s *Service) Currency(id, fallback string) string {
	if a, ok := s.Get(id); ok && a.Currency != "" {
		return a.Currency
	}
	return fallback
}

// Add registers a new account.
func (s *Service) Add(a model.Account) error {
	a.ID = strings.TrimSpace(a.ID)
	switch {
	case a.ID == "":
		return fmt.Errorf("account has no id")
	case !a.Type.Valid():
		return fmt.Errorf("account %s: unknown type %q", a.ID, a.Type)
	case s.Exists(a.ID):
		return fmt.Errorf("account %q already exists", a.ID)
	}
	s.index[a.ID] = len(s.list)
	s.list = append(s.list, a)
	return nil
}

// Save writes the accounts file under repoRoot, creating its directory.
func (s *Service) Save(repoRoot string) error {
	path := filepath.Join(repoRoot, File)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating accounts file: %w", err)
	}
	if err := WriteAccounts(f, s.list); err != nil {
		f.Close()
		return fmt.Errorf("writing accounts: %w", err)
	}
	return f.Close()
}
