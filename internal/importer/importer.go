package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// Profile is a named, known-good mapping for one bank's export format.
type Profile struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Mapping     model.FieldMapping `json:"mapping" yaml:"mapping"`
}

// Registry holds named profiles.
type Registry struct {
	profiles map[string]Profile
}

// FileInfo describes a statement file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]Profile)}
}

// Add adds a profile, failing if the mapping is invalid or the name is taken.
func (r *Registry) Add(p Profile) error {
	key := strings.ToLower(strings.TrimSpace(p.Name))
	if key == "" {
		return errors.New("profile has no name")
	}
	if _, ok := r.profiles[key]; ok {
		return fmt.Errorf("duplicate profile %q", key)
	}
	m, err := Validate(p.Mapping)
	if err != nil {
		return fmt.Errorf("profile %q: %w", key, err)
	}
	p.Name = key
	p.Mapping = m
	r.profiles[key] = p
	return nil
}

// Register adds a built-in profile. Panics on a duplicate or invalid profile.
func (r *Registry) Register(p Profile) {
	if err := r.Add(p); err != nil {
		panic(err.Error())
	}
}

// Get returns the profile with the given name, case-insensitively.
func (r *Registry) Get(name string) (Profile, bool) {
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns all profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// LoadFile adds the profiles listed in a YAML file:
//
//	profiles:
//	  - name: tangerine
//	    mapping: {date: Date, description: Name, amount: Amount}
//
// A missing file is not an error.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading profiles: %w", err)
	}
	var doc struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing profiles: %w", err)
	}
	for _, p := range doc.Profiles {
		if err := r.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry returns a registry with the built-in profiles.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Profile{
		Name:        "chase",
		Description: "Chase checking and savings activity export",
		Mapping: model.FieldMapping{
			Date:        "Posting Date",
			Description: "Description",
			Amount:      "Amount",
			Balance:     "Balance",
			DateFormat:  "01/02/2006",
			Sign:        model.SignPositiveIncome,
		},
	})
	r.Register(Profile{
		Name:        "chase-card",
		Description: "Chase credit card activity export",
		Mapping: model.FieldMapping{
			Date:        "Transaction Date",
			Description: "Description",
			Amount:      "Amount",
			DateFormat:  "01/02/2006",
			Sign:        model.SignPositiveIncome,
		},
	})
	r.Register(Profile{
		Name:        "debit-credit",
		Description: "Generic statement with separate debit and credit columns",
		Mapping: model.FieldMapping{
			Date:        "Date",
			Description: "Description",
			Debit:       "Debit",
			Credit:      "Credit",
			Balance:     "Balance",
		},
	})
	return r
}

// importDir is the subdirectory for statement files waiting to be imported.
const importDir = "import"

// processedDir is the subdirectory for imported statement files.
const processedDir = "import/processed"

var importExts = []string{".csv", ".tsv", ".txt", ".xlsx"}

// Scan returns statement files in <repoRoot>/import/.
func Scan(repoRoot string) ([]FileInfo, error) {
	dir := filepath.Join(repoRoot, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !slices.Contains(importExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(repoRoot, fileName string) error {
	src := filepath.Join(repoRoot, importDir, fileName)
	dstDir := filepath.Join(repoRoot, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
