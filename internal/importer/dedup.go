package importer

import (
	"github.com/fintrack-dev/fintrack/internal/id"
	"github.com/fintrack-dev/fintrack/internal/model"
)

// Partition drops candidates whose fingerprint is in existing or appeared
// earlier in candidates, keeping the first occurrence. existing is not
// modified.
func Partition(candidates []model.Transaction, existing model.FingerprintSet) ([]model.Transaction, int) {
	seen := existing.Clone()
	unique := make([]model.Transaction, 0, len(candidates))
	duplicates := 0
	for _, c := range candidates {
		if c.Fingerprint == "" {
			c.Fingerprint = id.Fingerprint(c.DateString(), c.Description, c.Amount)
		}
		if seen.Has(c.Fingerprint) {
			duplicates++
			continue
		}
		seen.Add(c.Fingerprint)
		unique = append(unique, c)
	}
	return unique, duplicates
}
