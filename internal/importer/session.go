package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fintrack-dev/fintrack/internal/id"
	"github.com/fintrack-dev/fintrack/internal/logger"
	"github.com/fintrack-dev/fintrack/internal/model"
)

// State is a step of the import workflow.
type State int

const (
	StateUpload State = iota
	StateMapping
	StatePreview
	StateImporting
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUpload:
		return "upload"
	case StateMapping:
		return "mapping"
	case StatePreview:
		return "preview"
	case StateImporting:
		return "importing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

var stateProgress = map[State]int{
	StateUpload:    0,
	StateMapping:   25,
	StatePreview:   50,
	StateImporting: 75,
	StateComplete:  100,
}

// SessionOptions configures one import.
type SessionOptions struct {
	UserID    string
	AccountID string
	Currency  string

	// Mapping, when set, replaces the auto-detected mapping after upload.
	Mapping *model.FieldMapping

	Detect      DetectOptions
	Categorizer Categorizer
	Accounts    AccountChecker // nil skips the account check

	Now func() time.Time
}

// Preview is the deduplicated candidate list shown before commit.
type Preview struct {
	Transactions   []model.Transaction
	DuplicateCount int
	Skipped        []ParseError
	TotalRows      int
}

// Summary is the outcome of a finished import.
type Summary struct {
	BatchID        string   `json:"batch_id"`
	ImportedCount  int      `json:"imported_count"`
	DuplicateCount int      `json:"duplicate_count"`
	SkippedCount   int      `json:"skipped_count"`
	Errors         []string `json:"errors"`
}

// Session walks one uploaded file through upload, mapping, preview and
// commit. Methods are safe to call concurrently; calls made while the
// session is committing fail with ErrBusy.
type Session struct {
	mu    sync.Mutex
	id    string
	store Store
	opts  SessionOptions

	state    State
	progress int

	fileName   string
	checksum   string
	table      *RawTable
	mapping    model.FieldMapping
	normalizer *Normalizer
	preview    *Preview
	batch      model.ImportBatch
	summary    *Summary
}

// NewSession creates a session in the Upload state.
func NewSession(store Store, opts SessionOptions) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		id:    uuid.NewString(),
		store: store,
		opts:  opts,
		state: StateUpload,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.opts.UserID }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns a percentage for display. It never decreases.
func (s *Session) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Table returns the tokenized upload, or nil before upload.
func (s *Session) Table() *RawTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// Mapping returns the current field mapping.
func (s *Session) Mapping() model.FieldMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping
}

// Summary returns the outcome once the session is terminal.
func (s *Session) Summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Batch returns the batch record. Its ID is empty until commit starts.
func (s *Session) Batch() model.ImportBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch
}

// Upload tokenizes data. Files named *.xlsx are read as workbooks. On
// success the session moves to Mapping with a suggested mapping; on
// failure it stays in Upload.
func (s *Session) Upload(fileName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("upload", StateUpload); err != nil {
		return err
	}

	text := string(data)
	detect := s.opts.Detect
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		var err error
		text, err = ReadXLSX(bytes.NewReader(data))
		if err != nil {
			return err
		}
		detect.Delimiter = '\t'
	}

	table, err := DetectWith(text, detect)
	if err != nil {
		return err
	}

	s.fileName = fileName
	s.checksum = id.Checksum(data)
	s.table = table
	s.mapping = AutoDetect(table)
	if s.opts.Mapping != nil {
		s.mapping = *s.opts.Mapping
	}
	s.normalizer = nil
	s.setState(StateMapping)
	return nil
}

// SetMapping replaces the mapping. An invalid mapping is kept so it can be
// shown and corrected, but the error blocks Preview until it is fixed.
func (s *Session) SetMapping(m model.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("change the mapping", StateMapping); err != nil {
		return err
	}

	s.mapping = m
	s.normalizer = nil
	n, err := s.newNormalizer()
	if err != nil {
		return err
	}
	s.mapping = n.Mapping()
	s.normalizer = n
	return nil
}

// Preview normalizes every row under the current mapping and removes rows
// the store already has. It may be called again from Preview to refresh.
func (s *Session) Preview(ctx context.Context) (*Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("preview", StateMapping, StatePreview); err != nil {
		return nil, err
	}

	if s.normalizer == nil {
		n, err := s.newNormalizer()
		if err != nil {
			return nil, err
		}
		s.mapping = n.Mapping()
		s.normalizer = n
	}

	existing, err := s.store.ListFingerprints(ctx, s.opts.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing fingerprints: %w", err)
	}

	candidates, skipped := s.normalizer.NormalizeTable(s.table)
	unique, dups := Partition(candidates, existing)

	p := &Preview{
		Transactions:   unique,
		DuplicateCount: dups,
		Skipped:        append(append([]ParseError(nil), s.table.Skipped...), skipped...),
		TotalRows:      s.table.RowCount() + len(s.table.Skipped),
	}
	s.preview = p

	log := logger.FromContext(ctx)
	log.Debug().
		Str("session_id", s.id).
		Int("rows", p.TotalRows).
		Int("candidates", len(unique)).
		Int("duplicates", dups).
		Int("skipped", len(p.Skipped)).
		Msg("import preview built")

	s.setState(StatePreview)
	return p, nil
}

// Back returns Preview to Mapping and Mapping to Upload.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePreview:
		s.preview = nil
		s.setState(StateMapping)
		return nil
	case StateMapping:
		s.table = nil
		s.mapping = model.FieldMapping{}
		s.normalizer = nil
		s.fileName, s.checksum = "", ""
		s.setState(StateUpload)
		return nil
	}
	return s.stateErr("go back")
}

// Commit hands the previewed transactions to the store in one call. Once
// started it runs to completion even if ctx is cancelled. A store failure
// moves the session to Failed and is returned as a *CommitError.
func (s *Session) Commit(ctx context.Context) (*Summary, error) {
	s.mu.Lock()
	if err := s.expect("commit", StatePreview); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.opts.Accounts != nil && !s.opts.Accounts.Exists(s.opts.AccountID) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccount, s.opts.AccountID)
	}

	batch := model.ImportBatch{
		ID:            uuid.NewString(),
		UserID:        s.opts.UserID,
		AccountID:     s.opts.AccountID,
		FileName:      s.fileName,
		Checksum:      s.checksum,
		Status:        model.BatchProcessing,
		TotalRows:     s.preview.TotalRows,
		ImportedRows:  len(s.preview.Transactions),
		DuplicateRows: s.preview.DuplicateCount,
		SkippedRows:   len(s.preview.Skipped),
		Mapping:       s.mapping,
		CreatedAt:     s.opts.Now().UTC(),
	}
	txns := make([]model.Transaction, len(s.preview.Transactions))
	for i, t := range s.preview.Transactions {
		t.BatchID = batch.ID
		txns[i] = t
	}
	s.batch = batch
	s.setState(StateImporting)
	s.mu.Unlock()

	log := logger.FromContext(ctx).With().
		Str("session_id", s.id).
		Str("batch_id", batch.ID).
		Str("user_id", batch.UserID).
		Str("account_id", batch.AccountID).
		Logger()

	record := batch
	record.Status = model.BatchCompleted
	record.CompletedAt = s.opts.Now().UTC()
	err := s.store.CommitBatch(context.WithoutCancel(ctx), batch.UserID, batch.AccountID, record, txns)
	var failed model.ImportBatch
	if err != nil {
		failed = s.recordFailure(ctx, batch, err, log)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	summary := &Summary{
		BatchID:        batch.ID,
		DuplicateCount: batch.DuplicateRows,
		SkippedCount:   batch.SkippedRows,
		Errors:         []string{},
	}
	for _, pe := range s.preview.Skipped {
		summary.Errors = append(summary.Errors, pe.Error())
	}

	if err != nil {
		s.batch = failed
		summary.Errors = append(summary.Errors, err.Error())
		s.summary = summary
		s.setState(StateFailed)
		log.Error().Err(err).Int("rows", len(txns)).Msg("import commit failed")
		return nil, &CommitError{BatchID: batch.ID, Err: err}
	}

	s.batch = record
	summary.ImportedCount = len(txns)
	s.summary = summary
	s.setState(StateComplete)
	log.Info().
		Int("imported", summary.ImportedCount).
		Int("duplicates", summary.DuplicateCount).
		Int("skipped", summary.SkippedCount).
		Msg("import committed")
	return summary, nil
}

// recordFailure stores batch as failed, without transactions, so the import
// history shows the attempt. A store that still refuses is only logged.
func (s *Session) recordFailure(ctx context.Context, batch model.ImportBatch, cause error, log zerolog.Logger) model.ImportBatch {
	batch.Status = model.BatchFailed
	batch.ErrorMessage = cause.Error()
	batch.ImportedRows = 0
	batch.CompletedAt = s.opts.Now().UTC()
	if err := s.store.CommitBatch(context.WithoutCancel(ctx), batch.UserID, batch.AccountID, batch, nil); err != nil {
		log.Warn().Err(err).Msg("could not record failed import batch")
	}
	return batch
}

func (s *Session) newNormalizer() (*Normalizer, error) {
	return NewNormalizer(s.mapping, s.table.Headers, NormalizeOptions{
		UserID:      s.opts.UserID,
		AccountID:   s.opts.AccountID,
		Currency:    s.opts.Currency,
		Categorizer: s.opts.Categorizer,
	})
}

// expect fails unless the session is in one of states. Must hold mu.
func (s *Session) expect(op string, states ...State) error {
	for _, st := range states {
		if s.state == st {
			return nil
		}
	}
	return s.stateErr(op)
}

func (s *Session) stateErr(op string) error {
	if s.state == StateImporting {
		return ErrBusy
	}
	return &StateError{Op: op, State: s.state}
}

// setState moves to st. Must hold mu.
func (s *Session) setState(st State) {
	s.state = st
	if p, ok := stateProgress[st]; ok && p > s.progress {
		s.progress = p
	}
}

// IsUserError reports whether err is something the user can fix by
// changing input or mapping, as opposed to a store failure.
func IsUserError(err error) bool {
	var me *MappingError
	var pe ParseError
	return errors.Is(err, ErrEmptyInput) || errors.As(err, &me) || errors.As(err, &pe)
}
