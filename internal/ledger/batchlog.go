package ledger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// LogHeader is the CSV header for logs/import-log.csv.
const LogHeader = "batch_id,created_at,completed_at,user_id,account_id,file_name,checksum,status,total_rows,imported_rows,duplicate_rows,skipped_rows,error_message,mapping"

const (
	logFile = "logs/import-log.csv"

	numLogFields     = 14
	colLogBatchID    = 0
	colLogCreated    = 1
	colLogCompleted  = 2
	colLogUserID     = 3
	colLogAccountID  = 4
	colLogFileName   = 5
	colLogChecksum   = 6
	colLogStatus     = 7
	colLogTotal      = 8
	colLogImported   = 9
	colLogDuplicates = 10
	colLogSkipped    = 11
	colLogError      = 12
	colLogMapping    = 13
)

// MarshalBatch converts an ImportBatch to a log row. The mapping is stored
// as JSON.
func MarshalBatch(b model.ImportBatch) ([]string, error) {
	mapping, err := json.Marshal(b.Mapping)
	if err != nil {
		return nil, fmt.Errorf("encoding mapping: %w", err)
	}
	row := make([]string, numLogFields)
	row[colLogBatchID] = b.ID
	row[colLogCreated] = b.CreatedAt.Format(time.RFC3339)
	if !b.CompletedAt.IsZero() {
		row[colLogCompleted] = b.CompletedAt.Format(time.RFC3339)
	}
	row[colLogUserID] = b.UserID
	row[colLogAccountID] = b.AccountID
	row[colLogFileName] = b.FileName
	row[colLogChecksum] = b.Checksum
	row[colLogStatus] = string(b.Status)
	row[colLogTotal] = strconv.Itoa(b.TotalRows)
	row[colLogImported] = strconv.Itoa(b.ImportedRows)
	row[colLogDuplicates] = strconv.Itoa(b.DuplicateRows)
	row[colLogSkipped] = strconv.Itoa(b.SkippedRows)
	row[colLogError] = b.ErrorMessage
	row[colLogMapping] = string(mapping)
	return row, nil
}

// UnmarshalBatch converts a log row to an ImportBatch.
func UnmarshalBatch(record []string) (model.ImportBatch, error) {
	if len(record) != numLogFields {
		return model.ImportBatch{}, fmt.Errorf("expected %d fields, got %d", numLogFields, len(record))
	}

	created, err := time.Parse(time.RFC3339, record[colLogCreated])
	if err != nil {
		return model.ImportBatch{}, fmt.Errorf("parsing created_at %q: %w", record[colLogCreated], err)
	}
	var completed time.Time
	if record[colLogCompleted] != "" {
		completed, err = time.Parse(time.RFC3339, record[colLogCompleted])
		if err != nil {
			return model.ImportBatch{}, fmt.Errorf("parsing completed_at %q: %w", record[colLogCompleted], err)
		}
	}

	var counts [4]int
	for i, col := range []int{colLogTotal, colLogImported, colLogDuplicates, colLogSkipped} {
		counts[i], err = strconv.Atoi(record[col])
		if err != nil {
			return model.ImportBatch{}, fmt.Errorf("parsing count %q: %w", record[col], err)
		}
	}

	var mapping model.FieldMapping
	if record[colLogMapping] != "" {
		if err := json.Unmarshal([]byte(record[colLogMapping]), &mapping); err != nil {
			return model.ImportBatch{}, fmt.Errorf("parsing mapping: %w", err)
		}
	}

	return model.ImportBatch{
		ID:            record[colLogBatchID],
		UserID:        record[colLogUserID],
		AccountID:     record[colLogAccountID],
		FileName:      record[colLogFileName],
		Checksum:      record[colLogChecksum],
		Status:        model.BatchStatus(record[colLogStatus]),
		TotalRows:     counts[0],
		ImportedRows:  counts[1],
		DuplicateRows: counts[2],
		SkippedRows:   counts[3],
		ErrorMessage:  record[colLogError],
		Mapping:       mapping,
		CreatedAt:     created,
		CompletedAt:   completed,
	}, nil
}

func readBatches(r io.Reader) ([]model.ImportBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numLogFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading import log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var batches []model.ImportBatch
	for i, rec := range records[1:] {
		b, err := UnmarshalBatch(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func writeBatches(w io.Writer, batches []model.ImportBatch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(LogHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, b := range batches {
		row, err := MarshalBatch(b)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing batch %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
