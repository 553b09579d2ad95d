package model

import "time"

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// ImportBatch records one uploaded file and what became of it.
type ImportBatch struct {
	ID            string
	UserID        string
	AccountID     string
	FileName      string
	Checksum      string // xxhash of the uploaded bytes
	Status        BatchStatus
	TotalRows     int
	ImportedRows  int
	DuplicateRows int
	SkippedRows   int
	ErrorMessage  string
	Mapping       FieldMapping
	CreatedAt     time.Time
	CompletedAt   time.Time // zero until the batch finishes
}
