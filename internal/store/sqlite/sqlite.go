// Package sqlite is a gorm-backed import store on a single SQLite file.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fintrack-dev/fintrack/internal/model"
)

const insertBatchSize = 500

type transactionRow struct {
	UserID      string              `gorm:"primaryKey;size:64;index:idx_transactions_user_fingerprint,priority:1"`
	ID          string              `gorm:"primaryKey;size:32"`
	Fingerprint string              `gorm:"size:16;not null;index:idx_transactions_user_fingerprint,priority:2"`
	AccountID   string              `gorm:"size:64;not null"`
	BatchID     string              `gorm:"size:36;index"`
	Date        time.Time           `gorm:"not null"`
	Description string              `gorm:"size:1024"`
	Merchant    string              `gorm:"size:255"`
	Amount      decimal.Decimal     `gorm:"type:text;not null"`
	Type        string              `gorm:"size:16;not null"`
	Currency    string              `gorm:"size:3"`
	Balance     decimal.NullDecimal `gorm:"type:text"`
	Category    string              `gorm:"size:64"`
	RowIndex    int
}

func (transactionRow) TableName() string { return "transactions" }

type batchRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	UserID        string `gorm:"size:64;not null;index"`
	AccountID     string `gorm:"size:64;not null"`
	FileName      string `gorm:"size:255"`
	Checksum      string `gorm:"size:16"`
	Status        string `gorm:"size:16;not null"`
	TotalRows     int
	ImportedRows  int
	DuplicateRows int
	SkippedRows   int
	ErrorMessage  string             `gorm:"size:1024"`
	Mapping       model.FieldMapping `gorm:"serializer:json;type:text"`
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

func (batchRow) TableName() string { return "import_batches" }

// Store implements the importer's store on SQLite.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at path and migrates the
// schema. logSQL enables gorm's statement log.
func Open(path string, logSQL bool) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	gormLogger := logger.Default
	if !logSQL {
		gormLogger = gormLogger.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	_, _ = sqlDB.Exec("PRAGMA journal_mode = WAL;")
	_, _ = sqlDB.Exec("PRAGMA synchronous = NORMAL;")
	_, _ = sqlDB.Exec("PRAGMA busy_timeout = 5000;")

	if err := db.AutoMigrate(&transactionRow{}, &batchRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) ListFingerprints(ctx context.Context, userID string) (model.FingerprintSet, error) {
	var fps []string
	err := s.db.WithContext(ctx).
		Model(&transactionRow{}).
		Where("user_id = ?", userID).
		Pluck("fingerprint", &fps).Error
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	set := model.NewFingerprintSet()
	for _, fp := range fps {
		set.Add(model.Fingerprint(fp))
	}
	return set, nil
}

// CommitBatch inserts the batch and its transactions in one database
// transaction.
func (s *Store) CommitBatch(ctx context.Context, userID, accountID string, batch model.ImportBatch, txns []model.Transaction) error {
	rows := make([]transactionRow, len(txns))
	for i, t := range txns {
		rows[i] = toRow(t)
	}
	b := toBatchRow(batch)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b).Error; err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
		return nil
	})
}

func (s *Store) Batches(ctx context.Context, userID string) ([]model.ImportBatch, error) {
	var rows []batchRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	out := make([]model.ImportBatch, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// Transactions returns the stored transactions of userID ordered by date.
func (s *Store) Transactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	var rows []transactionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date, row_index").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	out := make([]model.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func toRow(t model.Transaction) transactionRow {
	r := transactionRow{
		UserID:      t.UserID,
		ID:          t.ID,
		Fingerprint: string(t.Fingerprint),
		AccountID:   t.AccountID,
		BatchID:     t.BatchID,
		Date:        t.Date,
		Description: t.Description,
		Merchant:    t.Merchant,
		Amount:      t.Amount,
		Type:        string(t.Type),
		Currency:    t.Currency,
		Category:    t.Category,
		RowIndex:    t.RowIndex,
	}
	if t.Balance != nil {
		r.Balance = decimal.NewNullDecimal(*t.Balance)
	}
	return r
}

func (r transactionRow) toModel() model.Transaction {
	t := model.Transaction{
		ID:          r.ID,
		Fingerprint: model.Fingerprint(r.Fingerprint),
		UserID:      r.UserID,
		AccountID:   r.AccountID,
		BatchID:     r.BatchID,
		Date:        r.Date.UTC(),
		Description: r.Description,
		Merchant:    r.Merchant,
		Amount:      r.Amount,
		Type:        model.TransactionType(r.Type),
		Currency:    r.Currency,
		Category:    r.Category,
		RowIndex:    r.RowIndex,
	}
	if r.Balance.Valid {
		b := r.Balance.Decimal
		t.Balance = &b
	}
	return t
}

func toBatchRow(b model.ImportBatch) batchRow {
	r := batchRow{
		ID:            b.ID,
		UserID:        b.UserID,
		AccountID:     b.AccountID,
		FileName:      b.FileName,
		Checksum:      b.Checksum,
		Status:        string(b.Status),
		TotalRows:     b.TotalRows,
		ImportedRows:  b.ImportedRows,
		DuplicateRows: b.DuplicateRows,
		SkippedRows:   b.SkippedRows,
		ErrorMessage:  b.ErrorMessage,
		Mapping:       b.Mapping,
		CreatedAt:     b.CreatedAt,
	}
	if !b.CompletedAt.IsZero() {
		c := b.CompletedAt
		r.CompletedAt = &c
	}
	return r
}

func (r batchRow) toModel() model.ImportBatch {
	b := model.ImportBatch{
		ID:            r.ID,
		UserID:        r.UserID,
		AccountID:     r.AccountID,
		FileName:      r.FileName,
		Checksum:      r.Checksum,
		Status:        model.BatchStatus(r.Status),
		TotalRows:     r.TotalRows,
		ImportedRows:  r.ImportedRows,
		DuplicateRows: r.DuplicateRows,
		SkippedRows:   r.SkippedRows,
		ErrorMessage:  r.ErrorMessage,
		Mapping:       r.Mapping,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.CompletedAt != nil {
		b.CompletedAt = r.CompletedAt.UTC()
	}
	return b
}
