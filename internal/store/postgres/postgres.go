// Package postgres is a pgx-backed import store for multi-user deployments.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fintrack-dev/fintrack/internal/model"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS import_batches (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		account_id VARCHAR(64) NOT NULL,
		file_name VARCHAR(255) NOT NULL DEFAULT '',
		checksum VARCHAR(16) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
		total_rows INTEGER NOT NULL DEFAULT 0,
		imported_rows INTEGER NOT NULL DEFAULT 0,
		duplicate_rows INTEGER NOT NULL DEFAULT 0,
		skipped_rows INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		mapping JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		user_id VARCHAR(64) NOT NULL,
		id VARCHAR(32) NOT NULL,
		fingerprint VARCHAR(16) NOT NULL,
		account_id VARCHAR(64) NOT NULL,
		batch_id VARCHAR(36) REFERENCES import_batches (id),
		date DATE NOT NULL,
		description TEXT NOT NULL,
		merchant TEXT NOT NULL DEFAULT '',
		amount NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
		type VARCHAR(16) NOT NULL CHECK (type IN ('income', 'expense')),
		currency VARCHAR(3) NOT NULL,
		balance NUMERIC(18, 2),
		category VARCHAR(64) NOT NULL DEFAULT '',
		row_index INTEGER NOT NULL,
		PRIMARY KEY (user_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_fingerprint ON transactions (user_id, fingerprint)`,
	`CREATE INDEX IF NOT EXISTS idx_import_batches_user ON import_batches (user_id, created_at)`,
}

var transactionColumns = []string{
	"user_id", "id", "fingerprint", "account_id", "batch_id", "date", "description",
	"merchant", "amount", "type", "currency", "balance", "category", "row_index",
}

// Store implements the importer's store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for dsn and checks that the server answers.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the pool.
func (s *Store) Close() { s.pool.Close() }

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, q := range schema {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

func (s *Store) ListFingerprints(ctx context.Context, userID string) (model.FingerprintSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT fingerprint FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying fingerprints: %w", err)
	}
	fps, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("reading fingerprints: %w", err)
	}
	set := model.NewFingerprintSet()
	for _, fp := range fps {
		set.Add(model.Fingerprint(fp))
	}
	return set, nil
}

// CommitBatch inserts the batch row and copies txns in a single database
// transaction.
func (s *Store) CommitBatch(ctx context.Context, userID, accountID string, batch model.ImportBatch, txns []model.Transaction) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO import_batches (id, user_id, account_id, file_name, checksum, status,
				total_rows, imported_rows, duplicate_rows, skipped_rows, error_message, mapping,
				created_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			batch.ID, userID, accountID, batch.FileName, batch.Checksum, string(batch.Status),
			batch.TotalRows, batch.ImportedRows, batch.DuplicateRows, batch.SkippedRows,
			batch.ErrorMessage, batch.Mapping, batch.CreatedAt, nullTime(batch.CompletedAt))
		if err != nil {
			return fmt.Errorf("inserting batch: %w", err)
		}
		if len(txns) == 0 {
			return nil
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"transactions"},
			transactionColumns,
			pgx.CopyFromSlice(len(txns), func(i int) ([]any, error) {
				t := txns[i]
				return []any{
					t.UserID, t.ID, string(t.Fingerprint), t.AccountID, nullText(t.BatchID), t.Date,
					t.Description, t.Merchant, numeric(t.Amount), string(t.Type), t.Currency,
					nullNumeric(t.Balance), t.Category, t.RowIndex,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying transactions: %w", err)
		}
		return nil
	})
}

func (s *Store) Batches(ctx context.Context, userID string) ([]model.ImportBatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, account_id, file_name, checksum, status, total_rows, imported_rows,
			duplicate_rows, skipped_rows, error_message, mapping, created_at, completed_at
		FROM import_batches WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	batches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ImportBatch, error) {
		var (
			b         model.ImportBatch
			status    string
			completed pgtype.Timestamptz
		)
		err := row.Scan(&b.ID, &b.UserID, &b.AccountID, &b.FileName, &b.Checksum, &status,
			&b.TotalRows, &b.ImportedRows, &b.DuplicateRows, &b.SkippedRows, &b.ErrorMessage,
			&b.Mapping, &b.CreatedAt, &completed)
		b.Status = model.BatchStatus(status)
		b.CreatedAt = b.CreatedAt.UTC()
		if completed.Valid {
			b.CompletedAt = completed.Time.UTC()
		}
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading batches: %w", err)
	}
	return batches, nil
}

// Transactions returns the stored transactions of userID ordered by date.
func (s *Store) Transactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, id, fingerprint, account_id, batch_id, date, description, merchant,
			amount, type, currency, balance, category, row_index
		FROM transactions WHERE user_id = $1 ORDER BY date, row_index`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	txns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Transaction, error) {
		var (
			t               model.Transaction
			fp, typ         string
			batchID         pgtype.Text
			amount, balance pgtype.Numeric
		)
		err := row.Scan(&t.UserID, &t.ID, &fp, &t.AccountID, &batchID, &t.Date, &t.Description,
			&t.Merchant, &amount, &typ, &t.Currency, &balance, &t.Category, &t.RowIndex)
		if err != nil {
			return t, err
		}
		t.Fingerprint = model.Fingerprint(fp)
		t.Type = model.TransactionType(typ)
		t.BatchID = batchID.String
		t.Amount = fromNumeric(amount)
		if balance.Valid {
			b := fromNumeric(balance)
			t.Balance = &b
		}
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	return txns, nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func nullNumeric(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{}
	}
	return numeric(*d)
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func nullTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
