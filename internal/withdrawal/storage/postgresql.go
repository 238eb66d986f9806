package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Yab112/art-store-backend-sub001/internal/config"
	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
)

var ErrNotFound = errors.New("withdrawal not found")

// PostgreSQLStore is the payout subsystem's own store over the
// withdrawals tables. Metadata writes use jsonb concatenation so merges
// are append-only at the SQL level.
type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("DATABASE", "withdrawal storage connected")
	return &PostgreSQLStore{db: db, log: log}, nil
}

// NewPostgreSQLStoreWithDB wraps an existing connection.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) *PostgreSQLStore {
	return &PostgreSQLStore{db: db, log: log}
}

const withdrawalColumns = `id, user_id, payout_account, amount, status, COALESCE(payout_batch_id, ''), metadata, created_at`

func (s *PostgreSQLStore) scanWithdrawal(row *sql.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	var metaRaw []byte
	err := row.Scan(&w.ID, &w.UserID, &w.PayoutAccount, &w.Amount, &w.Status, &w.PayoutBatchID, &metaRaw, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &w.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata on withdrawal %s: %w", w.ID, err)
		}
	}
	return &w, nil
}

func (s *PostgreSQLStore) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	return s.scanWithdrawal(row)
}

func (s *PostgreSQLStore) GetByBatchID(ctx context.Context, batchID string) (*models.Withdrawal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE payout_batch_id = $1`, batchID)
	return s.scanWithdrawal(row)
}

// FindByMetadataBatchID is the fallback lookup for withdrawals dispatched
// before the payout_batch_id column existed: scan non-terminal rows for a
// matching metadata key.
func (s *PostgreSQLStore) FindByMetadataBatchID(ctx context.Context, batchID string) (*models.Withdrawal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals
         WHERE status IN ($1, $2) AND metadata->>'payoutBatchId' = $3
         LIMIT 1`,
		models.WithdrawalProcessing, models.WithdrawalInitiated, batchID)
	return s.scanWithdrawal(row)
}

func (s *PostgreSQLStore) ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		var w models.Withdrawal
		var metaRaw []byte
		if err := rows.Scan(&w.ID, &w.UserID, &w.PayoutAccount, &w.Amount, &w.Status, &w.PayoutBatchID, &metaRaw, &w.CreatedAt); err != nil {
			return nil, err
		}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &w.Metadata)
		}
		withdrawals = append(withdrawals, &w)
	}
	return withdrawals, rows.Err()
}

// UpdateStatus writes the mapped status and appends the given metadata
// keys via jsonb concatenation, so earlier audit entries survive.
func (s *PostgreSQLStore) UpdateStatus(ctx context.Context, id string, status models.WithdrawalStatus, meta models.Metadata) error {
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE withdrawals
         SET status = $1,
             metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb,
             updated_at = NOW()
         WHERE id = $3`,
		status, metaRaw, id)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal %s: %w", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPayoutBatch moves a dispatched withdrawal into the given status and
// records the provider's batch id, the correlation key for webhooks.
func (s *PostgreSQLStore) SetPayoutBatch(ctx context.Context, id, batchID string, status models.WithdrawalStatus, meta models.Metadata) error {
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE withdrawals
         SET status = $1,
             payout_batch_id = $2,
             metadata = COALESCE(metadata, '{}'::jsonb) || $3::jsonb,
             updated_at = NOW()
         WHERE id = $4`,
		status, batchID, metaRaw, id)
	if err != nil {
		return fmt.Errorf("failed to set payout batch on withdrawal %s: %w", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateWithdrawalTransaction inserts the durable audit row for a
// completed payout. ON CONFLICT DO NOTHING over the (withdrawal, batch)
// unique index makes a re-delivered webhook a no-op.
func (s *PostgreSQLStore) CreateWithdrawalTransaction(ctx context.Context, tx *models.WithdrawalTransaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO withdrawal_transactions (id, withdrawal_id, payout_batch_id, amount, status, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT (withdrawal_id, payout_batch_id) DO NOTHING`,
		tx.ID, tx.WithdrawalID, tx.PayoutBatchID, tx.Amount, tx.Status, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record withdrawal transaction: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}
