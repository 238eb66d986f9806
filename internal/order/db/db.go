package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"github.com/Yab112/art-store-backend-sub001/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ARTWORKS ----------------

func (d *DB) GetArtworksByIDs(ctx context.Context, ids []string) ([]models.Artwork, error) {
	if len(ids) == 0 {
		return []models.Artwork{}, nil
	}
	var artworks []models.Artwork
	err := d.Bun.NewSelect().
		Model(&artworks).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return artworks, nil
}

// ---------------- ORDERS ----------------

// CreateOrder inserts the order, its items and its transaction as one
// atomic unit. All rows exist or none do.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order, items []*models.OrderItem, tx *models.Transaction) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, dbTx bun.Tx) error {
		if _, err := dbTx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return err
		}
		if _, err := dbTx.NewInsert().Model(tx).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}

// GetOrderByID fetches one order with its items and transaction.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("Items").
		Relation("Transaction").
		Where("\"order\".id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID fetches a buyer's orders, newest first.
func (d *DB) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Relation("Items").
		Relation("Transaction").
		Where("\"order\".user_id = ?", userID).
		OrderExpr("\"order\".created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ApplyCompletion performs the atomic paid transition. The order row is
// flipped with a conditional update so a racing completion sees zero rows
// affected and does nothing; only the winner marks artworks sold, merges
// the transaction metadata and creates the withdrawal rows.
func (d *DB) ApplyCompletion(ctx context.Context, orderID string, artworkIDs []string, meta models.Metadata, withdrawals []*models.Withdrawal) (bool, error) {
	applied := false
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, dbTx bun.Tx) error {
		res, err := dbTx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", models.OrderPaid).
			Set("updated_at = ?", time.Now()).
			Where("id = ? AND status = ?", orderID, models.OrderPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			// Already handled by the other path. Not an error.
			return nil
		}
		applied = true

		if len(artworkIDs) > 0 {
			if _, err := dbTx.NewUpdate().
				Model((*models.Artwork)(nil)).
				Set("status = ?", models.ArtworkSold).
				Where("id IN (?)", bun.In(artworkIDs)).
				Exec(ctx); err != nil {
				return err
			}
		}

		if err := mergeTransactionMetadataTx(ctx, dbTx, orderID, meta, models.TxCompleted); err != nil {
			return err
		}

		if len(withdrawals) > 0 {
			if _, err := dbTx.NewInsert().Model(&withdrawals).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	return applied, err
}

// ApplyCancellation flips a pending order to cancelled and its transaction
// to failed. Zero rows affected means the order already reached a terminal
// state and the call is a no-op.
func (d *DB) ApplyCancellation(ctx context.Context, orderID string, meta models.Metadata) (bool, error) {
	applied := false
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, dbTx bun.Tx) error {
		res, err := dbTx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", models.OrderCancelled).
			Set("updated_at = ?", time.Now()).
			Where("id = ? AND status = ?", orderID, models.OrderPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		applied = true

		return mergeTransactionMetadataTx(ctx, dbTx, orderID, meta, models.TxFailed)
	})
	return applied, err
}

// ---------------- TRANSACTIONS ----------------

func (d *DB) GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := d.Bun.NewSelect().
		Model(&tx).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// MergeTransactionMetadata appends keys to a transaction's metadata bag
// without touching its status. Used for provider reference aliasing.
func (d *DB) MergeTransactionMetadata(ctx context.Context, orderID string, meta models.Metadata) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, dbTx bun.Tx) error {
		return mergeTransactionMetadataTx(ctx, dbTx, orderID, meta, "")
	})
}

// FindTransactionByMetadata looks a transaction up by an equality match on
// one metadata key. Fallback path for provider-issued identifiers when no
// alias was recorded. Postgres only (jsonb ->> operator).
func (d *DB) FindTransactionByMetadata(ctx context.Context, key, value string) (*models.Transaction, error) {
	var tx models.Transaction
	err := d.Bun.NewSelect().
		Model(&tx).
		Where("metadata->>? = ?", key, value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// mergeTransactionMetadataTx reads the current bag inside the surrounding
// transaction and writes back the merge, so no earlier audit keys are
// lost. status is applied only when non-empty.
func mergeTransactionMetadataTx(ctx context.Context, dbTx bun.Tx, orderID string, meta models.Metadata, status models.TransactionStatus) error {
	var tx models.Transaction
	if err := dbTx.NewSelect().
		Model(&tx).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx); err != nil {
		return err
	}

	tx.Metadata = tx.Metadata.Merge(meta)
	tx.UpdatedAt = time.Now()
	columns := []string{"metadata", "updated_at"}
	if status != "" {
		tx.Status = status
		columns = append(columns, "status")
	}

	_, err := dbTx.NewUpdate().
		Model(&tx).
		Column(columns...).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}
