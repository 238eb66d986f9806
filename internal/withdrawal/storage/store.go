package storage

import (
	"context"

	"github.com/Yab112/art-store-backend-sub001/internal/models"
)

type Store interface {
	GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]*models.Withdrawal, error)
	GetByBatchID(ctx context.Context, batchID string) (*models.Withdrawal, error)
	FindByMetadataBatchID(ctx context.Context, batchID string) (*models.Withdrawal, error)
	UpdateStatus(ctx context.Context, id string, status models.WithdrawalStatus, meta models.Metadata) error
	SetPayoutBatch(ctx context.Context, id, batchID string, status models.WithdrawalStatus, meta models.Metadata) error
	CreateWithdrawalTransaction(ctx context.Context, tx *models.WithdrawalTransaction) error

	Close() error
	HealthCheck() error
}
