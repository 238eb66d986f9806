package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/provider"
	"github.com/Yab112/art-store-backend-sub001/internal/withdrawal/storage"
)

// Service dispatches artist payouts. A withdrawal leaves the initiated
// state only here (to processing, with a payout batch id) and reaches a
// terminal state only via webhook or an explicit failure below.
type Service struct {
	Store    storage.Store
	Provider provider.Provider
	Currency string
	Logger   *logger.Logger
}

func NewService(store storage.Store, p provider.Provider, currency string, log *logger.Logger) *Service {
	return &Service{Store: store, Provider: p, Currency: currency, Logger: log}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Withdrawal, error) {
	return s.Store.GetWithdrawal(ctx, id)
}

func (s *Service) List(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]*models.Withdrawal, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.Store.ListWithdrawals(ctx, status, limit, offset)
}

// Dispatch sends one initiated withdrawal to the provider's payout API
// and moves it to processing keyed by the returned batch id. Distinct
// provider errors (insufficient funds, invalid destination) fail the
// withdrawal with an explicit metadata reason instead of leaving it
// stuck or hiding the cause behind a generic failure.
func (s *Service) Dispatch(ctx context.Context, id string) (*models.Withdrawal, error) {
	withdrawal, err := s.Store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}

	if withdrawal.Status != models.WithdrawalInitiated {
		return nil, fmt.Errorf("withdrawal %s is %s, only initiated withdrawals can be dispatched", id, withdrawal.Status)
	}
	if withdrawal.PayoutAccount == "" {
		return nil, fmt.Errorf("withdrawal %s has no payout account on record", id)
	}

	result, err := s.Provider.Payout(ctx, withdrawal.PayoutAccount, withdrawal.Amount, s.Currency)
	if err != nil {
		reason := "payout dispatch failed"
		switch {
		case errors.Is(err, provider.ErrInsufficientFunds):
			reason = "platform balance insufficient for payout"
		case errors.Is(err, provider.ErrInvalidDestination):
			reason = "payout account rejected by provider"
		default:
			// A generic provider failure leaves the withdrawal
			// initiated so the dispatch can be retried.
			s.Logger.Error("WITHDRAWAL", fmt.Sprintf("payout dispatch for %s failed: %v", id, err))
			return nil, fmt.Errorf("payout dispatch for %s failed: %w", id, err)
		}

		meta := models.Metadata{
			"failureReason": reason,
			"failedAt":      time.Now().UTC().Format(time.RFC3339),
		}
		if updateErr := s.Store.UpdateStatus(ctx, id, models.WithdrawalFailed, meta); updateErr != nil {
			s.Logger.Error("WITHDRAWAL", fmt.Sprintf("failed to mark withdrawal %s failed: %v", id, updateErr))
		}
		return nil, fmt.Errorf("payout for %s rejected: %w", id, err)
	}

	meta := models.Metadata{
		"payoutBatchId":   result.PayoutBatchID,
		"payoutItemState": result.ItemStatus,
		"dispatchedAt":    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Store.SetPayoutBatch(ctx, id, result.PayoutBatchID, models.WithdrawalProcessing, meta); err != nil {
		// The provider accepted the payout but we failed to record the
		// batch id; the metadata fallback lookup can no longer save us.
		s.Logger.Error("WITHDRAWAL", fmt.Sprintf("ANOMALY: payout %s dispatched (batch %s) but status update failed: %v", id, result.PayoutBatchID, err))
		return nil, err
	}

	s.Logger.Info("WITHDRAWAL", fmt.Sprintf("dispatched withdrawal %s as payout batch %s", id, result.PayoutBatchID))
	return s.Store.GetWithdrawal(ctx, id)
}
