// Package webhook consumes asynchronous payout events and drives
// withdrawal state. The HTTP layer always acks the provider with 200 so a
// processing failure never triggers a retry storm; failures land in the
// logs for operator follow-up.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Yab112/art-store-backend-sub001/internal/kafka"
	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/provider"
)

// WithdrawalStore is implemented by the lib/pq store in
// internal/withdrawal/storage.
type WithdrawalStore interface {
	GetByBatchID(ctx context.Context, batchID string) (*models.Withdrawal, error)
	// FindByMetadataBatchID scans non-terminal withdrawals for one whose
	// metadata carries the batch id; covers rows created before the
	// payout_batch_id column existed.
	FindByMetadataBatchID(ctx context.Context, batchID string) (*models.Withdrawal, error)
	UpdateStatus(ctx context.Context, id string, status models.WithdrawalStatus, meta models.Metadata) error
	// CreateWithdrawalTransaction is idempotent per (withdrawal, batch).
	CreateWithdrawalTransaction(ctx context.Context, tx *models.WithdrawalTransaction) error
}

type EventPublisher interface {
	PublishWithdrawalUpdated(ctx context.Context, event kafka.WithdrawalUpdatedEvent) error
}

type Processor struct {
	Provider    provider.Provider
	Withdrawals WithdrawalStore
	Events      EventPublisher
	Logger      *logger.Logger
}

func NewProcessor(p provider.Provider, store WithdrawalStore, events EventPublisher, log *logger.Logger) *Processor {
	return &Processor{Provider: p, Withdrawals: store, Events: events, Logger: log}
}

// Process verifies, normalizes and applies one webhook delivery. The
// returned event type is echoed in the acknowledgement; the error is for
// internal logging only and never reaches the provider.
func (p *Processor) Process(ctx context.Context, payload []byte, headers http.Header) (string, error) {
	if !p.Provider.VerifyWebhookSignature(payload, headers) {
		return "", fmt.Errorf("webhook signature verification failed")
	}

	event, err := p.Provider.ParseWebhook(payload)
	if err != nil {
		return "", err
	}

	p.Logger.Info("WEBHOOK", fmt.Sprintf("processing %s event (batch %s)", event.RawType, event.PayoutBatchID))

	switch event.Type {
	case provider.EventPayoutBatch:
		return event.RawType, p.handleBatchEvent(ctx, event)
	case provider.EventPayoutItem:
		return event.RawType, p.handleItemEvent(ctx, event)
	default:
		p.Logger.Info("WEBHOOK", fmt.Sprintf("ignoring unhandled event type %s", event.RawType))
		return event.RawType, nil
	}
}

func (p *Processor) handleBatchEvent(ctx context.Context, event *provider.WebhookEvent) error {
	withdrawal, err := p.findWithdrawal(ctx, event.PayoutBatchID)
	if err != nil {
		return err
	}

	status := mapBatchStatus(event.BatchStatus, withdrawal.Status)
	meta := models.Metadata{
		"webhookBatchStatus": event.BatchStatus,
		"webhookReceivedAt":  time.Now().UTC().Format(time.RFC3339),
	}

	if err := p.Withdrawals.UpdateStatus(ctx, withdrawal.ID, status, meta); err != nil {
		return fmt.Errorf("failed to update withdrawal %s from batch event: %w", withdrawal.ID, err)
	}

	p.publishUpdate(ctx, withdrawal, status, event.PayoutBatchID)
	return nil
}

func (p *Processor) handleItemEvent(ctx context.Context, event *provider.WebhookEvent) error {
	withdrawal, err := p.findWithdrawal(ctx, event.PayoutBatchID)
	if err != nil {
		return err
	}

	status := mapItemStatus(event.TransactionStatus, withdrawal.Status)
	meta := models.Metadata{
		"webhookTransactionId":     event.TransactionID,
		"webhookTransactionStatus": event.TransactionStatus,
		"webhookReceivedAt":        time.Now().UTC().Format(time.RFC3339),
	}
	if event.TransactionStatus == "UNCLAIMED" {
		// Funds were sent; the recipient has not claimed them yet. From
		// the platform's perspective the payout succeeded.
		meta["unclaimedNote"] = "funds sent, awaiting recipient claim"
	}

	if err := p.Withdrawals.UpdateStatus(ctx, withdrawal.ID, status, meta); err != nil {
		return fmt.Errorf("failed to update withdrawal %s from item event: %w", withdrawal.ID, err)
	}

	if status == models.WithdrawalCompleted {
		// Back every completed payout with a durable transaction row.
		// The store makes this idempotent per (withdrawal, batch), so a
		// re-delivered webhook creates nothing new.
		tx := &models.WithdrawalTransaction{
			ID:            uuid.NewString(),
			WithdrawalID:  withdrawal.ID,
			PayoutBatchID: event.PayoutBatchID,
			Amount:        withdrawal.Amount,
			Status:        string(models.WithdrawalCompleted),
			CreatedAt:     time.Now(),
		}
		if err := p.Withdrawals.CreateWithdrawalTransaction(ctx, tx); err != nil {
			return fmt.Errorf("failed to record withdrawal transaction for %s: %w", withdrawal.ID, err)
		}
	}

	p.publishUpdate(ctx, withdrawal, status, event.PayoutBatchID)
	return nil
}

// findWithdrawal resolves the batch id to a withdrawal: the indexed
// column first, then the metadata fallback.
func (p *Processor) findWithdrawal(ctx context.Context, batchID string) (*models.Withdrawal, error) {
	if batchID == "" {
		return nil, fmt.Errorf("webhook event carries no payout batch id")
	}

	withdrawal, err := p.Withdrawals.GetByBatchID(ctx, batchID)
	if err == nil {
		return withdrawal, nil
	}

	withdrawal, err = p.Withdrawals.FindByMetadataBatchID(ctx, batchID)
	if err != nil {
		p.Logger.Warn("WEBHOOK", fmt.Sprintf("no withdrawal matches payout batch %q; manual reconciliation required", batchID))
		return nil, fmt.Errorf("no withdrawal for payout batch %s: %w", batchID, err)
	}
	return withdrawal, nil
}

func (p *Processor) publishUpdate(ctx context.Context, withdrawal *models.Withdrawal, status models.WithdrawalStatus, batchID string) {
	if p.Events == nil {
		return
	}
	event := kafka.WithdrawalUpdatedEvent{
		WithdrawalID:  withdrawal.ID,
		UserID:        withdrawal.UserID,
		Status:        status,
		PayoutBatchID: batchID,
		UpdatedAt:     time.Now(),
	}
	if err := p.Events.PublishWithdrawalUpdated(ctx, event); err != nil {
		p.Logger.Warn("WEBHOOK", fmt.Sprintf("failed to publish withdrawal update for %s: %v", withdrawal.ID, err))
	}
}

// mapBatchStatus translates payout batch vocabulary. Unknown statuses keep
// the current state; metadata still records the raw value.
func mapBatchStatus(batchStatus string, current models.WithdrawalStatus) models.WithdrawalStatus {
	switch batchStatus {
	case "SUCCESS", "COMPLETED":
		return models.WithdrawalCompleted
	case "DENIED", "FAILED":
		return models.WithdrawalFailed
	case "PENDING", "PROCESSING":
		// Webhooks arrive out of order; a stale in-flight event must not
		// demote a withdrawal that already settled.
		if current.IsTerminal() {
			return current
		}
		return models.WithdrawalProcessing
	default:
		return current
	}
}

// mapItemStatus translates payout item vocabulary. UNCLAIMED counts as
// completed: the platform has paid, only the recipient's claim is
// outstanding.
func mapItemStatus(itemStatus string, current models.WithdrawalStatus) models.WithdrawalStatus {
	switch itemStatus {
	case "SUCCESS", "UNCLAIMED":
		return models.WithdrawalCompleted
	case "FAILED", "DENIED", "BLOCKED":
		return models.WithdrawalFailed
	case "RETURNED", "REFUNDED":
		return models.WithdrawalRefunded
	case "PENDING", "ONHOLD":
		// Same out-of-order guard as the batch mapping: terminal states
		// are only replaced by other terminal states.
		if current.IsTerminal() {
			return current
		}
		return models.WithdrawalProcessing
	default:
		return current
	}
}
