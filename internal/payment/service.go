package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/Yab112/art-store-backend-sub001/internal/kafka"
	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/provider"
	"github.com/Yab112/art-store-backend-sub001/internal/txref"
)

// OrderLedger is the slice of the order service the engine drives.
type OrderLedger interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	CompleteOrder(ctx context.Context, orderID, providerTxRef, providerName string) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) error
}

// TransactionStore covers the metadata aliasing reads/writes.
type TransactionStore interface {
	GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	MergeTransactionMetadata(ctx context.Context, orderID string, meta models.Metadata) error
	FindTransactionByMetadata(ctx context.Context, key, value string) (*models.Transaction, error)
}

// CartCleaner removes purchased artworks from the buyer's cart after
// completion. Absence counts as success.
type CartCleaner interface {
	RemoveItem(ctx context.Context, userID, artworkID string) error
}

// EventPublisher fans completion events out to the notification pipeline.
type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, event kafka.OrderCompletedEvent) error
}

// PaymentService reconciles provider checkout flows with the order
// ledger: initialize -> hosted checkout -> verify -> complete or cancel.
// It is the synchronous counterpart of the webhook path and both converge
// on the same terminal order state through the ledger's idempotency
// guards.
type PaymentService struct {
	Providers    map[models.PaymentProvider]provider.Provider
	Ledger       OrderLedger
	Transactions TransactionStore
	Cart         CartCleaner
	Events       EventPublisher
	Logger       *logger.Logger
}

func NewPaymentService(providers map[models.PaymentProvider]provider.Provider, ledger OrderLedger, transactions TransactionStore, cart CartCleaner, events EventPublisher, log *logger.Logger) *PaymentService {
	return &PaymentService{
		Providers:    providers,
		Ledger:       ledger,
		Transactions: transactions,
		Cart:         cart,
		Events:       events,
		Logger:       log,
	}
}

func (s *PaymentService) provider(name models.PaymentProvider) (provider.Provider, error) {
	p, ok := s.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported payment provider %q", name)
	}
	return p, nil
}

// InitializePayment starts a hosted checkout session with the named
// provider. When the provider reissues its own reference, the canonical
// one is persisted into the transaction metadata so later verify/webhook
// events can be mapped back; a failed persist is logged, not fatal — the
// metadata equality fallback in VerifyPayment covers it.
func (s *PaymentService) InitializePayment(ctx context.Context, req models.InitializePaymentRequest) (*models.InitializePaymentResponse, error) {
	p, err := s.provider(req.Provider)
	if err != nil {
		return nil, err
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = txref.Decode(req.TxRef)
	}
	if orderID == "" {
		return nil, fmt.Errorf("could not resolve an order from reference %q", req.TxRef)
	}

	order, err := s.Ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %s not found: %w", orderID, err)
	}

	result, err := p.Initialize(ctx, provider.InitializeRequest{
		Amount:    req.Amount,
		Currency:  req.Currency,
		TxRef:     req.TxRef,
		Email:     order.BuyerEmail,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	if result.RefReissued {
		meta := models.Metadata{"originalTxRef": req.TxRef}
		switch req.Provider {
		case models.ProviderChapa:
			meta["chapaTxRef"] = result.ProviderRef
		case models.ProviderPayPal:
			meta["paypalOrderId"] = result.ProviderRef
		}
		if err := s.Transactions.MergeTransactionMetadata(ctx, orderID, meta); err != nil {
			// Non-critical: the fallback metadata lookup still maps
			// the provider's identifier back to the order.
			s.Logger.Warn("PAYMENT", fmt.Sprintf("failed to persist reference alias for order %s: %v", orderID, err))
		}
	}

	s.Logger.Info("PAYMENT", fmt.Sprintf("initialized %s checkout for order %s (ref %s)", req.Provider, orderID, result.ProviderRef))

	return &models.InitializePaymentResponse{
		CheckoutURL: result.CheckoutURL,
		TxRef:       req.TxRef,
		Provider:    req.Provider,
	}, nil
}

// VerifyPayment resolves the settled state of a checkout and drives the
// ledger to the matching terminal order state. Customer identity in the
// response comes from the order row, never from the provider's payer
// record: the provider's payer is not authoritative for the platform's
// customer data.
func (s *PaymentService) VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	p, err := s.provider(req.Provider)
	if err != nil {
		return nil, err
	}

	orderID, providerRef := s.resolveReference(ctx, req)

	result, err := p.Verify(ctx, providerRef)
	if err != nil {
		s.cancelBestEffort(ctx, orderID, req.TxRef, fmt.Sprintf("payment verification failed: %v", err))
		return nil, fmt.Errorf("verification with %s failed: %w", req.Provider, err)
	}

	resp := &models.VerifyPaymentResponse{
		Status:   string(result.Status),
		Amount:   result.Amount,
		Currency: result.Currency,
		TxRef:    req.TxRef,
		Provider: req.Provider,
	}

	switch result.Status {
	case provider.VerifySuccess:
		if orderID == "" {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("verified a successful payment but could not map reference %q to an order; manual reconciliation required", req.TxRef))
			return nil, fmt.Errorf("could not map reference %q to an order", req.TxRef)
		}
		order := s.settle(ctx, orderID, req)
		if order != nil {
			resp.CustomerEmail = order.BuyerEmail
			if order.Transaction != nil {
				resp.CustomerName = order.Transaction.Metadata.GetString("customerName")
			}
		}
	case provider.VerifyFailed:
		s.cancelBestEffort(ctx, orderID, req.TxRef, fmt.Sprintf("%s reported the payment as failed", req.Provider))
	default:
		s.Logger.Info("PAYMENT", fmt.Sprintf("payment for reference %s still pending at %s", req.TxRef, req.Provider))
	}

	return resp, nil
}

// resolveReference maps the caller's reference to (orderID, providerRef).
// Preference order: decode the canonical reference, then fall back to a
// metadata equality lookup for provider-issued identifiers.
func (s *PaymentService) resolveReference(ctx context.Context, req models.VerifyPaymentRequest) (string, string) {
	providerRef := req.TxRef
	orderID := txref.Decode(req.TxRef)

	if orderID != "" {
		// Chapa may have been given a shortened reference at
		// initialize time; the adapter can only verify what it issued.
		if req.Provider == models.ProviderChapa {
			if tx, err := s.Transactions.GetTransactionByOrderID(ctx, orderID); err == nil {
				if short := tx.Metadata.GetString("chapaTxRef"); short != "" {
					providerRef = short
				}
			}
		}
		return orderID, providerRef
	}

	key := "paypalOrderId"
	if req.Provider == models.ProviderChapa {
		key = "chapaTxRef"
	}
	tx, err := s.Transactions.FindTransactionByMetadata(ctx, key, req.TxRef)
	if err != nil {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("no transaction found for %s reference %q", req.Provider, req.TxRef))
		return "", providerRef
	}

	// Prefer the original canonical reference recorded at initialize
	// time; the transaction's own order id is the final word either way.
	if original := tx.Metadata.GetString("originalTxRef"); original != "" {
		if decoded := txref.Decode(original); decoded != "" {
			return decoded, providerRef
		}
	}
	return tx.OrderID, providerRef
}

// settle completes the order and runs the best-effort post-completion
// work. A ledger failure after a verified payment is a high-severity
// anomaly but does not turn the response into a failure: the money moved,
// and the inconsistency is for reconciliation tooling to repair.
func (s *PaymentService) settle(ctx context.Context, orderID string, req models.VerifyPaymentRequest) *models.Order {
	existing, err := s.Ledger.GetOrder(ctx, orderID)
	if err == nil && existing.Status == models.OrderPaid {
		s.Logger.Info("PAYMENT", fmt.Sprintf("order %s already paid, verification is a no-op", orderID))
		return existing
	}

	order, err := s.Ledger.CompleteOrder(ctx, orderID, req.TxRef, string(req.Provider))
	if err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("ANOMALY: payment for order %s verified successfully but ledger completion failed: %v", orderID, err))
		return existing
	}

	s.cleanupCart(ctx, order)
	s.publishCompletion(ctx, order, string(req.Provider))
	return order
}

// cleanupCart removes each purchased artwork from the buyer's cart.
// Per-item and explicitly non-transactional: a failure here never rolls
// back the completed order.
func (s *PaymentService) cleanupCart(ctx context.Context, order *models.Order) {
	if order == nil || order.UserID == "" {
		return
	}
	for _, item := range order.Items {
		if err := s.Cart.RemoveItem(ctx, order.UserID, item.ArtworkID); err != nil {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("failed to remove artwork %s from cart of user %s: %v", item.ArtworkID, order.UserID, err))
		}
	}
}

func (s *PaymentService) publishCompletion(ctx context.Context, order *models.Order, providerName string) {
	if s.Events == nil || order == nil {
		return
	}
	event := kafka.OrderCompletedEvent{
		OrderID:     order.ID,
		BuyerEmail:  order.BuyerEmail,
		TotalAmount: order.TotalAmount,
		Provider:    providerName,
		CompletedAt: time.Now(),
	}
	if err := s.Events.PublishOrderCompleted(ctx, event); err != nil {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("failed to publish completion event for order %s: %v", order.ID, err))
	}
}

// cancelBestEffort tries to cancel the order behind a failed payment. If
// no order id can be resolved from the raw reference it logs and stops
// rather than guessing.
func (s *PaymentService) cancelBestEffort(ctx context.Context, orderID, rawRef, reason string) {
	if orderID == "" {
		orderID = txref.Decode(rawRef)
	}
	if orderID == "" {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("cannot cancel: could not decode an order id from reference %q", rawRef))
		return
	}
	if err := s.Ledger.CancelOrder(ctx, orderID, reason); err != nil {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("failed to cancel order %s: %v", orderID, err))
	}
}
