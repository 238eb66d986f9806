package order

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/txref"
)

// DBLayer is the ledger's storage contract, implemented by the bun store
// in internal/order/db.
type DBLayer interface {
	GetArtworksByIDs(ctx context.Context, ids []string) ([]models.Artwork, error)
	CreateOrder(ctx context.Context, order *models.Order, items []*models.OrderItem, tx *models.Transaction) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	ApplyCompletion(ctx context.Context, orderID string, artworkIDs []string, meta models.Metadata, withdrawals []*models.Withdrawal) (bool, error)
	ApplyCancellation(ctx context.Context, orderID string, meta models.Metadata) (bool, error)
	GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	MergeTransactionMetadata(ctx context.Context, orderID string, meta models.Metadata) error
	FindTransactionByMetadata(ctx context.Context, key, value string) (*models.Transaction, error)
}

// UnavailableArtworksError names every artwork that is missing, rejected
// or already sold.
type UnavailableArtworksError struct {
	ArtworkIDs []string
}

func (e *UnavailableArtworksError) Error() string {
	return fmt.Sprintf("artworks unavailable for purchase: %s", strings.Join(e.ArtworkIDs, ", "))
}

// SelfPurchaseError rejects a buyer purchasing their own artworks.
type SelfPurchaseError struct {
	Titles []string
}

func (e *SelfPurchaseError) Error() string {
	return fmt.Sprintf("you cannot purchase your own artwork: %s", strings.Join(e.Titles, ", "))
}

// OrderService owns the Order/OrderItem/Transaction write paths: pricing
// is frozen at creation, completion and cancellation are idempotent and
// per-item withdrawals fan out from completion exactly once.
type OrderService struct {
	DB DBLayer
	// CommissionRate returns the platform's current cut. It is invoked
	// once per CreateOrder and the result is frozen into the order's
	// transaction metadata; completion always uses the frozen value.
	CommissionRate func() float64
	Logger         *logger.Logger
}

func NewOrderService(db DBLayer, commissionRate func() float64, log *logger.Logger) *OrderService {
	return &OrderService{DB: db, CommissionRate: commissionRate, Logger: log}
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.DB.GetOrderByID(ctx, id)
}

func (s *OrderService) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.DB.GetOrdersByUserID(ctx, userID)
}

// CreateOrder validates availability and ownership, freezes prices and the
// commission rate, and creates order + items + transaction atomically.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}
	if req.BuyerEmail == "" {
		return nil, fmt.Errorf("buyer email is required")
	}

	artworkIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ArtworkID == "" {
			return nil, fmt.Errorf("order item missing artwork id")
		}
		artworkIDs = append(artworkIDs, item.ArtworkID)
	}

	artworks, err := s.DB.GetArtworksByIDs(ctx, artworkIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load artworks: %w", err)
	}
	artworkByID := make(map[string]models.Artwork, len(artworks))
	for _, a := range artworks {
		artworkByID[a.ID] = a
	}

	var unavailable []string
	var ownTitles []string
	for _, id := range artworkIDs {
		artwork, ok := artworkByID[id]
		if !ok || (artwork.Status != models.ArtworkApproved && artwork.Status != models.ArtworkPending) {
			unavailable = append(unavailable, id)
			continue
		}
		if userID != "" && artwork.ArtistID == userID {
			ownTitles = append(ownTitles, artwork.Title)
		}
	}
	if len(unavailable) > 0 {
		return nil, &UnavailableArtworksError{ArtworkIDs: unavailable}
	}
	if len(ownTitles) > 0 {
		return nil, &SelfPurchaseError{Titles: ownTitles}
	}

	orderID := uuid.NewString()
	now := time.Now()

	subtotal := 0.0
	items := make([]*models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		// Freeze the artwork's current price into the item; it is
		// never re-read after this point.
		price := artworkByID[item.ArtworkID].Price
		subtotal += price * float64(quantity)
		items = append(items, &models.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ArtworkID: item.ArtworkID,
			Quantity:  quantity,
			Price:     price,
		})
	}

	rate := s.CommissionRate()
	platformFee := round2(subtotal * rate)
	totalAmount := round2(subtotal + platformFee)

	order := &models.Order{
		ID:          orderID,
		UserID:      userID,
		BuyerEmail:  req.BuyerEmail,
		TotalAmount: totalAmount,
		Status:      models.OrderPending,
		CreatedAt:   now,
	}
	tx := &models.Transaction{
		ID:      uuid.NewString(),
		OrderID: orderID,
		Amount:  totalAmount,
		Status:  models.TxInitiated,
		Metadata: models.Metadata{
			"subtotal":               subtotal,
			"platformFee":            platformFee,
			"platformCommissionRate": rate,
			"shippingAddress":        req.ShippingAddress,
			"paymentMethod":          req.PaymentMethod,
			// Read back by the verify response; the provider's payer
			// record is never authoritative for this.
			"customerName": req.BuyerName,
		},
		CreatedAt: now,
	}

	if err := s.DB.CreateOrder(ctx, order, items, tx); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.Logger.Info("ORDER", fmt.Sprintf("created order %s: subtotal %.2f, fee %.2f, total %.2f", orderID, subtotal, platformFee, totalAmount))

	return &models.CreateOrderResponse{
		OrderID:     orderID,
		TxRef:       txref.Encode(orderID),
		TotalAmount: totalAmount,
		Subtotal:    subtotal,
		PlatformFee: platformFee,
		Items:       items,
	}, nil
}

// CompleteOrder performs the paid transition. Safe to invoke twice: the
// synchronous verify path and an asynchronous webhook may race to call it,
// and whichever arrives second gets the already-completed order back with
// no side effects re-run.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID, providerTxRef, providerName string) (*models.Order, error) {
	existing, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %s not found: %w", orderID, err)
	}

	if existing.Status == models.OrderPaid {
		s.Logger.Info("ORDER", fmt.Sprintf("order %s already paid, skipping completion", orderID))
		return existing, nil
	}
	if existing.Status == models.OrderCancelled {
		return nil, fmt.Errorf("order %s is cancelled and cannot be completed", orderID)
	}

	rate := s.frozenRate(existing)

	artworkIDs := make([]string, 0, len(existing.Items))
	for _, item := range existing.Items {
		artworkIDs = append(artworkIDs, item.ArtworkID)
	}
	artworks, err := s.DB.GetArtworksByIDs(ctx, artworkIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load artworks for order %s: %w", orderID, err)
	}
	artworkByID := make(map[string]models.Artwork, len(artworks))
	for _, a := range artworks {
		artworkByID[a.ID] = a
	}

	withdrawals := make([]*models.Withdrawal, 0, len(existing.Items))
	for _, item := range existing.Items {
		artwork := artworkByID[item.ArtworkID]
		gross := item.Price * float64(item.Quantity)
		withdrawals = append(withdrawals, &models.Withdrawal{
			ID:            uuid.NewString(),
			UserID:        artwork.ArtistID,
			PayoutAccount: artwork.PayoutAccount,
			Amount:        round2(gross * (1 - rate)),
			Status:        models.WithdrawalInitiated,
			Metadata: models.Metadata{
				"orderId":     orderID,
				"orderItemId": item.ID,
				"artworkId":   item.ArtworkID,
			},
			CreatedAt: time.Now(),
		})
	}

	meta := models.Metadata{
		"paymentProvider": providerName,
		"providerTxRef":   providerTxRef,
		"completedAt":     time.Now().UTC().Format(time.RFC3339),
	}

	applied, err := s.DB.ApplyCompletion(ctx, orderID, artworkIDs, meta, withdrawals)
	if err != nil {
		return nil, fmt.Errorf("failed to complete order %s: %w", orderID, err)
	}
	if !applied {
		// Lost the race: the other path completed (or cancelled) the
		// order between our read and the conditional update.
		current, err := s.DB.GetOrderByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.OrderPaid {
			s.Logger.Info("ORDER", fmt.Sprintf("order %s completed concurrently by another path", orderID))
			return current, nil
		}
		return nil, fmt.Errorf("order %s is %s and cannot be completed", orderID, current.Status)
	}

	s.Logger.Info("ORDER", fmt.Sprintf("completed order %s via %s, created %d withdrawals", orderID, providerName, len(withdrawals)))
	return s.DB.GetOrderByID(ctx, orderID)
}

// CancelOrder flips a pending order to cancelled. Calling it on an order
// that already reached paid or cancelled is a no-op, not an error.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string) error {
	existing, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order %s not found: %w", orderID, err)
	}
	if existing.Status != models.OrderPending {
		s.Logger.Info("ORDER", fmt.Sprintf("order %s is %s, cancellation skipped", orderID, existing.Status))
		return nil
	}

	meta := models.Metadata{
		"cancellationReason": reason,
		"cancelledAt":        time.Now().UTC().Format(time.RFC3339),
	}
	applied, err := s.DB.ApplyCancellation(ctx, orderID, meta)
	if err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	if !applied {
		s.Logger.Info("ORDER", fmt.Sprintf("order %s reached a terminal state concurrently, cancellation skipped", orderID))
		return nil
	}

	s.Logger.Info("ORDER", fmt.Sprintf("cancelled order %s: %s", orderID, reason))
	return nil
}

// frozenRate reads the commission rate captured at order-creation time. A
// later admin change to the configured rate must not alter orders created
// before it.
func (s *OrderService) frozenRate(order *models.Order) float64 {
	if order.Transaction != nil {
		if rate, ok := order.Transaction.Metadata.GetFloat("platformCommissionRate"); ok {
			return rate
		}
	}
	s.Logger.Warn("ORDER", fmt.Sprintf("order %s has no frozen commission rate, falling back to current configuration", order.ID))
	return s.CommissionRate()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
