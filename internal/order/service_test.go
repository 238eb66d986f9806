package order_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/order"
	"github.com/Yab112/art-store-backend-sub001/internal/txref"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetArtworksByIDs(ctx context.Context, ids []string) ([]models.Artwork, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Artwork), args.Error(1)
}

func (m *MockDBLayer) CreateOrder(ctx context.Context, order *models.Order, items []*models.OrderItem, tx *models.Transaction) error {
	args := m.Called(ctx, order, items, tx)
	return args.Error(0)
}

func (m *MockDBLayer) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockDBLayer) ApplyCompletion(ctx context.Context, orderID string, artworkIDs []string, meta models.Metadata, withdrawals []*models.Withdrawal) (bool, error) {
	args := m.Called(ctx, orderID, artworkIDs, meta, withdrawals)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) ApplyCancellation(ctx context.Context, orderID string, meta models.Metadata) (bool, error) {
	args := m.Called(ctx, orderID, meta)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockDBLayer) MergeTransactionMetadata(ctx context.Context, orderID string, meta models.Metadata) error {
	args := m.Called(ctx, orderID, meta)
	return args.Error(0)
}

func (m *MockDBLayer) FindTransactionByMetadata(ctx context.Context, key, value string) (*models.Transaction, error) {
	args := m.Called(ctx, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func newTestService(db *MockDBLayer, rate float64) *order.OrderService {
	return order.NewOrderService(db, func() float64 { return rate }, logger.NewLogger("order-test"))
}

func approvedArtwork(id, artistID string, price float64) models.Artwork {
	return models.Artwork{
		ID:            id,
		Title:         "artwork-" + id,
		ArtistID:      artistID,
		Price:         price,
		Status:        models.ArtworkApproved,
		PayoutAccount: artistID + "@example.com",
	}
}

// Tests start here
func TestCreateOrderFreezesPricesAndCommission(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newTestService(mockDB, 0.2)

	artA := approvedArtwork("art-a", "artist-1", 100.0)
	artB := approvedArtwork("art-b", "artist-2", 200.0)

	mockDB.On("GetArtworksByIDs", mock.Anything, []string{"art-a", "art-b"}).
		Return([]models.Artwork{artA, artB}, nil)

	var capturedTx *models.Transaction
	mockDB.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
		capturedTx = tx
		return true
	})).Return(nil)

	resp, err := svc.CreateOrder(context.Background(), "buyer-1", models.CreateOrderRequest{
		Items: []models.OrderItemRequest{
			{ArtworkID: "art-a", Quantity: 1},
			{ArtworkID: "art-b", Quantity: 1},
		},
		BuyerEmail:      "buyer@example.com",
		BuyerName:       "Abebe Bikila",
		ShippingAddress: "12 Bole Rd",
		PaymentMethod:   "chapa",
	})

	assert.NoError(t, err)
	assert.Equal(t, 300.0, resp.Subtotal)
	assert.Equal(t, 60.0, resp.PlatformFee)
	assert.Equal(t, 360.0, resp.TotalAmount)
	assert.True(t, strings.HasPrefix(resp.TxRef, "TX-"+resp.OrderID+"-"))
	assert.Equal(t, resp.OrderID, txref.Decode(resp.TxRef))

	// The rate and amounts must be frozen into the transaction metadata.
	assert.Equal(t, 0.2, capturedTx.Metadata["platformCommissionRate"])
	assert.Equal(t, 300.0, capturedTx.Metadata["subtotal"])
	assert.Equal(t, 60.0, capturedTx.Metadata["platformFee"])
	assert.Equal(t, "Abebe Bikila", capturedTx.Metadata["customerName"])
	assert.Equal(t, 360.0, capturedTx.Amount)
	assert.Equal(t, models.TxInitiated, capturedTx.Status)

	mockDB.AssertExpectations(t)
}

func TestCreateOrderRejectsUnavailableArtworks(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newTestService(mockDB, 0.2)

	sold := approvedArtwork("art-sold", "artist-1", 50.0)
	sold.Status = models.ArtworkSold

	mockDB.On("GetArtworksByIDs", mock.Anything, []string{"art-sold", "art-missing"}).
		Return([]models.Artwork{sold}, nil)

	_, err := svc.CreateOrder(context.Background(), "buyer-1", models.CreateOrderRequest{
		Items: []models.OrderItemRequest{
			{ArtworkID: "art-sold", Quantity: 1},
			{ArtworkID: "art-missing", Quantity: 1},
		},
		BuyerEmail: "buyer@example.com",
	})

	var unavailable *order.UnavailableArtworksError
	assert.Error(t, err)
	assert.True(t, errors.As(err, &unavailable))
	assert.ElementsMatch(t, []string{"art-sold", "art-missing"}, unavailable.ArtworkIDs)
}

func TestCreateOrderRejectsSelfPurchase(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newTestService(mockDB, 0.2)

	own := approvedArtwork("art-own", "artist-1", 75.0)

	mockDB.On("GetArtworksByIDs", mock.Anything, []string{"art-own"}).
		Return([]models.Artwork{own}, nil)

	_, err := svc.CreateOrder(context.Background(), "artist-1", models.CreateOrderRequest{
		Items:      []models.OrderItemRequest{{ArtworkID: "art-own", Quantity: 1}},
		BuyerEmail: "artist@example.com",
	})

	var selfPurchase *order.SelfPurchaseError
	assert.Error(t, err)
	assert.True(t, errors.As(err, &selfPurchase))
	assert.Equal(t, []string{own.Title}, selfPurchase.Titles)
}

func TestCreateOrderValidation(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newTestService(mockDB, 0.2)

	_, err := svc.CreateOrder(context.Background(), "buyer-1", models.CreateOrderRequest{
		BuyerEmail: "buyer@example.com",
	})
	assert.Error(t, err)

	_, err = svc.CreateOrder(context.Background(), "buyer-1", models.CreateOrderRequest{
		Items: []models.OrderItemRequest{{ArtworkID: "art-a", Quantity: 1}},
	})
	assert.Error(t, err)
}

func TestCompleteOrderCreatesWithdrawalsAtFrozenRate(t *testing.T) {
	mockDB := new(MockDBLayer)
	// The configured rate has since changed to 0.5; completion must still
	// use the 0.2 frozen at creation time.
	svc := newTestService(mockDB, 0.5)

	orderID := uuid.NewString()
	pending := &models.Order{
		ID:     orderID,
		UserID: "buyer-1",
		Status: models.OrderPending,
		Items: []*models.OrderItem{
			{ID: "item-1", OrderID: orderID, ArtworkID: "art-a", Quantity: 1, Price: 100.0},
			{ID: "item-2", OrderID: orderID, ArtworkID: "art-b", Quantity: 1, Price: 200.0},
		},
		Transaction: &models.Transaction{
			OrderID:  orderID,
			Status:   models.TxInitiated,
			Metadata: models.Metadata{"platformCommissionRate": 0.2},
		},
	}
	paid := &models.Order{ID: orderID, Status: models.OrderPaid}

	mockDB.On("GetOrderByID", mock.Anything, orderID).Return(pending, nil).Once()
	mockDB.On("GetArtworksByIDs", mock.Anything, []string{"art-a", "art-b"}).
		Return([]models.Artwork{
			approvedArtwork("art-a", "artist-1", 100.0),
			approvedArtwork("art-b", "artist-2", 200.0),
		}, nil)

	var capturedWithdrawals []*models.Withdrawal
	mockDB.On("ApplyCompletion", mock.Anything, orderID, []string{"art-a", "art-b"},
		mock.MatchedBy(func(meta models.Metadata) bool {
			return meta["paymentProvider"] == "chapa" && meta["providerTxRef"] == "ref-123"
		}),
		mock.MatchedBy(func(ws []*models.Withdrawal) bool {
			capturedWithdrawals = ws
			return true
		})).Return(true, nil)
	mockDB.On("GetOrderByID", mock.Anything, orderID).Return(paid, nil).Once()

	result, err := svc.CompleteOrder(context.Background(), orderID, "ref-123", "chapa")

	assert.NoError(t, err)
	assert.Equal(t, models.OrderPaid, result.Status)
	assert.Len(t, capturedWithdrawals, 2)
	assert.Equal(t, 80.0, capturedWithdrawals[0].Amount)
	assert.Equal(t, "artist-1", capturedWithdrawals[0].UserID)
	assert.Equal(t, 160.0, capturedWithdrawals[1].Amount)
	assert.Equal(t, "artist-2", capturedWithdrawals[1].UserID)
	assert.Equal(t, models.WithdrawalInitiated, capturedWithdrawals[0].Status)

	mockDB.AssertExpectations(t)
}

func TestCompleteOrderAlreadyPaidIsNoOp(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newTestService(mockDB, 0.2)

	orderID := uuid.NewString()
	paid := &models.Order{ID: orderID, Status: models.OrderPaid}

	mockDB.On("GetOrderByID", mock.Anything, orderID).Return(paid, nil)

	result, err := svc.CompleteOrder(context.Background(), orderID, "ref-dup", "chapa")

	assert.NoError(t, err)
	assert.Equal(t, models.OrderPaid, result.Status)
	// No withdrawals, no artwork updates the second time around.
	mockDB.AssertNotCalled(t, "ApplyCompletion", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteOrderCancelledFails(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newTestService(mockDB, 0.2)

	orderID := uuid.NewString()
	cancelled := &models.Order{ID: orderID, Status: models.OrderCancelled}

	mockDB.On("GetOrderByID", mock.Anything, orderID).Return(cancelled, nil)

	_, err := svc.CompleteOrder(context.Background(), orderID, "ref-123", "paypal")
	assert.Error(t, err)
}

func TestCompleteOrderLostRaceReturnsPaidOrder(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newTestService(mockDB, 0.2)

	orderID := uuid.NewString()
	pending := &models.Order{
		ID:     orderID,
		Status: models.OrderPending,
		Items:  []*models.OrderItem{{ID: "item-1", OrderID: orderID, ArtworkID: "art-a", Quantity: 1, Price: 100.0}},
		Transaction: &models.Transaction{
			OrderID:  orderID,
			Metadata: models.Metadata{"platformCommissionRate": 0.2},
		},
	}
	paid := &models.Order{ID: orderID, Status: models.OrderPaid}

	mockDB.On("GetOrderByID", mock.Anything, orderID).Return(pending, nil).Once()
	mockDB.On("GetArtworksByIDs", mock.Anything, []string{"art-a"}).
		Return([]models.Artwork{approvedArtwork("art-a", "artist-1", 100.0)}, nil)
	// The conditional update matched zero rows: another path won.
	mockDB.On("ApplyCompletion", mock.Anything, orderID, mock.Anything, mock.Anything, mock.Anything).
		Return(false, nil)
	mockDB.On("GetOrderByID", mock.Anything, orderID).Return(paid, nil).Once()

	result, err := svc.CompleteOrder(context.Background(), orderID, "ref-123", "chapa")

	assert.NoError(t, err)
	assert.Equal(t, models.OrderPaid, result.Status)
	mockDB.AssertExpectations(t)
}

func TestCancelOrderOnPaidOrderIsNoOp(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newTestService(mockDB, 0.2)

	orderID := uuid.NewString()
	paid := &models.Order{ID: orderID, Status: models.OrderPaid}

	mockDB.On("GetOrderByID", mock.Anything, orderID).Return(paid, nil)

	err := svc.CancelOrder(context.Background(), orderID, "payment failed")

	assert.NoError(t, err)
	mockDB.AssertNotCalled(t, "ApplyCancellation", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelOrderRecordsReason(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newTestService(mockDB, 0.2)

	orderID := uuid.NewString()
	pending := &models.Order{ID: orderID, Status: models.OrderPending}

	mockDB.On("GetOrderByID", mock.Anything, orderID).Return(pending, nil)
	mockDB.On("ApplyCancellation", mock.Anything, orderID, mock.MatchedBy(func(meta models.Metadata) bool {
		return meta["cancellationReason"] == "provider reported failure"
	})).Return(true, nil)

	err := svc.CancelOrder(context.Background(), orderID, "provider reported failure")

	assert.NoError(t, err)
	mockDB.AssertExpectations(t)
}
