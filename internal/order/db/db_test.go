package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/order/db"
)

func setupTestDB(t *testing.T) *db.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Artwork)(nil),
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
		(*models.Transaction)(nil),
		(*models.Withdrawal)(nil),
	} {
		require.NoError(t, bunDB.ResetModel(ctx, model))
	}

	return &db.DB{Bun: bunDB}
}

func seedArtwork(t *testing.T, store *db.DB, id, artistID string, price float64) {
	_, err := store.Bun.NewInsert().Model(&models.Artwork{
		ID:            id,
		Title:         "artwork-" + id,
		ArtistID:      artistID,
		Price:         price,
		Status:        models.ArtworkApproved,
		PayoutAccount: artistID + "@example.com",
		CreatedAt:     time.Now(),
	}).Exec(context.Background())
	require.NoError(t, err)
}

func seedOrder(t *testing.T, store *db.DB, orderID string) {
	order := &models.Order{
		ID:          orderID,
		UserID:      "buyer-1",
		BuyerEmail:  "buyer@example.com",
		TotalAmount: 360.0,
		Status:      models.OrderPending,
		CreatedAt:   time.Now(),
	}
	items := []*models.OrderItem{
		{ID: uuid.NewString(), OrderID: orderID, ArtworkID: "art-a", Quantity: 1, Price: 100.0},
		{ID: uuid.NewString(), OrderID: orderID, ArtworkID: "art-b", Quantity: 1, Price: 200.0},
	}
	tx := &models.Transaction{
		ID:      uuid.NewString(),
		OrderID: orderID,
		Amount:  360.0,
		Status:  models.TxInitiated,
		Metadata: models.Metadata{
			"subtotal":               300.0,
			"platformFee":            60.0,
			"platformCommissionRate": 0.2,
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateOrder(context.Background(), order, items, tx))
}

func TestCreateAndGetOrder(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedArtwork(t, store, "art-a", "artist-1", 100.0)
	seedArtwork(t, store, "art-b", "artist-2", 200.0)

	orderID := uuid.NewString()
	seedOrder(t, store, orderID)

	order, err := store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)

	assert.Equal(t, orderID, order.ID)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, 360.0, order.TotalAmount)
	assert.Len(t, order.Items, 2)
	require.NotNil(t, order.Transaction)
	assert.Equal(t, models.TxInitiated, order.Transaction.Status)

	rate, ok := order.Transaction.Metadata.GetFloat("platformCommissionRate")
	assert.True(t, ok)
	assert.Equal(t, 0.2, rate)
}

func TestGetArtworksByIDs(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedArtwork(t, store, "art-a", "artist-1", 100.0)
	seedArtwork(t, store, "art-b", "artist-2", 200.0)

	artworks, err := store.GetArtworksByIDs(ctx, []string{"art-a", "art-b", "art-missing"})
	require.NoError(t, err)
	assert.Len(t, artworks, 2)

	none, err := store.GetArtworksByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApplyCompletionIsIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seedArtwork(t, store, "art-a", "artist-1", 100.0)
	seedArtwork(t, store, "art-b", "artist-2", 200.0)

	orderID := uuid.NewString()
	seedOrder(t, store, orderID)

	withdrawals := []*models.Withdrawal{
		{ID: uuid.NewString(), UserID: "artist-1", PayoutAccount: "artist-1@example.com", Amount: 80.0, Status: models.WithdrawalInitiated, Metadata: models.Metadata{"orderId": orderID}, CreatedAt: time.Now()},
		{ID: uuid.NewString(), UserID: "artist-2", PayoutAccount: "artist-2@example.com", Amount: 160.0, Status: models.WithdrawalInitiated, Metadata: models.Metadata{"orderId": orderID}, CreatedAt: time.Now()},
	}
	meta := models.Metadata{"paymentProvider": "chapa", "providerTxRef": "TX-ref-1"}

	applied, err := store.ApplyCompletion(ctx, orderID, []string{"art-a", "art-b"}, meta, withdrawals)
	require.NoError(t, err)
	assert.True(t, applied)

	order, err := store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, order.Status)
	assert.Equal(t, models.TxCompleted, order.Transaction.Status)
	// The completion metadata merges without dropping the creation keys.
	assert.Equal(t, "chapa", order.Transaction.Metadata.GetString("paymentProvider"))
	rate, ok := order.Transaction.Metadata.GetFloat("platformCommissionRate")
	assert.True(t, ok)
	assert.Equal(t, 0.2, rate)

	artworks, err := store.GetArtworksByIDs(ctx, []string{"art-a", "art-b"})
	require.NoError(t, err)
	for _, a := range artworks {
		assert.Equal(t, models.ArtworkSold, a.Status)
	}

	count, err := store.Bun.NewSelect().Model((*models.Withdrawal)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Second application: zero rows match the conditional update and
	// nothing is duplicated.
	dup := []*models.Withdrawal{
		{ID: uuid.NewString(), UserID: "artist-1", Amount: 80.0, PayoutAccount: "a", Status: models.WithdrawalInitiated, CreatedAt: time.Now()},
	}
	applied, err = store.ApplyCompletion(ctx, orderID, []string{"art-a", "art-b"}, meta, dup)
	require.NoError(t, err)
	assert.False(t, applied)

	count, err = store.Bun.NewSelect().Model((*models.Withdrawal)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestApplyCancellation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	orderID := uuid.NewString()
	seedOrder(t, store, orderID)

	applied, err := store.ApplyCancellation(ctx, orderID, models.Metadata{"cancellationReason": "payment failed"})
	require.NoError(t, err)
	assert.True(t, applied)

	order, err := store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, order.Status)
	assert.Equal(t, models.TxFailed, order.Transaction.Status)
	assert.Equal(t, "payment failed", order.Transaction.Metadata.GetString("cancellationReason"))

	// A cancelled order cannot be completed afterwards.
	applied, err = store.ApplyCompletion(ctx, orderID, nil, models.Metadata{}, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	// Nor cancelled again.
	applied, err = store.ApplyCancellation(ctx, orderID, models.Metadata{})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMergeTransactionMetadataKeepsExistingKeys(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	orderID := uuid.NewString()
	seedOrder(t, store, orderID)

	err := store.MergeTransactionMetadata(ctx, orderID, models.Metadata{
		"originalTxRef": "TX-" + orderID + "-1700000000000",
		"paypalOrderId": "5O190127TN364715T",
	})
	require.NoError(t, err)

	tx, err := store.GetTransactionByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", tx.Metadata.GetString("paypalOrderId"))
	// Status untouched, creation keys intact.
	assert.Equal(t, models.TxInitiated, tx.Status)
	rate, ok := tx.Metadata.GetFloat("platformCommissionRate")
	assert.True(t, ok)
	assert.Equal(t, 0.2, rate)
}

func TestGetOrdersByUserID(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	first := uuid.NewString()
	second := uuid.NewString()
	seedOrder(t, store, first)
	seedOrder(t, store, second)

	orders, err := store.GetOrdersByUserID(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	none, err := store.GetOrdersByUserID(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, none)
}
