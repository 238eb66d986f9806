package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store keeps each user's cart as a redis hash keyed by artwork id. The
// reconciliation engine removes purchased artworks here after an order
// completes; removal of an absent item is a success.
type Store struct {
	Client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{Client: client}
}

// Item is one cart line. Price here is display-only; the order ledger
// re-reads the artwork's price at order creation.
type Item struct {
	ArtworkID string    `json:"artwork_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	AddedAt   time.Time `json:"added_at"`
}

const cartTTL = 30 * 24 * time.Hour

func cartKey(userID string) string {
	return "cart:" + userID
}

func (s *Store) AddItem(ctx context.Context, userID string, item Item) error {
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}

	key := cartKey(userID)
	if err := s.Client.HSet(ctx, key, item.ArtworkID, payload).Err(); err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	s.Client.Expire(ctx, key, cartTTL)
	return nil
}

func (s *Store) GetItems(ctx context.Context, userID string) ([]Item, error) {
	values, err := s.Client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	items := make([]Item, 0, len(values))
	for _, raw := range values {
		var item Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			// A corrupt entry should not make the whole cart
			// unreadable; skip it.
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// RemoveItem deletes one artwork from the user's cart. HDel on a missing
// field is a no-op, so already-absent items count as removed.
func (s *Store) RemoveItem(ctx context.Context, userID, artworkID string) error {
	if err := s.Client.HDel(ctx, cartKey(userID), artworkID).Err(); err != nil {
		return fmt.Errorf("failed to remove cart item %s: %w", artworkID, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.Client.Del(ctx, cartKey(userID)).Err()
}
