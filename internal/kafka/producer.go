package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Yab112/art-store-backend-sub001/internal/models"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer}
}

type OrderCompletedEvent struct {
	OrderID     string    `json:"order_id"`
	BuyerEmail  string    `json:"buyer_email"`
	TotalAmount float64   `json:"total_amount"`
	Provider    string    `json:"provider"`
	CompletedAt time.Time `json:"completed_at"`
}

type WithdrawalUpdatedEvent struct {
	WithdrawalID  string                  `json:"withdrawal_id"`
	UserID        string                  `json:"user_id"`
	Status        models.WithdrawalStatus `json:"status"`
	PayoutBatchID string                  `json:"payout_batch_id,omitempty"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// PublishOrderCompleted streams the completion event for downstream
// notification fan-out. Callers treat failure as log-only.
func (p *Producer) PublishOrderCompleted(ctx context.Context, event OrderCompletedEvent) error {
	return p.publish(ctx, TopicOrderCompleted, event.OrderID, event)
}

func (p *Producer) PublishWithdrawalUpdated(ctx context.Context, event WithdrawalUpdatedEvent) error {
	return p.publish(ctx, TopicWithdrawalUpdated, event.WithdrawalID, event)
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload interface{}) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
