package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TransactionStatus string

const (
	TxInitiated  TransactionStatus = "initiated"
	TxProcessing TransactionStatus = "processing"
	TxCompleted  TransactionStatus = "completed"
	TxFailed     TransactionStatus = "failed"
)

// Transaction is the one-to-one payment record of an order. Amount always
// equals the order's total amount; Metadata is append-only.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions"`

	ID        string            `bun:"id,pk" json:"id"`
	OrderID   string            `bun:"order_id,notnull,unique" json:"order_id"`
	Amount    float64           `bun:"amount,notnull" json:"amount"`
	Status    TransactionStatus `bun:"status,notnull" json:"status"`
	Metadata  Metadata          `bun:"metadata,type:jsonb" json:"metadata"`
	CreatedAt time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time         `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}
