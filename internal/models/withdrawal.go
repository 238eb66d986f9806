package models

import (
	"time"

	"github.com/uptrace/bun"
)

type WithdrawalStatus string

const (
	WithdrawalInitiated  WithdrawalStatus = "initiated"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
	WithdrawalRefunded   WithdrawalStatus = "refunded"
)

// IsTerminal reports whether the status is a settled end state. A
// terminal withdrawal only moves to another terminal state (a refund
// after completion); it never goes back to processing.
func (s WithdrawalStatus) IsTerminal() bool {
	switch s {
	case WithdrawalCompleted, WithdrawalFailed, WithdrawalRefunded:
		return true
	}
	return false
}

// Withdrawal records one artist's post-commission earnings for one sold
// order item. Created in the initiated state when the order completes,
// moved to processing when an operator dispatches a payout, and driven to
// a terminal state by payout webhooks keyed on PayoutBatchID.
type Withdrawal struct {
	bun.BaseModel `bun:"table:withdrawals"`

	ID            string           `bun:"id,pk" json:"id"`
	UserID        string           `bun:"user_id,notnull" json:"user_id"`
	PayoutAccount string           `bun:"payout_account,notnull" json:"payout_account"`
	Amount        float64          `bun:"amount,notnull" json:"amount"`
	Status        WithdrawalStatus `bun:"status,notnull" json:"status"`
	PayoutBatchID string           `bun:"payout_batch_id,nullzero" json:"payout_batch_id,omitempty"`
	Metadata      Metadata         `bun:"metadata,type:jsonb" json:"metadata"`
	CreatedAt     time.Time        `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time        `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// WithdrawalTransaction is the durable audit row backing a completed
// payout. At most one exists per (withdrawal, payout batch) pair no matter
// how many times the provider re-delivers the webhook.
type WithdrawalTransaction struct {
	bun.BaseModel `bun:"table:withdrawal_transactions"`

	ID            string    `bun:"id,pk" json:"id"`
	WithdrawalID  string    `bun:"withdrawal_id,notnull" json:"withdrawal_id"`
	PayoutBatchID string    `bun:"payout_batch_id,notnull" json:"payout_batch_id"`
	Amount        float64   `bun:"amount,notnull" json:"amount"`
	Status        string    `bun:"status,notnull" json:"status"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
