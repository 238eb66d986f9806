// Package provider defines the common contract every payment provider
// adapter implements. The reconciliation engine and payout service depend
// only on this interface, never on a concrete provider.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInsufficientFunds distinguishes a payout rejected for balance
	// reasons from generic provider failures, so the withdrawal can be
	// failed with a meaningful reason instead of stuck in processing.
	ErrInsufficientFunds = errors.New("insufficient funds for payout")
	// ErrInvalidDestination covers unregistered or malformed payout
	// accounts.
	ErrInvalidDestination = errors.New("invalid payout destination")
	// ErrCaptureFailed is returned when an authorized payment cannot be
	// captured. An authorized-but-uncaptured payment is never success.
	ErrCaptureFailed = errors.New("payment capture failed")
)

// InitializationError carries the provider's own message for a failed
// checkout initialization. The adapter never fabricates a checkout URL.
type InitializationError struct {
	Provider string
	Message  string
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("%s initialization failed: %s", e.Provider, e.Message)
}

func (e *InitializationError) Unwrap() error { return e.Err }

type VerifyStatus string

const (
	VerifySuccess VerifyStatus = "success"
	VerifyPending VerifyStatus = "pending"
	VerifyFailed  VerifyStatus = "failed"
)

type InitializeRequest struct {
	Amount    float64
	Currency  string
	TxRef     string
	Email     string
	FirstName string
	LastName  string
	ReturnURL string
	CancelURL string
}

type InitializeResult struct {
	CheckoutURL string
	// ProviderRef is the identifier the provider will report back in
	// verify calls and webhooks. When it differs from the canonical
	// TxRef the caller must persist the aliasing.
	ProviderRef string
	// RefReissued is true when the provider could not carry the
	// canonical reference and ProviderRef is its own identifier.
	RefReissued bool
}

type VerifyResult struct {
	Status        VerifyStatus
	Amount        float64
	Currency      string
	CustomerEmail string
	CustomerName  string
}

type PayoutResult struct {
	PayoutBatchID string
	ItemStatus    string
}

type EventType string

const (
	EventPayoutBatch EventType = "PAYOUT_BATCH"
	EventPayoutItem  EventType = "PAYOUT_ITEM"
	EventOther       EventType = "OTHER"
)

// WebhookEvent is the normalized shape each adapter maps its own event
// taxonomy into.
type WebhookEvent struct {
	Type              EventType
	RawType           string
	PayoutBatchID     string
	TransactionID     string
	TransactionStatus string
	BatchStatus       string
}

type Provider interface {
	Name() string

	// Initialize starts a hosted checkout session. Amount must be
	// positive and Currency a 3-letter code; violations and provider
	// failures surface as *InitializationError.
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)

	// Verify reports the settled state of a payment. Providers whose
	// flow separates authorization from capture must capture here; a
	// capture failure is an error, not a soft status.
	Verify(ctx context.Context, providerRef string) (*VerifyResult, error)

	// Payout dispatches funds to an artist's account and returns the
	// provider's batch identifier for webhook correlation.
	Payout(ctx context.Context, destination string, amount float64, currency string) (*PayoutResult, error)

	// VerifyWebhookSignature rejects forged deliveries. Outside
	// production it is deliberately permissive to ease sandbox testing;
	// this relaxation is intentional and documented per adapter.
	VerifyWebhookSignature(payload []byte, headers http.Header) bool

	// ParseWebhook maps a raw delivery into the normalized event shape.
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}
