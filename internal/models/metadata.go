package models

// Metadata is the free-form JSON bag carried by transactions and
// withdrawals. Writers must merge into it, never replace it: the bag
// accumulates provider identifiers, audit timestamps and webhook-reported
// statuses across the whole lifecycle of a row.
//
// Keys produced by this service:
//
//	subtotal, platformFee, platformCommissionRate, shippingAddress,
//	paymentMethod, originalTxRef, chapaTxRef, paypalOrderId,
//	payoutBatchId, webhookTransactionId, webhookTransactionStatus,
//	webhookBatchStatus, completedAt, cancelledAt, cancellationReason,
//	failureReason, unclaimedNote
type Metadata map[string]interface{}

// Merge copies the given keys over the receiver and returns the result.
// A nil receiver is treated as an empty bag.
func (m Metadata) Merge(other Metadata) Metadata {
	merged := Metadata{}
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// GetString reads a string-valued key, returning "" when absent or of
// another type.
func (m Metadata) GetString(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetFloat reads a numeric key. JSON decoding yields float64 for all
// numbers, so that is the only numeric case handled.
func (m Metadata) GetFloat(key string) (float64, bool) {
	v, ok := m[key].(float64)
	return v, ok
}
